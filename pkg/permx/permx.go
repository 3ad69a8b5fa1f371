// Package permx evaluates permission codes against a granted set.
//
// A permission code has the form "domain.action_resource" (for example
// "marketing.view_lead"). Codes are opaque: matching is exact, case-sensitive
// set membership after trimming surrounding whitespace. There is no wildcard
// or hierarchy support, so "marketing.admin" does not imply any other code.
package permx

import (
	"slices"
	"strings"
)

// Set is an immutable set of granted permission codes.
// The zero value is an empty set that grants nothing.
type Set struct {
	codes map[string]struct{}
}

// NewSet builds a Set from raw codes. Codes are trimmed and blank entries are
// dropped, duplicates collapse.
func NewSet(codes ...string) Set {
	m := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		m[c] = struct{}{}
	}
	return Set{codes: m}
}

// Len returns the number of granted codes.
func (s Set) Len() int { return len(s.codes) }

// IsEmpty reports whether the set grants nothing.
func (s Set) IsEmpty() bool { return len(s.codes) == 0 }

// Has reports whether code is non-blank and its trimmed form is granted.
func (s Set) Has(code string) bool {
	code = strings.TrimSpace(code)
	if code == "" {
		return false
	}
	_, ok := s.codes[code]
	return ok
}

// HasAny reports whether at least one of codes is granted.
// An empty argument list is false.
func (s Set) HasAny(codes ...string) bool {
	for _, c := range codes {
		if s.Has(c) {
			return true
		}
	}
	return false
}

// HasAll reports whether every one of codes is granted.
// An empty argument list is vacuously true; a blank entry is never granted.
func (s Set) HasAll(codes ...string) bool {
	for _, c := range codes {
		if !s.Has(c) {
			return false
		}
	}
	return true
}

// Codes returns the granted codes in sorted order.
func (s Set) Codes() []string {
	out := make([]string, 0, len(s.codes))
	for c := range s.codes {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

// Equal reports whether both sets grant exactly the same codes.
func (s Set) Equal(other Set) bool {
	if len(s.codes) != len(other.codes) {
		return false
	}
	for c := range s.codes {
		if _, ok := other.codes[c]; !ok {
			return false
		}
	}
	return true
}
