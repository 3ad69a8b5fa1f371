package domain

import (
	"time"

	"github.com/aussiebroadwan/dashcore/pkg/permx"
)

// State is the lifecycle phase of a Session.
type State int

const (
	// StateInit is the phase before any rehydration attempt.
	StateInit State = iota
	// StateLoading means a rehydrate, login or refresh is in flight.
	StateLoading
	StateAuthenticated
	StateUnauthenticated
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateLoading:
		return "loading"
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// Profile is the identity part of a session that is mirrored to durable
// storage as one JSON blob.
type Profile struct {
	User        *User     `json:"user"`
	Employee    *Employee `json:"employee"`
	Roles       []Role    `json:"roles"`
	Permissions []string  `json:"permissions"`
}

// HasIdentity reports whether the profile carries a user record.
func (p *Profile) HasIdentity() bool {
	return p != nil && p.User != nil
}

// Session is an immutable snapshot of the client-side session.
//
// When IsAuthenticated is true, Token is set and Permissions holds the last
// successful permission fetch. When it is false, Token, User, Employee, Roles
// and Permissions are all empty.
type Session struct {
	State State

	Token       string
	User        *User
	Employee    *Employee
	Roles       []Role
	Permissions permx.Set

	IsAuthenticated bool
	IsLoading       bool

	// Error is the last login failure. Cleared by any successful transition.
	Error string

	// LoginAt is when the credential was obtained through login.
	LoginAt time.Time

	// Generation increments whenever a transition supersedes in-flight work.
	Generation uint64
}

// HasPermission reports whether code is granted by this snapshot.
func (s Session) HasPermission(code string) bool {
	return s.Permissions.Has(code)
}

// Profile projects the session into its persisted form.
func (s Session) Profile() Profile {
	return Profile{
		User:        s.User,
		Employee:    s.Employee,
		Roles:       s.Roles,
		Permissions: s.Permissions.Codes(),
	}
}
