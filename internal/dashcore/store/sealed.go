package store

import (
	"context"
	"encoding/base64"
	"fmt"
)

// Sealer encrypts values at rest. *cryptox.Sealer implements it.
type Sealer interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(sealed []byte) ([]byte, error)
}

// SealedBackend encrypts the credential and profile values before they reach
// the wrapped Backend. Other keys pass through unchanged.
type SealedBackend struct {
	Backend
	sealer Sealer
}

// Sealed wraps b so the token and profile are stored encrypted.
func Sealed(b Backend, s Sealer) *SealedBackend {
	return &SealedBackend{Backend: b, sealer: s}
}

func sealedKey(key string) bool {
	return key == KeyToken || key == KeyProfile
}

// Get decrypts sealed values. A value that cannot be opened is returned as
// the empty string, which the adapter treats as a corrupt record.
func (s *SealedBackend) Get(ctx context.Context, keys ...string) (map[string]string, error) {
	values, err := s.Backend.Get(ctx, keys...)
	if err != nil {
		return nil, err
	}

	for k, v := range values {
		if !sealedKey(k) {
			continue
		}
		values[k] = s.open(v)
	}
	return values, nil
}

// Set encrypts sealed values and writes everything in one call.
func (s *SealedBackend) Set(ctx context.Context, values map[string]string) error {
	out := make(map[string]string, len(values))
	for k, v := range values {
		if !sealedKey(k) {
			out[k] = v
			continue
		}
		sealed, err := s.sealer.Seal([]byte(v))
		if err != nil {
			return fmt.Errorf("failed to seal %s: %w", k, err)
		}
		out[k] = base64.StdEncoding.EncodeToString(sealed)
	}
	return s.Backend.Set(ctx, out)
}

func (s *SealedBackend) open(v string) string {
	raw, err := base64.StdEncoding.DecodeString(v)
	if err != nil {
		return ""
	}
	plain, err := s.sealer.Open(raw)
	if err != nil {
		return ""
	}
	return string(plain)
}
