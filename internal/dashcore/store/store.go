package store

import (
	"context"
	"errors"
)

var (
	// ErrIncompleteRecord is returned by Save when the credential or the profile
	// is missing. Both must always be written together.
	ErrIncompleteRecord = errors.New("store: record needs both token and profile")

	// ErrClosed is returned by drivers after Close.
	ErrClosed = errors.New("store: closed")
)

// Durable storage keys. The token and profile keys always move together; the
// login timestamp is written on login and left in place afterwards.
const (
	KeyToken   = "session.token"
	KeyProfile = "session.profile"
	KeyLoginAt = "session.login_at"
)

// Backend is raw durable key/value storage. Concrete drivers (sqlite, redis,
// memory) implement this. Multi-key writes and deletes are applied atomically
// by every driver, so the adapter never leaves a token without its profile.
type Backend interface {
	// Get returns the values of the requested keys. Missing keys are simply
	// absent from the result map.
	Get(ctx context.Context, keys ...string) (map[string]string, error)

	// Set writes all values atomically.
	Set(ctx context.Context, values map[string]string) error

	// Delete removes all keys atomically. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases underlying resources.
	Close() error
}
