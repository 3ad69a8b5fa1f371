package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/aussiebroadwan/dashcore/internal/dashcore/domain"
)

// Record is the durable mirror of a session.
type Record struct {
	Token   string
	Profile *domain.Profile

	// LoginAt is only written when non-zero.
	LoginAt time.Time
}

// Adapter serializes session records onto a Backend.
type Adapter struct {
	backend Backend
	logger  *slog.Logger
}

// NewAdapter wraps backend. A nil logger falls back to slog.Default.
func NewAdapter(backend Backend, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{backend: backend, logger: logger}
}

// Save writes the token and profile together, plus the login timestamp when set.
func (a *Adapter) Save(ctx context.Context, rec Record) error {
	if rec.Token == "" || rec.Profile == nil {
		return ErrIncompleteRecord
	}

	blob, err := json.Marshal(rec.Profile)
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}

	values := map[string]string{
		KeyToken:   rec.Token,
		KeyProfile: string(blob),
	}
	if !rec.LoginAt.IsZero() {
		values[KeyLoginAt] = strconv.FormatInt(rec.LoginAt.UnixMilli(), 10)
	}

	if err := a.backend.Set(ctx, values); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}
	return nil
}

// Load reads the persisted record. It never fails: a backend error reads as
// absence, and a corrupt record (unparseable profile, or a token or profile
// without its partner) is cleared and reads as absence too.
//
// A present record may still have a profile without identity; deciding what to
// do with that is up to the caller.
func (a *Adapter) Load(ctx context.Context) (Record, bool) {
	values, err := a.backend.Get(ctx, KeyToken, KeyProfile, KeyLoginAt)
	if err != nil {
		a.logger.Warn("failed to read persisted session", "error", err)
		return Record{}, false
	}

	token, hasToken := values[KeyToken]
	blob, hasProfile := values[KeyProfile]

	switch {
	case !hasToken && !hasProfile:
		return Record{}, false
	case !hasToken || token == "":
		a.discard(ctx, "profile without credential")
		return Record{}, false
	case !hasProfile:
		a.discard(ctx, "credential without profile")
		return Record{}, false
	}

	var profile domain.Profile
	if err := json.Unmarshal([]byte(blob), &profile); err != nil {
		a.discard(ctx, "unparseable profile")
		return Record{}, false
	}

	rec := Record{Token: token, Profile: &profile}
	if raw, ok := values[KeyLoginAt]; ok {
		if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
			rec.LoginAt = time.UnixMilli(ms)
		}
	}
	return rec, true
}

// Clear removes the token and profile together.
func (a *Adapter) Clear(ctx context.Context) error {
	if err := a.backend.Delete(ctx, KeyToken, KeyProfile); err != nil {
		return fmt.Errorf("failed to clear persisted session: %w", err)
	}
	return nil
}

// HasCredential reports whether a credential is currently stored.
func (a *Adapter) HasCredential(ctx context.Context) bool {
	values, err := a.backend.Get(ctx, KeyToken)
	if err != nil {
		return false
	}
	return values[KeyToken] != ""
}

func (a *Adapter) discard(ctx context.Context, reason string) {
	a.logger.Warn("discarding corrupt persisted session", "reason", reason)
	if err := a.Clear(ctx); err != nil {
		a.logger.Error("failed to clear corrupt session", "error", err)
	}
}
