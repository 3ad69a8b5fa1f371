package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/aussiebroadwan/dashcore/internal/dashcore/domain"
	"github.com/aussiebroadwan/dashcore/internal/dashcore/metrics"
	"github.com/aussiebroadwan/dashcore/internal/dashcore/store"
	"github.com/aussiebroadwan/dashcore/pkg/cryptox"
	"github.com/aussiebroadwan/dashcore/pkg/dashsdk"
	"github.com/aussiebroadwan/dashcore/pkg/invalidation"
	"github.com/aussiebroadwan/dashcore/pkg/jwtx"
	"github.com/aussiebroadwan/dashcore/pkg/permx"
	"github.com/aussiebroadwan/dashcore/pkg/slogx"
)

var (
	ErrNotAuthenticated = errors.New("not_authenticated")
	ErrSuperseded       = errors.New("superseded")
	ErrMissingIdentity  = errors.New("missing_identity")
)

// ReasonStorageUnavailable is the Session.Error of a login the API accepted
// but that could not be written to durable storage.
const ReasonStorageUnavailable = "Could not save session"

// Persistence is the durable mirror the session machine writes through.
// *store.Adapter implements it.
type Persistence interface {
	Save(ctx context.Context, rec store.Record) error
	Load(ctx context.Context) (store.Record, bool)
	Clear(ctx context.Context) error
	HasCredential(ctx context.Context) bool
}

// SessionOptions tunes a SessionMachine. The zero value is usable.
type SessionOptions struct {
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// MaxAge expires a persisted credential whose login timestamp is older
	// than this on rehydrate. Zero disables the check.
	MaxAge time.Duration

	// Now defaults to time.Now.
	Now func() time.Time
}

// SessionMachine owns the client-side session. It is the only writer of
// both the in-memory snapshot and the durable record.
//
// Network calls run outside the lock. Every transition that replaces the
// credential bumps Session.Generation, and a result computed under an older
// generation is dropped, so a late response cannot resurrect a session that
// was logged out in the meantime. Durable writes happen under the lock so the
// stored record always matches the committed generation.
type SessionMachine struct {
	api     AuthAPI
	store   Persistence
	logger  *slog.Logger
	metrics *metrics.Metrics
	maxAge  time.Duration
	now     func() time.Time

	mu         sync.Mutex
	session    domain.Session
	rehydrated bool
	nextSub    int
	subs       map[int]func(domain.Session)

	// publishMu keeps listener deliveries ordered.
	publishMu sync.Mutex

	unsubscribe func()
}

// NewSessionMachine creates a machine in the INIT state and subscribes it to
// invalidations, if a channel is given.
func NewSessionMachine(api AuthAPI, persistence Persistence, invalidations *invalidation.Channel, opts SessionOptions) *SessionMachine {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	m := &SessionMachine{
		api:     api,
		store:   persistence,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		maxAge:  opts.MaxAge,
		now:     opts.Now,
		session: domain.Session{State: domain.StateInit, IsLoading: true},
		subs:    make(map[int]func(domain.Session)),
	}

	if invalidations != nil {
		m.unsubscribe = invalidations.Subscribe(m.onInvalidated)
	}

	return m
}

// Close detaches the machine from the invalidation channel.
func (m *SessionMachine) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

// Snapshot returns the current session.
func (m *SessionMachine) Snapshot() domain.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// Token returns the current credential, or "" when there is none. It is
// suitable as a dashsdk token source.
func (m *SessionMachine) Token() string {
	return m.Snapshot().Token
}

// HasStoredCredential reports whether a credential is in durable storage.
func (m *SessionMachine) HasStoredCredential(ctx context.Context) bool {
	return m.store.HasCredential(ctx)
}

// Subscribe registers fn to receive a snapshot after every transition.
// Deliveries are ordered. fn may read the machine but must not start a
// transition synchronously.
func (m *SessionMachine) Subscribe(fn func(domain.Session)) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

// Rehydrate restores the session from durable storage. It only acts from
// INIT, so it runs at most once per machine; later calls return the current
// snapshot.
func (m *SessionMachine) Rehydrate(ctx context.Context) domain.Session {
	m.mu.Lock()
	if m.rehydrated || m.session.State != domain.StateInit {
		s := m.session
		m.mu.Unlock()
		return s
	}
	m.rehydrated = true
	loading := domain.Session{State: domain.StateLoading, IsLoading: true}
	gen, prev := m.swapLocked(loading)
	m.mu.Unlock()
	m.afterSwap(prev, loading)

	ctx = slogx.WithOperation(ctx, "rehydrate", gen)
	l := slogx.FromContext(ctx)

	rec, ok := m.store.Load(ctx)
	if !ok {
		l.Debug("no persisted session")
		m.settle(ctx, gen, "rehydrate", unauthenticated(""), nil)
		return m.Snapshot()
	}

	if reason := m.expired(rec); reason != "" {
		l.Info("persisted session expired", "reason", reason)
		m.settle(ctx, gen, "rehydrate", unauthenticated(""), m.clearStore)
		return m.Snapshot()
	}

	if rec.Profile.HasIdentity() {
		l.Debug("adopted persisted session", "username", rec.Profile.User.Username, "credential", cryptox.FingerprintToken(rec.Token))
		m.settle(ctx, gen, "rehydrate", authenticated(rec.Token, *rec.Profile, rec.LoginAt), nil)
		return m.Snapshot()
	}

	// Credential without identity: one remote fetch decides.
	profile, err := m.fetchProfile(ctx, rec.Token)
	if err != nil {
		l.Warn("failed to rehydrate session from credential", "error", err)
		m.settle(ctx, gen, "rehydrate", unauthenticated(""), m.clearStore)
		return m.Snapshot()
	}

	next := authenticated(rec.Token, profile, rec.LoginAt)
	if err := m.settle(ctx, gen, "rehydrate", next, m.saveRecord(next, time.Time{})); err != nil && !errors.Is(err, ErrSuperseded) {
		l.Warn("failed to persist rehydrated session", "error", err)
		m.settle(ctx, gen, "rehydrate", unauthenticated(""), m.clearStore)
	}
	return m.Snapshot()
}

// Login authenticates with username and password. A failure leaves the
// session UNAUTHENTICATED with Error set to the reason, and is returned.
func (m *SessionMachine) Login(ctx context.Context, username, password string) (domain.Session, error) {
	m.mu.Lock()
	m.rehydrated = true
	loading := domain.Session{State: domain.StateLoading, IsLoading: true}
	gen, prev := m.swapLocked(loading)
	m.mu.Unlock()
	m.afterSwap(prev, loading)

	ctx = slogx.WithOperation(ctx, "login", gen)
	l := slogx.FromContext(ctx)

	cred, err := m.api.Login(ctx, username, password)
	if err == nil && !cred.Profile.HasIdentity() {
		err = ErrMissingIdentity
	}
	if err == nil {
		var codes []string
		codes, err = m.api.FetchPermissionCodes(ctx, cred.Token)
		cred.Profile.Permissions = codes
	}
	if err != nil {
		m.metrics.RecordLogin(false)
		l.Info("login failed", "username", username, "error", err)
		if m.settle(ctx, gen, "login", unauthenticated(loginFailureReason(err)), m.clearStore) != nil {
			return m.Snapshot(), ErrSuperseded
		}
		return m.Snapshot(), fmt.Errorf("login failed: %w", err)
	}

	loginAt := m.now()
	next := authenticated(cred.Token, cred.Profile, loginAt)
	if err := m.settle(ctx, gen, "login", next, m.saveRecord(next, loginAt)); err != nil {
		m.metrics.RecordLogin(false)
		if errors.Is(err, ErrSuperseded) {
			return m.Snapshot(), ErrSuperseded
		}
		l.Warn("login succeeded but the session could not be stored", "username", username, "error", err)
		if m.settle(ctx, gen, "login", unauthenticated(ReasonStorageUnavailable), m.clearStore) != nil {
			return m.Snapshot(), ErrSuperseded
		}
		return m.Snapshot(), fmt.Errorf("login failed: %w", err)
	}

	if unknown := unknownCodes(cred.Profile.Permissions); len(unknown) > 0 {
		l.Debug("granted permissions outside the catalog", "codes", unknown)
	}

	m.metrics.RecordLogin(true)
	l.Info("login succeeded",
		"username", username,
		"credential", cryptox.FingerprintToken(next.Token),
		"permissions", next.Permissions.Len(),
	)
	return m.Snapshot(), nil
}

// Refresh re-fetches identity and permissions for the current credential.
// On failure the session is left exactly as it was and the error returned.
func (m *SessionMachine) Refresh(ctx context.Context) error {
	cur := m.Snapshot()
	if !cur.IsAuthenticated {
		return ErrNotAuthenticated
	}

	ctx = slogx.WithOperation(ctx, "refresh", cur.Generation)
	l := slogx.FromContext(ctx)

	profile, err := m.fetchProfile(ctx, cur.Token)
	if err != nil {
		l.Warn("failed to refresh session", "error", err)
		return fmt.Errorf("refresh failed: %w", err)
	}

	next := authenticated(cur.Token, profile, cur.LoginAt)
	if err := m.settle(ctx, cur.Generation, "refresh", next, m.saveRecord(next, time.Time{})); err != nil {
		if !errors.Is(err, ErrSuperseded) {
			l.Warn("failed to persist refreshed session", "error", err)
		}
		return err
	}

	l.Debug("session refreshed", "permissions", next.Permissions.Len())
	return nil
}

// Logout notifies the API on a best-effort basis, then clears the session
// and storage regardless of the outcome.
func (m *SessionMachine) Logout(ctx context.Context) {
	cur := m.Snapshot()
	ctx = slogx.WithOperation(ctx, "logout", cur.Generation)
	l := slogx.FromContext(ctx)

	if cur.Token != "" {
		if err := m.api.Logout(ctx, cur.Token); err != nil {
			l.Warn("remote logout failed", "error", err)
		}
	}

	m.teardown(ctx)
	l.Info("logged out")
}

// ForceExpire clears the session and storage without contacting the API.
func (m *SessionMachine) ForceExpire(ctx context.Context) {
	m.metrics.RecordInvalidation()
	m.teardown(ctx)
	m.logger.Info("session expired by invalidation")
}

func (m *SessionMachine) onInvalidated() {
	m.ForceExpire(context.Background())
}

func (m *SessionMachine) teardown(ctx context.Context) {
	m.mu.Lock()
	m.rehydrated = true
	if err := m.store.Clear(ctx); err != nil {
		m.logger.Error("failed to clear persisted session", "error", err)
	}
	next := unauthenticated("")
	_, prev := m.swapLocked(next)
	m.mu.Unlock()
	m.afterSwap(prev, next)
}

// fetchProfile runs the identity and permission fetches for token.
func (m *SessionMachine) fetchProfile(ctx context.Context, token string) (domain.Profile, error) {
	profile, err := m.api.FetchIdentityAndRoles(ctx, token)
	if err != nil {
		return domain.Profile{}, err
	}
	if !profile.HasIdentity() {
		return domain.Profile{}, ErrMissingIdentity
	}

	codes, err := m.api.FetchPermissionCodes(ctx, token)
	if err != nil {
		return domain.Profile{}, err
	}
	profile.Permissions = codes
	return profile, nil
}

// expired returns a non-empty reason when rec must not be adopted.
func (m *SessionMachine) expired(rec store.Record) string {
	now := m.now()
	if err := jwtx.CheckExpiry(rec.Token, now, jwtx.DefaultLeeway); err != nil {
		return "token expired"
	}
	if m.maxAge > 0 && !rec.LoginAt.IsZero() && now.Sub(rec.LoginAt) > m.maxAge {
		return "max age exceeded"
	}
	return ""
}

func (m *SessionMachine) clearStore(ctx context.Context) error {
	return m.store.Clear(ctx)
}

func (m *SessionMachine) saveRecord(s domain.Session, loginAt time.Time) func(context.Context) error {
	return func(ctx context.Context) error {
		profile := s.Profile()
		return m.store.Save(ctx, store.Record{Token: s.Token, Profile: &profile, LoginAt: loginAt})
	}
}

// settle commits next if gen is still current, running persist first under
// the lock. It returns ErrSuperseded when gen is stale.
//
// An authenticated next is only committed once persist succeeds; otherwise
// the persist error is returned and the session is left as it was. Negative
// transitions always commit, and a failed clear is only logged.
func (m *SessionMachine) settle(ctx context.Context, gen uint64, op string, next domain.Session, persist func(context.Context) error) error {
	m.mu.Lock()
	if m.session.Generation != gen {
		cur := m.session.Generation
		m.mu.Unlock()
		m.logger.Debug("discarding stale result", "operation", op, "generation", gen, "current", cur)
		m.metrics.RecordStaleDiscard(op)
		return ErrSuperseded
	}

	if persist != nil {
		if err := persist(ctx); err != nil {
			if next.IsAuthenticated {
				m.mu.Unlock()
				return fmt.Errorf("failed to persist session: %w", err)
			}
			m.logger.Error("failed to update persisted session", "operation", op, "error", err)
		}
	}

	prev := m.session
	next.Generation = gen
	m.session = next
	m.mu.Unlock()
	m.afterSwap(prev, next)
	return nil
}

// swapLocked installs next under a fresh generation. Caller holds m.mu.
func (m *SessionMachine) swapLocked(next domain.Session) (uint64, domain.Session) {
	prev := m.session
	next.Generation = prev.Generation + 1
	m.session = next
	return next.Generation, prev
}

// afterSwap records the transition from prev to next and hands listeners
// the latest snapshot.
func (m *SessionMachine) afterSwap(prev, next domain.Session) {
	m.publishMu.Lock()
	defer m.publishMu.Unlock()

	m.mu.Lock()
	cur := m.session
	ids := make([]int, 0, len(m.subs))
	for id := range m.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func(domain.Session), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, m.subs[id])
	}
	m.mu.Unlock()

	m.metrics.RecordTransition(prev.State.String(), next.State.String())

	for _, fn := range fns {
		fn(cur)
	}
}

func authenticated(token string, profile domain.Profile, loginAt time.Time) domain.Session {
	return domain.Session{
		State:           domain.StateAuthenticated,
		Token:           token,
		User:            profile.User,
		Employee:        profile.Employee,
		Roles:           profile.Roles,
		Permissions:     permx.NewSet(profile.Permissions...),
		IsAuthenticated: true,
		LoginAt:         loginAt,
	}
}

func unauthenticated(reason string) domain.Session {
	return domain.Session{State: domain.StateUnauthenticated, Error: reason}
}

// unknownCodes returns the granted codes the dashboard has no view for.
func unknownCodes(codes []string) []string {
	var out []string
	for _, c := range codes {
		if !permx.IsKnown(c) {
			out = append(out, c)
		}
	}
	return out
}

// loginFailureReason is the message shown to the user for a failed login.
func loginFailureReason(err error) string {
	var apiErr *dashsdk.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	if errors.Is(err, ErrMissingIdentity) || errors.Is(err, dashsdk.ErrUnsuccessful) {
		return "Login failed"
	}
	return err.Error()
}
