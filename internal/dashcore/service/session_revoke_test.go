package service

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/dashcore/internal/dashcore/domain"
	"github.com/aussiebroadwan/dashcore/internal/dashcore/store"
	"github.com/aussiebroadwan/dashcore/internal/dashcore/store/drivers/memory"
	"github.com/aussiebroadwan/dashcore/pkg/dashsdk"
	"github.com/aussiebroadwan/dashcore/pkg/invalidation"
	"github.com/aussiebroadwan/dashcore/pkg/slogx"
	"github.com/stretchr/testify/require"
)

// revokingAPI issues tok-1, tok-2, ... on each login and revokes a token on
// logout. Identity lookups for tok-1 wait for meGate once meStarted fires.
type revokingAPI struct {
	mu      sync.Mutex
	logins  int
	revoked map[string]bool

	meStarted chan struct{}
	meGate    chan struct{}
	startOnce sync.Once
}

func (a *revokingAPI) isRevoked(token string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.revoked[token]
}

func (a *revokingAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	token := ""
	if h := r.Header.Get("Authorization"); len(h) > len("Bearer ") {
		token = h[len("Bearer "):]
	}

	switch r.URL.Path {
	case "/api/auth/login":
		a.mu.Lock()
		a.logins++
		n := a.logins
		a.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"token":   "tok-" + strconv.Itoa(n),
			"user":    map[string]any{"id": 7, "username": "ada"},
		})
		return

	case "/api/auth/me":
		if token == "tok-1" {
			a.startOnce.Do(func() { close(a.meStarted) })
			<-a.meGate
		}
	}

	if a.isRevoked(token) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Invalid token."}`))
		return
	}

	switch r.URL.Path {
	case "/api/auth/me":
		_, _ = w.Write([]byte(`{"success":true,"user":{"id":7,"username":"ada"}}`))
	case "/api/auth/permissions":
		_, _ = w.Write([]byte(`{"success":true,"permissions":["marketing.view_lead"]}`))
	case "/api/auth/logout":
		a.mu.Lock()
		a.revoked[token] = true
		a.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func TestLateRejectionOfReplacedTokenKeepsNewSession(t *testing.T) {
	ctx := t.Context()
	api := &revokingAPI{
		revoked:   make(map[string]bool),
		meStarted: make(chan struct{}),
		meGate:    make(chan struct{}),
	}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	t.Cleanup(func() {
		select {
		case <-api.meGate:
		default:
			close(api.meGate)
		}
	})

	backend := memory.NewStore()
	inv := invalidation.New()
	client := dashsdk.NewSDKClient(srv.URL, inv)
	m := NewSessionMachine(&SDKAuth{Client: client}, store.NewAdapter(backend, slogx.Discard()), inv, SessionOptions{
		Logger: slogx.Discard(),
	})
	t.Cleanup(m.Close)
	client.IsCurrent = func(token string) bool { return token == m.Token() }

	s, err := m.Login(ctx, "ada", "secret")
	require.NoError(t, err)
	require.Equal(t, "tok-1", s.Token)

	done := make(chan error, 1)
	go func() { done <- m.Refresh(ctx) }()
	<-api.meStarted

	m.Logout(ctx)
	require.True(t, api.isRevoked("tok-1"))

	s, err = m.Login(ctx, "ada", "secret")
	require.NoError(t, err)
	require.Equal(t, "tok-2", s.Token)

	close(api.meGate)
	select {
	case err := <-done:
		require.ErrorIs(t, err, dashsdk.ErrUnauthorized)
	case <-time.After(5 * time.Second):
		t.Fatal("refresh did not return")
	}

	s = m.Snapshot()
	require.Equal(t, domain.StateAuthenticated, s.State)
	require.Equal(t, "tok-2", s.Token)
	require.True(t, m.HasStoredCredential(ctx))
	require.Zero(t, inv.Raised())
}
