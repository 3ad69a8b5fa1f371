package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/dashcore/internal/dashcore/domain"
	"github.com/aussiebroadwan/dashcore/internal/dashcore/store"
	"github.com/aussiebroadwan/dashcore/pkg/slogx"
	"github.com/stretchr/testify/require"
)

// fakeAPI is a minimal dashboard API.
type fakeAPI struct {
	mu      sync.Mutex
	revoked bool
	logouts int
}

func (f *fakeAPI) revoke() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked = true
}

func (f *fakeAPI) logoutCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logouts
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.URL.Path == "/api/auth/login" {
		var body struct{ Username, Password string }
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"Invalid credentials"}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"token":"tok-1","user":{"id":1,"username":"ada","first_name":"Ada","last_name":"Lovelace"},"roles":[{"id":1,"name":"Sales"}]}`))
		return
	}

	f.mu.Lock()
	revoked := f.revoked
	f.mu.Unlock()
	if r.Header.Get("Authorization") != "Bearer tok-1" || revoked {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Invalid token."}`))
		return
	}

	switch r.URL.Path {
	case "/api/auth/permissions":
		_, _ = w.Write([]byte(`{"success":true,"permissions":["marketing.view_lead","notifications.view_notification"]}`))
	case "/api/auth/logout":
		f.mu.Lock()
		f.logouts++
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	case "/api/notifications":
		created := time.Now().Add(-5 * time.Minute).UTC().Format(time.RFC3339)
		_, _ = w.Write([]byte(`{"count":1,"results":[{"id":9,"title":"New order","message":"#1001","notification_type":"order","is_read":false,"created_at":"` + created + `"}]}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestApp(t *testing.T, api *fakeAPI, password string, mods ...func(*Config)) *Application {
	t.Helper()

	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	cfg := Config{
		APIURL:               srv.URL,
		StorageDriver:        "memory",
		Username:             "ada",
		Password:             password,
		NotificationInterval: time.Hour,
		NotificationPageSize: 50,
		NotificationSyncRPS:  100,
		HTTPTimeout:          5 * time.Second,
		ShutdownGracePeriod:  time.Second,
	}
	for _, mod := range mods {
		mod(&cfg)
	}

	app, err := newWithLogger(cfg, slogx.Discard())
	require.NoError(t, err)
	t.Cleanup(func() {
		app.close()
		_ = app.backend.Close()
	})
	return app
}

func get(t *testing.T, app *Application, path string, out any) int {
	t.Helper()
	return call(t, app, http.MethodGet, path, "", out)
}

func call(t *testing.T, app *Application, method, path, body string, out any) int {
	t.Helper()
	rec := httptest.NewRecorder()
	app.server.Handler.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	if out != nil && rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec.Code
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := newWithLogger(Config{StorageDriver: "memory", NotificationPageSize: 50}, slogx.Discard())
	require.ErrorContains(t, err, "DASH_API_URL is required")
}

func TestStartSignsInAndSyncs(t *testing.T) {
	api := &fakeAPI{}
	app := newTestApp(t, api, "secret")

	s := app.Start(t.Context())
	require.Equal(t, domain.StateAuthenticated, s.State)

	var sess SessionResponse
	require.Equal(t, http.StatusOK, get(t, app, "/v1/session", &sess))
	require.True(t, sess.IsAuthenticated)
	require.True(t, sess.StoredCredential)
	require.Equal(t, "Ada Lovelace", sess.FullName)
	require.Equal(t, []string{"marketing.view_lead", "notifications.view_notification"}, sess.Permissions)

	require.Eventually(t, func() bool {
		var n NotificationsResponse
		get(t, app, "/v1/notifications", &n)
		return n.LastSync != nil && len(n.Items) == 1
	}, 2*time.Second, 10*time.Millisecond)

	var n NotificationsResponse
	get(t, app, "/v1/notifications", &n)
	require.Equal(t, "9", n.Items[0].ID)
	require.Equal(t, domain.NotificationOrder, n.Items[0].Type)
	require.Equal(t, "5m ago", n.Items[0].Timestamp)
	require.Equal(t, 1, n.UnreadCount)

	require.Equal(t, http.StatusNoContent, call(t, app, http.MethodPost, "/v1/notifications/9/read", "", nil))
	require.Equal(t, http.StatusNotFound, call(t, app, http.MethodPost, "/v1/notifications/404/read", "", nil))
	get(t, app, "/v1/notifications", &n)
	require.Zero(t, n.UnreadCount)
}

func TestAccessDecisions(t *testing.T) {
	app := newTestApp(t, &fakeAPI{}, "secret")
	app.Start(t.Context())

	var a AccessResponse
	require.Equal(t, http.StatusOK, get(t, app, "/v1/access?permission=marketing.view_lead", &a))
	require.Equal(t, "render_children", a.Decision)

	require.Equal(t, http.StatusForbidden, get(t, app, "/v1/access?permission=sales.view_order", &a))
	require.Equal(t, "missing permission", a.Reason)

	require.Equal(t, http.StatusForbidden, get(t, app, "/v1/access?any=sales.view_order,inventory.view_stock", &a))
	require.Equal(t, "missing any required permission", a.Reason)

	require.Equal(t, http.StatusForbidden, get(t, app, "/v1/access?all=marketing.view_lead,sales.view_order", &a))
	require.Equal(t, "missing all required permissions", a.Reason)

	require.Equal(t, http.StatusForbidden, get(t, app, "/v1/access?permission=", &a))
	require.Equal(t, http.StatusOK, get(t, app, "/v1/access", &a))
}

func TestRevokedCredentialExpiresSession(t *testing.T) {
	api := &fakeAPI{}
	app := newTestApp(t, api, "secret")
	app.Start(t.Context())
	require.Eventually(t, func() bool { return !app.notifications.LastSync().IsZero() }, 2*time.Second, 10*time.Millisecond)

	api.revoke()
	require.Equal(t, http.StatusBadGateway, call(t, app, http.MethodPost, "/v1/session/refresh", "", nil))

	var sess SessionResponse
	get(t, app, "/v1/session", &sess)
	require.Equal(t, "unauthenticated", sess.State)
	require.False(t, sess.StoredCredential)
	require.Empty(t, sess.Permissions)

	var a AccessResponse
	require.Equal(t, http.StatusUnauthorized, get(t, app, "/v1/access", &a))
	require.Equal(t, "redirect_to_login", a.Decision)

	// The seed list is back.
	var n NotificationsResponse
	get(t, app, "/v1/notifications", &n)
	require.Nil(t, n.LastSync)
	require.NotEmpty(t, n.Items)
}

func TestLoginFailureAndLogout(t *testing.T) {
	api := &fakeAPI{}
	app := newTestApp(t, api, "wrong")

	s := app.Start(t.Context())
	require.Equal(t, domain.StateUnauthenticated, s.State)
	require.Equal(t, "Invalid credentials", s.Error)

	var errBody struct{ Error string }
	require.Equal(t, http.StatusBadRequest, call(t, app, http.MethodPost, "/v1/session/login", `{}`, nil))
	require.Equal(t, http.StatusUnauthorized,
		call(t, app, http.MethodPost, "/v1/session/login", `{"username":"ada","password":"nope"}`, &errBody))
	require.Equal(t, "login_failed", errBody.Error)

	var sess SessionResponse
	require.Equal(t, http.StatusOK,
		call(t, app, http.MethodPost, "/v1/session/login", `{"username":"ada","password":"secret"}`, &sess))
	require.True(t, sess.IsAuthenticated)

	require.Equal(t, http.StatusNoContent, call(t, app, http.MethodPost, "/v1/session/logout", "", nil))
	require.Equal(t, 1, api.logoutCount())

	get(t, app, "/v1/session", &sess)
	require.False(t, sess.IsAuthenticated)
	require.False(t, sess.StoredCredential)
}

func TestSystemEndpoints(t *testing.T) {
	app := newTestApp(t, &fakeAPI{}, "secret")
	app.Start(t.Context())

	var h HealthResponse
	require.Equal(t, http.StatusOK, get(t, app, "/livez", &h))
	require.Equal(t, "ok", h.Status)
	require.Equal(t, BuildVersion, h.Version)

	require.Equal(t, http.StatusOK, get(t, app, "/readyz", nil))

	rec := httptest.NewRecorder()
	app.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `dashcore_login_attempts_total{success="true"} 1`)
	require.Contains(t, rec.Body.String(), "dashcore_session_transitions_total")
}

func TestStorageKeySealsCredential(t *testing.T) {
	app := newTestApp(t, &fakeAPI{}, "secret", func(c *Config) { c.StorageKey = "at-rest" })
	app.Start(t.Context())

	raw, err := app.backend.Get(t.Context(), store.KeyToken, store.KeyProfile)
	require.NoError(t, err)
	require.NotEmpty(t, raw[store.KeyToken])
	require.NotEqual(t, "tok-1", raw[store.KeyToken])
	require.NotContains(t, raw[store.KeyProfile], "Lovelace")

	rec, ok := app.persistence.Load(t.Context())
	require.True(t, ok)
	require.Equal(t, "tok-1", rec.Token)
}
