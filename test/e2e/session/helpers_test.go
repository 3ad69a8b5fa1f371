package session_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/aussiebroadwan/dashcore/internal/dashcore/service"
	"github.com/aussiebroadwan/dashcore/internal/dashcore/store"
	redisstore "github.com/aussiebroadwan/dashcore/internal/dashcore/store/drivers/redis"
	"github.com/aussiebroadwan/dashcore/pkg/dashsdk"
	"github.com/aussiebroadwan/dashcore/pkg/invalidation"
	"github.com/aussiebroadwan/dashcore/pkg/slogx"
)

/*
 * Helpers for the session end-to-end tests. A real Redis runs in a container;
 * the dashboard API is an in-process fake.
 */

const (
	redisImage   = "redis:7-alpine"
	testUsername = "ada"
	testPassword = "Secret123!"
	testToken    = "e2e-token-1"
)

// setupRedisContainer starts Redis and returns its address.
func setupRedisContainer(t *testing.T) string {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        redisImage,
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor: wait.ForLog("Ready to accept connections").
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	mappedPort, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	return fmt.Sprintf("%s:%s", host, mappedPort.Port())
}

// fakeAPI serves the login, permissions and logout endpoints and counts the
// calls that need a credential.
type fakeAPI struct {
	authedCalls atomic.Int32
	revoked     atomic.Bool
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.URL.Path == "/api/auth/login" {
		var body struct{ Username, Password string }
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Username != testUsername || body.Password != testPassword {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"Invalid credentials"}`))
			return
		}
		_, _ = fmt.Fprintf(w, `{"success":true,"token":%q,"user":{"id":7,"username":"ada","first_name":"Ada","last_name":"Lovelace"},"roles":[{"id":1,"name":"Admin"}]}`, testToken)
		return
	}

	f.authedCalls.Add(1)
	if r.Header.Get("Authorization") != "Bearer "+testToken || f.revoked.Load() {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Invalid token."}`))
		return
	}

	switch r.URL.Path {
	case "/api/auth/permissions":
		_, _ = w.Write([]byte(`{"success":true,"permissions":["marketing.view_lead"]}`))
	case "/api/auth/logout":
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func startFakeAPI(t *testing.T) (*fakeAPI, string) {
	t.Helper()
	api := &fakeAPI{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	return api, srv.URL
}

// newMachine builds a session machine the way the service wires it, on the
// redis driver under prefix.
func newMachine(t *testing.T, apiURL, redisAddr, prefix string) *service.SessionMachine {
	t.Helper()

	backend := redisstore.Open(redisAddr, "", 0, prefix)
	t.Cleanup(func() { _ = backend.Close() })

	invalidations := invalidation.New()
	client := dashsdk.NewSDKClient(apiURL, invalidations)

	m := service.NewSessionMachine(
		&service.SDKAuth{Client: client},
		store.NewAdapter(backend, slogx.Discard()),
		invalidations,
		service.SessionOptions{Logger: slogx.Discard()},
	)
	t.Cleanup(m.Close)
	client.IsCurrent = func(token string) bool { return token == m.Token() }
	return m
}

func rawClient(t *testing.T, addr string) *goredis.Client {
	t.Helper()
	c := goredis.NewClient(&goredis.Options{Addr: addr})
	t.Cleanup(func() { _ = c.Close() })
	return c
}

const (
	expiryWait   = 5 * time.Second
	pollInterval = 20 * time.Millisecond
)
