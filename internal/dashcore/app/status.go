package app

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/dashcore/internal/dashcore/domain"
	"github.com/aussiebroadwan/dashcore/internal/dashcore/guard"
	"github.com/aussiebroadwan/dashcore/internal/dashcore/metrics"
	"github.com/aussiebroadwan/dashcore/internal/dashcore/service"
	"github.com/aussiebroadwan/dashcore/pkg/httpx"
)

// HealthResponse is the body of GET /livez.
type HealthResponse struct {
	Status  string `json:"status"`
	Uptime  string `json:"uptime"`
	Version string `json:"version"`
}

// SessionResponse is the body of GET /v1/session.
type SessionResponse struct {
	State            string           `json:"state"`
	IsAuthenticated  bool             `json:"is_authenticated"`
	IsLoading        bool             `json:"is_loading"`
	StoredCredential bool             `json:"stored_credential"`
	User             *domain.User     `json:"user,omitempty"`
	FullName         string           `json:"full_name,omitempty"`
	Employee         *domain.Employee `json:"employee,omitempty"`
	Roles            []domain.Role    `json:"roles,omitempty"`
	Permissions      []string         `json:"permissions"`
	Error            string           `json:"error,omitempty"`
	LoginAt          *time.Time       `json:"login_at,omitempty"`
	UnreadCount      int              `json:"unread_count"`
}

// NotificationsResponse is the body of GET /v1/notifications.
type NotificationsResponse struct {
	UnreadCount int                   `json:"unread_count"`
	LastSync    *time.Time            `json:"last_sync,omitempty"`
	Items       []domain.Notification `json:"items"`
}

// AccessResponse is the body of GET /v1/access.
type AccessResponse struct {
	Decision string `json:"decision"`
	Reason   string `json:"reason,omitempty"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// routes builds the status server handler.
func (app *Application) routes() http.Handler {
	mux := http.NewServeMux()
	control := httpx.RateLimitByIP(httpx.ControlLimit)

	mux.HandleFunc("GET /livez", app.handleLivez)
	mux.HandleFunc("GET /readyz", app.handleReadyz)
	mux.Handle("GET /metrics", metrics.HandlerFor(app.registry))

	mux.HandleFunc("GET /v1/session", app.handleSession)
	mux.HandleFunc("GET /v1/access", app.handleAccess)
	mux.Handle("POST /v1/session/login", control(http.HandlerFunc(app.handleLogin)))
	mux.Handle("POST /v1/session/refresh", control(http.HandlerFunc(app.handleRefresh)))
	mux.HandleFunc("POST /v1/session/logout", app.handleLogout)

	mux.HandleFunc("GET /v1/notifications", app.handleNotifications)
	mux.Handle("POST /v1/notifications/sync", control(http.HandlerFunc(app.handleSyncNow)))
	mux.HandleFunc("POST /v1/notifications/read-all", app.handleMarkAllRead)
	mux.HandleFunc("POST /v1/notifications/{id}/read", app.handleMarkRead)

	return httpx.Chain(mux, httpx.RequestLogger(app.logger, "/livez", "/readyz", "/metrics"))
}

func (app *Application) handleLivez(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Uptime:  time.Since(app.startTime).String(),
		Version: BuildVersion,
	})
}

func (app *Application) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := app.backend.Ping(r.Context()); err != nil {
		httpx.WriteError(w, http.StatusServiceUnavailable, "storage_unavailable", err.Error())
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (app *Application) handleSession(w http.ResponseWriter, r *http.Request) {
	s := app.sessions.Snapshot()

	resp := SessionResponse{
		State:            s.State.String(),
		IsAuthenticated:  s.IsAuthenticated,
		IsLoading:        s.IsLoading,
		StoredCredential: app.sessions.HasStoredCredential(r.Context()),
		User:             s.User,
		Employee:         s.Employee,
		Roles:            s.Roles,
		Permissions:      s.Permissions.Codes(),
		Error:            s.Error,
		UnreadCount:      app.notifications.UnreadCount(),
	}
	if s.User != nil {
		resp.FullName = s.User.FullName()
	}
	if !s.LoginAt.IsZero() {
		resp.LoginAt = &s.LoginAt
	}

	httpx.WriteJSON(w, http.StatusOK, resp)
}

// handleAccess runs the route guard for the requirements in the query:
// permission=code, any=a,b and all=c,d.
func (app *Application) handleAccess(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var opts []guard.Option
	if q.Has("permission") {
		opts = append(opts, guard.RequirePermission(q.Get("permission")))
	}
	if v := q.Get("any"); v != "" {
		opts = append(opts, guard.RequireAny(splitCodes(v)...))
	}
	if v := q.Get("all"); v != "" {
		opts = append(opts, guard.RequireAll(splitCodes(v)...))
	}

	d := guard.Decide(app.sessions.Snapshot(), app.sessions.HasStoredCredential(r.Context()), opts...)

	code := http.StatusOK
	switch d.Kind {
	case guard.ShowLoadingSpinner:
		code = http.StatusAccepted
	case guard.RedirectToLogin:
		code = http.StatusUnauthorized
	case guard.ShowAccessDenied:
		code = http.StatusForbidden
	}

	httpx.WriteJSON(w, code, AccessResponse{Decision: d.Kind.String(), Reason: d.Reason})
}

func (app *Application) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "username and password are required")
		return
	}

	s, err := app.sessions.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		httpx.WriteError(w, http.StatusUnauthorized, "login_failed", s.Error)
		return
	}

	app.handleSession(w, r)
}

func (app *Application) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := app.sessions.Refresh(r.Context()); err != nil {
		if errors.Is(err, service.ErrNotAuthenticated) {
			httpx.WriteError(w, http.StatusUnauthorized, "not_authenticated", "")
			return
		}
		httpx.WriteError(w, http.StatusBadGateway, "refresh_failed", err.Error())
		return
	}
	app.handleSession(w, r)
}

func (app *Application) handleLogout(w http.ResponseWriter, r *http.Request) {
	app.sessions.Logout(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (app *Application) handleNotifications(w http.ResponseWriter, _ *http.Request) {
	resp := NotificationsResponse{
		UnreadCount: app.notifications.UnreadCount(),
		Items:       app.notifications.Items(),
	}
	if last := app.notifications.LastSync(); !last.IsZero() {
		resp.LastSync = &last
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (app *Application) handleSyncNow(w http.ResponseWriter, r *http.Request) {
	switch err := app.notifications.SyncNow(r.Context()); {
	case err == nil:
		app.handleNotifications(w, r)
	case errors.Is(err, service.ErrNotAuthenticated):
		httpx.WriteError(w, http.StatusUnauthorized, "not_authenticated", "")
	case errors.Is(err, service.ErrThrottled):
		w.Header().Set("Retry-After", "5")
		httpx.WriteError(w, http.StatusTooManyRequests, "throttled", "sync requested too often")
	default:
		httpx.WriteError(w, http.StatusBadGateway, "sync_failed", err.Error())
	}
}

func (app *Application) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	if !app.notifications.MarkRead(r.Context(), r.PathValue("id")) {
		httpx.WriteError(w, http.StatusNotFound, "not_found", "no such notification")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (app *Application) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	app.notifications.MarkAllRead(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func splitCodes(v string) []string {
	var out []string
	for _, c := range strings.Split(v, ",") {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}
