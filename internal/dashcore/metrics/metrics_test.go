package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecorders(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordTransition("init", "authenticated")
	m.RecordTransition("authenticated", "authenticated")
	require.Equal(t, 1.0, testutil.ToFloat64(m.SessionTransitions.WithLabelValues("init", "authenticated")))
	require.Equal(t, 0.0, testutil.ToFloat64(m.SessionTransitions.WithLabelValues("authenticated", "authenticated")))

	m.RecordLogin(true)
	m.RecordLogin(false)
	m.RecordLogin(false)
	require.Equal(t, 2.0, testutil.ToFloat64(m.LoginAttempts.WithLabelValues("false")))

	m.RecordInvalidation()
	require.Equal(t, 1.0, testutil.ToFloat64(m.Invalidations))

	m.RecordSync(true, 0.2)
	require.Equal(t, 1.0, testutil.ToFloat64(m.SyncRuns.WithLabelValues("true")))

	m.SetNotificationCounts(5, 2)
	require.Equal(t, 5.0, testutil.ToFloat64(m.Notifications))
	require.Equal(t, 2.0, testutil.ToFloat64(m.UnreadCount))

	m.RecordMarkRead("all", false)
	require.Equal(t, 1.0, testutil.ToFloat64(m.MarkReadRequests.WithLabelValues("all", "false")))

	m.RecordStaleDiscard("login")
	require.Equal(t, 1.0, testutil.ToFloat64(m.StaleDiscards.WithLabelValues("login")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	require.NotPanics(t, func() {
		m.RecordTransition("a", "b")
		m.RecordLogin(true)
		m.RecordInvalidation()
		m.RecordStaleDiscard("refresh")
		m.RecordSync(false, 1)
		m.SetNotificationCounts(1, 1)
		m.RecordMarkRead("one", true)
	})
}

func TestHandlerExposesMetrics(t *testing.T) {
	reg, m := NewRegistry()
	m.RecordInvalidation()

	rec := httptest.NewRecorder()
	HandlerFor(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.True(t, strings.Contains(body, "dashcore_credential_invalidations_total 1"))
	require.Contains(t, body, "go_goroutines")
}
