// Package metrics holds the Prometheus collectors for the session and
// notification layer. Every Record method is safe on a nil *Metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for dashcore.
type Metrics struct {
	// Session metrics
	SessionTransitions *prometheus.CounterVec
	LoginAttempts      *prometheus.CounterVec
	Invalidations      prometheus.Counter
	StaleDiscards      *prometheus.CounterVec

	// Notification metrics
	SyncRuns         *prometheus.CounterVec
	SyncDuration     prometheus.Histogram
	Notifications    prometheus.Gauge
	UnreadCount      prometheus.Gauge
	MarkReadRequests *prometheus.CounterVec
}

// NewMetrics creates a Metrics instance registered on registry.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		SessionTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dashcore_session_transitions_total",
				Help: "Total number of session state transitions",
			},
			[]string{"from", "to"},
		),
		LoginAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dashcore_login_attempts_total",
				Help: "Total number of login attempts",
			},
			[]string{"success"},
		),
		Invalidations: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "dashcore_credential_invalidations_total",
				Help: "Total number of forced expiries caused by a rejected credential",
			},
		),
		StaleDiscards: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dashcore_stale_results_discarded_total",
				Help: "Total number of async results dropped because the session moved on",
			},
			[]string{"operation"},
		),

		SyncRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dashcore_notification_syncs_total",
				Help: "Total number of notification sync runs",
			},
			[]string{"success"},
		),
		SyncDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "dashcore_notification_sync_duration_seconds",
				Help:    "Notification sync duration in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
		),
		Notifications: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "dashcore_notifications",
				Help: "Number of notifications in the local list",
			},
		),
		UnreadCount: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "dashcore_notifications_unread",
				Help: "Number of unread notifications in the local list",
			},
		),
		MarkReadRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dashcore_mark_read_requests_total",
				Help: "Total number of mark-read calls sent to the API",
			},
			[]string{"scope", "success"},
		),
	}
}

func successLabel(ok bool) string {
	if ok {
		return "true"
	}
	return "false"
}

// RecordTransition counts a session state change.
func (m *Metrics) RecordTransition(from, to string) {
	if m == nil || from == to {
		return
	}
	m.SessionTransitions.WithLabelValues(from, to).Inc()
}

// RecordLogin counts a login attempt.
func (m *Metrics) RecordLogin(ok bool) {
	if m == nil {
		return
	}
	m.LoginAttempts.WithLabelValues(successLabel(ok)).Inc()
}

// RecordInvalidation counts a forced expiry.
func (m *Metrics) RecordInvalidation() {
	if m == nil {
		return
	}
	m.Invalidations.Inc()
}

// RecordStaleDiscard counts a result dropped by the generation check.
func (m *Metrics) RecordStaleDiscard(operation string) {
	if m == nil {
		return
	}
	m.StaleDiscards.WithLabelValues(operation).Inc()
}

// RecordSync counts a sync run and observes its duration.
func (m *Metrics) RecordSync(ok bool, seconds float64) {
	if m == nil {
		return
	}
	m.SyncRuns.WithLabelValues(successLabel(ok)).Inc()
	m.SyncDuration.Observe(seconds)
}

// SetNotificationCounts publishes the size of the local list.
func (m *Metrics) SetNotificationCounts(total, unread int) {
	if m == nil {
		return
	}
	m.Notifications.Set(float64(total))
	m.UnreadCount.Set(float64(unread))
}

// RecordMarkRead counts a mark-read request. scope is "one" or "all".
func (m *Metrics) RecordMarkRead(scope string, ok bool) {
	if m == nil {
		return
	}
	m.MarkReadRequests.WithLabelValues(scope, successLabel(ok)).Inc()
}
