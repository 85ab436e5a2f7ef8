package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "shopbooking"

var (
	once sync.Once

	slotQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slot_queries_total",
			Help:      "Count of slot availability queries by outcome.",
		},
		[]string{"outcome"},
	)

	slotQueryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "slot_query_duration_seconds",
			Help:      "Time spent generating slots for a date.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1},
		},
	)

	rescheduleTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reschedule_transitions_total",
			Help:      "Count of reschedule operations by action and result code.",
		},
		[]string{"action", "code"},
	)

	sweepRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expiration_sweeps_total",
			Help:      "Count of expiration sweeps by status.",
		},
		[]string{"status"},
	)

	requestsExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reschedule_requests_expired_total",
			Help:      "Count of reschedule requests moved to expired.",
		},
	)

	notificationsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_sent_total",
			Help:      "Count of outgoing notifications by event type and status.",
		},
		[]string{"event_type", "status"},
	)

	auditExports = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_exports_total",
			Help:      "Count of reschedule history exports by status.",
		},
		[]string{"status"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			slotQueries,
			slotQueryDuration,
			rescheduleTransitions,
			sweepRuns,
			requestsExpired,
			notificationsSent,
			auditExports,
		)
	})
}

func ObserveSlotQuery(outcome string, started time.Time) {
	slotQueries.WithLabelValues(outcome).Inc()
	slotQueryDuration.Observe(time.Since(started).Seconds())
}

func IncRescheduleTransition(action, code string) {
	rescheduleTransitions.WithLabelValues(action, code).Inc()
}

func IncSweep(status string) {
	sweepRuns.WithLabelValues(status).Inc()
}

func AddExpired(n int) {
	requestsExpired.Add(float64(n))
}

func IncNotification(eventType, status string) {
	notificationsSent.WithLabelValues(eventType, status).Inc()
}

func IncAuditExport(status string) {
	auditExports.WithLabelValues(status).Inc()
}
