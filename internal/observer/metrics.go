package observer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricsEnabled = true // Flag to control metric collection

	// Labels for per-pass metrics
	passLabels = []string{"pass"}
	// Labels for per-record outcomes during the pull pass
	recordLabels = []string{"entity_type", "outcome"}

	// Cycle counters
	CyclesStartedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pabau_mailchimp_sync_cycles_started_total",
			Help: "Total number of sync cycles started.",
		},
	)
	CyclesCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pabau_mailchimp_sync_cycles_completed_total",
			Help: "Total number of sync cycles completed, labeled by final status.",
		},
		[]string{"status"},
	)

	// Pass duration histogram
	PassDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pabau_mailchimp_sync_pass_duration_seconds",
			Help:    "Histogram of sync pass durations.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 16), // 100ms to ~1.8h
		},
		passLabels,
	)

	// Pull-side record outcomes: synced, skipped_old, skipped_no_email, error
	PullRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pabau_mailchimp_sync_pull_records_total",
			Help: "Total number of CRM records seen by the pull pass, labeled by outcome.",
		},
		recordLabels,
	)
	PullPagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pabau_mailchimp_sync_pull_pages_total",
			Help: "Total number of CRM listing pages fetched.",
		},
		[]string{"entity_type"},
	)

	// Push-side counters
	PushBatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pabau_mailchimp_sync_push_batches_total",
			Help: "Total number of batches submitted to the audience, labeled by status.",
		},
		[]string{"status"},
	)
	PushMembersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pabau_mailchimp_sync_push_members_total",
			Help: "Total number of members pushed to the audience, labeled by outcome.",
		},
		[]string{"entity_type", "outcome"},
	)

	// Unsubscribe pass counters
	UnsubscribesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pabau_mailchimp_sync_unsubscribes_total",
			Help: "Total number of audience unsubscribes processed, labeled by outcome.",
		},
		[]string{"outcome"},
	)
)

// Labels for database operations
var (
	dbOperationLabels = []string{"operation", "entity", "status"}

	DatabaseOperationDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pabau_mailchimp_sync_db_operation_duration_seconds",
			Help:    "Histogram of database operation durations.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~16s
		},
		dbOperationLabels,
	)
)

// Labels for upstream API calls
var (
	upstreamLabels = []string{"target", "operation", "status"}

	UpstreamRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pabau_mailchimp_sync_upstream_request_duration_seconds",
			Help:    "Histogram of upstream API request durations.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 13), // 10ms to ~40s
		},
		upstreamLabels,
	)
)

// InitMetrics toggles metric collection. Metrics are registered via promauto
// regardless; disabling just turns the helpers into no-ops.
func InitMetrics(enabled bool) {
	metricsEnabled = enabled
}

// IncCycleStarted increments the started-cycles counter.
func IncCycleStarted() {
	if !metricsEnabled {
		return
	}
	CyclesStartedTotal.Inc()
}

// IncCycleCompleted increments the completed-cycles counter.
func IncCycleCompleted(err error) {
	if !metricsEnabled {
		return
	}
	CyclesCompletedTotal.WithLabelValues(statusLabel(err)).Inc()
}

// ObservePassDuration records how long one sync pass took.
func ObservePassDuration(pass string, duration time.Duration) {
	if !metricsEnabled {
		return
	}
	PassDurationSeconds.WithLabelValues(pass).Observe(duration.Seconds())
}

// IncPullRecord counts one CRM record outcome during the pull pass.
func IncPullRecord(entityType, outcome string) {
	if !metricsEnabled {
		return
	}
	PullRecordsTotal.WithLabelValues(entityType, outcome).Inc()
}

// IncPullPage counts one fetched CRM listing page.
func IncPullPage(entityType string) {
	if !metricsEnabled {
		return
	}
	PullPagesTotal.WithLabelValues(entityType).Inc()
}

// IncPushBatch counts one submitted audience batch.
func IncPushBatch(err error) {
	if !metricsEnabled {
		return
	}
	PushBatchesTotal.WithLabelValues(statusLabel(err)).Inc()
}

// AddPushMembers counts members pushed (or dropped) for one entity type.
func AddPushMembers(entityType, outcome string, n int) {
	if !metricsEnabled || n == 0 {
		return
	}
	PushMembersTotal.WithLabelValues(entityType, outcome).Add(float64(n))
}

// IncUnsubscribe counts one processed audience unsubscribe.
func IncUnsubscribe(outcome string) {
	if !metricsEnabled {
		return
	}
	UnsubscribesTotal.WithLabelValues(outcome).Inc()
}

// ObserveDbOperationDuration records the duration for a database operation.
func ObserveDbOperationDuration(operation, entity string, duration time.Duration, err error) {
	if !metricsEnabled {
		return
	}
	DatabaseOperationDurationSeconds.WithLabelValues(operation, entity, statusLabel(err)).Observe(duration.Seconds())
}

// ObserveUpstreamRequestDuration records the duration of one upstream API call.
func ObserveUpstreamRequestDuration(target, operation string, duration time.Duration, err error) {
	if !metricsEnabled {
		return
	}
	UpstreamRequestDurationSeconds.WithLabelValues(target, operation, statusLabel(err)).Observe(duration.Seconds())
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
