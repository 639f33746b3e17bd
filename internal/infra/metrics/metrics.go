// Package metrics provides the Prometheus instruments for scheduler
// cycles, task outcomes, rewards, and the sync protocol.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Scheduler ──────────────────────────────────────────────────────────────

// CycleDuration tracks one full scheduler pass in seconds.
var CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "gearfall",
	Name:      "scheduler_cycle_seconds",
	Help:      "Duration of one scheduler cycle.",
	Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
})

// QueuesProcessed tracks running queues visited per cycle.
var QueuesProcessed = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "gearfall",
	Name:      "scheduler_queues_processed_total",
	Help:      "Total running queues processed across all cycles.",
})

// QueueErrors tracks queues whose processing failed and was isolated.
var QueueErrors = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "gearfall",
	Name:      "scheduler_queue_errors_total",
	Help:      "Total per-queue processing failures isolated by the scheduler.",
})

// ─── Tasks ──────────────────────────────────────────────────────────────────

// TasksCompleted tracks completed tasks by activity type.
var TasksCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "gearfall",
	Name:      "tasks_completed_total",
	Help:      "Total completed tasks.",
}, []string{"activity"})

// TasksFailed tracks failed completion attempts by activity and reason.
var TasksFailed = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "gearfall",
	Name:      "tasks_failed_total",
	Help:      "Total failed task completion attempts.",
}, []string{"activity", "reason"})

// TasksDropped tracks tasks dropped after exhausting retries.
var TasksDropped = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "gearfall",
	Name:      "tasks_dropped_total",
	Help:      "Total tasks dropped past max retries.",
}, []string{"activity"})

// ─── Rewards ────────────────────────────────────────────────────────────────

// ExperienceAwarded tracks total experience granted by source.
var ExperienceAwarded = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "gearfall",
	Name:      "experience_awarded_total",
	Help:      "Total experience points granted.",
}, []string{"source"}) // live | offline

// OfflineMinutes tracks minutes credited by offline catch-up.
var OfflineMinutes = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "gearfall",
	Name:      "offline_catchup_minutes",
	Help:      "Minutes of offline progress credited per catch-up.",
	Buckets:   []float64{1, 5, 15, 60, 180, 480, 1440},
})

// ─── Sync ───────────────────────────────────────────────────────────────────

// ConnectionsActive tracks live connection records.
var ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "gearfall",
	Name:      "connections_active",
	Help:      "Number of stored client connections.",
})

// ConflictsDetected tracks detected version conflicts.
var ConflictsDetected = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "gearfall",
	Name:      "sync_conflicts_detected_total",
	Help:      "Total queue-version conflicts detected across connections.",
})

// StaleConnectionsDropped tracks connections deleted by the sweep.
var StaleConnectionsDropped = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "gearfall",
	Name:      "sync_stale_connections_dropped_total",
	Help:      "Total connections deleted for extended staleness.",
})

// ─── Notifications ──────────────────────────────────────────────────────────

// NotificationsSent tracks delivered payloads by kind.
var NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "gearfall",
	Name:      "notifications_sent_total",
	Help:      "Total notification payloads delivered.",
}, []string{"kind"})

// NotificationsFailed tracks send failures (logged and swallowed).
var NotificationsFailed = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "gearfall",
	Name:      "notifications_failed_total",
	Help:      "Total notification sends that failed.",
})
