package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all application metrics
type Metrics struct {
	// Capsule lifecycle metrics
	CapsulesCreated prometheus.Counter
	CapsulesOpened  prometheus.Counter
	CapsulesDeleted prometheus.Counter
	OpenConflicts   prometheus.Counter

	// Notification metrics
	IntentsEmitted        *prometheus.CounterVec
	IntentsDeduplicated   *prometheus.CounterVec
	IntentsDispatched     prometheus.Counter
	IntentsDispatchFailed prometheus.Counter

	// Sweep metrics
	SweepRuns     *prometheus.CounterVec
	SweepDuration *prometheus.HistogramVec
	SweepRowsSwept *prometheus.CounterVec
}

// New creates application metrics without registering them, so tests
// can construct throwaway instances. Callers that expose /metrics must
// call Register.
func New(namespace string) *Metrics {
	return &Metrics{
		CapsulesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capsules_created_total",
			Help:      "Total number of capsules created",
		}),
		CapsulesOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capsules_opened_total",
			Help:      "Total number of capsules opened",
		}),
		CapsulesDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capsules_deleted_total",
			Help:      "Total number of capsules soft-deleted by senders",
		}),
		OpenConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capsule_open_conflicts_total",
			Help:      "Total number of open attempts that lost the first-open race",
		}),
		IntentsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_intents_emitted_total",
			Help:      "Total number of notification intents recorded",
		}, []string{"kind"}),
		IntentsDeduplicated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_intents_deduplicated_total",
			Help:      "Total number of notification intents suppressed as duplicates",
		}, []string{"kind"}),
		IntentsDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_intents_dispatched_total",
			Help:      "Total number of notification intents handed to delivery",
		}),
		IntentsDispatchFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_intents_dispatch_failed_total",
			Help:      "Total number of notification intents that failed delivery",
		}),
		SweepRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_runs_total",
			Help:      "Total number of sweep job runs",
		}, []string{"job", "status"}),
		SweepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Duration of sweep job runs",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"job"}),
		SweepRowsSwept: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_rows_total",
			Help:      "Total number of rows updated by sweep jobs",
		}, []string{"job"}),
	}
}

// Register registers all metrics with the given registerer.
func (m *Metrics) Register(reg prometheus.Registerer) {
	reg.MustRegister(
		m.CapsulesCreated,
		m.CapsulesOpened,
		m.CapsulesDeleted,
		m.OpenConflicts,
		m.IntentsEmitted,
		m.IntentsDeduplicated,
		m.IntentsDispatched,
		m.IntentsDispatchFailed,
		m.SweepRuns,
		m.SweepDuration,
		m.SweepRowsSwept,
	)
}
