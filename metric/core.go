package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the editor's core metrics.
type Metrics struct {
	// Reconciliation metrics
	ReconciliationsTotal *prometheus.CounterVec
	ReconcileDuration    prometheus.Histogram
	PinsRewiredTotal     prometheus.Counter
	PinsOrphanedTotal    prometheus.Counter
	PinsDestroyedTotal   prometheus.Counter

	// Flow metrics
	FlowsTotal      prometheus.Gauge
	FlowSavesTotal  *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// NATS metrics
	NATSConnected prometheus.Gauge
}

// NewMetrics creates a Metrics instance with all core metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		ReconciliationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "flowkit",
				Subsystem: "reconcile",
				Name:      "reconciliations_total",
				Help:      "Total node reconciliation passes",
			},
			[]string{"changed"},
		),

		ReconcileDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "flowkit",
				Subsystem: "reconcile",
				Name:      "duration_seconds",
				Help:      "Node reconciliation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),

		PinsRewiredTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "flowkit",
				Subsystem: "reconcile",
				Name:      "pins_rewired_total",
				Help:      "Total pins whose connections were carried to a rebuilt pin",
			},
		),

		PinsOrphanedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "flowkit",
				Subsystem: "reconcile",
				Name:      "pins_orphaned_total",
				Help:      "Total removed-but-connected pins retained as orphans",
			},
		),

		PinsDestroyedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "flowkit",
				Subsystem: "reconcile",
				Name:      "pins_destroyed_total",
				Help:      "Total pins destroyed during reconciliation",
			},
		),

		FlowsTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "flowkit",
				Subsystem: "flows",
				Name:      "total",
				Help:      "Number of stored flows",
			},
		),

		FlowSavesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "flowkit",
				Subsystem: "flows",
				Name:      "saves_total",
				Help:      "Total flow save attempts",
			},
			[]string{"status"},
		),

		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "flowkit",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Editor API request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),

		NATSConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "flowkit",
				Subsystem: "nats",
				Name:      "connected",
				Help:      "NATS connection status (0=disconnected, 1=connected)",
			},
		),
	}
}

// ReconcileRecorder adapts the core metrics to the reconciler's Recorder
// interface.
type ReconcileRecorder struct {
	metrics *Metrics
}

// NewReconcileRecorder wraps the metrics for use by the reconciler.
func NewReconcileRecorder(m *Metrics) *ReconcileRecorder {
	return &ReconcileRecorder{metrics: m}
}

// ReconcileCompleted records one reconciliation pass.
func (r *ReconcileRecorder) ReconcileCompleted(changed bool, duration time.Duration) {
	label := "false"
	if changed {
		label = "true"
	}
	r.metrics.ReconciliationsTotal.WithLabelValues(label).Inc()
	r.metrics.ReconcileDuration.Observe(duration.Seconds())
}

// PinsRewired records pins whose connections were carried over.
func (r *ReconcileRecorder) PinsRewired(count int) {
	r.metrics.PinsRewiredTotal.Add(float64(count))
}

// PinsOrphaned records pins retained as orphans.
func (r *ReconcileRecorder) PinsOrphaned(count int) {
	r.metrics.PinsOrphanedTotal.Add(float64(count))
}

// PinsDestroyed records pins destroyed during reconciliation.
func (r *ReconcileRecorder) PinsDestroyed(count int) {
	r.metrics.PinsDestroyedTotal.Add(float64(count))
}
