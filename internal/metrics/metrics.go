// Package metrics holds Prometheus collectors for reconciliation.
//
// Collectors are registered on a caller supplied registry instead of the
// global one, so a CLI run can dump them with WriteTextfile and tests can
// inspect them in isolation.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups reconciliation collectors of one replica.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry          *prometheus.Registry
	reconcileTotal    *prometheus.CounterVec
	reconcileErrors   *prometheus.CounterVec
	reconcileDuration *prometheus.HistogramVec
	conflictsTotal    prometheus.Counter
	pendingRecords    prometheus.Gauge
	openConflicts     prometheus.Gauge
}

// New creates collectors registered on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		// reconcileTotal counts merges by causal relation and strategy
		reconcileTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "synccore_reconcile_total",
			Help: "Total reconciled versions by causal relation and strategy",
		}, []string{"relation", "strategy"}),
		reconcileErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "synccore_reconcile_errors_total",
			Help: "Total failed reconciliations by stage",
		}, []string{"stage"}),
		reconcileDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "synccore_reconcile_duration_seconds",
			Help:    "Reconciliation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
		}, []string{"operation"}),
		conflictsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "synccore_conflicts_total",
			Help: "Total conflicts stored for manual resolution",
		}),
		pendingRecords: factory.NewGauge(prometheus.GaugeOpts{
			Name: "synccore_pending_records",
			Help: "Records with local changes not yet exchanged",
		}),
		openConflicts: factory.NewGauge(prometheus.GaugeOpts{
			Name: "synccore_open_conflicts",
			Help: "Conflicts awaiting manual resolution",
		}),
	}
}

// Registry returns the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveReconcile records one reconciled version.
func (m *Metrics) ObserveReconcile(relation, strategy string) {
	if m == nil {
		return
	}
	m.reconcileTotal.WithLabelValues(relation, strategy).Inc()
}

// ObserveError records a failed reconciliation at the given stage (load, resolve, save).
func (m *Metrics) ObserveError(stage string) {
	if m == nil {
		return
	}
	m.reconcileErrors.WithLabelValues(stage).Inc()
}

// ObserveConflict records a conflict stored for manual resolution.
func (m *Metrics) ObserveConflict() {
	if m == nil {
		return
	}
	m.conflictsTotal.Inc()
}

// ObserveDuration records how long an operation took since start.
func (m *Metrics) ObserveDuration(operation string, start time.Time) {
	if m == nil {
		return
	}
	m.reconcileDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// SetQueue records the current size of the pending queue and of open conflicts.
func (m *Metrics) SetQueue(pending, conflicts int) {
	if m == nil {
		return
	}
	m.pendingRecords.Set(float64(pending))
	m.openConflicts.Set(float64(conflicts))
}

// WriteTextfile writes all collectors in the text exposition format,
// suitable for the node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
