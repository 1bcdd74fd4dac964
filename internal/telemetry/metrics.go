// Package telemetry holds the prometheus metrics of the sync engine. The
// CLI is short-lived, so metrics are kept in a private registry and can be
// dumped to a textfile for node_exporter's textfile collector.
package telemetry

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "khal"

// Operation results used as label values.
const (
	ResultOK       = "ok"
	ResultError    = "error"
	ResultConflict = "conflict"
	ResultRejected = "rejected"
)

// Metrics groups the collectors recorded by the application layer.
type Metrics struct {
	registry *prometheus.Registry

	// StoreOperations counts backend calls.
	// Labels: backend (sqlite, workbook), op (load, write_affair, ...), result
	StoreOperations *prometheus.CounterVec

	// StoreLatency measures backend call duration.
	// Labels: backend, op
	StoreLatency *prometheus.HistogramVec

	// Conflicts counts writes rejected because the file changed externally.
	Conflicts prometheus.Counter

	// DependencyRejections counts DONE transitions blocked by dependencies.
	DependencyRejections prometheus.Counter

	// SkippedRows counts malformed workbook rows seen during loads.
	// Labels: sheet
	SkippedRows *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them in a new registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		StoreOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Total backend operations by outcome",
		}, []string{"backend", "op", "result"}),
		StoreLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operation_seconds",
			Help:      "Backend operation latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"backend", "op"}),
		Conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conflicts_total",
			Help:      "Writes rejected because the backend changed externally",
		}),
		DependencyRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dependency_rejections_total",
			Help:      "Task completions rejected because dependencies are not done",
		}),
		SkippedRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workbook",
			Name:      "skipped_rows_total",
			Help:      "Malformed workbook rows skipped during load",
		}, []string{"sheet"}),
	}

	m.registry.MustRegister(
		m.StoreOperations,
		m.StoreLatency,
		m.Conflicts,
		m.DependencyRejections,
		m.SkippedRows,
	)
	return m
}

// Registry exposes the registry for gathering.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Observe records one backend operation that started at start.
func (m *Metrics) Observe(backend, op, result string, start time.Time) {
	m.StoreOperations.WithLabelValues(backend, op, result).Inc()
	m.StoreLatency.WithLabelValues(backend, op).Observe(time.Since(start).Seconds())
}

// WriteTextfile writes every metric to path in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
