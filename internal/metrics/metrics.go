// Package metrics provides Prometheus metrics for studygen runs
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for one process.
// Each instance owns its registry so tests never collide on registration.
type Metrics struct {
	registry *prometheus.Registry

	// Pipeline metrics
	RunsTotal   *prometheus.CounterVec
	RunDuration *prometheus.HistogramVec
	CacheHits   *prometheus.CounterVec

	// Index metrics
	IndexOperations *prometheus.CounterVec

	// Upstream model metrics
	UpstreamCalls    *prometheus.CounterVec
	UpstreamDuration *prometheus.HistogramVec
}

// New creates and registers all collectors on a fresh registry
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	m := &Metrics{registry: registry}

	m.RunsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studygen_runs_total",
			Help: "Total number of pipeline runs by task kind and result status",
		},
		[]string{"kind", "status"},
	)

	m.RunDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "studygen_run_duration_seconds",
			Help:    "Duration of pipeline runs in seconds",
			Buckets: []float64{.01, .05, .1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"kind"},
	)

	m.CacheHits = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studygen_cache_hits_total",
			Help: "Runs answered from a stored generation record",
		},
		[]string{"kind"},
	)

	m.IndexOperations = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studygen_index_operations_total",
			Help: "Document index outcomes: added, existing, empty",
		},
		[]string{"outcome"},
	)

	m.UpstreamCalls = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studygen_upstream_calls_total",
			Help: "Calls to embedding, generation and OCR models after retries",
		},
		[]string{"operation", "model", "status"},
	)

	m.UpstreamDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "studygen_upstream_call_duration_seconds",
			Help:    "Duration of upstream model calls including retries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	return m
}

// Registry returns the registry holding every collector
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRun records one finished pipeline run
func (m *Metrics) ObserveRun(kind, status string, duration time.Duration, cached bool) {
	m.RunsTotal.WithLabelValues(kind, status).Inc()
	m.RunDuration.WithLabelValues(kind).Observe(duration.Seconds())
	if cached {
		m.CacheHits.WithLabelValues(kind).Inc()
	}
}

// ObserveIndex records the outcome of an ensure-indexed call
func (m *Metrics) ObserveIndex(outcome string) {
	m.IndexOperations.WithLabelValues(outcome).Inc()
}

// ObserveCall records an upstream call; it satisfies llm.CallObserver
func (m *Metrics) ObserveCall(operation, model string, duration time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.UpstreamCalls.WithLabelValues(operation, model, status).Inc()
	m.UpstreamDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// WriteTextfile writes all metrics in the text exposition format, for the node_exporter textfile collector
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
