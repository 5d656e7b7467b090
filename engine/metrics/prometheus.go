// Package metrics provides Prometheus metrics export for the vector engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter exports engine metrics in Prometheus format.
type Exporter struct {
	registry *prometheus.Registry

	// Vector maintenance metrics
	recomputeTotal   *prometheus.CounterVec
	recomputeErrors  *prometheus.CounterVec
	recomputeLatency *prometheus.HistogramVec
	pendingEntities  prometheus.Gauge

	// Proposal metrics
	activations   prometheus.Counter
	responses     *prometheus.CounterVec
	notifications *prometheus.CounterVec
}

// Config configures the exporter.
type Config struct {
	// Registry to use (if nil, creates a new one)
	Registry *prometheus.Registry

	// Buckets for latency histograms (in seconds)
	LatencyBuckets []float64
}

// DefaultConfig returns default Prometheus configuration.
func DefaultConfig() Config {
	return Config{
		LatencyBuckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
	}
}

// NewExporter creates a new Prometheus metrics exporter.
func NewExporter(cfg Config) *Exporter {
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = DefaultConfig().LatencyBuckets
	}

	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	e := &Exporter{registry: registry}

	e.recomputeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cohort",
			Subsystem: "vector",
			Name:      "recompute_total",
			Help:      "Vector recomputations by entity kind",
		},
		[]string{"kind"},
	)
	e.recomputeErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cohort",
			Subsystem: "vector",
			Name:      "recompute_errors_total",
			Help:      "Failed vector recomputations by entity kind",
		},
		[]string{"kind"},
	)
	e.recomputeLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cohort",
			Subsystem: "vector",
			Name:      "recompute_latency_seconds",
			Help:      "Vector recomputation latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"kind"},
	)
	e.pendingEntities = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "cohort",
			Subsystem: "vector",
			Name:      "pending_entities",
			Help:      "Entities with a recomputation scheduled or in flight",
		},
	)
	e.activations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cohort",
			Subsystem: "proposal",
			Name:      "activations_total",
			Help:      "Group proposals activated",
		},
	)
	e.responses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cohort",
			Subsystem: "proposal",
			Name:      "responses_total",
			Help:      "Proposal responses by outcome",
		},
		[]string{"outcome"},
	)
	e.notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cohort",
			Subsystem: "notify",
			Name:      "dispatch_total",
			Help:      "Notification dispatches by result",
		},
		[]string{"result"},
	)

	registry.MustRegister(
		e.recomputeTotal,
		e.recomputeErrors,
		e.recomputeLatency,
		e.pendingEntities,
		e.activations,
		e.responses,
		e.notifications,
	)

	return e
}

// Handler returns the HTTP handler serving the metrics endpoint.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

func (e *Exporter) ObserveRecompute(kind string, seconds float64, err error) {
	e.recomputeTotal.WithLabelValues(kind).Inc()
	e.recomputeLatency.WithLabelValues(kind).Observe(seconds)
	if err != nil {
		e.recomputeErrors.WithLabelValues(kind).Inc()
	}
}

func (e *Exporter) SetPendingEntities(n int) {
	e.pendingEntities.Set(float64(n))
}

func (e *Exporter) CountActivation() {
	e.activations.Inc()
}

func (e *Exporter) CountResponse(outcome string) {
	e.responses.WithLabelValues(outcome).Inc()
}

func (e *Exporter) CountNotification(result string) {
	e.notifications.WithLabelValues(result).Inc()
}
