// Package prometheus exposes pipeline metrics through the standard
// Prometheus client.
package prometheus

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nexohr/psicorisco/internal/domain/automation"
	"github.com/nexohr/psicorisco/internal/domain/scoring"
)

var stageDurationBuckets = []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120}

// Metrics implements the application layer's PipelineMetrics port.
type Metrics struct {
	registry *prometheus.Registry

	stageDuration *prometheus.HistogramVec
	queueDepth    *prometheus.GaugeVec
	processed     *prometheus.CounterVec
	retries       prometheus.Counter
	escalations   *prometheus.CounterVec
}

// NewMetrics registers all pipeline metrics under the given namespace
// on a private registry, so tests can build as many as they want.
func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: registry,
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_stage_duration_seconds",
			Help:      "Duration of pipeline stage executions.",
			Buckets:   stageDurationBuckets,
		}, []string{"stage", "outcome"}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Work items per queue state.",
		}, []string{"state"}),
		processed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "responses_processed_total",
			Help:      "Responses fully processed, by worst exposure level.",
		}, []string{"level"}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_retries_total",
			Help:      "Work item attempts that were re-queued for retry.",
		}),
		escalations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escalations_total",
			Help:      "Escalation alerts raised, by ladder tier.",
		}, []string{"tier"}),
	}

	registry.MustRegister(m.stageDuration, m.queueDepth, m.processed, m.retries, m.escalations)
	return m
}

// ObserveStage records one stage execution.
func (m *Metrics) ObserveStage(stage automation.State, outcome automation.Outcome, d time.Duration) {
	m.stageDuration.WithLabelValues(string(stage), string(outcome)).Observe(d.Seconds())
}

// SetQueueDepth publishes the current queue depth for a state.
func (m *Metrics) SetQueueDepth(state automation.State, depth int) {
	m.queueDepth.WithLabelValues(string(state)).Set(float64(depth))
}

// IncProcessed counts a completed response.
func (m *Metrics) IncProcessed(level scoring.ExposureLevel) {
	m.processed.WithLabelValues(string(level)).Inc()
}

// IncRetry counts a retry.
func (m *Metrics) IncRetry() {
	m.retries.Inc()
}

// IncEscalation counts an escalation alert at a tier.
func (m *Metrics) IncEscalation(tier int) {
	m.escalations.WithLabelValues(tierLabel(tier)).Inc()
}

// Handler serves the scrape endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the private registry for additional collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func tierLabel(tier int) string {
	switch tier {
	case 0:
		return "hr"
	case 1:
		return "manager"
	case 2:
		return "leadership"
	default:
		return "unknown"
	}
}
