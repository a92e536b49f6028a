// Package metrics exposes pipeline counters on a private prometheus registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "persona"

// Attempt outcomes
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
	OutcomeEmpty = "empty"
)

// Metrics methods are safe on nil receiver
type Metrics struct {
	registry *prometheus.Registry

	denials     *prometheus.CounterVec
	stepSeconds *prometheus.HistogramVec
	attempts    *prometheus.CounterVec
	exhausted   prometheus.Counter
	chunks      prometheus.Counter
	responses   *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		denials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admission_denied_total",
			Help:      "Inbound messages denied by reason.",
		}, []string{"reason"}),
		stepSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Duration of response steps.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"step"}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cascade_attempts_total",
			Help:      "Generation attempts by model and outcome.",
		}, []string{"model", "outcome"}),
		exhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_exhausted_total",
			Help:      "Invocations where every candidate model failed.",
		}),
		chunks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_sent_total",
			Help:      "Reply segments delivered.",
		}),
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "responses_total",
			Help:      "Finished response invocations by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.denials, m.stepSeconds, m.attempts, m.exhausted, m.chunks, m.responses,
	)
	return m
}

func (m *Metrics) Denied(reason string) {
	if m == nil {
		return
	}
	m.denials.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveStep(step string, d time.Duration) {
	if m == nil {
		return
	}
	m.stepSeconds.WithLabelValues(step).Observe(d.Seconds())
}

func (m *Metrics) Attempt(model string, outcome string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(model, outcome).Inc()
}

func (m *Metrics) Exhausted() {
	if m == nil {
		return
	}
	m.exhausted.Inc()
}

func (m *Metrics) ChunksSent(n int) {
	if m == nil {
		return
	}
	m.chunks.Add(float64(n))
}

func (m *Metrics) Response(outcome string) {
	if m == nil {
		return
	}
	m.responses.WithLabelValues(outcome).Inc()
}

// Handler serves registry in exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}
