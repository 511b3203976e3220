// Package metrics exposes Prometheus instrumentation for the execution
// engine. A nil Registerer yields unregistered collectors, which keeps
// parallel engine instances in tests from colliding.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics aggregates the engine's counters and histograms
type Metrics struct {
	StepsTotal         *prometheus.CounterVec
	RetriesTotal       prometheus.Counter
	BreakerTransitions *prometheus.CounterVec
	ExecutionsTotal    *prometheus.CounterVec
	StepDuration       prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		StepsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "flowscript_steps_total",
			Help: "Step invocations by outcome status",
		}, []string{"status"}),
		RetriesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "flowscript_retries_total",
			Help: "Retry attempts beyond the first invocation",
		}),
		BreakerTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "flowscript_breaker_transitions_total",
			Help: "Circuit breaker state transitions by target state",
		}, []string{"state"}),
		ExecutionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "flowscript_executions_total",
			Help: "Flow executions by terminal status",
		}, []string{"status"}),
		StepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "flowscript_step_duration_seconds",
			Help:    "Wall time of step handler invocations",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// ObserveStep records one step outcome
func (m *Metrics) ObserveStep(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.StepsTotal.WithLabelValues(status).Inc()
	m.StepDuration.Observe(d.Seconds())
}

// ObserveRetry records one re-invocation
func (m *Metrics) ObserveRetry() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// ObserveBreaker records a breaker state change
func (m *Metrics) ObserveBreaker(state string) {
	if m == nil {
		return
	}
	m.BreakerTransitions.WithLabelValues(state).Inc()
}

// ObserveExecution records a finished execution
func (m *Metrics) ObserveExecution(status string) {
	if m == nil {
		return
	}
	m.ExecutionsTotal.WithLabelValues(status).Inc()
}
