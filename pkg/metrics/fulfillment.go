package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// FulfillmentMetrics records post-order saga step outcomes.
type FulfillmentMetrics struct {
	duration *prometheus.HistogramVec
	steps    *prometheus.CounterVec
	runs     *prometheus.CounterVec
}

// NewFulfillmentMetrics registers the saga metrics on the provided registerer.
// A nil registerer yields a recorder that drops everything.
func NewFulfillmentMetrics(reg prometheus.Registerer) *FulfillmentMetrics {
	if reg == nil {
		return &FulfillmentMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fulfillment_step_duration_seconds",
		Help:    "Duration of fulfillment saga steps in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"step"})
	steps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fulfillment_step_total",
		Help: "Fulfillment saga step attempts by outcome.",
	}, []string{"step", "status"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fulfillment_run_total",
		Help: "Completed fulfillment saga runs by overall result.",
	}, []string{"result"})
	reg.MustRegister(duration, steps, runs)
	return &FulfillmentMetrics{
		duration: duration,
		steps:    steps,
		runs:     runs,
	}
}

// ObserveStep records one step attempt.
func (m *FulfillmentMetrics) ObserveStep(step, status string, duration time.Duration) {
	if m == nil || m.steps == nil {
		return
	}
	step = normalizeLabel(step)
	m.duration.WithLabelValues(step).Observe(duration.Seconds())
	m.steps.WithLabelValues(step, normalizeLabel(status)).Inc()
}

// ObserveRun records a finished saga run.
func (m *FulfillmentMetrics) ObserveRun(success bool) {
	if m == nil || m.runs == nil {
		return
	}
	result := "partial"
	if success {
		result = "success"
	}
	m.runs.WithLabelValues(result).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
