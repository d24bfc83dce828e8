// Package telemetry provides the metric sink consumed by the backoff
// executor and the OpenTelemetry tracer bootstrap.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus implements the backoff.Metrics contract: one counter
// increment per retry attempt started, one histogram sample per successful
// call.
type Prometheus struct {
	retries *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

// NewPrometheus registers the pipeline metrics with reg. Pass
// prometheus.DefaultRegisterer outside of tests.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	factory := promauto.With(reg)
	return &Prometheus{
		retries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wca",
			Subsystem: "pipeline",
			Name:      "retries_total",
			Help:      "Retry attempts started, by operation",
		}, []string{"operation"}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "wca",
			Subsystem: "pipeline",
			Name:      "call_duration_seconds",
			Help:      "Wall-clock duration of successful upstream calls",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 60},
		}, []string{"operation"}),
	}
}

// RetryStarted increments the retry counter for the operation.
func (p *Prometheus) RetryStarted(operation string) {
	p.retries.WithLabelValues(operation).Inc()
}

// ObserveDuration records one latency sample for the operation.
func (p *Prometheus) ObserveDuration(operation string, d time.Duration) {
	p.latency.WithLabelValues(operation).Observe(d.Seconds())
}
