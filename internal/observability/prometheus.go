package observability

import (
	"context"
	"time"

	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus"

	"taskbridge/pkg/domain"
)

const metricsNamespace = "taskbridge"

// PrometheusMetricsRecorder is a MetricsRecorder and prometheus.Collector
// counting handled operations by result and timing them.
type PrometheusMetricsRecorder struct {
	operations *prometheus.CounterVec
	outcomes   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewPrometheusMetricsRecorder builds a recorder and registers it with reg
// when reg is non-nil.
func NewPrometheusMetricsRecorder(reg prometheus.Registerer) (*PrometheusMetricsRecorder, error) {
	r := &PrometheusMetricsRecorder{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "operations_total",
				Help:      "The number of handled mutation operations.",
			}, []string{"operation", "result"},
		),
		outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "outcomes_total",
				Help:      "The number of handled mutation operations by final status.",
			}, []string{"operation", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "operation_duration_seconds",
				Help:      "The time taken to apply a mutation to the store.",
				Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
			}, []string{"operation"},
		),
	}
	if reg != nil {
		if err := reg.Register(r); err != nil {
			return nil, errors.Annotate(err, "register taskbridge metrics")
		}
	}
	return r, nil
}

// Observe implements MetricsRecorder.
func (r *PrometheusMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	r.operations.WithLabelValues(operation, resultLabel(success)).Inc()
	r.duration.WithLabelValues(operation).Observe(duration.Seconds())
}

// ObserveOutcome implements OutcomeRecorder.
func (r *PrometheusMetricsRecorder) ObserveOutcome(_ context.Context, operation string, status domain.Status) {
	if operation == "" || status == "" {
		return
	}
	r.outcomes.WithLabelValues(operation, string(status)).Inc()
}

// Describe is part of the prometheus.Collector interface.
func (r *PrometheusMetricsRecorder) Describe(ch chan<- *prometheus.Desc) {
	r.operations.Describe(ch)
	r.outcomes.Describe(ch)
	r.duration.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (r *PrometheusMetricsRecorder) Collect(ch chan<- prometheus.Metric) {
	r.operations.Collect(ch)
	r.outcomes.Collect(ch)
	r.duration.Collect(ch)
}
