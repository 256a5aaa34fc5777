// Package observability defines the metrics and tracing hooks used by the
// mutation handler, and the exporters that back them.
package observability

import (
	"context"
	"time"

	"taskbridge/pkg/domain"
)

// MetricsRecorder receives one observation per handled operation.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// OutcomeRecorder is implemented by recorders that also count how each
// operation ended, such as deletes of absent records.
type OutcomeRecorder interface {
	ObserveOutcome(ctx context.Context, operation string, status domain.Status)
}

// Tracer starts a span around a handled operation.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan is finished exactly once with the operation error, if any.
type TraceSpan interface {
	End(err error)
}

// NoopMetrics discards observations.
type NoopMetrics struct{}

// Observe implements MetricsRecorder.
func (NoopMetrics) Observe(context.Context, string, bool, time.Duration) {}

// NoopTracer returns spans that record nothing.
type NoopTracer struct{}

// Start implements Tracer.
func (NoopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}
