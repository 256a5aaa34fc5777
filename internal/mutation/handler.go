// Package mutation applies routed create and delete envelopes to the record
// store.
package mutation

import (
	"context"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"

	"taskbridge/internal/ident"
	"taskbridge/internal/observability"
	"taskbridge/internal/store"
	"taskbridge/pkg/domain"
)

// DefaultTimeout bounds one invocation when no WithTimeout option is given.
const DefaultTimeout = 10 * time.Second

// Operation names reported to metrics and tracing.
const (
	OpCreate = "create_task"
	OpDelete = "delete_task"
)

// Option configures a Handler.
type Option func(*Handler)

// WithMetricsRecorder records one observation per create or delete.
func WithMetricsRecorder(m observability.MetricsRecorder) Option {
	return func(h *Handler) {
		if m != nil {
			h.metrics = m
		}
	}
}

// WithTracer wraps each create or delete in a span.
func WithTracer(t observability.Tracer) Option {
	return func(h *Handler) {
		if t != nil {
			h.tracer = t
		}
	}
}

// WithLogger replaces the handler logger.
func WithLogger(logger loggo.Logger) Option {
	return func(h *Handler) { h.logger = logger }
}

// WithIDGenerator replaces the record id generator.
func WithIDGenerator(fn func() string) Option {
	return func(h *Handler) {
		if fn != nil {
			h.newID = fn
		}
	}
}

// WithTimeout bounds each invocation. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// WithClock replaces the clock used to time invocations.
func WithClock(c clock.Clock) Option {
	return func(h *Handler) {
		if c != nil {
			h.clock = c
		}
	}
}

// Handler applies mutations to a store. It keeps no state between
// invocations and is safe for concurrent use.
type Handler struct {
	store   store.Store
	logger  loggo.Logger
	metrics observability.MetricsRecorder
	tracer  observability.Tracer
	newID   func() string
	timeout time.Duration
	clock   clock.Clock
}

// NewHandler returns a handler writing to s.
func NewHandler(s store.Store, opts ...Option) *Handler {
	h := &Handler{
		store:   s,
		logger:  loggo.GetLogger("taskbridge.mutation"),
		metrics: observability.NoopMetrics{},
		tracer:  observability.NoopTracer{},
		newID:   ident.New,
		timeout: DefaultTimeout,
		clock:   clock.WallClock,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle applies env and reports the outcome. Store failures are logged with
// the full envelope and returned as StatusFailed; they never panic or escape.
func (h *Handler) Handle(ctx context.Context, env domain.Envelope) domain.Result {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	started := h.clock.Now()
	var res domain.Result
	switch m := env.Detail.(type) {
	case domain.Create:
		res = h.observe(ctx, OpCreate, func(ctx context.Context) domain.Result { return h.create(ctx, m) })
	case domain.Delete:
		res = h.observe(ctx, OpDelete, func(ctx context.Context) domain.Result { return h.delete(ctx, m) })
	default:
		h.logger.Warningf("ignoring event %s with unsupported detail-type %q", env.ID, env.Type)
		res = domain.Result{Status: domain.StatusIgnored}
	}
	res.Type = env.Type
	res.EventID = env.ID
	res.Duration = h.clock.Now().Sub(started)

	if res.Failed() {
		h.logger.Errorf("failed to apply %s event: %s: %v", env.Type, env, res.Err)
	} else {
		h.logger.Debugf("%s event %s: %s %s", env.Type, env.ID, res.Status, res.RecordID)
	}
	return res
}

func (h *Handler) observe(ctx context.Context, op string, fn func(context.Context) domain.Result) domain.Result {
	ctx, span := h.tracer.Start(ctx, op)
	started := h.clock.Now()
	res := fn(ctx)
	h.metrics.Observe(ctx, op, !res.Failed(), h.clock.Now().Sub(started))
	if outcomes, ok := h.metrics.(observability.OutcomeRecorder); ok {
		outcomes.ObserveOutcome(ctx, op, res.Status)
	}
	span.End(res.Err)
	return res
}

func (h *Handler) create(ctx context.Context, c domain.Create) domain.Result {
	rec := domain.NewRecord(h.newID(), c)
	if err := h.store.Put(ctx, rec); err != nil {
		return domain.Result{Status: domain.StatusFailed, RecordID: rec.ID, Err: errors.Annotatef(err, "put record %s", rec.ID)}
	}
	return domain.Result{Status: domain.StatusApplied, RecordID: rec.ID}
}

func (h *Handler) delete(ctx context.Context, d domain.Delete) domain.Result {
	existed, err := h.store.Delete(ctx, d.ID)
	if err != nil {
		return domain.Result{Status: domain.StatusFailed, RecordID: d.ID, Err: errors.Annotatef(err, "delete record %s", d.ID)}
	}
	if !existed {
		return domain.Result{Status: domain.StatusNoop, RecordID: d.ID}
	}
	return domain.Result{Status: domain.StatusApplied, RecordID: d.ID}
}
