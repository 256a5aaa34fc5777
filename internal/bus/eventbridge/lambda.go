package eventbridge

import (
	"context"

	"github.com/aws/aws-lambda-go/events"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"

	"taskbridge/internal/bus"
	"taskbridge/pkg/domain"
)

// Decode converts an EventBridge event into an envelope. Unknown detail-types
// decode to domain.Unrecognized so they can still be routed and dropped.
func Decode(ev events.EventBridgeEvent) (domain.Envelope, error) {
	kind := domain.Kind(ev.DetailType)
	detail, err := domain.DecodeDetail(kind, ev.Detail)
	if err != nil {
		return domain.Envelope{}, errors.NewNotValid(err, "decode "+ev.DetailType+" detail of event "+ev.ID)
	}
	env := domain.Envelope{ID: ev.ID, Source: ev.Source, Type: kind, Detail: detail}
	if !ev.Time.IsZero() {
		env.Time = ev.Time.UTC()
	}
	return env, nil
}

// LambdaOption configures a LambdaHandler.
type LambdaOption func(*LambdaHandler)

// WithRedeliverOnFailure makes failed results return an error, so the
// platform retries the invocation. By default failures are logged and the
// invocation succeeds.
func WithRedeliverOnFailure(redeliver bool) LambdaOption {
	return func(h *LambdaHandler) { h.redeliver = redeliver }
}

// WithLambdaLogger replaces the adapter logger.
func WithLambdaLogger(logger loggo.Logger) LambdaOption {
	return func(h *LambdaHandler) { h.logger = logger }
}

// LambdaHandler is the EventBridge rule target.
type LambdaHandler struct {
	deliverer bus.Deliverer
	redeliver bool
	logger    loggo.Logger
}

// NewLambdaHandler wraps d for use with lambda.Start(h.Invoke).
func NewLambdaHandler(d bus.Deliverer, opts ...LambdaOption) *LambdaHandler {
	h := &LambdaHandler{deliverer: d, logger: loggo.GetLogger("taskbridge.bus.eventbridge")}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Invoke handles one event. Undecodable events are logged and acknowledged;
// redelivering them cannot succeed.
func (h *LambdaHandler) Invoke(ctx context.Context, ev events.EventBridgeEvent) error {
	env, err := Decode(ev)
	if err != nil {
		h.logger.Errorf("discarding event %s: %v", ev.ID, err)
		return nil
	}
	res := h.deliverer.Deliver(ctx, env)
	if !res.Failed() {
		h.logger.Debugf("event %s %s", ev.ID, res.Status)
		return nil
	}
	if h.redeliver {
		return errors.Annotatef(res.Err, "%s event %s", env.Type, env.ID)
	}
	h.logger.Errorf("event %s failed and will not be redelivered: %v", ev.ID, res.Err)
	return nil
}
