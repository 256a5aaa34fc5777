// Package bus defines how envelopes travel from producers to the router.
package bus

import (
	"context"

	"taskbridge/pkg/domain"
)

// Publisher hands an envelope to a transport. A nil error means the transport
// accepted it, not that it was applied.
type Publisher interface {
	Publish(ctx context.Context, env domain.Envelope) error
}

// Deliverer is the consuming end of a transport, normally the router.
type Deliverer interface {
	Deliver(ctx context.Context, env domain.Envelope) domain.Result
}

// DelivererFunc adapts a function to Deliverer.
type DelivererFunc func(ctx context.Context, env domain.Envelope) domain.Result

// Deliver implements Deliverer.
func (f DelivererFunc) Deliver(ctx context.Context, env domain.Envelope) domain.Result {
	return f(ctx, env)
}
