// Package local is an in-process, at-least-once event bus. Published
// envelopes are queued and delivered by a single worker goroutine; failed
// results are redelivered a bounded number of times.
package local

import (
	"context"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/retry"
	"gopkg.in/tomb.v2"

	"taskbridge/internal/bus"
	"taskbridge/pkg/domain"
)

// ErrStopped is returned by Publish once the bus is shutting down.
const ErrStopped = errors.ConstError("bus stopped")

// Logger is the subset of loggo.Logger used by the bus.
type Logger interface {
	Infof(message string, args ...any)
	Warningf(message string, args ...any)
	Errorf(message string, args ...any)
}

// Config holds the dependencies and tuning of a Bus.
type Config struct {
	Deliverer   bus.Deliverer
	Clock       clock.Clock
	Logger      Logger
	MaxAttempts int
	RetryDelay  time.Duration
	QueueSize   int
	// OnResult, if set, receives the final result of every envelope.
	OnResult func(domain.Envelope, domain.Result)
}

// Validate checks the config.
func (c Config) Validate() error {
	if c.Deliverer == nil {
		return errors.NotValidf("nil Deliverer")
	}
	if c.Clock == nil {
		return errors.NotValidf("nil Clock")
	}
	if c.MaxAttempts < 1 {
		return errors.NotValidf("MaxAttempts %d", c.MaxAttempts)
	}
	if c.RetryDelay <= 0 {
		return errors.NotValidf("RetryDelay %s", c.RetryDelay)
	}
	if c.QueueSize < 1 {
		return errors.NotValidf("QueueSize %d", c.QueueSize)
	}
	return nil
}

// Bus queues envelopes and delivers them in publish order.
type Bus struct {
	tomb   tomb.Tomb
	config Config
	logger Logger
	queue  chan domain.Envelope
}

// New starts a bus worker.
func New(config Config) (*Bus, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	var logger Logger = loggo.GetLogger("taskbridge.bus.local")
	if config.Logger != nil {
		logger = config.Logger
	}
	b := &Bus{
		config: config,
		logger: logger,
		queue:  make(chan domain.Envelope, config.QueueSize),
	}
	b.tomb.Go(b.loop)
	return b, nil
}

// Publish enqueues env. It blocks while the queue is full.
func (b *Bus) Publish(ctx context.Context, env domain.Envelope) error {
	select {
	case <-b.tomb.Dying():
		return ErrStopped
	default:
	}
	select {
	case b.queue <- env:
		return nil
	case <-b.tomb.Dying():
		return ErrStopped
	case <-ctx.Done():
		return errors.Annotatef(ctx.Err(), "publish event %s", env.ID)
	}
}

// Kill asks the worker to stop. Queued envelopes not yet delivered are
// discarded.
func (b *Bus) Kill() { b.tomb.Kill(nil) }

// Wait blocks until the worker has stopped.
func (b *Bus) Wait() error { return b.tomb.Wait() }

func (b *Bus) loop() error {
	ctx := b.tomb.Context(context.Background())
	for {
		select {
		case <-b.tomb.Dying():
			return tomb.ErrDying
		case env := <-b.queue:
			b.deliver(ctx, env)
		}
	}
}

func (b *Bus) deliver(ctx context.Context, env domain.Envelope) {
	var res domain.Result
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			res = b.config.Deliverer.Deliver(ctx, env)
			if !res.Failed() {
				return nil
			}
			if res.Err != nil {
				return res.Err
			}
			return errors.Errorf("%s event %s failed", env.Type, env.ID)
		},
		NotifyFunc: func(lastErr error, attempt int) {
			b.logger.Warningf("delivery attempt %d of event %s failed: %v", attempt, env.ID, lastErr)
		},
		Attempts: b.config.MaxAttempts,
		Delay:    b.config.RetryDelay,
		Clock:    b.config.Clock,
		Stop:     b.tomb.Dying(),
	})
	switch {
	case err == nil:
	case retry.IsAttemptsExceeded(err):
		b.logger.Errorf("giving up on event %s after %d attempts: %s", env.ID, b.config.MaxAttempts, env)
	case retry.IsRetryStopped(err):
		b.logger.Infof("stopped redelivering event %s", env.ID)
	default:
		b.logger.Errorf("delivering event %s: %v", env.ID, err)
	}
	if b.config.OnResult != nil {
		b.config.OnResult(env, res)
	}
}
