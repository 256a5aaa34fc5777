// Package eventbridge publishes envelopes to an Amazon EventBridge bus and
// adapts EventBridge-triggered Lambda invocations back into envelopes.
package eventbridge

import (
	"context"
	"time"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/retry"

	"taskbridge/internal/infra/awsutil"
	"taskbridge/pkg/domain"
)

// API is the subset of the EventBridge client used by Publisher.
type API interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// Config holds explicit construction parameters.
type Config struct {
	BusName string
	AWS     awsutil.Config
	// MaxAttempts bounds PutEvents calls for throttled requests. Zero means one.
	MaxAttempts int
	RetryDelay  time.Duration
	Clock       clock.Clock
}

// Publisher sends one PutEvents entry per envelope.
type Publisher struct {
	client      API
	busName     string
	maxAttempts int
	retryDelay  time.Duration
	clock       clock.Clock
}

// New creates a publisher with an AWS client built from cfg.
func New(ctx context.Context, cfg Config) (*Publisher, error) {
	awsCfg, err := awsutil.Load(ctx, cfg.AWS)
	if err != nil {
		return nil, err
	}
	client := eventbridge.NewFromConfig(awsCfg, func(o *eventbridge.Options) {
		if ep := cfg.AWS.BaseEndpoint(); ep != nil {
			o.BaseEndpoint = ep
		}
	})
	return NewWithClient(client, cfg)
}

// NewWithClient creates a publisher around an existing client.
func NewWithClient(client API, cfg Config) (*Publisher, error) {
	if client == nil {
		return nil, errors.NotValidf("nil eventbridge client")
	}
	if cfg.BusName == "" {
		return nil, errors.NotValidf("empty event bus name")
	}
	p := &Publisher{
		client:      client,
		busName:     cfg.BusName,
		maxAttempts: cfg.MaxAttempts,
		retryDelay:  cfg.RetryDelay,
		clock:       cfg.Clock,
	}
	if p.maxAttempts < 1 {
		p.maxAttempts = 1
	}
	if p.retryDelay <= 0 {
		p.retryDelay = 100 * time.Millisecond
	}
	if p.clock == nil {
		p.clock = clock.WallClock
	}
	return p, nil
}

// BusName returns the target event bus.
func (p *Publisher) BusName() string { return p.busName }

// Entry maps env to its PutEvents request entry.
func (p *Publisher) Entry(env domain.Envelope) (types.PutEventsRequestEntry, error) {
	detail, err := env.DetailJSON()
	if err != nil {
		return types.PutEventsRequestEntry{}, errors.Annotatef(err, "encode %s detail", env.Type)
	}
	entry := types.PutEventsRequestEntry{
		Source:       aws.String(env.Source),
		DetailType:   aws.String(string(env.Type)),
		Detail:       aws.String(string(detail)),
		EventBusName: aws.String(p.busName),
	}
	if !env.Time.IsZero() {
		entry.Time = aws.Time(env.Time)
	}
	return entry, nil
}

// Publish implements bus.Publisher. Throttled requests and throttled entries
// are retried up to the configured attempts; other failures return at once.
func (p *Publisher) Publish(ctx context.Context, env domain.Envelope) error {
	entry, err := p.Entry(env)
	if err != nil {
		return err
	}
	input := &eventbridge.PutEventsInput{Entries: []types.PutEventsRequestEntry{entry}}
	err = retry.Call(retry.CallArgs{
		Func: func() error {
			out, err := p.client.PutEvents(ctx, input)
			if err != nil {
				return awsutil.Describe(err)
			}
			return entryFailure(out)
		},
		IsFatalError: func(err error) bool { return !isThrottle(err) },
		Attempts:     p.maxAttempts,
		Delay:        p.retryDelay,
		Clock:        p.clock,
		Stop:         ctx.Done(),
	})
	if err != nil {
		if retry.IsAttemptsExceeded(err) || retry.IsRetryStopped(err) {
			err = retry.LastError(err)
		}
		return errors.Annotatef(err, "publish %s event %s to %s", env.Type, env.ID, p.busName)
	}
	return nil
}

// EntryError reports an entry rejected inside an otherwise successful
// PutEvents call.
type EntryError struct {
	Code    string
	Message string
}

func (e *EntryError) Error() string {
	return "eventbridge rejected entry: " + e.Code + ": " + e.Message
}

func entryFailure(out *eventbridge.PutEventsOutput) error {
	if out == nil || out.FailedEntryCount == 0 {
		return nil
	}
	for _, res := range out.Entries {
		if res.ErrorCode != nil {
			return &EntryError{Code: aws.ToString(res.ErrorCode), Message: aws.ToString(res.ErrorMessage)}
		}
	}
	return &EntryError{Code: "Unknown", Message: "failed entry without error code"}
}

func isThrottle(err error) bool {
	var entryErr *EntryError
	if errors.As(err, &entryErr) {
		return entryErr.Code == "ThrottlingException"
	}
	return awsutil.ErrorCode(err) == "ThrottlingException"
}
