// Package event turns raw mutation arguments into routable envelopes.
package event

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"github.com/juju/errors"

	"taskbridge/pkg/domain"
)

// InvalidArgumentError reports a missing or malformed argument, or an unknown
// mutation kind. It matches errors.NotValid.
type InvalidArgumentError struct {
	Kind   domain.Kind
	Key    string
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("invalid %s mutation: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("invalid %s mutation: %s %s", e.Kind, e.Key, e.Reason)
}

// Is lets callers test with errors.Is(err, errors.NotValid).
func (e *InvalidArgumentError) Is(target error) bool {
	return target == errors.NotValid
}

// Builder stamps envelopes with a source, an id and a timestamp.
type Builder struct {
	Source string
	Clock  clock.Clock
	NewID  func() string
}

// NewBuilder returns a builder for the default source using the wall clock
// and random UUIDs.
func NewBuilder() *Builder {
	return &Builder{Source: domain.Source, Clock: clock.WallClock, NewID: uuid.NewString}
}

// Build validates args for kind and wraps them in an envelope. Keys not
// belonging to kind are not copied, so a create never carries an id.
func (b *Builder) Build(kind domain.Kind, args map[string]any) (domain.Envelope, error) {
	var detail domain.Mutation
	switch kind {
	case domain.KindCreate:
		task, err := requireString(kind, args, domain.FieldTask)
		if err != nil {
			return domain.Envelope{}, err
		}
		done, err := optionalBool(kind, args, domain.FieldDone)
		if err != nil {
			return domain.Envelope{}, err
		}
		detail = domain.Create{Task: task, Done: done}
	case domain.KindDelete:
		id, err := requireString(kind, args, domain.FieldID)
		if err != nil {
			return domain.Envelope{}, err
		}
		detail = domain.Delete{ID: id}
	default:
		return domain.Envelope{}, &InvalidArgumentError{Kind: kind, Reason: "unknown mutation kind"}
	}
	return domain.Envelope{
		ID:     b.newID(),
		Source: b.source(),
		Type:   kind,
		Time:   b.now(),
		Detail: detail,
	}, nil
}

func (b *Builder) source() string {
	if b.Source == "" {
		return domain.Source
	}
	return b.Source
}

func (b *Builder) newID() string {
	if b.NewID == nil {
		return uuid.NewString()
	}
	return b.NewID()
}

func (b *Builder) now() time.Time {
	if b.Clock == nil {
		return clock.WallClock.Now().UTC()
	}
	return b.Clock.Now().UTC()
}

func requireString(kind domain.Kind, args map[string]any, key string) (string, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return "", &InvalidArgumentError{Kind: kind, Key: key, Reason: "is required"}
	}
	s, ok := raw.(string)
	if !ok {
		return "", &InvalidArgumentError{Kind: kind, Key: key, Reason: fmt.Sprintf("must be a string, got %T", raw)}
	}
	if s == "" {
		return "", &InvalidArgumentError{Kind: kind, Key: key, Reason: "must not be empty"}
	}
	return s, nil
}

func optionalBool(kind domain.Kind, args map[string]any, key string) (bool, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return false, nil
	}
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, &InvalidArgumentError{Kind: kind, Key: key, Reason: fmt.Sprintf("must be a boolean, got %q", v)}
		}
		return b, nil
	default:
		return false, &InvalidArgumentError{Kind: kind, Key: key, Reason: fmt.Sprintf("must be a boolean, got %T", raw)}
	}
}
