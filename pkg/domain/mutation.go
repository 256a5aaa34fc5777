// Package domain defines the task mutation model shared by the builder,
// router, handler and storage layers.
package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Kind identifies a mutation type. It doubles as the envelope detail-type used
// for routing.
type Kind string

const (
	// KindCreate adds a new task record.
	KindCreate Kind = "create"
	// KindDelete removes a task record by id.
	KindDelete Kind = "delete"
)

// Source is the event namespace tag stamped on every envelope produced by
// this pipeline.
const Source = "app"

// Field names used in detail payloads and persisted records.
const (
	FieldID   = "id"
	FieldTask = "task"
	FieldDone = "done"
)

// Mutation is the detail carried by an envelope. Concrete variants are
// Create, Delete and Unrecognized.
type Mutation interface {
	Kind() Kind
	// Fields renders the detail as a flat field map, mirroring its wire shape.
	Fields() map[string]any
}

// Create carries the caller-supplied attributes of a new task. It never holds
// an identifier; one is assigned when the mutation is applied.
type Create struct {
	Task string `json:"task"`
	Done bool   `json:"done"`
}

// Kind implements Mutation.
func (Create) Kind() Kind { return KindCreate }

// Fields implements Mutation.
func (c Create) Fields() map[string]any {
	return map[string]any{FieldTask: c.Task, FieldDone: c.Done}
}

// UnmarshalJSON accepts done as a JSON bool or a quoted bool, since upstream
// gateways have historically forwarded it as a string.
func (c *Create) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID   json.RawMessage `json:"id"`
		Task string          `json:"task"`
		Done json.RawMessage `json:"done"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw.ID) > 0 {
		return &DetailError{Kind: KindCreate, Field: FieldID, Reason: "must not be set; ids are assigned when applied"}
	}
	c.Task = raw.Task
	c.Done = false
	if len(raw.Done) == 0 || string(raw.Done) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw.Done, &c.Done); err == nil {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw.Done, &s); err != nil {
		return err
	}
	done, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	c.Done = done
	return nil
}

// Validate reports a create that cannot produce a usable record.
func (c Create) Validate() error {
	if c.Task == "" {
		return &DetailError{Kind: KindCreate, Field: FieldTask, Reason: "must not be empty"}
	}
	return nil
}

// Delete references an existing record by id.
type Delete struct {
	ID string `json:"id"`
}

// Kind implements Mutation.
func (Delete) Kind() Kind { return KindDelete }

// Fields implements Mutation.
func (d Delete) Fields() map[string]any {
	return map[string]any{FieldID: d.ID}
}

// Validate reports a delete without a target id.
func (d Delete) Validate() error {
	if d.ID == "" {
		return &DetailError{Kind: KindDelete, Field: FieldID, Reason: "must not be empty"}
	}
	return nil
}

// DetailError describes a detail payload that decodes but violates the shape
// of its mutation kind.
type DetailError struct {
	Kind   Kind
	Field  string
	Reason string
}

func (e *DetailError) Error() string {
	return fmt.Sprintf("%s detail field %q %s", e.Kind, e.Field, e.Reason)
}

// Unrecognized holds the detail of an envelope whose type this pipeline does
// not understand. It is kept so the envelope can still be routed and dropped.
type Unrecognized struct {
	Type Kind
	raw  json.RawMessage
}

// NewUnrecognized wraps raw detail bytes. The bytes are cloned.
func NewUnrecognized(kind Kind, raw json.RawMessage) Unrecognized {
	return Unrecognized{Type: kind, raw: cloneRawMessage(raw)}
}

// Kind implements Mutation.
func (u Unrecognized) Kind() Kind { return u.Type }

// Fields implements Mutation. Non-object payloads yield an empty map.
func (u Unrecognized) Fields() map[string]any {
	out := map[string]any{}
	if len(u.raw) == 0 {
		return out
	}
	_ = json.Unmarshal(u.raw, &out)
	return out
}

// Raw returns a copy of the undecoded detail.
func (u Unrecognized) Raw() json.RawMessage {
	return cloneRawMessage(u.raw)
}

// MarshalJSON emits the original detail bytes.
func (u Unrecognized) MarshalJSON() ([]byte, error) {
	if len(u.raw) == 0 {
		return []byte("{}"), nil
	}
	return cloneRawMessage(u.raw), nil
}

// DecodeDetail decodes and validates a detail payload for the given kind.
// Unknown kinds decode to Unrecognized rather than failing.
func DecodeDetail(kind Kind, raw json.RawMessage) (Mutation, error) {
	switch kind {
	case KindCreate:
		var c Create
		if err := json.Unmarshal(orEmptyObject(raw), &c); err != nil {
			return nil, err
		}
		if err := c.Validate(); err != nil {
			return nil, err
		}
		return c, nil
	case KindDelete:
		var d Delete
		if err := json.Unmarshal(orEmptyObject(raw), &d); err != nil {
			return nil, err
		}
		if err := d.Validate(); err != nil {
			return nil, err
		}
		return d, nil
	default:
		return NewUnrecognized(kind, raw), nil
	}
}

func orEmptyObject(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || string(raw) == "null" {
		return json.RawMessage("{}")
	}
	return raw
}

func cloneRawMessage(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	cloned := make(json.RawMessage, len(raw))
	copy(cloned, raw)
	return cloned
}
