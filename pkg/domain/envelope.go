package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Envelope is the normalized event routed through the pipeline.
type Envelope struct {
	// ID correlates log lines across transport and handler. It is not a
	// deduplication key.
	ID     string
	Source string
	Type   Kind
	Time   time.Time
	Detail Mutation
}

type envelopeJSON struct {
	ID     string          `json:"id,omitempty"`
	Source string          `json:"source"`
	Type   Kind            `json:"detail-type"`
	Time   *time.Time      `json:"time,omitempty"`
	Detail json.RawMessage `json:"detail"`
}

// MarshalJSON renders the envelope in its EventBridge-compatible wire form.
func (e Envelope) MarshalJSON() ([]byte, error) {
	detail, err := e.DetailJSON()
	if err != nil {
		return nil, err
	}
	out := envelopeJSON{ID: e.ID, Source: e.Source, Type: e.Type, Detail: detail}
	if !e.Time.IsZero() {
		ts := e.Time.UTC()
		out.Time = &ts
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the wire form, resolving detail by detail-type.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var in envelopeJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	detail, err := DecodeDetail(in.Type, in.Detail)
	if err != nil {
		return fmt.Errorf("decode %s detail: %w", in.Type, err)
	}
	*e = Envelope{ID: in.ID, Source: in.Source, Type: in.Type, Detail: detail}
	if in.Time != nil {
		e.Time = in.Time.UTC()
	}
	return nil
}

// DetailJSON encodes only the detail payload.
func (e Envelope) DetailJSON() (json.RawMessage, error) {
	if e.Detail == nil {
		return json.RawMessage("{}"), nil
	}
	return json.Marshal(e.Detail)
}

// String renders the envelope for log context.
func (e Envelope) String() string {
	data, err := e.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("envelope{id=%s source=%s type=%s}", e.ID, e.Source, e.Type)
	}
	return string(data)
}
