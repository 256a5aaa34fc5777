package domain

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestEnvelopeWireShape(t *testing.T) {
	env := Envelope{
		ID:     "evt-1",
		Source: Source,
		Type:   KindCreate,
		Time:   time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Detail: Create{Task: "buy milk"},
	}
	data, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var generic map[string]any
	if err := json.Unmarshal(data, &generic); err != nil {
		t.Fatalf("unmarshal generic: %v", err)
	}
	if generic["detail-type"] != "create" || generic["source"] != "app" {
		t.Fatalf("unexpected routing fields: %s", data)
	}
	detail, ok := generic["detail"].(map[string]any)
	if !ok {
		t.Fatalf("expected detail object, got %s", data)
	}
	if _, hasID := detail["id"]; hasID {
		t.Fatalf("create detail must not carry id: %s", data)
	}
	if detail["task"] != "buy milk" || detail["done"] != false {
		t.Fatalf("unexpected detail: %v", detail)
	}

	var decoded Envelope
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(decoded, env) {
		t.Fatalf("decoded envelope mismatch: %+v vs %+v", decoded, env)
	}
}

func TestDecodeDetailAcceptsQuotedDone(t *testing.T) {
	m, err := DecodeDetail(KindCreate, json.RawMessage(`{"task":"walk dog","done":"true"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m != (Create{Task: "walk dog", Done: true}) {
		t.Fatalf("unexpected create: %+v", m)
	}
	if _, err := DecodeDetail(KindCreate, json.RawMessage(`{"task":"x","done":"maybe"}`)); err == nil {
		t.Fatalf("expected error for unparseable done")
	}
}

func TestDecodeDetailDelete(t *testing.T) {
	m, err := DecodeDetail(KindDelete, json.RawMessage(`{"id":"abc123"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(m.Fields(), map[string]any{"id": "abc123"}) {
		t.Fatalf("unexpected delete fields: %v", m.Fields())
	}
}

func TestUnrecognizedDetailKeepsPayload(t *testing.T) {
	raw := json.RawMessage(`{"title":"x"}`)
	m, err := DecodeDetail(Kind("rename"), raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	u, ok := m.(Unrecognized)
	if !ok {
		t.Fatalf("expected Unrecognized, got %T", m)
	}
	raw[2] = 'X'
	if u.Kind() != "rename" || string(u.Raw()) != `{"title":"x"}` {
		t.Fatalf("payload should be cloned and preserved: %s", u.Raw())
	}
	env := Envelope{Source: Source, Type: u.Kind(), Detail: u}
	if !strings.Contains(env.String(), `"detail":{"title":"x"}`) {
		t.Fatalf("expected raw detail in wire form: %s", env.String())
	}
}

func TestResultFailed(t *testing.T) {
	if (Result{Status: StatusNoop}).Failed() {
		t.Fatalf("noop is not a failure")
	}
	if !(Result{Status: StatusFailed}).Failed() {
		t.Fatalf("failed status should report failure")
	}
}

func TestDecodeDetailRejectsIncompleteVariants(t *testing.T) {
	cases := []struct {
		kind  Kind
		raw   string
		field string
	}{
		{KindCreate, `{}`, FieldTask},
		{KindCreate, `null`, FieldTask},
		{KindCreate, `{"task":""}`, FieldTask},
		{KindCreate, `{"id":"caller","task":"buy milk"}`, FieldID},
		{KindDelete, `{}`, FieldID},
		{KindDelete, `{"id":""}`, FieldID},
	}
	for _, tc := range cases {
		_, err := DecodeDetail(tc.kind, json.RawMessage(tc.raw))
		var detailErr *DetailError
		if !errors.As(err, &detailErr) {
			t.Fatalf("%s %s: expected DetailError, got %v", tc.kind, tc.raw, err)
		}
		if detailErr.Kind != tc.kind || detailErr.Field != tc.field {
			t.Fatalf("%s %s: unexpected error %+v", tc.kind, tc.raw, detailErr)
		}
	}
}

func TestEnvelopeUnmarshalRejectsEmptyDelete(t *testing.T) {
	var env Envelope
	if err := json.Unmarshal([]byte(`{"source":"app","detail-type":"delete","detail":{}}`), &env); err == nil {
		t.Fatalf("expected error for delete without id, got %+v", env)
	}
}
