// Package storetest provides a behavioural contract shared by every
// core.Store backend test suite.
package storetest

import (
	"context"
	"reflect"
	"testing"

	"taskbridge/internal/store/core"
	"taskbridge/pkg/domain"
)

// Opener returns a fresh, empty store for a single subtest.
type Opener func(t *testing.T) core.Store

// Run exercises put, overwrite, delete, absent delete and list semantics.
func Run(t *testing.T, driver core.Driver, open Opener) {
	t.Helper()
	ctx := context.Background()

	t.Run("driver", func(t *testing.T) {
		s := open(t)
		if s.Driver() != driver {
			t.Fatalf("expected driver %s, got %s", driver, s.Driver())
		}
	})

	t.Run("put-list", func(t *testing.T) {
		s := open(t)
		recs := []domain.Record{
			{ID: "b2", Task: "walk dog", Done: true},
			{ID: "a1", Task: "buy milk"},
		}
		for _, rec := range recs {
			if err := s.Put(ctx, rec); err != nil {
				t.Fatalf("put %s: %v", rec.ID, err)
			}
		}
		got, err := s.List(ctx)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		want := []domain.Record{recs[1], recs[0]}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("list mismatch:\n got %+v\nwant %+v", got, want)
		}
	})

	t.Run("put-overwrites", func(t *testing.T) {
		s := open(t)
		if err := s.Put(ctx, domain.Record{ID: "a1", Task: "draft"}); err != nil {
			t.Fatalf("put: %v", err)
		}
		if err := s.Put(ctx, domain.Record{ID: "a1", Task: "final", Done: true}); err != nil {
			t.Fatalf("overwrite: %v", err)
		}
		got, err := s.List(ctx)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		want := []domain.Record{{ID: "a1", Task: "final", Done: true}}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("overwrite mismatch: %+v", got)
		}
	})

	t.Run("put-requires-id", func(t *testing.T) {
		s := open(t)
		if err := s.Put(ctx, domain.Record{Task: "no id"}); err == nil {
			t.Fatalf("expected error for empty id")
		}
	})

	t.Run("delete", func(t *testing.T) {
		s := open(t)
		if err := s.Put(ctx, domain.Record{ID: "a1", Task: "x"}); err != nil {
			t.Fatalf("put: %v", err)
		}
		existed, err := s.Delete(ctx, "a1")
		if err != nil {
			t.Fatalf("delete: %v", err)
		}
		if !existed {
			t.Fatalf("expected delete to report existing record")
		}
		got, err := s.List(ctx)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(got) != 0 {
			t.Fatalf("expected empty store, got %+v", got)
		}
	})

	t.Run("delete-absent-is-noop", func(t *testing.T) {
		s := open(t)
		if err := s.Put(ctx, domain.Record{ID: "keep", Task: "x"}); err != nil {
			t.Fatalf("put: %v", err)
		}
		for i := 0; i < 2; i++ {
			existed, err := s.Delete(ctx, "abc123")
			if err != nil {
				t.Fatalf("delete absent (attempt %d): %v", i+1, err)
			}
			if existed {
				t.Fatalf("absent id reported as existing")
			}
		}
		got, err := s.List(ctx)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(got) != 1 || got[0].ID != "keep" {
			t.Fatalf("store changed by absent delete: %+v", got)
		}
	})
}
