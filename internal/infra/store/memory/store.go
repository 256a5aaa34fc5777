// Package memory implements an in-memory record Store for tests and local runs.
package memory

import (
	"context"
	"sort"
	"sync"

	"taskbridge/internal/store/core"
	"taskbridge/pkg/domain"
)

// Store implements core.Store backed by process memory.
type Store struct {
	mu   sync.RWMutex
	recs map[string]domain.Record
}

// New returns an empty in-memory store.
func New() *Store { return &Store{recs: make(map[string]domain.Record)} }

// Driver returns the store driver identifier.
func (s *Store) Driver() core.Driver { return core.DriverMemory }

// Put inserts or overwrites the record.
func (s *Store) Put(_ context.Context, rec domain.Record) error {
	if err := core.ValidateRecord(rec); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs[rec.ID] = rec
	return nil
}

// Delete removes the record returning true if it existed.
func (s *Store) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.recs[id]
	if ok {
		delete(s.recs, id)
	}
	return ok, nil
}

// List returns every record ordered by id.
func (s *Store) List(_ context.Context) ([]domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Record, 0, len(s.recs))
	for _, rec := range s.recs {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Get returns a single record. It is not part of core.Store and exists for
// tests and local inspection.
func (s *Store) Get(id string) (domain.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.recs[id]
	return rec, ok
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.recs)
}

// Close is a no-op.
func (s *Store) Close() error { return nil }
