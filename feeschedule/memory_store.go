package feeschedule

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore keeps schedule entries in memory, grouped by procedure code.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[string][]*Entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[string][]*Entry)}
}

func (s *InMemoryStore) Lookup(_ context.Context, procedureCode string, asOf time.Time) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// When windows overlap the most recently effective entry wins.
	var best *Entry
	for _, e := range s.entries[procedureCode] {
		if !e.Covers(asOf) {
			continue
		}
		if best == nil || e.EffectiveFrom.After(best.EffectiveFrom) {
			best = e
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (s *InMemoryStore) Put(_ context.Context, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *entry
	existing := s.entries[entry.ProcedureCode]
	for i, e := range existing {
		if e.EffectiveFrom.Equal(entry.EffectiveFrom) {
			existing[i] = &cp
			return nil
		}
	}
	s.entries[entry.ProcedureCode] = append(existing, &cp)
	return nil
}

var _ Store = (*InMemoryStore)(nil)
