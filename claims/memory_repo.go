package claims

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no snapshot exists for a claim ID.
var ErrNotFound = errors.New("claim not found")

// InMemoryRepository is a map-backed Repository used in tests and
// single-process deployments.
type InMemoryRepository struct {
	claims map[uuid.UUID]*Snapshot
	mu     sync.RWMutex
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{claims: make(map[uuid.UUID]*Snapshot)}
}

// Put registers a claim snapshot.
func (r *InMemoryRepository) Put(snap *Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.claims[snap.ID] = snap
}

// Snapshot returns the stored snapshot for the claim.
func (r *InMemoryRepository) Snapshot(ctx context.Context, claimID uuid.UUID) (*Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap, ok := r.claims[claimID]
	if !ok {
		return nil, fmt.Errorf("claim %s: %w", claimID, ErrNotFound)
	}
	return snap, nil
}
