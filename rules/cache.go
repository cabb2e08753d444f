package rules

import (
	"context"
	"time"
)

// Cache holds the active rule-set snapshot between evaluations so a run does
// not hit the store every time. Implementations: in-memory (single process)
// and Redis (shared across instances).
type Cache interface {
	// Get returns the cached snapshot, or false on miss/expiry.
	Get(ctx context.Context) (*Snapshot, bool)

	// Set stores a snapshot.
	Set(ctx context.Context, snap *Snapshot)

	// Invalidate clears the cache; called on every rule mutation.
	Invalidate(ctx context.Context)
}

// CacheConfig holds cache tuning.
type CacheConfig struct {
	// TTL for cached snapshots. 0 means no expiry, invalidate on mutation
	// only.
	TTL time.Duration
}

func DefaultCacheConfig() CacheConfig {
	return CacheConfig{TTL: 0}
}

// NoopCache disables caching; every snapshot load goes to the store.
type NoopCache struct{}

func (NoopCache) Get(context.Context) (*Snapshot, bool) { return nil, false }
func (NoopCache) Set(context.Context, *Snapshot)        {}
func (NoopCache) Invalidate(context.Context)            {}
