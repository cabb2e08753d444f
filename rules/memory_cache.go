package rules

import (
	"context"
	"sync"
	"time"
)

// InMemoryCache caches the active snapshot in process. Thread-safe.
type InMemoryCache struct {
	snap     *Snapshot
	cachedAt time.Time
	valid    bool
	config   CacheConfig
	mu       sync.RWMutex
}

func NewInMemoryCache(config CacheConfig) *InMemoryCache {
	return &InMemoryCache{config: config}
}

func (c *InMemoryCache) Get(ctx context.Context) (*Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.valid {
		return nil, false
	}
	if c.config.TTL > 0 && time.Since(c.cachedAt) > c.config.TTL {
		return nil, false
	}
	return c.snap, true
}

func (c *InMemoryCache) Set(ctx context.Context, snap *Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.snap = snap
	c.cachedAt = time.Now()
	c.valid = true
}

func (c *InMemoryCache) Invalidate(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.valid = false
	c.snap = nil
}
