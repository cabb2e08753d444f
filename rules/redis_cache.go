package rules

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

const redisCacheKey = "adjudication:rules:active"

// RedisCache shares the active snapshot across engine instances. A cache
// failure is treated as a miss; the store remains the source of truth.
type RedisCache struct {
	client *redis.Client
	config CacheConfig
}

func NewRedisCache(client *redis.Client, config CacheConfig) *RedisCache {
	return &RedisCache{client: client, config: config}
}

func (c *RedisCache) Get(ctx context.Context) (*Snapshot, bool) {
	data, err := c.client.Get(ctx, redisCacheKey).Bytes()
	if err != nil {
		return nil, false
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		// Corrupt entry; drop it so the next Set rewrites cleanly.
		c.client.Del(ctx, redisCacheKey)
		return nil, false
	}
	return &snap, true
}

func (c *RedisCache) Set(ctx context.Context, snap *Snapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		return
	}

	ttl := c.config.TTL
	if ttl <= 0 {
		ttl = 0 // no expiry
	}
	_ = c.client.Set(ctx, redisCacheKey, data, ttl).Err()
}

func (c *RedisCache) Invalidate(ctx context.Context) {
	_ = c.client.Del(ctx, redisCacheKey).Err()
}

var _ Cache = (*RedisCache)(nil)
