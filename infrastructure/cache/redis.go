package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisScopedCache is the distributed counterpart to ScopedCache: the same
// namespaced Get/Set/Delete contract, backed by a shared Redis instance
// instead of an in-process LRU. Used when more than one orchestrator
// process needs to agree on one hazard cache.
type RedisScopedCache struct {
	client     *redis.Client
	prefix     string
	defaultTTL time.Duration
}

// NewRedisScopedCache wraps an existing *redis.Client. A zero defaultTTL
// falls back to 5 minutes, matching cache.DefaultConfig's in-process TTL.
func NewRedisScopedCache(client *redis.Client, prefix string, defaultTTL time.Duration) *RedisScopedCache {
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	return &RedisScopedCache{client: client, prefix: prefix, defaultTTL: defaultTTL}
}

func (c *RedisScopedCache) Get(ctx context.Context, key string) (interface{}, bool) {
	raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		return nil, false
	}
	var value interface{}
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, false
	}
	return value, true
}

func (c *RedisScopedCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, c.prefix+key, raw, ttl).Err()
}

func (c *RedisScopedCache) Delete(ctx context.Context, key string) {
	_ = c.client.Del(ctx, c.prefix+key).Err()
}
