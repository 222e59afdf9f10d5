// Package cache provides the in-process LRU cache, and a Redis-backed
// alternative, that the event generation engine's hazard cache stores its
// derived rate tables in.
package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Config controls the hazard cache's capacity and default entry lifetime.
type Config struct {
	// MaxEntries bounds the LRU's resident set. Once exceeded, the least
	// recently used entry is evicted regardless of its expiration.
	MaxEntries int

	// DefaultTTL is applied to entries set via Set when no explicit TTL is
	// given.
	DefaultTTL time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxEntries: 10000,
		DefaultTTL: 5 * time.Minute,
	}
}

type entry struct {
	value      interface{}
	expiration time.Time
	version    int64
}

// Cache is an LRU-bounded, TTL-aware, versioned cache backed by
// hashicorp/golang-lru. Versioning lets a caller invalidate every entry
// computed under a stale config or run id without walking the whole cache:
// bumping the version makes old entries unreachable on next Get without
// an eviction pass.
type Cache struct {
	lru     *lru.Cache[string, *entry]
	config  Config
	version int64
}

// NewCache creates a hazard cache. A zero Config falls back to DefaultConfig.
func NewCache(cfg Config) *Cache {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 10000
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 5 * time.Minute
	}

	l, err := lru.New[string, *entry](cfg.MaxEntries)
	if err != nil {
		// Only returned by golang-lru when size <= 0, which cfg normalization
		// above already rules out.
		panic(err)
	}

	return &Cache{lru: l, config: cfg}
}

func (c *Cache) Get(key string) (interface{}, bool) {
	e, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiration) || e.version < c.version {
		c.lru.Remove(key)
		return nil, false
	}
	return e.value, true
}

func (c *Cache) GetVersion(key string) (interface{}, int64, bool) {
	e, ok := c.lru.Get(key)
	if !ok {
		return nil, 0, false
	}
	if time.Now().After(e.expiration) || e.version < c.version {
		c.lru.Remove(key)
		return nil, 0, false
	}
	return e.value, e.version, true
}

func (c *Cache) Set(key string, value interface{}, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.config.DefaultTTL
	}
	c.lru.Add(key, &entry{
		value:      value,
		expiration: time.Now().Add(ttl),
		version:    c.version,
	})
}

func (c *Cache) Invalidate(key string) {
	c.lru.Remove(key)
}

// InvalidateVersion bumps the cache's version, making every entry set before
// this call unreachable on its next Get even though it still occupies LRU
// capacity until evicted or overwritten. Used when a run id or config hash
// changes mid-process and cached draws must not leak across runs.
func (c *Cache) InvalidateVersion() {
	c.version++
}

func (c *Cache) GetCurrentVersion() int64 {
	return c.version
}

func (c *Cache) InvalidateAll() {
	c.lru.Purge()
}

func (c *Cache) Size() int {
	return c.lru.Len()
}

// ScopedCache namespaces keys under a prefix (e.g. "draw:", "eligibility:")
// so unrelated callers can share one underlying hazard cache instance.
type ScopedCache struct {
	cache  *Cache
	prefix string
}

func NewScopedCache(cache *Cache, prefix string) *ScopedCache {
	return &ScopedCache{cache: cache, prefix: prefix}
}

func (c *ScopedCache) Get(ctx context.Context, key string) (interface{}, bool) {
	return c.cache.Get(c.prefix + key)
}

func (c *ScopedCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	c.cache.Set(c.prefix+key, value, ttl)
}

func (c *ScopedCache) Delete(ctx context.Context, key string) {
	c.cache.Invalidate(c.prefix + key)
}
