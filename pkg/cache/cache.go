// Package cache provides a time-bounded lookup cache with single-flight
// population. Caches are constructed once per process with an injected clock
// and fetch capability and passed by reference to the components that need
// them, so tests can substitute a deterministic clock and a fake fetch.
package cache

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tinyland-inc/larkbridge/pkg/logger"
)

// FetchFunc loads the value for a key from upstream.
type FetchFunc[V any] func(ctx context.Context, key string) (V, error)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache is a TTL cache keyed by string. A read past the entry's expiry is
// treated as absent. Concurrent misses for the same key issue at most one
// upstream fetch; late joiners receive the in-flight result.
type Cache[V any] struct {
	name  string
	ttl   time.Duration
	now   func() time.Time
	fetch FetchFunc[V]

	group   singleflight.Group
	entries syncMap[V]
}

// New creates a cache. now may be nil to use time.Now.
func New[V any](name string, ttl time.Duration, now func() time.Time, fetch FetchFunc[V]) *Cache[V] {
	if now == nil {
		now = time.Now
	}
	return &Cache[V]{name: name, ttl: ttl, now: now, fetch: fetch}
}

// Get returns the cached value for key, fetching it on a miss or after
// expiry. Entries are refreshed lazily on access; there is no background
// refresh timer.
func (c *Cache[V]) Get(ctx context.Context, key string) (V, error) {
	if e, ok := c.entries.load(key); ok && c.now().Before(e.expiresAt) {
		return e.value, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		// Re-check after winning the flight: another goroutine may have
		// populated the entry between our miss and the Do call.
		if e, ok := c.entries.load(key); ok && c.now().Before(e.expiresAt) {
			return e.value, nil
		}
		value, err := c.fetch(ctx, key)
		if err != nil {
			return value, err
		}
		c.entries.store(key, entry[V]{value: value, expiresAt: c.now().Add(c.ttl)})
		return value, nil
	})
	if err != nil {
		logger.DebugCF("cache", "fetch failed", map[string]any{
			"cache": c.name,
			"key":   key,
			"error": err.Error(),
		})
		var zero V
		return zero, err
	}
	return v.(V), nil
}

// Peek returns the cached value without fetching. Expired entries report a miss.
func (c *Cache[V]) Peek(key string) (V, bool) {
	if e, ok := c.entries.load(key); ok && c.now().Before(e.expiresAt) {
		return e.value, true
	}
	var zero V
	return zero, false
}

// Put inserts a value directly, stamped with the cache TTL.
func (c *Cache[V]) Put(key string, value V) {
	c.entries.store(key, entry[V]{value: value, expiresAt: c.now().Add(c.ttl)})
}

// Invalidate removes a key.
func (c *Cache[V]) Invalidate(key string) {
	c.entries.delete(key)
}
