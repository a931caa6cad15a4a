// Package memory provides an in-process cache.Cache backed by
// github.com/patrickmn/go-cache.
package memory

import (
	"context"
	"slices"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/MrWong99/speakeval/pkg/cache"
)

var _ cache.Cache = (*Cache)(nil)

// DefaultCleanupInterval is how often expired entries are purged when New is
// called with a non-positive interval.
const DefaultCleanupInterval = 10 * time.Minute

// Cache is an in-process cache.Cache. Values are copied on the way in and on
// the way out so callers cannot alias stored bytes.
type Cache struct {
	c *gocache.Cache
}

// New returns an empty Cache that purges expired entries every
// cleanupInterval.
func New(cleanupInterval time.Duration) *Cache {
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}
	return &Cache{c: gocache.New(gocache.NoExpiration, cleanupInterval)}
}

// Get implements cache.Cache.
func (m *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(v.([]byte)), true, nil
}

// Set implements cache.Cache.
func (m *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.c.Set(key, slices.Clone(value), expiry(ttl))
	return nil
}

// Delete implements cache.Cache.
func (m *Cache) Delete(_ context.Context, key string) error {
	m.c.Delete(key)
	return nil
}

// Exists implements cache.Cache.
func (m *Cache) Exists(_ context.Context, key string) (bool, error) {
	_, ok := m.c.Get(key)
	return ok, nil
}

// Len returns the number of stored entries, possibly including expired
// entries that have not been purged yet.
func (m *Cache) Len() int {
	return m.c.ItemCount()
}

// Flush removes every entry.
func (m *Cache) Flush() {
	m.c.Flush()
}

func expiry(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return gocache.NoExpiration
	}
	return ttl
}
