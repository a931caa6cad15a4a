// Package mock provides a recording, map-backed test double for cache.Cache.
//
// Entries never expire; the ttl passed to Set is recorded for assertions.
// Setting GetErr or SetErr makes the corresponding calls fail, which lets
// tests exercise the "cache unavailable" degradation paths.
package mock

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/MrWong99/speakeval/pkg/cache"
)

var _ cache.Cache = (*Cache)(nil)

// SetCall records a single invocation of Set.
type SetCall struct {
	Key   string
	Value []byte
	TTL   time.Duration
}

// Cache is a mock implementation of cache.Cache.
type Cache struct {
	mu   sync.Mutex
	data map[string][]byte

	// GetErr, if non-nil, is returned by Get and Exists.
	GetErr error
	// SetErr, if non-nil, is returned by Set and nothing is stored.
	SetErr error
	// DeleteErr, if non-nil, is returned by Delete.
	DeleteErr error

	GetCalls    []string
	SetCalls    []SetCall
	DeleteCalls []string
}

// New returns an empty Cache.
func New() *Cache {
	return &Cache{data: make(map[string][]byte)}
}

// Get implements cache.Cache.
func (c *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.GetCalls = append(c.GetCalls, key)
	if c.GetErr != nil {
		return nil, false, c.GetErr
	}
	v, ok := c.data[key]
	return slices.Clone(v), ok, nil
}

// Set implements cache.Cache.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.SetCalls = append(c.SetCalls, SetCall{Key: key, Value: slices.Clone(value), TTL: ttl})
	if c.SetErr != nil {
		return c.SetErr
	}
	if c.data == nil {
		c.data = make(map[string][]byte)
	}
	c.data[key] = slices.Clone(value)
	return nil
}

// Delete implements cache.Cache.
func (c *Cache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.DeleteCalls = append(c.DeleteCalls, key)
	if c.DeleteErr != nil {
		return c.DeleteErr
	}
	delete(c.data, key)
	return nil
}

// Exists implements cache.Cache.
func (c *Cache) Exists(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.GetErr != nil {
		return false, c.GetErr
	}
	_, ok := c.data[key]
	return ok, nil
}

// Keys returns the stored keys, sorted.
func (c *Cache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.data))
	for k := range c.data {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// SetCallCount returns the number of Set calls recorded so far.
func (c *Cache) SetCallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.SetCalls)
}

// Reset clears recorded calls and stored data.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string][]byte)
	c.GetCalls = nil
	c.SetCalls = nil
	c.DeleteCalls = nil
}
