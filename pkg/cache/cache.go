// Package cache defines the key-value cache the evaluator uses to amortise
// expensive recomputation (answer embeddings, expanded answer keywords).
//
// A cache is never a correctness dependency. Every cached value is derived
// from its key and can be recomputed, so implementations may use
// last-write-wins semantics and callers treat any cache error as a miss.
//
// Implementations must be safe for concurrent use.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by helpers that must distinguish absence from an
// empty value. Cache.Get itself reports absence through its boolean result.
var ErrNotFound = errors.New("cache: not found")

// Cache is a byte-oriented key-value store with per-entry expiry.
type Cache interface {
	// Get returns the value stored under key. ok is false when the key is
	// absent or expired.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Set stores value under key for ttl. A non-positive ttl means the entry
	// does not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether key is present and not expired.
	Exists(ctx context.Context, key string) (bool, error)
}

// VectorCache is implemented by caches that store embeddings natively rather
// than as encoded bytes.
type VectorCache interface {
	GetVector(ctx context.Context, key string) (vec []float32, ok bool, err error)
	SetVector(ctx context.Context, key string, vec []float32, ttl time.Duration) error
}

// GetJSON loads the value under key and decodes it into v. It returns
// ErrNotFound when the key is absent.
func GetJSON(ctx context.Context, c Cache, key string, v any) error {
	raw, ok, err := c.Get(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("cache: decode %q: %w", key, err)
	}
	return nil
}

// SetJSON encodes v as JSON and stores it under key.
func SetJSON(ctx context.Context, c Cache, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache: encode %q: %w", key, err)
	}
	return c.Set(ctx, key, raw, ttl)
}

// GetVector returns the embedding stored under key, using the native
// representation when c implements VectorCache and JSON otherwise.
func GetVector(ctx context.Context, c Cache, key string) ([]float32, bool, error) {
	if vc, ok := c.(VectorCache); ok {
		return vc.GetVector(ctx, key)
	}
	var vec []float32
	err := GetJSON(ctx, c, key, &vec)
	switch {
	case errors.Is(err, ErrNotFound):
		return nil, false, nil
	case err != nil:
		return nil, false, err
	}
	return vec, true, nil
}

// SetVector stores an embedding under key, using the native representation
// when c implements VectorCache and JSON otherwise.
func SetVector(ctx context.Context, c Cache, key string, vec []float32, ttl time.Duration) error {
	if vc, ok := c.(VectorCache); ok {
		return vc.SetVector(ctx, key, vec, ttl)
	}
	return SetJSON(ctx, c, key, vec, ttl)
}
