package config

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/MrWong99/speakeval/pkg/cache"
	"github.com/MrWong99/speakeval/pkg/provider/embeddings"
)

// ErrProviderNotRegistered is returned when no factory is registered under
// the requested name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// EmbeddingsFactory builds an embedding provider from its configuration.
type EmbeddingsFactory func(ProviderEntry) (embeddings.Provider, error)

// CacheFactory builds a cache backend. The returned close function releases
// its resources and may be nil.
type CacheFactory func(ctx context.Context, cfg CacheConfig) (c cache.Cache, closeFn func(), err error)

// Registry maps provider and cache backend names to their constructors. It
// is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	embeddings map[string]EmbeddingsFactory
	caches     map[CacheBackend]CacheFactory
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		embeddings: make(map[string]EmbeddingsFactory),
		caches:     make(map[CacheBackend]CacheFactory),
	}
}

// RegisterEmbeddings registers factory under name, replacing any earlier
// registration.
func (r *Registry) RegisterEmbeddings(name string, factory EmbeddingsFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.embeddings[name] = factory
}

// RegisterCache registers factory for backend.
func (r *Registry) RegisterCache(backend CacheBackend, factory CacheFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.caches[backend] = factory
}

// CreateEmbeddings builds the provider registered under entry.Name.
func (r *Registry) CreateEmbeddings(entry ProviderEntry) (embeddings.Provider, error) {
	r.mu.RLock()
	factory, ok := r.embeddings[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: embeddings/%q", ErrProviderNotRegistered, entry.Name)
	}
	p, err := factory(entry)
	if err != nil {
		return nil, fmt.Errorf("config: create embeddings/%q: %w", entry.Name, err)
	}
	return p, nil
}

// CreateCache builds the backend selected by cfg.Backend. The none backend
// yields a nil cache without consulting the registry.
func (r *Registry) CreateCache(ctx context.Context, cfg CacheConfig) (cache.Cache, func(), error) {
	if cfg.Backend == CacheNone {
		return nil, nil, nil
	}
	r.mu.RLock()
	factory, ok := r.caches[cfg.Backend]
	r.mu.RUnlock()
	if !ok {
		return nil, nil, fmt.Errorf("%w: cache/%q", ErrProviderNotRegistered, cfg.Backend)
	}
	c, closeFn, err := factory(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("config: create cache/%q: %w", cfg.Backend, err)
	}
	return c, closeFn, nil
}

// EmbeddingsNames returns the registered provider names, sorted.
func (r *Registry) EmbeddingsNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.embeddings))
	for n := range r.embeddings {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
