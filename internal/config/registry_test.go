package config_test

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/MrWong99/speakeval/internal/config"
	"github.com/MrWong99/speakeval/pkg/cache"
	cachemock "github.com/MrWong99/speakeval/pkg/cache/mock"
	"github.com/MrWong99/speakeval/pkg/provider/embeddings"
	embmock "github.com/MrWong99/speakeval/pkg/provider/embeddings/mock"
)

func TestRegistry_Embeddings(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	var got config.ProviderEntry
	reg.RegisterEmbeddings("ollama", func(e config.ProviderEntry) (embeddings.Provider, error) {
		got = e
		return &embmock.Provider{}, nil
	})
	reg.RegisterEmbeddings("broken", func(config.ProviderEntry) (embeddings.Provider, error) {
		return nil, errors.New("no key")
	})

	if _, err := reg.CreateEmbeddings(config.ProviderEntry{Name: "ollama", Model: "bge-m3"}); err != nil {
		t.Fatalf("CreateEmbeddings: %v", err)
	}
	if got.Model != "bge-m3" {
		t.Errorf("factory received %+v", got)
	}
	if _, err := reg.CreateEmbeddings(config.ProviderEntry{Name: "cohere"}); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("unregistered: err = %v, want ErrProviderNotRegistered", err)
	}
	if _, err := reg.CreateEmbeddings(config.ProviderEntry{Name: "broken"}); err == nil || errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("broken factory: err = %v", err)
	}
	if names := reg.EmbeddingsNames(); !slices.Equal(names, []string{"broken", "ollama"}) {
		t.Errorf("EmbeddingsNames = %v", names)
	}
}

func TestRegistry_Cache(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	closed := false
	reg.RegisterCache(config.CacheMemory, func(context.Context, config.CacheConfig) (cache.Cache, func(), error) {
		return cachemock.New(), func() { closed = true }, nil
	})
	ctx := context.Background()

	c, closeFn, err := reg.CreateCache(ctx, config.CacheConfig{Backend: config.CacheMemory})
	if err != nil || c == nil || closeFn == nil {
		t.Fatalf("CreateCache(memory) = %v, %v", c, err)
	}
	closeFn()
	if !closed {
		t.Error("close function not propagated")
	}

	c, closeFn, err = reg.CreateCache(ctx, config.CacheConfig{Backend: config.CacheNone})
	if err != nil || c != nil || closeFn != nil {
		t.Errorf("CreateCache(none) = %v, %v", c, err)
	}

	if _, _, err := reg.CreateCache(ctx, config.CacheConfig{Backend: config.CachePostgres}); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("CreateCache(postgres) err = %v, want ErrProviderNotRegistered", err)
	}
}
