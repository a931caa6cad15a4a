package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MrWong99/speakeval/internal/app"
	"github.com/MrWong99/speakeval/internal/config"
	"github.com/MrWong99/speakeval/pkg/cache"
	"github.com/MrWong99/speakeval/pkg/cache/memory"
	"github.com/MrWong99/speakeval/pkg/cache/postgres"
	"github.com/MrWong99/speakeval/pkg/provider/embeddings"
	ollamaembed "github.com/MrWong99/speakeval/pkg/provider/embeddings/ollama"
	oaembed "github.com/MrWong99/speakeval/pkg/provider/embeddings/openai"
)

// registerBuiltinProviders wires the built-in embedding providers and cache
// backends into reg.
func registerBuiltinProviders(reg *config.Registry) {
	// ── Embeddings ────────────────────────────────────────────────────────────

	reg.RegisterEmbeddings("openai", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		var opts []oaembed.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaembed.WithBaseURL(entry.BaseURL))
		}
		if org := entry.OptString("organization"); org != "" {
			opts = append(opts, oaembed.WithOrganization(org))
		}
		timeout, err := entry.OptDuration("timeout")
		if err != nil {
			return nil, err
		}
		if timeout > 0 {
			opts = append(opts, oaembed.WithTimeout(timeout))
		}
		dims, err := entry.OptInt("dimensions")
		if err != nil {
			return nil, err
		}
		if dims > 0 {
			opts = append(opts, oaembed.WithDimensions(dims))
		}
		retries, err := entry.OptInt("max_retries")
		if err != nil {
			return nil, err
		}
		if _, set := entry.Options["max_retries"]; set {
			opts = append(opts, oaembed.WithMaxRetries(retries))
		}
		return oaembed.New(entry.APIKey, entry.Model, opts...)
	})

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterEmbeddings("ollama", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		var opts []ollamaembed.Option
		timeout, err := entry.OptDuration("timeout")
		if err != nil {
			return nil, err
		}
		if timeout > 0 {
			opts = append(opts, ollamaembed.WithTimeout(timeout))
		}
		dims, err := entry.OptInt("dimensions")
		if err != nil {
			return nil, err
		}
		if dims > 0 {
			opts = append(opts, ollamaembed.WithDimensions(dims))
		}
		if ka := entry.OptString("keep_alive"); ka != "" {
			opts = append(opts, ollamaembed.WithKeepAlive(ka))
		}
		return ollamaembed.New(entry.BaseURL, entry.Model, opts...)
	})

	// ── Cache ─────────────────────────────────────────────────────────────────

	reg.RegisterCache(config.CacheMemory, func(_ context.Context, cfg config.CacheConfig) (cache.Cache, func(), error) {
		return memory.New(cfg.CleanupInterval), nil, nil
	})

	reg.RegisterCache(config.CachePostgres, func(ctx context.Context, cfg config.CacheConfig) (cache.Cache, func(), error) {
		store, err := postgres.NewStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		purgeCtx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			defer close(done)
			store.RunPurger(purgeCtx, cfg.CleanupInterval, func(err error) {
				slog.Warn("cache purge failed", "err", err)
			})
		}()
		return store, func() {
			cancel()
			<-done
			store.Close()
		}, nil
	})

	for _, name := range reg.EmbeddingsNames() {
		slog.Debug("registered provider", "kind", "embeddings", "name", name)
	}
}

// buildProviders instantiates the primary and fallback embedding providers
// named in cfg using the registry.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	primary, err := reg.CreateEmbeddings(cfg.Providers.Embeddings)
	if err != nil {
		return nil, fmt.Errorf("create embeddings provider: %w", err)
	}
	ps := &app.Providers{Embeddings: app.NamedProvider{Name: cfg.Providers.Embeddings.Name, Provider: primary}}
	slog.Info("provider created", "kind", "embeddings", "name", cfg.Providers.Embeddings.Name, "model", primary.ModelID())

	for i, entry := range cfg.Providers.EmbeddingsFallback {
		p, err := reg.CreateEmbeddings(entry)
		if err != nil {
			return nil, fmt.Errorf("create embeddings fallback %d: %w", i, err)
		}
		// Names label breakers and metrics, so they must be unique.
		name := fmt.Sprintf("%s#%d", entry.Name, i+1)
		ps.Fallbacks = append(ps.Fallbacks, app.NamedProvider{Name: name, Provider: p})
		slog.Info("provider created", "kind", "embeddings-fallback", "name", name, "model", p.ModelID())
	}
	return ps, nil
}
