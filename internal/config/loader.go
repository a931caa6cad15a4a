package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// KnownEmbeddingProviders lists the built-in embedding provider names.
var KnownEmbeddingProviders = []string{"openai", "ollama"}

// Load reads the YAML file at path. A .env file next to it, if present, is
// loaded first without overriding variables already set, and ${VAR}
// references in the YAML are expanded from the environment.
func Load(path string) (*Config, error) {
	if err := LoadDotEnv(filepath.Join(filepath.Dir(path), ".env")); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}
	cfg, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: %q: %w", path, err)
	}
	return cfg, nil
}

// LoadDotEnv loads the given .env files into the process environment.
// Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		err := godotenv.Load(p)
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			continue
		}
		return fmt.Errorf("config: load %q: %w", p, err)
	}
	return nil
}

// LoadFromReader decodes, defaults and validates a YAML config read from r.
func LoadFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	return parse(data)
}

func parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.applyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cfg and joins every failure into one error.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Providers.Embeddings.Name == "" {
		errs = append(errs, errors.New("providers.embeddings.name is required"))
	}
	warnUnknownProvider("providers.embeddings", cfg.Providers.Embeddings.Name)
	for i, fb := range cfg.Providers.EmbeddingsFallback {
		field := fmt.Sprintf("providers.embeddings_fallback[%d]", i)
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", field))
		}
		warnUnknownProvider(field, fb.Name)
	}

	if !cfg.Cache.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("cache.backend %q is invalid; valid values: none, memory, postgres", cfg.Cache.Backend))
	}
	if cfg.Cache.Backend == CachePostgres && cfg.Cache.PostgresDSN == "" {
		errs = append(errs, errors.New("cache.postgres_dsn is required when cache.backend is postgres"))
	}
	for _, d := range []struct {
		field string
		v     time.Duration
	}{
		{"cache.embedding_ttl", cfg.Cache.EmbeddingTTL},
		{"cache.keyword_ttl", cfg.Cache.KeywordTTL},
		{"cache.cleanup_interval", cfg.Cache.CleanupInterval},
	} {
		if d.v < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", d.field))
		}
	}

	ev := cfg.Evaluation
	if t := ev.EffectiveThreshold(); !(t >= 0 && t <= 1) {
		errs = append(errs, fmt.Errorf("evaluation.threshold %v is out of range [0, 1]", t))
	}
	if err := ev.EffectiveWeights().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("evaluation.weights: %w", err))
	}
	if ev.KeywordMinLength < 1 {
		errs = append(errs, fmt.Errorf("evaluation.keyword_min_length %d must be at least 1", ev.KeywordMinLength))
	}
	if ev.KeywordExtractor != ExtractorBasic && ev.KeywordExtractor != ExtractorParticle {
		slog.Warn("config: unknown keyword extractor, falling back to basic",
			"keyword_extractor", ev.KeywordExtractor)
	}

	return errors.Join(errs...)
}

func warnUnknownProvider(field, name string) {
	if name == "" || slices.Contains(KnownEmbeddingProviders, name) {
		return
	}
	slog.Warn("config: unknown embedding provider, it must be registered by the caller",
		"field", field, "name", name, "known", KnownEmbeddingProviders)
}
