// Package config holds the configuration schema, the YAML loader, the
// provider registry and the hot-reload watcher of the evaluator.
package config

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/MrWong99/speakeval/internal/evaluation/scoring"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Level maps l to a slog level. Unknown and empty levels map to Info.
func (l LogLevel) Level() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// CacheBackend selects the cache implementation.
type CacheBackend string

const (
	CacheNone     CacheBackend = "none"
	CacheMemory   CacheBackend = "memory"
	CachePostgres CacheBackend = "postgres"
)

// IsValid reports whether b is a recognised backend.
func (b CacheBackend) IsValid() bool {
	switch b {
	case CacheNone, CacheMemory, CachePostgres:
		return true
	}
	return false
}

// Keyword extractor names.
const (
	ExtractorBasic    = "basic"
	ExtractorParticle = "particle"
)

// Defaults applied by [LoadFromReader] to unset fields.
const (
	DefaultListenAddr      = ":9090"
	DefaultEmbeddingTTL    = 24 * time.Hour
	DefaultKeywordTTL      = time.Hour
	DefaultCleanupInterval = 10 * time.Minute
	DefaultThreshold       = 0.6
	DefaultMinLength       = 2
	DefaultSubjectPrefix   = "speakeval"
)

// Config is the root configuration, usually loaded with [Load].
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Providers  ProvidersConfig  `yaml:"providers"`
	Cache      CacheConfig      `yaml:"cache"`
	Evaluation EvaluationConfig `yaml:"evaluation"`
	Events     EventsConfig     `yaml:"events"`
}

// ServerConfig configures the probe and metrics listener of `serve`.
type ServerConfig struct {
	ListenAddr string   `yaml:"listen_addr"`
	LogLevel   LogLevel `yaml:"log_level"`
}

// ProvidersConfig selects the embedding providers. Fallbacks serve the same
// model as the primary and are tried in order when it fails.
type ProvidersConfig struct {
	Embeddings         ProviderEntry   `yaml:"embeddings"`
	EmbeddingsFallback []ProviderEntry `yaml:"embeddings_fallback"`
}

// ProviderEntry configures one provider. Name selects the factory in the
// [Registry].
type ProviderEntry struct {
	Name    string         `yaml:"name"`
	APIKey  string         `yaml:"api_key"`
	BaseURL string         `yaml:"base_url"`
	Model   string         `yaml:"model"`
	Options map[string]any `yaml:"options"`
}

// OptString returns Options[key] if it is a string.
func (e ProviderEntry) OptString(key string) string {
	s, _ := e.Options[key].(string)
	return s
}

// OptInt returns Options[key] as an int. YAML integers and numeric strings
// are accepted.
func (e ProviderEntry) OptInt(key string) (int, error) {
	switch v := e.Options[key].(type) {
	case nil:
		return 0, nil
	case int:
		return v, nil
	case float64:
		return int(v), nil
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("option %q: %w", key, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("option %q: unsupported type %T", key, v)
	}
}

// OptDuration returns Options[key] parsed with time.ParseDuration.
func (e ProviderEntry) OptDuration(key string) (time.Duration, error) {
	s := e.OptString(key)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("option %q: %w", key, err)
	}
	return d, nil
}

// CacheConfig configures the shared cache.
type CacheConfig struct {
	Backend         CacheBackend  `yaml:"backend"`
	PostgresDSN     string        `yaml:"postgres_dsn"`
	EmbeddingTTL    time.Duration `yaml:"embedding_ttl"`
	KeywordTTL      time.Duration `yaml:"keyword_ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// EvaluationConfig holds the grading policy. Threshold and Weights are hot
// reloadable.
type EvaluationConfig struct {
	Threshold        *float64            `yaml:"threshold"`
	Weights          *scoring.Weights    `yaml:"weights"`
	Normalizer       NormalizerConfig    `yaml:"normalizer"`
	KeywordMinLength int                 `yaml:"keyword_min_length"`
	KeywordExtractor string              `yaml:"keyword_extractor"`
	Synonyms         map[string][]string `yaml:"synonyms"`
}

// EffectiveThreshold returns the configured threshold or [DefaultThreshold].
func (c EvaluationConfig) EffectiveThreshold() float64 {
	if c.Threshold == nil {
		return DefaultThreshold
	}
	return *c.Threshold
}

// EffectiveWeights returns the configured weights or the scoring defaults.
func (c EvaluationConfig) EffectiveWeights() scoring.Weights {
	if c.Weights == nil {
		return scoring.DefaultWeights()
	}
	return *c.Weights
}

// NormalizerConfig selects the normalizer mode.
type NormalizerConfig struct {
	Aggressive bool `yaml:"aggressive"`
}

// EventsConfig configures evaluation event publishing. An empty NATSURL
// disables it.
type EventsConfig struct {
	NATSURL       string `yaml:"nats_url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

func (c *Config) applyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = DefaultListenAddr
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = LogInfo
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = CacheMemory
	}
	if c.Cache.EmbeddingTTL == 0 {
		c.Cache.EmbeddingTTL = DefaultEmbeddingTTL
	}
	if c.Cache.KeywordTTL == 0 {
		c.Cache.KeywordTTL = DefaultKeywordTTL
	}
	if c.Cache.CleanupInterval == 0 {
		c.Cache.CleanupInterval = DefaultCleanupInterval
	}
	if c.Evaluation.KeywordMinLength == 0 {
		c.Evaluation.KeywordMinLength = DefaultMinLength
	}
	if c.Evaluation.KeywordExtractor == "" {
		c.Evaluation.KeywordExtractor = ExtractorBasic
	}
	if c.Events.SubjectPrefix == "" {
		c.Events.SubjectPrefix = DefaultSubjectPrefix
	}
}
