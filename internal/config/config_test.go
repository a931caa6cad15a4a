package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/speakeval/internal/config"
	"github.com/MrWong99/speakeval/internal/evaluation/scoring"
)

const fullYAML = `
server:
  listen_addr: ":8081"
  log_level: debug
providers:
  embeddings:
    name: ollama
    base_url: http://localhost:11434
    model: bge-m3
    options:
      timeout: 5s
      dimensions: 1024
  embeddings_fallback:
    - name: ollama
      base_url: http://backup:11434
      model: bge-m3
cache:
  backend: postgres
  postgres_dsn: postgres://localhost/speakeval
  embedding_ttl: 12h
  keyword_ttl: 30m
evaluation:
  threshold: 0.7
  weights: {semantic: 0.4, keyword: 0.4, phonetic: 0.2}
  normalizer: {aggressive: true}
  keyword_min_length: 3
  keyword_extractor: particle
  synonyms:
    사과: [애플, apple, 능금]
events:
  nats_url: nats://localhost:4222
  subject_prefix: school
`

func TestLoadFromReader_Full(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(fullYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.ListenAddr != ":8081" || cfg.Server.LogLevel != config.LogDebug {
		t.Errorf("server = %+v", cfg.Server)
	}
	emb := cfg.Providers.Embeddings
	if emb.Name != "ollama" || emb.Model != "bge-m3" {
		t.Errorf("embeddings = %+v", emb)
	}
	if d, err := emb.OptDuration("timeout"); err != nil || d != 5*time.Second {
		t.Errorf("OptDuration(timeout) = %v, %v", d, err)
	}
	if n, err := emb.OptInt("dimensions"); err != nil || n != 1024 {
		t.Errorf("OptInt(dimensions) = %d, %v", n, err)
	}
	if len(cfg.Providers.EmbeddingsFallback) != 1 {
		t.Errorf("fallbacks = %d, want 1", len(cfg.Providers.EmbeddingsFallback))
	}
	if cfg.Cache.Backend != config.CachePostgres || cfg.Cache.EmbeddingTTL != 12*time.Hour || cfg.Cache.KeywordTTL != 30*time.Minute {
		t.Errorf("cache = %+v", cfg.Cache)
	}
	if cfg.Cache.CleanupInterval != config.DefaultCleanupInterval {
		t.Errorf("cleanup_interval = %v, want default", cfg.Cache.CleanupInterval)
	}

	ev := cfg.Evaluation
	if ev.EffectiveThreshold() != 0.7 {
		t.Errorf("threshold = %v", ev.EffectiveThreshold())
	}
	if want := (scoring.Weights{Semantic: 0.4, Keyword: 0.4, Phonetic: 0.2}); ev.EffectiveWeights() != want {
		t.Errorf("weights = %+v, want %+v", ev.EffectiveWeights(), want)
	}
	if !ev.Normalizer.Aggressive || ev.KeywordMinLength != 3 || ev.KeywordExtractor != config.ExtractorParticle {
		t.Errorf("evaluation = %+v", ev)
	}
	if got := ev.Synonyms["사과"]; len(got) != 3 || got[2] != "능금" {
		t.Errorf("synonyms = %v", ev.Synonyms)
	}
	if cfg.Events.NATSURL != "nats://localhost:4222" || cfg.Events.SubjectPrefix != "school" {
		t.Errorf("events = %+v", cfg.Events)
	}
}

func TestLoadFromReader_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader("providers:\n  embeddings:\n    name: openai\n"))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Server.ListenAddr != config.DefaultListenAddr || cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("server defaults = %+v", cfg.Server)
	}
	if cfg.Cache.Backend != config.CacheMemory || cfg.Cache.EmbeddingTTL != 24*time.Hour || cfg.Cache.KeywordTTL != time.Hour {
		t.Errorf("cache defaults = %+v", cfg.Cache)
	}
	if cfg.Evaluation.EffectiveThreshold() != 0.6 || cfg.Evaluation.EffectiveWeights() != scoring.DefaultWeights() {
		t.Errorf("policy defaults = %v / %+v", cfg.Evaluation.EffectiveThreshold(), cfg.Evaluation.EffectiveWeights())
	}
	if cfg.Evaluation.KeywordMinLength != 2 || cfg.Evaluation.KeywordExtractor != config.ExtractorBasic {
		t.Errorf("keyword defaults = %+v", cfg.Evaluation)
	}
	if cfg.Events.SubjectPrefix != "speakeval" {
		t.Errorf("subject prefix = %q", cfg.Events.SubjectPrefix)
	}
}

func TestLoadFromReader_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		yaml    string
		wantSub string
	}{
		{"missing provider", "server:\n  log_level: info\n", "providers.embeddings.name is required"},
		{"bad log level", "server:\n  log_level: loud\nproviders:\n  embeddings: {name: openai}\n", "server.log_level"},
		{"weights sum", "providers:\n  embeddings: {name: openai}\nevaluation:\n  weights: {semantic: 0.5, keyword: 0.3, phonetic: 0.3}\n", "evaluation.weights"},
		{"threshold range", "providers:\n  embeddings: {name: openai}\nevaluation:\n  threshold: 1.5\n", "evaluation.threshold"},
		{"threshold nan", "providers:\n  embeddings: {name: openai}\nevaluation:\n  threshold: .nan\n", "evaluation.threshold"},
		{"weights nan", "providers:\n  embeddings: {name: openai}\nevaluation:\n  weights: {semantic: .nan, keyword: 0.5, phonetic: 0.5}\n", "evaluation.weights"},
		{"postgres without dsn", "providers:\n  embeddings: {name: openai}\ncache:\n  backend: postgres\n", "postgres_dsn"},
		{"bad backend", "providers:\n  embeddings: {name: openai}\ncache:\n  backend: redis\n", "cache.backend"},
		{"negative ttl", "providers:\n  embeddings: {name: openai}\ncache:\n  keyword_ttl: -1m\n", "cache.keyword_ttl"},
		{"unknown field", "providers:\n  embeddings: {name: openai}\nnpcs: []\n", "decode yaml"},
		{"fallback without name", "providers:\n  embeddings: {name: openai}\n  embeddings_fallback:\n    - model: x\n", "embeddings_fallback[0].name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.LoadFromReader(strings.NewReader(tt.yaml))
			if err == nil {
				t.Fatal("want error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q does not mention %q", err, tt.wantSub)
			}
		})
	}
}

func TestLoadFromReader_WeightsErrorIsTyped(t *testing.T) {
	t.Parallel()

	_, err := config.LoadFromReader(strings.NewReader(
		"providers:\n  embeddings: {name: openai}\nevaluation:\n  weights: {semantic: 1, keyword: 1, phonetic: 0}\n"))
	if !errors.Is(err, scoring.ErrInvalidWeights) {
		t.Errorf("err = %v, want ErrInvalidWeights", err)
	}
}

func TestLoad_ExpandsEnvAndDotEnv(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".env"), "SPEAKEVAL_TEST_MODEL=from-dotenv\n")
	writeFile(t, filepath.Join(dir, "config.yaml"), `
providers:
  embeddings:
    name: openai
    api_key: ${SPEAKEVAL_TEST_KEY}
    model: ${SPEAKEVAL_TEST_MODEL}
`)
	t.Setenv("SPEAKEVAL_TEST_KEY", "sk-test")
	t.Cleanup(func() { os.Unsetenv("SPEAKEVAL_TEST_MODEL") })

	cfg, err := config.Load(filepath.Join(dir, "config.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Providers.Embeddings.APIKey != "sk-test" {
		t.Errorf("api_key = %q, want sk-test", cfg.Providers.Embeddings.APIKey)
	}
	if cfg.Providers.Embeddings.Model != "from-dotenv" {
		t.Errorf("model = %q, want from-dotenv", cfg.Providers.Embeddings.Model)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want os.ErrNotExist", err)
	}
}

func TestLogLevel(t *testing.T) {
	t.Parallel()

	for _, l := range []config.LogLevel{config.LogDebug, config.LogInfo, config.LogWarn, config.LogError} {
		if !l.IsValid() {
			t.Errorf("%q not valid", l)
		}
	}
	if config.LogLevel("trace").IsValid() {
		t.Error("trace reported valid")
	}
	if config.LogWarn.Level().String() != "WARN" || config.LogLevel("").Level().String() != "INFO" {
		t.Error("Level mapping wrong")
	}
}

func TestProviderEntry_Options(t *testing.T) {
	t.Parallel()

	e := config.ProviderEntry{Options: map[string]any{
		"keep_alive": "5m",
		"dims":       "768",
		"bad":        []string{"x"},
		"timeout":    "soon",
	}}
	if e.OptString("keep_alive") != "5m" || e.OptString("missing") != "" {
		t.Error("OptString mismatch")
	}
	if n, err := e.OptInt("dims"); err != nil || n != 768 {
		t.Errorf("OptInt(dims) = %d, %v", n, err)
	}
	if _, err := e.OptInt("bad"); err == nil {
		t.Error("OptInt(bad): want error")
	}
	if _, err := e.OptDuration("timeout"); err == nil {
		t.Error("OptDuration(timeout): want error")
	}
	if d, err := e.OptDuration("missing"); err != nil || d != 0 {
		t.Errorf("OptDuration(missing) = %v, %v", d, err)
	}
}

func TestLoad_ExampleConfig(t *testing.T) {
	cfg, err := config.Load(filepath.Join("..", "..", "configs", "example.yaml"))
	if err != nil {
		t.Fatalf("example config does not load: %v", err)
	}
	if len(cfg.Providers.EmbeddingsFallback) != 1 || cfg.Evaluation.KeywordExtractor != config.ExtractorParticle {
		t.Errorf("example config = %+v", cfg)
	}
}
