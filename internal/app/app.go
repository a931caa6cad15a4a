// Package app wires the evaluation subsystems into a running application.
//
// The App struct owns the full lifecycle: New builds the embedding failover
// chain, the semantic comparer, the scorer and the pipeline from the config;
// Evaluate and EvaluateBatch run evaluations and announce them; ApplyConfig
// applies hot-reloadable settings; Shutdown tears everything down in order.
//
// For testing, inject doubles via functional options (WithCache,
// WithPublisher, WithMetrics). When an option is not provided, New derives
// the component from the config.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/MrWong99/speakeval/internal/config"
	"github.com/MrWong99/speakeval/internal/evaluation"
	"github.com/MrWong99/speakeval/internal/evaluation/keyword"
	"github.com/MrWong99/speakeval/internal/evaluation/normalize"
	"github.com/MrWong99/speakeval/internal/evaluation/scoring"
	"github.com/MrWong99/speakeval/internal/evaluation/semantic"
	"github.com/MrWong99/speakeval/internal/events"
	"github.com/MrWong99/speakeval/internal/health"
	"github.com/MrWong99/speakeval/internal/observe"
	"github.com/MrWong99/speakeval/internal/resilience"
	"github.com/MrWong99/speakeval/pkg/cache"
	"github.com/MrWong99/speakeval/pkg/provider/embeddings"
)

// NamedProvider pairs an embedding provider with its config name.
type NamedProvider struct {
	Name     string
	Provider embeddings.Provider
}

// Providers holds the embedding providers built by main.go via the config
// registry. Fallbacks are tried in order when the primary fails.
type Providers struct {
	Embeddings NamedProvider
	Fallbacks  []NamedProvider
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers

	cache     cache.Cache
	publisher events.Publisher
	metrics   *observe.Metrics
	logger    *slog.Logger
	level     *slog.LevelVar

	embedder *resilience.EmbeddingsFallback
	pipeline *evaluation.Pipeline

	// closers are called in order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New.
type Option func(*App)

// WithCache sets the shared cache. Without it evaluations run uncached.
func WithCache(c cache.Cache) Option {
	return func(a *App) { a.cache = c }
}

// WithPublisher injects an event publisher instead of connecting to the
// configured NATS server.
func WithPublisher(p events.Publisher) Option {
	return func(a *App) { a.publisher = p }
}

// WithMetrics sets the metric instruments. Defaults to
// observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.logger = l }
}

// WithLevelVar lets hot reloads change the level of the handler behind the
// logger.
func WithLevelVar(v *slog.LevelVar) Option {
	return func(a *App) { a.level = v }
}

// WithCloser registers fn to run during Shutdown, after the app's own
// resources are released.
func WithCloser(fn func() error) Option {
	return func(a *App) { a.closers = append(a.closers, fn) }
}

// New creates an App by wiring all subsystems together.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil || providers.Embeddings.Provider == nil {
		return nil, fmt.Errorf("app: an embedding provider is required")
	}
	a := &App{cfg: cfg, providers: providers}
	for _, o := range opts {
		o(a)
	}
	// Closers from options release caller-owned resources; run them last.
	external := a.closers
	a.closers = nil

	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	if err := a.initEmbedder(); err != nil {
		return nil, fmt.Errorf("app: init embeddings: %w", err)
	}
	if err := a.initPipeline(); err != nil {
		return nil, fmt.Errorf("app: init pipeline: %w", err)
	}
	if err := a.initEvents(); err != nil {
		return nil, fmt.Errorf("app: init events: %w", err)
	}

	a.closers = append(a.closers, external...)
	a.logger.InfoContext(ctx, "app initialised",
		"embeddings", providers.Embeddings.Name,
		"model", a.embedder.ModelID(),
		"fallbacks", len(providers.Fallbacks),
		"cache", a.cache != nil,
		"threshold", a.pipeline.Threshold(),
	)
	return a, nil
}

func (a *App) initEmbedder() error {
	primary := a.providers.Embeddings
	cbCfg := resilience.FallbackConfig{CircuitBreaker: resilience.CircuitBreakerConfig{Logger: a.logger}}
	a.embedder = resilience.NewEmbeddingsFallback(primary.Provider, primary.Name, cbCfg, a.metrics)
	for _, fb := range a.providers.Fallbacks {
		if err := a.embedder.AddFallback(fb.Name, fb.Provider); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) initPipeline() error {
	ev := a.cfg.Evaluation

	sem, err := semantic.New(a.embedder,
		semantic.WithCache(a.cache),
		semantic.WithTTL(a.cfg.Cache.EmbeddingTTL),
		semantic.WithLogger(a.logger),
	)
	if err != nil {
		return err
	}
	scorer, err := scoring.New(sem,
		scoring.WithWeights(ev.EffectiveWeights()),
		scoring.WithLogger(a.logger),
	)
	if err != nil {
		return err
	}

	var normOpts []normalize.Option
	if ev.Normalizer.Aggressive {
		normOpts = append(normOpts, normalize.WithAggressive())
	}

	opts := []evaluation.Option{
		evaluation.WithNormalizer(normalize.New(normOpts...)),
		evaluation.WithExtractor(extractorFor(ev.KeywordExtractor, ev.KeywordMinLength)),
		evaluation.WithExpander(keyword.NewExpander(ev.Synonyms)),
		evaluation.WithThreshold(ev.EffectiveThreshold()),
		evaluation.WithKeywordTTL(a.cfg.Cache.KeywordTTL),
		evaluation.WithLogger(a.logger),
		evaluation.WithMetrics(a.metrics),
	}
	if a.cache != nil {
		opts = append(opts, evaluation.WithCache(a.cache))
	}
	a.pipeline, err = evaluation.New(scorer, opts...)
	return err
}

func extractorFor(name string, minLength int) keyword.Extractor {
	if name == config.ExtractorParticle {
		return keyword.NewParticleStripper(minLength)
	}
	return keyword.NewBasic(minLength)
}

func (a *App) initEvents() error {
	if a.publisher != nil {
		return nil
	}
	if a.cfg.Events.NATSURL == "" {
		a.publisher = events.Nop{}
		return nil
	}
	p, err := events.Connect(a.cfg.Events.NATSURL, a.cfg.Events.SubjectPrefix,
		events.WithLogger(a.logger),
		events.WithMetrics(a.metrics),
	)
	if err != nil {
		return err
	}
	a.publisher = p
	return nil
}

// Pipeline returns the evaluation pipeline.
func (a *App) Pipeline() *evaluation.Pipeline {
	return a.pipeline
}

// Evaluate runs one evaluation and publishes it. Publishing failures are
// logged and do not affect the result.
func (a *App) Evaluate(ctx context.Context, transcript, answer string, metadata map[string]any) (evaluation.Evaluation, error) {
	ev, err := a.pipeline.Execute(ctx, transcript, answer, metadata)
	if err != nil {
		return ev, err
	}
	a.publish(ctx, ev)
	return ev, nil
}

func (a *App) publish(ctx context.Context, ev evaluation.Evaluation) {
	if err := a.publisher.PublishCompleted(ctx, ev); err != nil {
		a.logger.WarnContext(ctx, "failed to publish evaluation event",
			"evaluation_id", ev.ID, "err", err)
	}
}

// Health returns the probe handler: readiness checks the embedding chain,
// the cache if configured, and the provider breakers.
func (a *App) Health() *health.Handler {
	checkers := []health.Checker{
		health.EmbeddingsChecker(a.embedder),
		health.BreakerChecker("breakers", a.embedder.States),
	}
	if a.cache != nil {
		checkers = append(checkers, health.CacheChecker(a.cache))
	}
	return health.New(checkers...)
}

// ApplyConfig applies the hot-reloadable differences between old and new.
// Settings that need a restart are reported in the log and left untouched.
func (a *App) ApplyConfig(old, new *config.Config) {
	d := config.Diff(old, new)
	if d.LogLevelChanged && a.level != nil {
		a.level.Set(d.NewLogLevel.Level())
		a.logger.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.WeightsChanged {
		if err := a.pipeline.Scorer().SetWeights(d.NewWeights); err != nil {
			a.logger.Warn("weights rejected, keeping previous", "err", err)
		} else {
			a.logger.Info("weights changed", "weights", d.NewWeights)
		}
	}
	if d.ThresholdChanged {
		if err := a.pipeline.SetThreshold(d.NewThreshold); err != nil {
			a.logger.Warn("threshold rejected, keeping previous", "err", err)
		} else {
			a.logger.Info("threshold changed", "threshold", d.NewThreshold)
		}
	}
	if d.RestartRequired {
		a.logger.Warn("config changes detected that require a restart to take effect")
	}
}

// Shutdown tears down all subsystems. It respects the context deadline: if
// ctx expires before all closers finish, remaining closers are skipped and
// the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		a.logger.Info("shutting down", "closers", len(a.closers))

		a.publisher.Close()

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				a.logger.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				a.logger.Warn("closer error", "index", i, "err", err)
			}
		}
		a.logger.Info("shutdown complete")
	})
	return shutdownErr
}
