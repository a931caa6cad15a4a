// Command speakeval grades spoken Korean answers against expected answer
// texts.
//
// Usage:
//
//	speakeval eval  -config config.yaml -transcript "..." -answer "..."
//	speakeval batch -config config.yaml -in pairs.yaml -out results.jsonl
//	speakeval serve -config config.yaml
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrWong99/speakeval/internal/app"
	"github.com/MrWong99/speakeval/internal/config"
	"github.com/MrWong99/speakeval/internal/observe"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

const shutdownTimeout = 15 * time.Second

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		usage()
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch args[0] {
	case "eval":
		err = runEval(ctx, args[1:])
	case "batch":
		err = runBatch(ctx, args[1:])
	case "serve":
		err = runServe(ctx, args[1:])
	case "version":
		fmt.Println(version)
	case "-h", "-help", "--help", "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "speakeval: unknown command %q\n", args[0])
		usage()
		return 2
	}
	if err != nil {
		if errors.Is(err, errUsage) {
			return 2
		}
		fmt.Fprintf(os.Stderr, "speakeval: %v\n", err)
		return 1
	}
	return 0
}

var errUsage = errors.New("usage")

func usage() {
	fmt.Fprint(os.Stderr, `usage: speakeval <command> [flags]

commands:
  eval     evaluate a single transcript against an answer and print JSON
  batch    evaluate a YAML file of items and write JSON lines
  serve    run the HTTP evaluation API with health and metrics endpoints
  version  print the version
`)
}

// instance bundles what every command needs after start-up.
type instance struct {
	cfg      *config.Config
	app      *app.App
	level    *slog.LevelVar
	shutdown func(context.Context) error
}

// initTelemetry is swapped in tests.
var initTelemetry = observe.InitProvider

// setup loads the config, installs the logger and telemetry, and builds the
// application. Telemetry is shut down again when a later step fails.
func setup(ctx context.Context, configPath string) (_ *instance, err error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config file %q not found, copy configs/example.yaml to get started", configPath)
		}
		return nil, err
	}

	level := new(slog.LevelVar)
	level.Set(cfg.Server.LogLevel.Level())
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	otelShutdown, err := initTelemetry(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err == nil {
			return
		}
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if serr := otelShutdown(sctx); serr != nil {
			slog.Warn("telemetry shutdown failed", "err", serr)
		}
	}()

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	providers, err := buildProviders(cfg, reg)
	if err != nil {
		return nil, err
	}

	opts := []app.Option{app.WithLogger(logger), app.WithLevelVar(level)}
	c, closeCache, err := reg.CreateCache(ctx, cfg.Cache)
	if err != nil {
		return nil, err
	}
	if c != nil {
		opts = append(opts, app.WithCache(c))
	}
	if closeCache != nil {
		opts = append(opts, app.WithCloser(func() error { closeCache(); return nil }))
	}

	a, err := app.New(ctx, cfg, providers, opts...)
	if err != nil {
		if closeCache != nil {
			closeCache()
		}
		return nil, err
	}

	slog.Debug("speakeval started",
		"config", configPath,
		"version", version,
		"embeddings", cfg.Providers.Embeddings.Name,
		"cache", cfg.Cache.Backend,
	)
	return &instance{cfg: cfg, app: a, level: level, shutdown: otelShutdown}, nil
}

// close shuts the app down, then flushes telemetry.
func (rt *instance) close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return errors.Join(rt.app.Shutdown(ctx), rt.shutdown(ctx))
}
