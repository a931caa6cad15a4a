package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/speakeval/internal/app"
	"github.com/MrWong99/speakeval/internal/config"
	"github.com/MrWong99/speakeval/internal/evaluation"
	"github.com/MrWong99/speakeval/internal/observe"
	"github.com/MrWong99/speakeval/internal/report"
)

func newFlagSet(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	configPath := fs.String("config", "config.yaml", "path to the YAML configuration file")
	return fs, configPath
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	return nil
}

// ── eval ─────────────────────────────────────────────────────────────────────

func runEval(ctx context.Context, args []string) error {
	fs, configPath := newFlagSet("eval")
	transcript := fs.String("transcript", "", "recognised text of the learner's answer")
	answer := fs.String("answer", "", "expected answer text")
	noSpeech := fs.Bool("no-speech", false, "record that no speech was detected")
	timedOut := fs.Bool("timed-out", false, "record that transcription timed out")
	debug := fs.Bool("debug", false, "include the debug trace in the output")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *answer == "" {
		fmt.Fprintln(os.Stderr, "speakeval eval: -answer is required")
		fs.Usage()
		return errUsage
	}

	rt, err := setup(ctx, *configPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.close(); err != nil {
			slog.Warn("shutdown error", "err", err)
		}
	}()

	var ev evaluation.Evaluation
	switch {
	case *noSpeech:
		ev = rt.app.Pipeline().Silence(ctx, *answer, nil)
	case *timedOut:
		ev = rt.app.Pipeline().Timeout(ctx, *answer, nil)
	default:
		ev, err = rt.app.Evaluate(ctx, *transcript, *answer, nil)
		if err != nil {
			return err
		}
	}
	if !*debug {
		ev.Debug = evaluation.DebugInfo{}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(ev)
}

// ── batch ────────────────────────────────────────────────────────────────────

func runBatch(ctx context.Context, args []string) error {
	fs, configPath := newFlagSet("batch")
	in := fs.String("in", "", "YAML file with the items to evaluate")
	out := fs.String("out", "-", "JSON lines output file, - for stdout")
	concurrency := fs.Int("concurrency", app.DefaultConcurrency, "maximum evaluations in flight")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *in == "" {
		fmt.Fprintln(os.Stderr, "speakeval batch: -in is required")
		fs.Usage()
		return errUsage
	}

	items, err := app.LoadItemsFile(*in)
	if err != nil {
		return err
	}

	rt, err := setup(ctx, *configPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.close(); err != nil {
			slog.Warn("shutdown error", "err", err)
		}
	}()

	var sink report.Sink = report.NewWriterSink(os.Stdout)
	if *out != "-" {
		sink = report.NewFileSink(*out)
	}

	start := time.Now()
	recs, err := rt.app.EvaluateBatch(ctx, items, *concurrency, sink)
	if err != nil {
		return err
	}

	s := report.Summarize(recs)
	fmt.Fprintf(os.Stderr, "evaluated %d items in %s: %d correct, %d failed, mean weighted %.4f\n",
		s.Total, time.Since(start).Round(time.Millisecond), s.Correct, s.Failed, s.MeanScore)
	return nil
}

// ── serve ────────────────────────────────────────────────────────────────────

func runServe(ctx context.Context, args []string) error {
	fs, configPath := newFlagSet("serve")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	rt, err := setup(ctx, *configPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.close(); err != nil {
			slog.Warn("shutdown error", "err", err)
		}
	}()

	watcher, err := config.NewWatcher(*configPath, rt.app.ApplyConfig)
	if err != nil {
		return err
	}
	defer watcher.Stop()

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	rt.app.Register(mux)

	srv := &http.Server{
		Addr:              rt.cfg.Server.ListenAddr,
		Handler:           observe.Middleware(observe.DefaultMetrics())(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received, stopping")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	slog.Info("goodbye")
	return nil
}
