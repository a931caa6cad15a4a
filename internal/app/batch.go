package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/MrWong99/speakeval/internal/evaluation"
	"github.com/MrWong99/speakeval/internal/report"
)

// DefaultConcurrency bounds EvaluateBatch when no limit is given.
const DefaultConcurrency = 4

// Item is one entry of a batch input file.
type Item struct {
	Transcript string         `yaml:"transcript" json:"transcript"`
	Answer     string         `yaml:"answer" json:"answer"`
	Metadata   map[string]any `yaml:"metadata,omitempty" json:"metadata,omitempty"`

	// NoSpeech marks items whose transcriber found no audio. They are
	// graded without calling the embedding provider.
	NoSpeech bool `yaml:"no_speech,omitempty" json:"no_speech,omitempty"`
}

// batchFile is the document layout of a batch input file.
type batchFile struct {
	Items []Item `yaml:"items"`
}

// LoadItems decodes a batch input document.
func LoadItems(r io.Reader) ([]Item, error) {
	var bf batchFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&bf); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("app: decode batch: %w", err)
	}
	for i, it := range bf.Items {
		if it.Answer == "" {
			return nil, fmt.Errorf("app: batch item %d: answer is required", i)
		}
	}
	return bf.Items, nil
}

// LoadItemsFile is [LoadItems] over the file at path.
func LoadItemsFile(path string) ([]Item, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("app: open batch: %w", err)
	}
	defer f.Close()
	return LoadItems(f)
}

// EvaluateBatch evaluates items with at most concurrency evaluations in
// flight and appends one record per item to sink, in completion order.
// Per-item evaluation failures are recorded, not returned; a sink failure
// or a cancelled ctx aborts the batch. The returned records are in input
// order.
func (a *App) EvaluateBatch(ctx context.Context, items []Item, concurrency int, sink report.Sink) ([]report.Record, error) {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	records := make([]report.Record, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, it := range items {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			rec := a.evaluateItem(gctx, i, it)
			records[i] = rec
			if sink == nil {
				return nil
			}
			return sink.Append(rec)
		})
	}
	if err := g.Wait(); err != nil {
		return records, fmt.Errorf("app: batch: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return records, fmt.Errorf("app: batch: %w", err)
	}

	s := report.Summarize(records)
	a.logger.Info("batch complete",
		"total", s.Total, "correct", s.Correct, "failed", s.Failed, "mean_weighted", s.MeanScore)
	return records, nil
}

func (a *App) evaluateItem(ctx context.Context, i int, it Item) report.Record {
	rec := report.Record{Index: i, Transcript: it.Transcript, Answer: it.Answer}

	var (
		ev  evaluation.Evaluation
		err error
	)
	if it.NoSpeech {
		ev = a.pipeline.Silence(ctx, it.Answer, it.Metadata)
		a.publish(ctx, ev)
	} else {
		ev, err = a.Evaluate(ctx, it.Transcript, it.Answer, it.Metadata)
	}
	if err != nil {
		a.logger.WarnContext(ctx, "batch item failed", "index", i, "err", err)
		rec.Error = err.Error()
		return rec
	}
	rec.Evaluation = &ev
	return rec
}
