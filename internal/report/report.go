// Package report persists batch evaluation results as append-only JSON
// lines, one record per evaluated item.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/MrWong99/speakeval/internal/evaluation"
	"github.com/MrWong99/speakeval/internal/evaluation/scoring"
)

// Record is a single line of a report.
type Record struct {
	Timestamp  time.Time              `json:"timestamp"`
	Index      int                    `json:"index"`
	Transcript string                 `json:"stt_text"`
	Answer     string                 `json:"answer_text"`
	Evaluation *evaluation.Evaluation `json:"evaluation,omitempty"`
	Error      string                 `json:"error,omitempty"`
}

// Sink receives report records. Implementations are safe for concurrent
// use.
type Sink interface {
	Append(rec Record) error
}

var (
	_ Sink = (*FileSink)(nil)
	_ Sink = (*WriterSink)(nil)
)

// FileSink appends records to a local file, creating it on first write.
type FileSink struct {
	mu   sync.Mutex
	path string
}

// NewFileSink returns a FileSink writing to path.
func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

// Append writes rec as one JSON line.
func (s *FileSink) Append(rec Record) error {
	data, err := encode(rec)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := openAppend(s.path)
	if err != nil {
		return fmt.Errorf("report: open file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("report: write: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("report: close: %w", err)
	}
	return nil
}

var openAppend = func(path string) (io.WriteCloser, error) {
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
}

// WriterSink writes records to an io.Writer such as stdout.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterSink returns a WriterSink over w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// Append writes rec as one JSON line.
func (s *WriterSink) Append(rec Record) error {
	data, err := encode(rec)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(data); err != nil {
		return fmt.Errorf("report: write: %w", err)
	}
	return nil
}

func encode(rec Record) ([]byte, error) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("report: marshal: %w", err)
	}
	return append(data, '\n'), nil
}

// Summary aggregates the records of one batch.
type Summary struct {
	Total     int            `json:"total"`
	Correct   int            `json:"correct"`
	Failed    int            `json:"failed"`
	ByVerdict map[string]int `json:"by_verdict"`
	MeanScore float64        `json:"mean_weighted"`
}

// Summarize folds recs into a Summary. Failed records are excluded from the
// mean.
func Summarize(recs []Record) Summary {
	s := Summary{Total: len(recs), ByVerdict: make(map[string]int)}
	var sum float64
	var scored int
	for _, r := range recs {
		if r.Evaluation == nil {
			s.Failed++
			s.ByVerdict[string(evaluation.VerdictError)]++
			continue
		}
		s.ByVerdict[string(r.Evaluation.Verdict)]++
		if r.Evaluation.IsCorrect {
			s.Correct++
		}
		sum += r.Evaluation.Scores.Weighted
		scored++
	}
	if scored > 0 {
		s.MeanScore = scoring.Round4(sum / float64(scored))
	}
	return s
}
