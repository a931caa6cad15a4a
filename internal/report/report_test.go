package report_test

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/MrWong99/speakeval/internal/evaluation"
	"github.com/MrWong99/speakeval/internal/evaluation/scoring"
	"github.com/MrWong99/speakeval/internal/report"
)

func readLines(t *testing.T, path string) []report.Record {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	var recs []report.Record
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r report.Record
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			t.Fatalf("line %q: %v", sc.Text(), err)
		}
		recs = append(recs, r)
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	return recs
}

func evaluated(verdict evaluation.Verdict, weighted float64) *evaluation.Evaluation {
	return &evaluation.Evaluation{
		ID:        "ev",
		Verdict:   verdict,
		IsCorrect: verdict == evaluation.VerdictCorrect,
		Scores:    scoring.Scores{Weighted: weighted},
	}
}

func TestFileSink_AppendsLines(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "results.jsonl")
	sink := report.NewFileSink(path)

	if err := sink.Append(report.Record{Index: 0, Transcript: "사과", Answer: "사과", Evaluation: evaluated(evaluation.VerdictCorrect, 1)}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := sink.Append(report.Record{Index: 1, Answer: "배", Error: "embedding failed"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	recs := readLines(t, path)
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	if recs[0].Evaluation == nil || recs[0].Evaluation.Verdict != evaluation.VerdictCorrect {
		t.Errorf("record 0 = %+v", recs[0])
	}
	if recs[1].Evaluation != nil || recs[1].Error != "embedding failed" {
		t.Errorf("record 1 = %+v", recs[1])
	}
	if recs[0].Timestamp.IsZero() {
		t.Error("timestamp not stamped")
	}
}

func TestFileSink_Concurrent(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "results.jsonl")
	sink := report.NewFileSink(path)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sink.Append(report.Record{Index: i, Answer: "사과"}); err != nil {
				t.Errorf("Append(%d): %v", i, err)
			}
		}()
	}
	wg.Wait()

	if recs := readLines(t, path); len(recs) != 20 {
		t.Errorf("got %d records, want 20", len(recs))
	}
}

func TestFileSink_BadPath(t *testing.T) {
	t.Parallel()
	sink := report.NewFileSink(filepath.Join(t.TempDir(), "missing", "dir", "out.jsonl"))
	if err := sink.Append(report.Record{}); err == nil {
		t.Error("want error for missing directory")
	}
}

func TestWriterSink(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	sink := report.NewWriterSink(&buf)
	if err := sink.Append(report.Record{Index: 3, Answer: "사과"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if n := bytes.Count(buf.Bytes(), []byte("\n")); n != 1 {
		t.Errorf("wrote %d lines, want 1", n)
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"answer_text":"사과"`)) {
		t.Errorf("output = %s", buf.String())
	}
}

func TestSummarize(t *testing.T) {
	t.Parallel()
	recs := []report.Record{
		{Evaluation: evaluated(evaluation.VerdictCorrect, 0.9)},
		{Evaluation: evaluated(evaluation.VerdictCorrect, 0.7)},
		{Evaluation: evaluated(evaluation.VerdictIncorrect, 0.2)},
		{Error: "boom"},
	}
	s := report.Summarize(recs)
	if s.Total != 4 || s.Correct != 2 || s.Failed != 1 {
		t.Errorf("summary = %+v", s)
	}
	if s.ByVerdict["correct"] != 2 || s.ByVerdict["incorrect"] != 1 || s.ByVerdict["error"] != 1 {
		t.Errorf("by verdict = %v", s.ByVerdict)
	}
	if s.MeanScore != 0.6 {
		t.Errorf("mean = %v, want 0.6", s.MeanScore)
	}

	if empty := report.Summarize(nil); empty.Total != 0 || empty.MeanScore != 0 {
		t.Errorf("empty summary = %+v", empty)
	}
}
