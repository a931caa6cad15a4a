// Package evaluation grades a learner's spoken answer against the expected
// answer text.
//
// A [Pipeline] normalizes both texts, extracts keywords (expanding the
// answer side through the synonym table, optionally cached), scores the pair
// on the semantic, keyword and phonetic axes, judges the weighted score
// against a threshold and selects a feedback message. The result is an
// immutable [Evaluation] carrying a debug trace of every intermediate value.
//
// Sub-packages hold the individual stages:
//
//   - normalize: text cleanup and Hangul helpers
//   - keyword: extraction, synonym expansion and coverage
//   - phonetic: jamo and syllable edit-distance similarity
//   - semantic: embedding cosine similarity with caching
//   - scoring: axis weights and the multi-axis scorer
//   - feedback: the feedback rule table
package evaluation

import (
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/speakeval/internal/evaluation/feedback"
	"github.com/MrWong99/speakeval/internal/evaluation/phonetic"
	"github.com/MrWong99/speakeval/internal/evaluation/scoring"
	"github.com/MrWong99/speakeval/internal/evaluation/semantic"
)

// DefaultThreshold is the weighted score at or above which an answer is
// judged correct.
const DefaultThreshold = 0.6

// DefaultKeywordTTL is how long expanded answer keywords stay cached.
const DefaultKeywordTTL = time.Hour

// debugKeywordLimit caps the answer keywords echoed in [DebugInfo].
const debugKeywordLimit = 10

// Judge reports whether weighted reaches threshold.
func Judge(weighted, threshold float64) bool {
	return weighted >= threshold
}

// Verdict labels an evaluation outcome in metrics, logs and events.
type Verdict string

const (
	VerdictCorrect   Verdict = "correct"
	VerdictIncorrect Verdict = "incorrect"
	VerdictNoSpeech  Verdict = "no_speech"
	VerdictTimeout   Verdict = "timeout"
	VerdictError     Verdict = "error"
)

// PreprocessingResult holds both texts before and after normalization and
// the keywords extracted from each. AnswerKeywords are synonym-expanded.
type PreprocessingResult struct {
	Transcript           string   `json:"stt_text"`
	Answer               string   `json:"answer_text"`
	NormalizedTranscript string   `json:"normalized_stt"`
	NormalizedAnswer     string   `json:"normalized_answer"`
	TranscriptKeywords   []string `json:"stt_keywords"`
	AnswerKeywords       []string `json:"answer_keywords"`

	// KeywordsFromCache is set when AnswerKeywords were served by the cache.
	KeywordsFromCache bool `json:"keywords_from_cache"`
}

// Evaluation is the result of one pipeline run. It is never mutated after
// [Pipeline.Execute] returns it.
type Evaluation struct {
	ID                   string         `json:"id"`
	Verdict              Verdict        `json:"verdict"`
	NormalizedTranscript string         `json:"normalized_stt"`
	NormalizedAnswer     string         `json:"normalized_answer"`
	Scores               scoring.Scores `json:"scores"`
	IsCorrect            bool           `json:"is_correct"`
	Feedback             string         `json:"feedback"`
	Debug                DebugInfo      `json:"debug_info"`
	CreatedAt            time.Time      `json:"created_at"`
}

// DebugInfo records how an [Evaluation] was reached.
type DebugInfo struct {
	Preprocessing PreprocessingDebug `json:"preprocessing"`
	Scores        scoring.Scores     `json:"scores"`
	Weights       scoring.Weights    `json:"weights"`
	Threshold     float64            `json:"threshold"`
	Semantic      semantic.Result    `json:"semantic"`
	Phonetic      *phonetic.Report   `json:"phonetic,omitempty"`
	Analysis      *feedback.Analysis `json:"analysis,omitempty"`
	CorrelationID string             `json:"correlation_id,omitempty"`
	Metadata      map[string]any     `json:"metadata,omitempty"`
}

// PreprocessingDebug is the preprocessing part of [DebugInfo]. The answer
// keyword list is capped.
type PreprocessingDebug struct {
	TranscriptKeywords   []string `json:"stt_keywords"`
	AnswerKeywords       []string `json:"answer_keywords"`
	NormalizedTranscript string   `json:"normalized_stt"`
	NormalizedAnswer     string   `json:"normalized_answer"`
	KeywordsFromCache    bool     `json:"keywords_from_cache"`
}

func newID() string {
	return uuid.NewString()
}

func verdictOf(correct bool) Verdict {
	if correct {
		return VerdictCorrect
	}
	return VerdictIncorrect
}
