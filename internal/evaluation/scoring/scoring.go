// Package scoring combines the semantic, keyword, and phonetic axes into a
// single weighted score.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/MrWong99/speakeval/internal/evaluation/keyword"
	"github.com/MrWong99/speakeval/internal/evaluation/phonetic"
	"github.com/MrWong99/speakeval/internal/evaluation/semantic"
)

// Weight-sum tolerance accepted by [Weights.Validate].
const weightTolerance = 0.01

// ErrInvalidWeights is returned when weights are negative or do not sum to 1.
var ErrInvalidWeights = errors.New("scoring: invalid weights")

// Axis names one scoring dimension.
type Axis string

const (
	AxisSemantic Axis = "semantic"
	AxisKeyword  Axis = "keyword"
	AxisPhonetic Axis = "phonetic"
)

// Axes lists the scoring dimensions in tie-break order.
var Axes = []Axis{AxisSemantic, AxisKeyword, AxisPhonetic}

// Weights are the contributions of each axis to the weighted score.
type Weights struct {
	Semantic float64 `json:"semantic" yaml:"semantic"`
	Keyword  float64 `json:"keyword" yaml:"keyword"`
	Phonetic float64 `json:"phonetic" yaml:"phonetic"`
}

// DefaultWeights returns the 0.5 / 0.3 / 0.2 split.
func DefaultWeights() Weights {
	return Weights{Semantic: 0.5, Keyword: 0.3, Phonetic: 0.2}
}

// Sum returns the total of all weights.
func (w Weights) Sum() float64 {
	return w.Semantic + w.Keyword + w.Phonetic
}

// Validate checks that every weight is finite and not negative and that the
// weights sum to 1 within ±0.01.
func (w Weights) Validate() error {
	for _, v := range []float64{w.Semantic, w.Keyword, w.Phonetic} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite weight in %+v", ErrInvalidWeights, w)
		}
	}
	if w.Semantic < 0 || w.Keyword < 0 || w.Phonetic < 0 {
		return fmt.Errorf("%w: negative weight in %+v", ErrInvalidWeights, w)
	}
	if sum := w.Sum(); !(sum >= 1-weightTolerance && sum <= 1+weightTolerance) {
		return fmt.Errorf("%w: weights must sum to 1.0, got %.4f", ErrInvalidWeights, sum)
	}
	return nil
}

// Combine returns the weighted sum of the three axis scores rounded to four
// decimal places.
func (w Weights) Combine(semantic, keyword, phonetic float64) float64 {
	return Round4(semantic*w.Semantic + keyword*w.Keyword + phonetic*w.Phonetic)
}

// Scores holds one evaluation's axis scores and their weighted combination.
// Weighted is always derived through [Weights.Combine].
type Scores struct {
	Semantic float64 `json:"semantic"`
	Keyword  float64 `json:"keyword"`
	Phonetic float64 `json:"phonetic"`
	Weighted float64 `json:"weighted"`
}

// NewScores builds Scores from the axis values, deriving Weighted with w.
func NewScores(w Weights, semantic, keyword, phonetic float64) Scores {
	return Scores{
		Semantic: semantic,
		Keyword:  keyword,
		Phonetic: phonetic,
		Weighted: w.Combine(semantic, keyword, phonetic),
	}
}

// Get returns the score of axis a.
func (s Scores) Get(a Axis) float64 {
	switch a {
	case AxisSemantic:
		return s.Semantic
	case AxisKeyword:
		return s.Keyword
	case AxisPhonetic:
		return s.Phonetic
	default:
		return math.NaN()
	}
}

// Weakest returns the axis with the lowest score. Ties go to the axis that
// comes first in [Axes].
func (s Scores) Weakest() Axis {
	weakest := Axes[0]
	for _, a := range Axes[1:] {
		if s.Get(a) < s.Get(weakest) {
			weakest = a
		}
	}
	return weakest
}

// Round4 rounds v to four decimal places.
func Round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// SemanticComparer produces the semantic axis. *semantic.Similarity
// implements it.
type SemanticComparer interface {
	Compare(ctx context.Context, transcript, answer string) (semantic.Result, error)
}

var _ SemanticComparer = (*semantic.Similarity)(nil)

// Option configures a [Scorer].
type Option func(*Scorer)

// WithWeights sets the initial weights. They are validated by [New].
func WithWeights(w Weights) Option {
	return func(s *Scorer) {
		s.weights = w
	}
}

// WithLogger sets the logger for per-axis debug output.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scorer) {
		s.logger = l
	}
}

// Scorer computes [Scores]. Weights may be replaced at runtime with
// SetWeights; all methods are safe for concurrent use.
type Scorer struct {
	semantic SemanticComparer
	logger   *slog.Logger

	mu      sync.RWMutex
	weights Weights
}

// New returns a Scorer using sem for the semantic axis.
func New(sem SemanticComparer, opts ...Option) (*Scorer, error) {
	if sem == nil {
		return nil, errors.New("scoring: semantic comparer must not be nil")
	}
	s := &Scorer{
		semantic: sem,
		logger:   slog.Default(),
		weights:  DefaultWeights(),
	}
	for _, o := range opts {
		o(s)
	}
	if err := s.weights.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Weights returns a copy of the current weights.
func (s *Scorer) Weights() Weights {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.weights
}

// SetWeights replaces the weights. Invalid weights are rejected with
// [ErrInvalidWeights] and the previous weights stay in effect.
func (s *Scorer) SetWeights(w Weights) error {
	if err := w.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.weights = w
	s.mu.Unlock()
	s.logger.Info("scoring: weights changed", "semantic", w.Semantic, "keyword", w.Keyword, "phonetic", w.Phonetic)
	return nil
}

// Outcome is the result of [Scorer.Score].
type Outcome struct {
	Scores   Scores          `json:"scores"`
	Semantic semantic.Result `json:"semantic"`
}

// Score evaluates transcript against answer. Both texts should already be
// normalized; answerKeywords should already be synonym-expanded. Only an
// unrecoverable semantic failure is returned as an error.
func (s *Scorer) Score(ctx context.Context, transcript, answer string, transcriptKeywords, answerKeywords []string) (Outcome, error) {
	sem, err := s.semantic.Compare(ctx, transcript, answer)
	if err != nil {
		return Outcome{}, fmt.Errorf("scoring: semantic axis: %w", err)
	}
	kw := keyword.Coverage(transcriptKeywords, answerKeywords)
	ph := phonetic.Score(transcript, answer)

	scores := NewScores(s.Weights(), sem.Value, kw, ph)
	s.logger.DebugContext(ctx, "scoring: axes computed",
		"semantic", sem.Value,
		"semantic_source", sem.Source,
		"keyword", kw,
		"phonetic", ph,
		"weighted", scores.Weighted,
	)
	return Outcome{Scores: scores, Semantic: sem}, nil
}
