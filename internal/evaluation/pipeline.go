package evaluation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/MrWong99/speakeval/internal/evaluation/feedback"
	"github.com/MrWong99/speakeval/internal/evaluation/keyword"
	"github.com/MrWong99/speakeval/internal/evaluation/normalize"
	"github.com/MrWong99/speakeval/internal/evaluation/phonetic"
	"github.com/MrWong99/speakeval/internal/evaluation/scoring"
	"github.com/MrWong99/speakeval/internal/evaluation/semantic"
	"github.com/MrWong99/speakeval/internal/observe"
	"github.com/MrWong99/speakeval/pkg/cache"
)

// KeywordKeyPrefix prefixes every keyword cache key.
const KeywordKeyPrefix = "keywords:"

// Option configures a [Pipeline].
type Option func(*Pipeline)

// WithNormalizer replaces the default permissive normalizer.
func WithNormalizer(n *normalize.Normalizer) Option {
	return func(p *Pipeline) { p.normalizer = n }
}

// WithExtractor replaces the default whitespace keyword extractor.
func WithExtractor(e keyword.Extractor) Option {
	return func(p *Pipeline) { p.extractor = e }
}

// WithExpander replaces the default synonym expander.
func WithExpander(e *keyword.Expander) Option {
	return func(p *Pipeline) { p.expander = e }
}

// WithCache enables caching of expanded answer keywords.
func WithCache(c cache.Cache) Option {
	return func(p *Pipeline) { p.cache = c }
}

// WithKeywordTTL sets the lifetime of cached answer keywords.
func WithKeywordTTL(ttl time.Duration) Option {
	return func(p *Pipeline) { p.keywordTTL = ttl }
}

// WithThreshold sets the initial correctness threshold.
func WithThreshold(t float64) Option {
	return func(p *Pipeline) { p.threshold = t }
}

// WithFeedback replaces the default feedback generator.
func WithFeedback(g *feedback.Generator) Option {
	return func(p *Pipeline) { p.feedback = g }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithMetrics sets the metric instruments. Defaults to
// observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// Pipeline runs evaluations. It is safe for concurrent use; the only state
// shared between calls is the threshold, the scorer's weights and the cache.
type Pipeline struct {
	scorer     *scoring.Scorer
	normalizer *normalize.Normalizer
	extractor  keyword.Extractor
	expander   *keyword.Expander
	feedback   *feedback.Generator
	cache      cache.Cache
	keywordTTL time.Duration
	keywordFP  string
	logger     *slog.Logger
	metrics    *observe.Metrics

	mu        sync.RWMutex
	threshold float64
}

// New returns a Pipeline scoring with scorer.
func New(scorer *scoring.Scorer, opts ...Option) (*Pipeline, error) {
	if scorer == nil {
		return nil, errors.New("evaluation: scorer must not be nil")
	}
	p := &Pipeline{
		scorer:     scorer,
		keywordTTL: DefaultKeywordTTL,
		threshold:  DefaultThreshold,
	}
	for _, o := range opts {
		o(p)
	}
	if p.normalizer == nil {
		p.normalizer = normalize.New()
	}
	if p.extractor == nil {
		p.extractor = keyword.NewBasic(keyword.DefaultMinLength)
	}
	if p.expander == nil {
		p.expander = keyword.NewExpander(nil)
	}
	if p.feedback == nil {
		p.feedback = feedback.New()
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}
	if err := validThreshold(p.threshold); err != nil {
		return nil, err
	}
	p.keywordFP = extractorFingerprint(p.extractor) + "|" + p.expander.Fingerprint()
	return p, nil
}

// Scorer returns the scorer, so callers can adjust weights at runtime.
func (p *Pipeline) Scorer() *scoring.Scorer {
	return p.scorer
}

// Threshold returns the current correctness threshold.
func (p *Pipeline) Threshold() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.threshold
}

// SetThreshold replaces the correctness threshold. Values outside [0, 1]
// are rejected and the previous threshold is kept.
func (p *Pipeline) SetThreshold(t float64) error {
	if err := validThreshold(t); err != nil {
		return err
	}
	p.mu.Lock()
	p.threshold = t
	p.mu.Unlock()
	return nil
}

// validThreshold rejects anything outside [0, 1], NaN included.
func validThreshold(t float64) error {
	if !(t >= 0 && t <= 1) {
		return fmt.Errorf("evaluation: threshold %v outside [0, 1]", t)
	}
	return nil
}

// Preprocess normalizes both texts and extracts their keywords. Answer
// keywords are expanded with synonyms and cached when a cache is set. Cache
// failures are logged and never returned.
func (p *Pipeline) Preprocess(ctx context.Context, transcript, answer string) PreprocessingResult {
	nt := p.normalizer.Normalize(transcript)
	na := p.normalizer.Normalize(answer)

	answerKeywords, fromCache := p.answerKeywords(ctx, na)
	return PreprocessingResult{
		Transcript:           transcript,
		Answer:               answer,
		NormalizedTranscript: nt,
		NormalizedAnswer:     na,
		TranscriptKeywords:   p.extractor.Extract(nt),
		AnswerKeywords:       answerKeywords,
		KeywordsFromCache:    fromCache,
	}
}

// KeywordCacheKey returns the cache key of the expanded keywords of the
// normalized answer text. The key covers the extractor and synonym table, so
// processes with different keyword settings never share entries.
func (p *Pipeline) KeywordCacheKey(normalizedAnswer string) string {
	h := sha256.New()
	h.Write([]byte(p.keywordFP))
	h.Write([]byte{0})
	h.Write([]byte(normalizedAnswer))
	return KeywordKeyPrefix + hex.EncodeToString(h.Sum(nil))
}

func extractorFingerprint(e keyword.Extractor) string {
	if f, ok := e.(keyword.Fingerprinter); ok {
		return f.Fingerprint()
	}
	return fmt.Sprintf("%T", e)
}

func (p *Pipeline) answerKeywords(ctx context.Context, normalized string) ([]string, bool) {
	if p.cache == nil {
		return p.expander.Expand(p.extractor.Extract(normalized)), false
	}

	key := p.KeywordCacheKey(normalized)
	var cached []string
	err := cache.GetJSON(ctx, p.cache, key, &cached)
	switch {
	case err == nil && len(cached) > 0:
		p.metrics.RecordCacheLookup(ctx, "keywords", "hit")
		return cached, true
	case err == nil, errors.Is(err, cache.ErrNotFound):
		p.metrics.RecordCacheLookup(ctx, "keywords", "miss")
	default:
		p.metrics.RecordCacheLookup(ctx, "keywords", "error")
		p.logger.WarnContext(ctx, "evaluation: keyword cache read failed", "err", err)
	}

	kws := p.expander.Expand(p.extractor.Extract(normalized))
	if err := cache.SetJSON(ctx, p.cache, key, kws, p.keywordTTL); err != nil {
		p.logger.WarnContext(ctx, "evaluation: keyword cache write failed", "err", err)
	}
	return kws, false
}

// Execute evaluates transcript against answer. metadata is copied into the
// debug info unchanged. An empty transcript is a normal input and scores
// near zero. Only an embedding provider that fails on both the cached and
// the direct path yields an error.
func (p *Pipeline) Execute(ctx context.Context, transcript, answer string, metadata map[string]any) (Evaluation, error) {
	start := time.Now()
	ctx, span := observe.StartSpan(ctx, "evaluation.execute")
	p.metrics.ActiveEvaluations.Add(ctx, 1)
	defer p.metrics.ActiveEvaluations.Add(ctx, -1)

	stageCtx, stage := observe.StartStage(ctx, "preprocess")
	t0 := time.Now()
	pre := p.Preprocess(stageCtx, transcript, answer)
	p.metrics.RecordStage(ctx, "preprocess", time.Since(t0))
	stage.End()

	stageCtx, stage = observe.StartStage(ctx, "score")
	t0 = time.Now()
	out, err := p.scorer.Score(stageCtx, pre.NormalizedTranscript, pre.NormalizedAnswer,
		pre.TranscriptKeywords, pre.AnswerKeywords)
	p.metrics.RecordStage(ctx, "score", time.Since(t0))
	observe.EndSpan(stage, err)
	if err != nil {
		p.metrics.RecordEvaluation(ctx, string(VerdictError), time.Since(start))
		observe.EndSpan(span, err)
		return Evaluation{}, fmt.Errorf("evaluation: %w", err)
	}
	if out.Semantic.Source == semantic.SourceFallback {
		p.metrics.SemanticFallbacks.Add(ctx, 1)
	}

	threshold := p.Threshold()
	correct := Judge(out.Scores.Weighted, threshold)

	_, stage = observe.StartStage(ctx, "feedback")
	detail := p.feedback.Detailed(out.Scores, correct, pre.TranscriptKeywords, pre.AnswerKeywords,
		pre.NormalizedTranscript, pre.NormalizedAnswer)
	stage.End()

	report := phonetic.Accuracy(pre.NormalizedTranscript, pre.NormalizedAnswer)
	ev := Evaluation{
		ID:                   newID(),
		Verdict:              verdictOf(correct),
		NormalizedTranscript: pre.NormalizedTranscript,
		NormalizedAnswer:     pre.NormalizedAnswer,
		Scores:               out.Scores,
		IsCorrect:            correct,
		Feedback:             detail.Feedback,
		CreatedAt:            time.Now().UTC(),
		Debug: DebugInfo{
			Preprocessing: PreprocessingDebug{
				TranscriptKeywords:   pre.TranscriptKeywords,
				AnswerKeywords:       feedback.Cap(pre.AnswerKeywords, debugKeywordLimit),
				NormalizedTranscript: pre.NormalizedTranscript,
				NormalizedAnswer:     pre.NormalizedAnswer,
				KeywordsFromCache:    pre.KeywordsFromCache,
			},
			Scores:        out.Scores,
			Weights:       p.scorer.Weights(),
			Threshold:     threshold,
			Semantic:      out.Semantic,
			Phonetic:      &report,
			Analysis:      &detail.Analysis,
			CorrelationID: observe.CorrelationID(ctx),
			Metadata:      maps.Clone(metadata),
		},
	}

	for _, a := range scoring.Axes {
		p.metrics.RecordScore(ctx, string(a), out.Scores.Get(a))
	}
	p.metrics.RecordScore(ctx, "weighted", out.Scores.Weighted)
	p.metrics.RecordEvaluation(ctx, string(ev.Verdict), time.Since(start))
	span.End()

	p.logger.InfoContext(ctx, "evaluation complete",
		"id", ev.ID,
		"trace_id", ev.Debug.CorrelationID,
		"verdict", ev.Verdict,
		"weighted", ev.Scores.Weighted,
		"semantic_source", out.Semantic.Source,
		"keywords_from_cache", pre.KeywordsFromCache,
	)
	return ev, nil
}

// Silence returns the evaluation recorded when the transcriber found no
// speech in the learner's audio. All scores are zero.
func (p *Pipeline) Silence(ctx context.Context, answer string, metadata map[string]any) Evaluation {
	return p.empty(ctx, answer, metadata, VerdictNoSpeech, feedback.MsgNoSpeech)
}

// Timeout returns the evaluation recorded when transcription did not finish
// in time. All scores are zero.
func (p *Pipeline) Timeout(ctx context.Context, answer string, metadata map[string]any) Evaluation {
	return p.empty(ctx, answer, metadata, VerdictTimeout, feedback.MsgRecognitionSlow)
}

func (p *Pipeline) empty(ctx context.Context, answer string, metadata map[string]any, v Verdict, msg string) Evaluation {
	na := p.normalizer.Normalize(answer)
	scores := scoring.NewScores(p.scorer.Weights(), 0, 0, 0)
	p.metrics.RecordEvaluation(ctx, string(v), 0)
	return Evaluation{
		ID:               newID(),
		Verdict:          v,
		NormalizedAnswer: na,
		Scores:           scores,
		Feedback:         msg,
		CreatedAt:        time.Now().UTC(),
		Debug: DebugInfo{
			Preprocessing: PreprocessingDebug{NormalizedAnswer: na},
			Scores:        scores,
			Weights:       p.scorer.Weights(),
			Threshold:     p.Threshold(),
			CorrelationID: observe.CorrelationID(ctx),
			Metadata:      maps.Clone(metadata),
		},
	}
}
