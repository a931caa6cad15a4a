// Package semantic measures how close in meaning a transcript is to an answer
// by comparing sentence embeddings with cosine similarity.
//
// The answer side of a comparison is cached: answers repeat across learners
// and attempts while transcripts rarely do. The cache key is derived from the
// model identifier and the text, so a cached vector is always exactly the
// vector the provider would return.
package semantic

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/MrWong99/speakeval/pkg/cache"
	"github.com/MrWong99/speakeval/pkg/provider/embeddings"
)

// DefaultTTL is how long cached answer embeddings live.
const DefaultTTL = 24 * time.Hour

// KeyPrefix prefixes every embedding cache key.
const KeyPrefix = "embedding:"

var (
	// ErrEmbeddingFailed wraps provider failures that could not be recovered.
	ErrEmbeddingFailed = errors.New("semantic: embedding failed")

	// ErrDimensionMismatch is returned when two non-zero vectors differ in
	// length.
	ErrDimensionMismatch = errors.New("semantic: embedding dimension mismatch")
)

// Source says where the answer embedding of a [Result] came from.
type Source string

const (
	SourceProvider Source = "provider"
	SourceCache    Source = "cache"
	// SourceFallback marks a result computed by the uncached retry after the
	// cached path failed.
	SourceFallback Source = "fallback"
)

// Result is a similarity value tagged with how it was obtained.
type Result struct {
	Value  float64 `json:"value"`
	Source Source  `json:"source"`
	// Degraded is set when the cache failed or the fallback path was used.
	// The value is still exact.
	Degraded bool `json:"degraded"`
}

// Option configures a [Similarity].
type Option func(*Similarity)

// WithCache enables caching of answer embeddings in c. A nil c disables it.
func WithCache(c cache.Cache) Option {
	return func(s *Similarity) {
		s.cache = c
	}
}

// WithTTL sets the lifetime of cached embeddings.
func WithTTL(ttl time.Duration) Option {
	return func(s *Similarity) {
		s.ttl = ttl
	}
}

// WithLogger sets the logger used for degraded-path warnings.
func WithLogger(l *slog.Logger) Option {
	return func(s *Similarity) {
		s.logger = l
	}
}

// Similarity computes cosine similarity between texts using an embedding
// provider. It holds no per-call state and is safe for concurrent use.
type Similarity struct {
	provider embeddings.Provider
	cache    cache.Cache
	ttl      time.Duration
	logger   *slog.Logger
}

// New returns a [Similarity] backed by provider.
func New(provider embeddings.Provider, opts ...Option) (*Similarity, error) {
	if provider == nil {
		return nil, errors.New("semantic: provider must not be nil")
	}
	s := &Similarity{
		provider: provider,
		ttl:      DefaultTTL,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// ModelID returns the identifier of the underlying embedding model.
func (s *Similarity) ModelID() string {
	return s.provider.ModelID()
}

// CacheKey returns the cache key of text's embedding under the current model.
func (s *Similarity) CacheKey(text string) string {
	sum := md5.Sum([]byte(s.provider.ModelID() + ":" + text))
	return KeyPrefix + hex.EncodeToString(sum[:])
}

// Embed returns the embedding of text without consulting the cache. The
// empty text embeds to the zero vector of the provider's dimension.
func (s *Similarity) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return make([]float32, s.provider.Dimensions()), nil
	}
	vec, err := s.provider.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)
	}
	return vec, nil
}

// Calculate returns the cosine similarity of text1 and text2, embedding both
// directly.
func (s *Similarity) Calculate(ctx context.Context, text1, text2 string) (float64, error) {
	v1, err := s.Embed(ctx, text1)
	if err != nil {
		return 0, err
	}
	v2, err := s.Embed(ctx, text2)
	if err != nil {
		return 0, err
	}
	return Cosine(v1, v2)
}

// CalculateCached returns the cosine similarity of text1 and text2, reading
// and populating the cache for text2's embedding. Cache failures are logged
// and bypassed; provider failures are returned.
func (s *Similarity) CalculateCached(ctx context.Context, text1, text2 string) (Result, error) {
	v2, res, err := s.cachedEmbed(ctx, text2)
	if err != nil {
		return Result{}, err
	}
	v1, err := s.Embed(ctx, text1)
	if err != nil {
		return Result{}, err
	}
	res.Value, err = Cosine(v1, v2)
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

// Compare runs CalculateCached and, if it fails, retries once with Calculate.
// Only a failure of the retry is returned.
func (s *Similarity) Compare(ctx context.Context, text1, text2 string) (Result, error) {
	res, err := s.CalculateCached(ctx, text1, text2)
	if err == nil {
		return res, nil
	}
	s.logger.WarnContext(ctx, "semantic: cached similarity failed, retrying uncached", "err", err)

	v, retryErr := s.Calculate(ctx, text1, text2)
	if retryErr != nil {
		return Result{}, retryErr
	}
	return Result{Value: v, Source: SourceFallback, Degraded: true}, nil
}

func (s *Similarity) cachedEmbed(ctx context.Context, text string) ([]float32, Result, error) {
	if s.cache == nil || text == "" {
		vec, err := s.Embed(ctx, text)
		return vec, Result{Source: SourceProvider}, err
	}

	key := s.CacheKey(text)
	res := Result{Source: SourceProvider}

	vec, ok, err := cache.GetVector(ctx, s.cache, key)
	switch {
	case err != nil:
		s.logger.WarnContext(ctx, "semantic: cache read failed, embedding directly", "key", key, "err", err)
		res.Degraded = true
	case ok:
		return vec, Result{Source: SourceCache}, nil
	}

	vec, err = s.Embed(ctx, text)
	if err != nil {
		return nil, Result{}, err
	}
	if err := cache.SetVector(ctx, s.cache, key, vec, s.ttl); err != nil {
		s.logger.WarnContext(ctx, "semantic: cache write failed", "key", key, "err", err)
		res.Degraded = true
	}
	return vec, res, nil
}

// Cosine returns dot(a, b) / (|a| * |b|), or 0 when either vector has zero
// norm. Vectors of different lengths with non-zero norms are an error.
func Cosine(a, b []float32) (float64, error) {
	na, nb := norm(a), norm(b)
	if na == 0 || nb == 0 {
		return 0, nil
	}
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (na * nb), nil
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
