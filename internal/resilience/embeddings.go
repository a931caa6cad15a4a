package resilience

import (
	"context"
	"fmt"

	"github.com/MrWong99/speakeval/internal/observe"
	"github.com/MrWong99/speakeval/pkg/provider/embeddings"
)

// EmbeddingsFallback is an [embeddings.Provider] that fails over from a
// primary provider to fallbacks serving the same model. ModelID and
// Dimensions come from the primary so cache keys stay stable across
// failover.
type EmbeddingsFallback struct {
	group   *FallbackGroup[embeddings.Provider]
	metrics *observe.Metrics
}

var _ embeddings.Provider = (*EmbeddingsFallback)(nil)

// NewEmbeddingsFallback wraps primary. A nil metrics disables request
// accounting.
func NewEmbeddingsFallback(primary embeddings.Provider, primaryName string, cfg FallbackConfig, metrics *observe.Metrics) *EmbeddingsFallback {
	return &EmbeddingsFallback{
		group:   NewFallbackGroup(primary, primaryName, cfg),
		metrics: metrics,
	}
}

// AddFallback registers p after the existing entries. Providers whose known
// vector length differs from the primary's are rejected, since their
// vectors cannot be compared with cached ones.
func (f *EmbeddingsFallback) AddFallback(name string, p embeddings.Provider) error {
	want, got := f.group.Primary().Dimensions(), p.Dimensions()
	if want > 0 && got > 0 && want != got {
		return fmt.Errorf("resilience: fallback %q has %d dimensions, primary has %d", name, got, want)
	}
	f.group.AddFallback(name, p)
	return nil
}

// States reports the breaker state of every provider by name.
func (f *EmbeddingsFallback) States() map[string]State {
	return f.group.States()
}

// Embed implements embeddings.Provider.
func (f *EmbeddingsFallback) Embed(ctx context.Context, text string) ([]float32, error) {
	return ExecuteWithResult(f.group, func(name string, p embeddings.Provider) ([]float32, error) {
		vec, err := p.Embed(ctx, text)
		f.record(ctx, name, "embed", err)
		return vec, err
	})
}

// EmbedBatch implements embeddings.Provider.
func (f *EmbeddingsFallback) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return ExecuteWithResult(f.group, func(name string, p embeddings.Provider) ([][]float32, error) {
		vecs, err := p.EmbedBatch(ctx, texts)
		f.record(ctx, name, "embed_batch", err)
		return vecs, err
	})
}

// Dimensions returns the primary's vector length.
func (f *EmbeddingsFallback) Dimensions() int {
	return f.group.Primary().Dimensions()
}

// ModelID returns the primary's model ID.
func (f *EmbeddingsFallback) ModelID() string {
	return f.group.Primary().ModelID()
}

func (f *EmbeddingsFallback) record(ctx context.Context, provider, kind string, err error) {
	if f.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
		f.metrics.RecordProviderError(ctx, provider, kind)
	}
	f.metrics.RecordProviderRequest(ctx, provider, kind, status)
}
