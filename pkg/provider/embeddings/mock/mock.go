// Package mock provides a recording test double for embeddings.Provider.
//
// Set EmbedFunc to compute vectors from the input (RuneBag gives equal
// vectors for equal texts and similar vectors for similar texts), or set
// EmbedResult to return the same canned vector for every call:
//
//	p := &mock.Provider{
//	    EmbedFunc:       mock.RuneBag(64),
//	    DimensionsValue: 64,
//	    ModelIDValue:    "test-embed",
//	}
package mock

import (
	"context"
	"hash/fnv"
	"slices"
	"sync"

	"github.com/MrWong99/speakeval/pkg/provider/embeddings"
)

var _ embeddings.Provider = (*Provider)(nil)

// EmbedCall records a single invocation of Embed.
type EmbedCall struct {
	Ctx  context.Context
	Text string
}

// EmbedBatchCall records a single invocation of EmbedBatch.
type EmbedBatchCall struct {
	Ctx   context.Context
	Texts []string
}

// Provider is a mock implementation of embeddings.Provider.
type Provider struct {
	mu sync.Mutex

	// EmbedFunc, when set, computes the result of Embed and of every element
	// of EmbedBatch. It takes precedence over EmbedResult and EmbedBatchResult.
	EmbedFunc func(text string) ([]float32, error)

	// EmbedResult and EmbedErr are returned by Embed when EmbedFunc is nil.
	EmbedResult []float32
	EmbedErr    error

	// EmbedBatchResult and EmbedBatchErr are returned by EmbedBatch when
	// EmbedFunc is nil. A nil EmbedBatchResult yields one nil vector per text.
	EmbedBatchResult [][]float32
	EmbedBatchErr    error

	DimensionsValue int
	ModelIDValue    string

	EmbedCalls      []EmbedCall
	EmbedBatchCalls []EmbedBatchCall
}

// Embed records the call and returns the configured result.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	p.EmbedCalls = append(p.EmbedCalls, EmbedCall{Ctx: ctx, Text: text})
	fn, res, err := p.EmbedFunc, p.EmbedResult, p.EmbedErr
	p.mu.Unlock()

	if fn != nil {
		return fn(text)
	}
	return res, err
}

// EmbedBatch records the call and returns the configured result.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	p.mu.Lock()
	p.EmbedBatchCalls = append(p.EmbedBatchCalls, EmbedBatchCall{Ctx: ctx, Texts: slices.Clone(texts)})
	fn, res, err := p.EmbedFunc, p.EmbedBatchResult, p.EmbedBatchErr
	p.mu.Unlock()

	if fn != nil {
		out := make([][]float32, len(texts))
		for i, t := range texts {
			v, err := fn(t)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}
	if err != nil {
		return nil, err
	}
	if res != nil {
		return res, nil
	}
	return make([][]float32, len(texts)), nil
}

// Dimensions returns DimensionsValue.
func (p *Provider) Dimensions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.DimensionsValue
}

// ModelID returns ModelIDValue.
func (p *Provider) ModelID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ModelIDValue
}

// EmbedCallCount returns the number of Embed calls recorded so far.
func (p *Provider) EmbedCallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.EmbedCalls)
}

// Reset clears all recorded calls.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.EmbedCalls = nil
	p.EmbedBatchCalls = nil
}

// RuneBag returns an embedding function that counts runes into dims buckets.
// Equal texts map to equal vectors, texts sharing most runes map to close
// vectors, and the empty text maps to the zero vector.
func RuneBag(dims int) func(string) ([]float32, error) {
	return func(text string) ([]float32, error) {
		vec := make([]float32, dims)
		h := fnv.New32a()
		for _, r := range text {
			h.Reset()
			_, _ = h.Write([]byte(string(r)))
			vec[h.Sum32()%uint32(dims)]++
		}
		return vec, nil
	}
}
