// Package embeddings defines the Provider interface for sentence-embedding
// backends.
//
// The evaluator encodes a learner's transcript and the expected answer into
// dense float32 vectors and compares them by cosine similarity. Any service
// that maps text to a fixed-length vector can serve: a hosted API (OpenAI
// text-embedding-3) or a local model served by Ollama (bge-m3,
// nomic-embed-text).
//
// Implementations must be safe for concurrent use.
package embeddings

import "context"

// Provider is the abstraction over any text-embedding backend.
//
// All vectors returned by one Provider share the length reported by
// Dimensions. Vectors from providers with different ModelID values live in
// different spaces and must not be compared.
type Provider interface {
	// Embed returns the embedding of text, a slice of length Dimensions().
	// The text is passed through verbatim.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch embeds every element of texts in one call. The i-th result
	// corresponds to texts[i]. On error no partial result is returned.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the fixed vector length. Zero means the length is
	// not known until the first successful call.
	Dimensions() int

	// ModelID identifies the model. It is part of every embedding cache key.
	ModelID() string
}
