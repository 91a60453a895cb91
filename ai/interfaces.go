package ai

import (
	"context"

	"github.com/poiesic/docqa/core"
)

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)

	// ModelID identifies the embedding function. Persisted vectors are only
	// reused when the model id matches.
	ModelID() string
}

// Generator produces a natural-language answer from a grounded prompt.
// Implementations must be thread-safe for concurrent use.
//
// Errors wrap core.ErrLLMUnavailable, core.ErrRateLimited or core.ErrLLMTimeout.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Generation, error)
}

// Request is a single grounded generation call.
type Request struct {
	System      string
	Prompt      string
	Evidence    []*core.Chunk // chunks the prompt was built from
	MaxTokens   int
	Temperature float64
}

// Generation is the model output for a Request.
type Generation struct {
	Text       string
	TokensUsed int
}

// Provider aggregates AI services for convenient initialization and lifecycle management.
type Provider interface {
	// Embedder returns the text embedding service. Never nil.
	Embedder() Embedder

	// Generator returns the answer generator, or nil when no language model is configured.
	Generator() Generator

	// Close releases resources held by the provider and its services.
	Close() error
}
