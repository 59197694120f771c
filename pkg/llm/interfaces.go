// Package llm provides completion-service clients for the refinement and
// generation pipeline.
package llm

import "context"

// Client is the completion-service capability consumed by the refiner and
// the generation controller. Use this interface for dependency injection
// to enable mocking in tests.
type Client interface {
	// Complete sends a single-prompt request and returns the raw text
	// completion. Transport failures (non-2xx, timeout) are returned as
	// errors and are never retried at this layer.
	Complete(ctx context.Context, prompt string) (string, error)

	// CreateEmbedding generates an embedding vector for the input text.
	CreateEmbedding(ctx context.Context, input string) ([]float32, error)

	// CreateEmbeddings generates embeddings for multiple inputs.
	CreateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error)

	// Model returns the configured model name.
	Model() string
}

// Compile-time interface checks.
var (
	_ Client = (*OpenAIClient)(nil)
	_ Client = (*AnthropicClient)(nil)
	_ Client = (*MockClient)(nil)
)
