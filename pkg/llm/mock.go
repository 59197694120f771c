package llm

import "context"

// MockClient is a configurable mock for testing pipeline components.
// Set the function fields to control behavior in tests.
type MockClient struct {
	// CompleteFunc is called when Complete is invoked.
	// If nil, returns empty string and nil error.
	CompleteFunc func(ctx context.Context, prompt string) (string, error)

	// CreateEmbeddingsFunc is called for both embedding entry points.
	// If nil, returns nil and nil error.
	CreateEmbeddingsFunc func(ctx context.Context, inputs []string) ([][]float32, error)

	// ModelName is returned by Model. Defaults to "mock-model".
	ModelName string

	// Call tracking for verification.
	CompleteCalls  int
	EmbeddingCalls int

	// Prompts records every prompt passed to Complete.
	Prompts []string
}

// NewMockClient creates a mock with defaults.
func NewMockClient() *MockClient {
	return &MockClient{ModelName: "mock-model"}
}

// Complete implements Client.
func (m *MockClient) Complete(ctx context.Context, prompt string) (string, error) {
	m.CompleteCalls++
	m.Prompts = append(m.Prompts, prompt)
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, prompt)
	}
	return "", nil
}

// CreateEmbedding implements Client.
func (m *MockClient) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	out, err := m.CreateEmbeddings(ctx, []string{input})
	if err != nil || len(out) == 0 {
		return nil, err
	}
	return out[0], nil
}

// CreateEmbeddings implements Client.
func (m *MockClient) CreateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error) {
	m.EmbeddingCalls++
	if m.CreateEmbeddingsFunc != nil {
		return m.CreateEmbeddingsFunc(ctx, inputs)
	}
	return nil, nil
}

// Model implements Client.
func (m *MockClient) Model() string {
	if m.ModelName == "" {
		return "mock-model"
	}
	return m.ModelName
}

// Reset clears call tracking.
func (m *MockClient) Reset() {
	m.CompleteCalls = 0
	m.EmbeddingCalls = 0
	m.Prompts = nil
}
