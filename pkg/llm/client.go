package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Config holds configuration for creating a completion client.
type Config struct {
	Provider       string  // "openai" (default) or "anthropic"
	Endpoint       string  // Base URL, e.g. "https://api.groq.com/openai/v1"
	Model          string  // Model name
	APIKey         string  // Optional for local endpoints
	EmbeddingModel string  // Embedding model name (OpenAI-compatible endpoints only)
	MaxTokens      int     // Completion token cap; 0 means provider default
	Temperature    float64 // Sampling temperature
}

// OpenAIClient talks to any OpenAI-compatible completion endpoint.
type OpenAIClient struct {
	client         *openai.Client
	model          string
	embeddingModel string
	maxTokens      int
	temperature    float64
	logger         *zap.Logger
}

// NewOpenAIClient creates a client for an OpenAI-compatible endpoint.
func NewOpenAIClient(cfg *Config, logger *zap.Logger) (*OpenAIClient, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = strings.TrimSuffix(cfg.Endpoint, "/")

	return &OpenAIClient{
		client:         openai.NewClientWithConfig(clientConfig),
		model:          cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
		maxTokens:      cfg.MaxTokens,
		temperature:    cfg.Temperature,
		logger:         logger.Named("llm"),
	}, nil
}

// Complete implements Client.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	c.logger.Debug("completion request",
		zap.String("model", c.model),
		zap.Int("prompt_len", len(prompt)))

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: float32(c.temperature),
		MaxTokens:   c.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		c.logger.Error("completion request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return "", ClassifyError(err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	c.logger.Info("completion request done",
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("elapsed", time.Since(start)))

	return resp.Choices[0].Message.Content, nil
}

// CreateEmbedding implements Client.
func (c *OpenAIClient) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	out, err := c.CreateEmbeddings(ctx, []string{input})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 || len(out[0]) == 0 {
		return nil, fmt.Errorf("no embedding in response")
	}
	return out[0], nil
}

// CreateEmbeddings implements Client.
func (c *OpenAIClient) CreateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error) {
	model := c.embeddingModel
	if model == "" {
		model = "text-embedding-3-small"
	}

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(model),
		Input: inputs,
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}

	embeddings := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		embeddings[i] = d.Embedding
	}
	return embeddings, nil
}

// Model implements Client.
func (c *OpenAIClient) Model() string {
	return c.model
}
