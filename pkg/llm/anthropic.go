package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"
)

// AnthropicClient is an alternate generation backend. It supports
// completions only; embedding requests report an error so callers fall
// back to lexical retrieval.
type AnthropicClient struct {
	client      *anthropic.Client
	model       string
	maxTokens   int
	temperature float64
	logger      *zap.Logger
}

// NewAnthropicClient creates an Anthropic-backed completion client.
func NewAnthropicClient(cfg *Config, logger *zap.Logger) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 2048
	}

	return &AnthropicClient{
		client:      anthropic.NewClient(cfg.APIKey),
		model:       cfg.Model,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
		logger:      logger.Named("llm.anthropic"),
	}, nil
}

// Complete implements Client.
func (c *AnthropicClient) Complete(ctx context.Context, prompt string) (string, error) {
	temperature := float32(c.temperature)

	start := time.Now()
	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:       anthropic.Model(c.model),
		MaxTokens:   c.maxTokens,
		Temperature: &temperature,
		Messages: []anthropic.Message{
			{Role: anthropic.RoleUser, Content: []anthropic.MessageContent{
				{Type: "text", Text: &prompt},
			}},
		},
	})
	if err != nil {
		c.logger.Error("completion request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return "", ClassifyError(err)
	}

	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != nil {
			c.logger.Info("completion request done",
				zap.Duration("elapsed", time.Since(start)))
			return *block.Text, nil
		}
	}
	return "", fmt.Errorf("no text content in response")
}

// CreateEmbedding implements Client.
func (c *AnthropicClient) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	return nil, fmt.Errorf("embeddings not supported by anthropic provider")
}

// CreateEmbeddings implements Client.
func (c *AnthropicClient) CreateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error) {
	return nil, fmt.Errorf("embeddings not supported by anthropic provider")
}

// Model implements Client.
func (c *AnthropicClient) Model() string {
	return c.model
}
