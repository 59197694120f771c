package llm

import (
	"fmt"

	"go.uber.org/zap"
)

// NewClient creates a completion client for the configured provider.
// The provider is a pluggable abstraction point: anything that can turn a
// prompt into text can sit behind it.
func NewClient(cfg *Config, logger *zap.Logger) (Client, error) {
	switch cfg.Provider {
	case "", "openai":
		return NewOpenAIClient(cfg, logger)
	case "anthropic":
		return NewAnthropicClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
