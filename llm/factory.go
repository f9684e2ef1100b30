package llm

import (
	"context"

	"github.com/m4xw311/scribe/config"
	"github.com/m4xw311/scribe/errors"
)

// NewFromConfig builds the client named by cfg.LLMClient. An empty name
// selects the mock client.
func NewFromConfig(ctx context.Context, cfg *config.Config) (LLMClient, error) {
	switch cfg.LLMClient {
	case "openai":
		return NewOpenAILLMClient(ctx, cfg)
	case "anthropic":
		return NewAnthropicLLMClient(ctx, cfg)
	case "bedrock":
		return NewBedrockLLMClient(ctx, cfg)
	case "gemini":
		return NewGeminiLLMClient(ctx, cfg)
	case "ollama":
		return NewOllamaLLMClient(ctx, cfg)
	case "mock", "":
		return &MockLLMClient{}, nil
	default:
		return nil, errors.New("unknown llm client '%s'", cfg.LLMClient)
	}
}
