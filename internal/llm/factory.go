package llm

import (
	"context"
	"fmt"
)

// Config holds LLM provider configuration.
type Config struct {
	// Provider is one of "openai", "anthropic", "gemini" or "mock".
	Provider string

	OpenAI    OpenAIConfig
	Anthropic AnthropicConfig
	Gemini    GeminiConfig
}

// OpenAIConfig holds OpenAI-specific configuration.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string // optional, for compatible APIs
}

// AnthropicConfig holds Anthropic-specific configuration.
type AnthropicConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// GeminiConfig holds Gemini-specific configuration.
type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// DefaultConfig returns a Config with default models.
func DefaultConfig() Config {
	return Config{
		Provider:  "openai",
		OpenAI:    OpenAIConfig{Model: "gpt-4o-mini"},
		Anthropic: AnthropicConfig{Model: "claude-haiku-4-5"},
		Gemini:    GeminiConfig{Model: "gemini-2.0-flash"},
	}
}

// NewProvider creates the configured Provider. When rec is non-nil the
// provider is wrapped so each call is recorded.
func NewProvider(ctx context.Context, cfg Config, rec Recorder) (Provider, error) {
	var (
		base Provider
		err  error
	)
	switch cfg.Provider {
	case "openai", "":
		base, err = NewOpenAIProvider(cfg.OpenAI)
	case "anthropic":
		base, err = NewAnthropicProvider(cfg.Anthropic)
	case "gemini":
		base, err = NewGeminiProvider(ctx, cfg.Gemini)
	case "mock":
		base = NewMockProvider()
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s provider: %w", cfg.Provider, err)
	}
	if rec == nil {
		return base, nil
	}
	return WithLogging(base, rec), nil
}
