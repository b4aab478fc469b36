package llm

import (
	"context"

	"github.com/ppiankov/lexbrief/internal/model"
)

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Complete runs a single completion. Implementations never retry.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// CompletionRequest is one system + user prompt exchange
type CompletionRequest struct {
	System string
	Prompt string

	// Model overrides the configured model when set
	Model string

	// MaxTokens and Temperature override the configured values when non-zero
	MaxTokens   int
	Temperature float32

	// Accept reports whether a response may be cached. It is not sent to
	// the model and is not part of the cache key.
	Accept func(content string) error `json:"-"`
}

// CompletionResponse contains the model output
type CompletionResponse struct {
	Content    string `json:"content"`
	Model      string `json:"model"`
	TokensUsed int    `json:"tokens_used"`
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "groq", "gemini", "anthropic", "ollama"
	Provider string

	// Model name (provider-specific)
	Model string

	APIKey string

	// BaseURL for custom endpoints
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	Temperature float32
	MaxTokens   int

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:    "openai",
		Timeout:     120,
		Temperature: 0.25,
		MaxTokens:   4096,
	}
}

// ConfigFromModel converts the application config into provider config
func ConfigFromModel(llmCfg model.LLMConfig, httpCfg model.HTTPConfig) Config {
	return Config{
		Provider:    llmCfg.Provider,
		Model:       llmCfg.Model,
		APIKey:      llmCfg.APIKey,
		BaseURL:     llmCfg.BaseURL,
		Timeout:     llmCfg.Timeout,
		Temperature: llmCfg.Temperature,
		MaxTokens:   llmCfg.MaxTokens,
		HTTPProxy:   httpCfg.HTTPProxy,
		HTTPSProxy:  httpCfg.HTTPSProxy,
	}
}

// resolved fills request fields left empty from the provider config
func (c Config) resolved(req CompletionRequest, defaultModel string) CompletionRequest {
	if req.Model == "" {
		req.Model = c.Model
	}
	if req.Model == "" {
		req.Model = defaultModel
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = c.MaxTokens
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = 4096
	}
	if req.Temperature == 0 {
		req.Temperature = c.Temperature
	}
	return req
}

func (c Config) timeoutSeconds(fallback int) int {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return fallback
}
