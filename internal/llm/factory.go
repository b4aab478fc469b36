package llm

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ppiankov/lexbrief/internal/cache"
	"github.com/ppiankov/lexbrief/internal/model"
)

// apiKeyEnv maps providers to the environment variable holding their key
var apiKeyEnv = map[string]string{
	"openai":    "OPENAI_API_KEY",
	"groq":      "GROQ_API_KEY",
	"gemini":    "GEMINI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
	"ollama":    "",
}

// SupportedProviders lists provider names in display order
var SupportedProviders = []string{"openai", "groq", "gemini", "anthropic", "ollama"}

// APIKeyEnv returns the environment variable for the provider's key, "" if none is needed
func APIKeyEnv(provider string) string {
	return apiKeyEnv[normalizeName(provider)]
}

func normalizeName(provider string) string {
	name := strings.ToLower(strings.TrimSpace(provider))
	if name == "claude" {
		return "anthropic"
	}
	return name
}

// ResolveAPIKey fills config.APIKey from the environment when it is empty.
// For ollama, OLLAMA_BASE_URL fills an empty BaseURL.
// A missing key for a provider that needs one is a configuration error.
func ResolveAPIKey(config Config) (Config, error) {
	name := normalizeName(config.Provider)
	env, known := apiKeyEnv[name]
	if !known {
		return config, fmt.Errorf("%w: unknown LLM provider %q (supported: %s)",
			model.ErrConfiguration, config.Provider, strings.Join(SupportedProviders, ", "))
	}
	if name == "ollama" && config.BaseURL == "" {
		config.BaseURL = os.Getenv("OLLAMA_BASE_URL")
	}
	if env == "" || config.APIKey != "" {
		return config, nil
	}

	config.APIKey = os.Getenv(env)
	if config.APIKey == "" {
		return config, fmt.Errorf("%w: %s is not set", model.ErrConfiguration, env)
	}
	return config, nil
}

// NewProvider creates a new LLM provider based on configuration
func NewProvider(config Config) (Provider, error) {
	config, err := ResolveAPIKey(config)
	if err != nil {
		return nil, err
	}

	var p Provider
	switch normalizeName(config.Provider) {
	case "openai":
		p, err = NewOpenAIProvider(config)
	case "groq":
		p, err = NewGroqProvider(config)
	case "gemini":
		p, err = NewGeminiProvider(config)
	case "anthropic":
		p, err = NewAnthropicProvider(config)
	case "ollama":
		p, err = NewOllamaProvider(config)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrConfiguration, err)
	}
	return p, nil
}

// NewFromModel builds the configured provider wrapped with the response
// cache and shared rate limit when those are enabled.
func NewFromModel(llmCfg model.LLMConfig, httpCfg model.HTTPConfig) (Provider, error) {
	p, err := NewProvider(ConfigFromModel(llmCfg, httpCfg))
	if err != nil {
		return nil, err
	}
	if llmCfg.RateLimit > 0 {
		p = NewLimitedProvider(p, llmCfg.RateLimit)
	}
	if llmCfg.CacheTTL > 0 {
		p = NewCachedProvider(p, cache.NewMemoryCache(llmCfg.CacheTTL, 10*time.Minute), llmCfg.CacheTTL)
	}
	return p, nil
}

// DefaultCheckTimeout bounds CheckAvailable when the caller passes 0
const DefaultCheckTimeout = 10 * time.Second

// CheckAvailable reports an unreachable or unauthenticated provider as a
// configuration error
func CheckAvailable(ctx context.Context, p Provider, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultCheckTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if !p.IsAvailable(ctx) {
		return fmt.Errorf("%w: llm provider %s is not reachable", model.ErrConfiguration, p.Name())
	}
	return nil
}
