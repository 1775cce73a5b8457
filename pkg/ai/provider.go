package ai

import (
	"fmt"
	"strings"
	"time"
)

// ProviderConfig selects and configures a completion provider.
type ProviderConfig struct {
	Provider   string // openai (default), azure, ollama
	BaseURL    string
	APIKey     string
	Model      string
	APIVersion string
	Timeout    time.Duration
	Retry      RetryConfig
}

// NewCompletionClient builds the configured provider, wrapped with retries when enabled.
func NewCompletionClient(cfg ProviderConfig) (CompletionClient, error) {
	var client CompletionClient
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "openai", "openai-compat":
		if strings.TrimSpace(cfg.BaseURL) == "" {
			return nil, fmt.Errorf("openai-compat base url required")
		}
		client = NewOpenAICompatClient(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Timeout)
	case "azure":
		if strings.TrimSpace(cfg.BaseURL) == "" || strings.TrimSpace(cfg.APIKey) == "" {
			return nil, fmt.Errorf("azure openai endpoint and api key required")
		}
		client = NewAzureOpenAIClient(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.APIVersion, cfg.Timeout)
	case "ollama":
		client = NewOllamaClient(cfg.BaseURL, cfg.Model, cfg.Timeout)
	default:
		return nil, fmt.Errorf("unknown completion provider %q", cfg.Provider)
	}
	return WithRetry(client, cfg.Retry), nil
}
