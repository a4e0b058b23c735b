package llm

import (
	"fmt"
	"time"
)

const defaultOpenRouterURL = "https://openrouter.ai/api/v1"

// OpenRouterConfig holds OpenRouter configuration
type OpenRouterConfig struct {
	Name    string
	BaseURL string
	APIKey  string
	AppURL  string
	AppName string
	Timeout time.Duration
}

// NewOpenRouterClient creates a client for the OpenRouter aggregator.
// OpenRouter attributes traffic through HTTP-Referer and X-Title headers.
func NewOpenRouterClient(cfg *OpenRouterConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openrouter API key is required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenRouterURL
	}
	name := cfg.Name
	if name == "" {
		name = "openrouter"
	}

	headers := map[string]string{}
	if cfg.AppURL != "" {
		headers["HTTP-Referer"] = cfg.AppURL
	}
	if cfg.AppName != "" {
		headers["X-Title"] = cfg.AppName
	}

	return NewOpenAIClient(&OpenAIConfig{
		Name:    name,
		BaseURL: baseURL,
		APIKey:  cfg.APIKey,
		Timeout: cfg.Timeout,
		Headers: headers,
	})
}
