package llm

import (
	"fmt"
	"time"
)

const defaultPortkeyURL = "https://api.portkey.ai/v1"

// PortkeyConfig holds Portkey gateway configuration
type PortkeyConfig struct {
	Name       string
	BaseURL    string
	APIKey     string
	VirtualKey string
	Timeout    time.Duration
}

// NewPortkeyClient creates a client for the Portkey LLM gateway. Portkey is
// OpenAI-compatible; the gateway key and virtual key travel in x-portkey
// headers instead of the Authorization bearer.
func NewPortkeyClient(cfg *PortkeyConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("portkey API key is required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultPortkeyURL
	}
	name := cfg.Name
	if name == "" {
		name = "portkey"
	}

	headers := map[string]string{
		"x-portkey-api-key": cfg.APIKey,
	}
	if cfg.VirtualKey != "" {
		headers["x-portkey-virtual-key"] = cfg.VirtualKey
	}

	return NewOpenAIClient(&OpenAIConfig{
		Name:    name,
		BaseURL: baseURL,
		Timeout: cfg.Timeout,
		Headers: headers,
	})
}
