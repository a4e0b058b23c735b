package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// OpenAIConfig holds OpenAI-compatible client configuration
type OpenAIConfig struct {
	Name    string
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Headers map[string]string
}

// OpenAIClient is an OpenAI-compatible completion client. Portkey and
// OpenRouter both speak this wire format and differ only in base URL and
// extra headers.
type OpenAIClient struct {
	name       string
	baseURL    string
	apiKey     string
	headers    map[string]string
	httpClient *http.Client
}

// NewOpenAIClient creates a new OpenAI-compatible client
func NewOpenAIClient(cfg *OpenAIConfig) (*OpenAIClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	name := cfg.Name
	if name == "" {
		name = "openai-compatible"
	}

	return &OpenAIClient{
		name:    name,
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		headers: cfg.Headers,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

func (c *OpenAIClient) Name() string {
	return c.name
}

// Complete sends a chat completion request to the OpenAI-compatible API
func (c *OpenAIClient) Complete(ctx context.Context, req *Request) (*Response, error) {
	messages := make([]ChatMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, ChatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, ChatMessage{Role: "user", Content: req.Prompt})

	apiReq := ChatRequest{
		Model:       req.Model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}

	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/chat/completions", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	for k, v := range c.headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, newProviderError(c.name, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, newProviderError(c.name, resp.StatusCode,
			fmt.Errorf("%s", string(body)))
	}

	var apiResp ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, newProviderError(c.name, 0, fmt.Errorf("decode response: %w", err))
	}

	if len(apiResp.Choices) == 0 {
		return nil, newProviderError(c.name, 0, fmt.Errorf("no choices in response"))
	}

	model := apiResp.Model
	if model == "" {
		model = req.Model
	}

	return &Response{
		Content:    apiResp.Choices[0].Message.Content,
		Model:      model,
		Provider:   c.name,
		TokensUsed: apiResp.Usage.TotalTokens,
		SessionID:  req.SessionID,
	}, nil
}

// Health checks if the OpenAI-compatible API is reachable
func (c *OpenAIClient) Health(ctx context.Context) error {
	url := fmt.Sprintf("%s/models", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	for k, v := range c.headers {
		httpReq.Header.Set(k, v)
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

// ChatRequest represents an OpenAI-style chat completion request
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

// ChatMessage represents a chat message
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatResponse represents an OpenAI-style chat completion response
type ChatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []ChatChoice `json:"choices"`
	Usage   ChatUsage    `json:"usage"`
}

// ChatChoice represents a completion choice
type ChatChoice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// ChatUsage represents token usage
type ChatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
