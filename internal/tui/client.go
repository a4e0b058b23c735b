package tui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// GatewayClient talks to the gateway's HTTP API for the chat TUI
type GatewayClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewGatewayClient creates a client for the given gateway base URL
func NewGatewayClient(baseURL string) *GatewayClient {
	return &GatewayClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

type completionRequest struct {
	Task      string `json:"task,omitempty"`
	Prompt    string `json:"prompt"`
	SessionID string `json:"session_id,omitempty"`
}

type completionResponse struct {
	Content   string `json:"content"`
	Model     string `json:"model"`
	Provider  string `json:"provider"`
	Cached    bool   `json:"cached"`
	SessionID string `json:"session_id"`
	Error     string `json:"error,omitempty"`
}

// Complete sends a prompt and returns the routed completion
func (c *GatewayClient) Complete(task, prompt, sessionID string) (*completionResponse, error) {
	body, err := json.Marshal(completionRequest{Task: task, Prompt: prompt, SessionID: sessionID})
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Post(c.baseURL+"/api/v1/completions", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if out.Error != "" {
			return nil, fmt.Errorf("%s", out.Error)
		}
		return nil, fmt.Errorf("gateway status %d", resp.StatusCode)
	}
	return &out, nil
}

type providersResponse struct {
	Chain     []string `json:"chain"`
	Providers map[string]struct {
		Status string `json:"status"`
	} `json:"providers"`
}

// Providers returns the fallback chain with current provider status
func (c *GatewayClient) Providers() (map[string]string, []string, error) {
	resp, err := c.httpClient.Get(c.baseURL + "/api/v1/providers")
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, nil, fmt.Errorf("gateway status %d: %s", resp.StatusCode, string(body))
	}

	var out providersResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, nil, fmt.Errorf("decode response: %w", err)
	}
	statuses := make(map[string]string, len(out.Providers))
	for name, p := range out.Providers {
		statuses[name] = p.Status
	}
	return statuses, out.Chain, nil
}
