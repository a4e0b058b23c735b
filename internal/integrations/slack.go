package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sophiahq/sophia-gateway/internal/config"
)

const defaultSlackURL = "https://slack.com/api"

// SlackClient posts messages through the Slack Web API
type SlackClient struct {
	baseURL        string
	token          string
	defaultChannel string
	httpClient     *http.Client
}

// NewSlackClient creates a Slack client
func NewSlackClient(cfg *config.SlackConfig) *SlackClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultSlackURL
	}
	return &SlackClient{
		baseURL:        baseURL,
		token:          cfg.BotToken,
		defaultChannel: cfg.DefaultChannel,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// PostMessage sends text to a channel. An empty channel uses the configured
// default.
func (c *SlackClient) PostMessage(ctx context.Context, channel, text string) error {
	if channel == "" {
		channel = c.defaultChannel
	}
	if channel == "" {
		return fmt.Errorf("slack: no channel specified")
	}

	payload := slackPostRequest{Channel: channel, Text: text}
	return withRetry(ctx, func() error {
		return c.post(ctx, "/chat.postMessage", &payload)
	})
}

func (c *SlackClient) post(ctx context.Context, path string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var apiResp slackAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	// Slack reports errors inside a 200 body.
	if !apiResp.OK {
		return fmt.Errorf("slack: %s", apiResp.Error)
	}
	return nil
}

type slackPostRequest struct {
	Channel string `json:"channel"`
	Text    string `json:"text"`
}

type slackAPIResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}
