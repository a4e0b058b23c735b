package integrations

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sophiahq/sophia-gateway/internal/config"
)

const defaultGongURL = "https://api.gong.io"

// Call is a recorded Gong call
type Call struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Started  time.Time `json:"started"`
	Duration int       `json:"duration_seconds"`
	URL      string    `json:"url"`
}

// GongClient is a thin client for the Gong call API
type GongClient struct {
	baseURL    string
	accessKey  string
	secretKey  string
	httpClient *http.Client
}

// NewGongClient creates a Gong client
func NewGongClient(cfg *config.GongConfig) *GongClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultGongURL
	}
	return &GongClient{
		baseURL:   baseURL,
		accessKey: cfg.AccessKey,
		secretKey: cfg.SecretKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// CallsSince returns calls that started after since
func (c *GongClient) CallsSince(ctx context.Context, since time.Time) ([]Call, error) {
	params := url.Values{}
	if !since.IsZero() {
		params.Set("fromDateTime", since.UTC().Format(time.RFC3339))
	}

	var callsResp gongCallsResponse
	err := withRetry(ctx, func() error {
		return c.get(ctx, "/v2/calls", params, &callsResp)
	})
	if err != nil {
		return nil, fmt.Errorf("gong calls: %w", err)
	}

	calls := make([]Call, 0, len(callsResp.Calls))
	for _, gc := range callsResp.Calls {
		call := Call{
			ID:       gc.ID,
			Title:    gc.Title,
			Duration: gc.Duration,
			URL:      gc.URL,
		}
		if t, err := time.Parse(time.RFC3339, gc.Started); err == nil {
			call.Started = t
		}
		calls = append(calls, call)
	}
	return calls, nil
}

func (c *GongClient) get(ctx context.Context, path string, params url.Values, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(c.accessKey, c.secretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("gong status %d: %s", resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type gongCallsResponse struct {
	Calls []gongCall `json:"calls"`
}

type gongCall struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Started  string `json:"started"`
	Duration int    `json:"duration"`
	URL      string `json:"url"`
}
