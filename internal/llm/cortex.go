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

// CortexConfig holds Snowflake Cortex configuration
type CortexConfig struct {
	Name      string
	Account   string // account URL, e.g. https://myorg-myacct.snowflakecomputing.com
	Token     string
	Warehouse string
	Database  string
	Schema    string
	Timeout   time.Duration
}

// CortexClient calls SNOWFLAKE.CORTEX.COMPLETE through the Snowflake SQL
// REST statement API. The prompt and model travel as statement bindings, so
// no SQL string interpolation happens on user input.
type CortexClient struct {
	name       string
	account    string
	token      string
	warehouse  string
	database   string
	schema     string
	httpClient *http.Client
}

// NewCortexClient creates a new Snowflake Cortex client
func NewCortexClient(cfg *CortexConfig) (*CortexClient, error) {
	if cfg.Account == "" {
		return nil, fmt.Errorf("cortex account URL is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	name := cfg.Name
	if name == "" {
		name = "cortex"
	}

	return &CortexClient{
		name:      name,
		account:   cfg.Account,
		token:     cfg.Token,
		warehouse: cfg.Warehouse,
		database:  cfg.Database,
		schema:    cfg.Schema,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

func (c *CortexClient) Name() string {
	return c.name
}

// Complete runs SNOWFLAKE.CORTEX.COMPLETE for the request prompt
func (c *CortexClient) Complete(ctx context.Context, req *Request) (*Response, error) {
	prompt := req.Prompt
	if req.System != "" {
		prompt = req.System + "\n\n" + prompt
	}

	stmt := statementRequest{
		Statement: "SELECT SNOWFLAKE.CORTEX.COMPLETE(?, ?)",
		Timeout:   60,
		Warehouse: c.warehouse,
		Database:  c.database,
		Schema:    c.schema,
		Bindings: map[string]statementBinding{
			"1": {Type: "TEXT", Value: req.Model},
			"2": {Type: "TEXT", Value: prompt},
		},
	}

	result, err := c.execute(ctx, &stmt)
	if err != nil {
		return nil, err
	}

	if len(result.Data) == 0 || len(result.Data[0]) == 0 {
		return nil, newProviderError(c.name, 0, fmt.Errorf("empty result set"))
	}

	return &Response{
		Content:   result.Data[0][0],
		Model:     req.Model,
		Provider:  c.name,
		SessionID: req.SessionID,
	}, nil
}

// Health runs a trivial statement to verify the SQL API is reachable
func (c *CortexClient) Health(ctx context.Context) error {
	stmt := statementRequest{
		Statement: "SELECT 1",
		Timeout:   10,
		Warehouse: c.warehouse,
	}
	_, err := c.execute(ctx, &stmt)
	return err
}

func (c *CortexClient) execute(ctx context.Context, stmt *statementRequest) (*statementResponse, error) {
	body, err := json.Marshal(stmt)
	if err != nil {
		return nil, fmt.Errorf("marshal statement: %w", err)
	}

	url := fmt.Sprintf("%s/api/v2/statements", c.account)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.token)
	httpReq.Header.Set("X-Snowflake-Authorization-Token-Type", "KEYPAIR_JWT")

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

	var result statementResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, newProviderError(c.name, 0, fmt.Errorf("decode response: %w", err))
	}
	return &result, nil
}

type statementRequest struct {
	Statement string                      `json:"statement"`
	Timeout   int                         `json:"timeout,omitempty"`
	Warehouse string                      `json:"warehouse,omitempty"`
	Database  string                      `json:"database,omitempty"`
	Schema    string                      `json:"schema,omitempty"`
	Bindings  map[string]statementBinding `json:"bindings,omitempty"`
}

type statementBinding struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type statementResponse struct {
	StatementHandle string     `json:"statementHandle"`
	Data            [][]string `json:"data"`
	Code            string     `json:"code"`
	Message         string     `json:"message"`
}
