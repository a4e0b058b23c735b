package llm

import "context"

// Client is the interface for LLM completion providers
type Client interface {
	Name() string
	Complete(ctx context.Context, req *Request) (*Response, error)
	Health(ctx context.Context) error
}

// Request represents a completion request
type Request struct {
	Task        string
	Model       string
	Prompt      string
	System      string
	MaxTokens   int
	Temperature float64
	SessionID   string
}

// Response represents a completion response
type Response struct {
	Content    string
	Model      string
	Provider   string
	TokensUsed int
	Cached     bool
	SessionID  string
}
