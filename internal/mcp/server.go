// Package mcp exposes gateway capabilities as Model Context Protocol tools
// so LLM agents can route completions, query synced CRM data, and post to
// Slack through one tool surface.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sophiahq/sophia-gateway/internal/integrations"
	"github.com/sophiahq/sophia-gateway/internal/ledger"
	"github.com/sophiahq/sophia-gateway/internal/llm"
)

const serverVersion = "1.0.0"

// Server wires gateway services into an MCP tool server
type Server struct {
	router  *llm.Router
	store   *ledger.Store
	hubspot *integrations.HubSpotClient
	slack   *integrations.SlackClient
	logger  *slog.Logger
	srv     *mcpsdk.Server
}

// New creates the MCP server and registers its tools. hubspot and slack may
// be nil; their tools then report the integration as disabled.
func New(router *llm.Router, store *ledger.Store, hubspot *integrations.HubSpotClient, slack *integrations.SlackClient, logger *slog.Logger) *Server {
	s := &Server{
		router:  router,
		store:   store,
		hubspot: hubspot,
		slack:   slack,
		logger:  logger,
	}
	s.srv = mcpsdk.NewServer(&mcpsdk.Implementation{
		Name:    "sophia-gateway",
		Version: serverVersion,
	}, nil)
	s.registerTools()
	return s
}

type routeCompletionArgs struct {
	Task   string `json:"task,omitempty" jsonschema:"task type: chat, analysis, code, summarize, cheap"`
	Model  string `json:"model,omitempty" jsonschema:"explicit model name, overrides task selection"`
	Prompt string `json:"prompt" jsonschema:"the prompt to complete"`
}

type queryCRMArgs struct {
	Query string `json:"query" jsonschema:"free-text contact search"`
	Limit int    `json:"limit,omitempty" jsonschema:"max results, default 10"`
}

type searchCallsArgs struct {
	Query string `json:"query" jsonschema:"text to match in synced call records"`
	Limit int    `json:"limit,omitempty" jsonschema:"max results, default 10"`
}

type postSlackArgs struct {
	Channel string `json:"channel,omitempty" jsonschema:"target channel, default from config"`
	Text    string `json:"text" jsonschema:"message text"`
}

type ledgerStatusArgs struct{}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.srv, &mcpsdk.Tool{
		Name:        "route_completion",
		Description: "Route a prompt to the best LLM for a task, with provider fallback",
	}, func(ctx context.Context, req *mcpsdk.CallToolRequest, args routeCompletionArgs) (*mcpsdk.CallToolResult, any, error) {
		resp, err := s.router.Complete(ctx, &llm.Request{
			Task:   args.Task,
			Model:  args.Model,
			Prompt: args.Prompt,
		})
		if err != nil {
			return nil, nil, err
		}
		return textResult(resp.Content), nil, nil
	})

	mcpsdk.AddTool(s.srv, &mcpsdk.Tool{
		Name:        "query_crm",
		Description: "Search HubSpot CRM contacts",
	}, func(ctx context.Context, req *mcpsdk.CallToolRequest, args queryCRMArgs) (*mcpsdk.CallToolResult, any, error) {
		if s.hubspot == nil {
			return nil, nil, fmt.Errorf("hubspot integration is disabled")
		}
		contacts, err := s.hubspot.SearchContacts(ctx, args.Query, args.Limit)
		if err != nil {
			return nil, nil, err
		}
		return jsonResult(contacts)
	})

	mcpsdk.AddTool(s.srv, &mcpsdk.Tool{
		Name:        "search_calls",
		Description: "Search synced Gong call records",
	}, func(ctx context.Context, req *mcpsdk.CallToolRequest, args searchCallsArgs) (*mcpsdk.CallToolResult, any, error) {
		records, err := s.store.SearchRecords("gong", args.Query, args.Limit)
		if err != nil {
			return nil, nil, err
		}
		return jsonResult(records)
	})

	mcpsdk.AddTool(s.srv, &mcpsdk.Tool{
		Name:        "post_slack",
		Description: "Post a message to a Slack channel",
	}, func(ctx context.Context, req *mcpsdk.CallToolRequest, args postSlackArgs) (*mcpsdk.CallToolResult, any, error) {
		if s.slack == nil {
			return nil, nil, fmt.Errorf("slack integration is disabled")
		}
		if err := s.slack.PostMessage(ctx, args.Channel, args.Text); err != nil {
			return nil, nil, err
		}
		return textResult("posted"), nil, nil
	})

	mcpsdk.AddTool(s.srv, &mcpsdk.Tool{
		Name:        "ledger_status",
		Description: "Report ingestion watermarks and record tier counts",
	}, func(ctx context.Context, req *mcpsdk.CallToolRequest, args ledgerStatusArgs) (*mcpsdk.CallToolResult, any, error) {
		watermarks, err := s.store.List()
		if err != nil {
			return nil, nil, err
		}
		tiers, err := s.store.CountByTier()
		if err != nil {
			return nil, nil, err
		}
		return jsonResult(map[string]any{
			"watermarks": watermarks,
			"tiers":      tiers,
		})
	})
}

// RunStdio serves MCP over stdin/stdout until ctx is done
func (s *Server) RunStdio(ctx context.Context) error {
	s.logger.Info("mcp server listening on stdio")
	return s.srv.Run(ctx, &mcpsdk.StdioTransport{})
}

// SSEHandler returns an HTTP handler serving MCP over SSE
func (s *Server) SSEHandler() http.Handler {
	return mcpsdk.NewSSEHandler(func(*http.Request) *mcpsdk.Server { return s.srv }, nil)
}

func textResult(text string) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: text}},
	}
}

func jsonResult(v any) (*mcpsdk.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("marshal result: %w", err)
	}
	return textResult(string(data)), nil, nil
}
