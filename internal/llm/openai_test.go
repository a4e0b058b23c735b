package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAIClientComplete(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("expected system+user messages, got %+v", req.Messages)
		}
		json.NewEncoder(w).Encode(ChatResponse{
			Model:   req.Model,
			Choices: []ChatChoice{{Message: ChatMessage{Role: "assistant", Content: "hello"}}},
			Usage:   ChatUsage{TotalTokens: 42},
		})
	}))
	defer ts.Close()

	c, err := NewOpenAIClient(&OpenAIConfig{Name: "test", BaseURL: ts.URL, APIKey: "test-key"})
	if err != nil {
		t.Fatalf("NewOpenAIClient failed: %v", err)
	}

	resp, err := c.Complete(context.Background(), &Request{
		Model:  "gpt-test",
		Prompt: "hi",
		System: "be brief",
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if resp.Content != "hello" {
		t.Errorf("expected hello, got %q", resp.Content)
	}
	if resp.TokensUsed != 42 {
		t.Errorf("expected 42 tokens, got %d", resp.TokensUsed)
	}
	if resp.Provider != "test" {
		t.Errorf("expected provider test, got %s", resp.Provider)
	}
}

func TestOpenAIClientErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer ts.Close()

	c, _ := NewOpenAIClient(&OpenAIConfig{Name: "test", BaseURL: ts.URL})
	_, err := c.Complete(context.Background(), &Request{Model: "m", Prompt: "hi"})
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if pe.Status != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", pe.Status)
	}
	if !pe.Retryable {
		t.Error("429 should be retryable")
	}
}

func TestOpenAIClientTerminalStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad model", http.StatusBadRequest)
	}))
	defer ts.Close()

	c, _ := NewOpenAIClient(&OpenAIConfig{Name: "test", BaseURL: ts.URL})
	_, err := c.Complete(context.Background(), &Request{Model: "m", Prompt: "hi"})
	if IsRetryable(err) {
		t.Error("400 should not be retryable")
	}
}

func TestPortkeyHeaders(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-portkey-api-key"); got != "pk" {
			t.Errorf("missing portkey api key header, got %q", got)
		}
		if got := r.Header.Get("x-portkey-virtual-key"); got != "vk" {
			t.Errorf("missing virtual key header, got %q", got)
		}
		json.NewEncoder(w).Encode(ChatResponse{
			Choices: []ChatChoice{{Message: ChatMessage{Content: "ok"}}},
		})
	}))
	defer ts.Close()

	c, err := NewPortkeyClient(&PortkeyConfig{BaseURL: ts.URL, APIKey: "pk", VirtualKey: "vk"})
	if err != nil {
		t.Fatalf("NewPortkeyClient failed: %v", err)
	}
	if _, err := c.Complete(context.Background(), &Request{Model: "m", Prompt: "hi"}); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
}

func TestCortexComplete(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/statements" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var stmt statementRequest
		if err := json.NewDecoder(r.Body).Decode(&stmt); err != nil {
			t.Fatalf("decode statement: %v", err)
		}
		if stmt.Bindings["1"].Value != "mistral-large" {
			t.Errorf("expected model binding, got %+v", stmt.Bindings)
		}
		json.NewEncoder(w).Encode(statementResponse{
			Data: [][]string{{"cortex says hi"}},
		})
	}))
	defer ts.Close()

	c, err := NewCortexClient(&CortexConfig{Account: ts.URL, Token: "tok", Warehouse: "wh"})
	if err != nil {
		t.Fatalf("NewCortexClient failed: %v", err)
	}
	resp, err := c.Complete(context.Background(), &Request{Model: "mistral-large", Prompt: "hi"})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if resp.Content != "cortex says hi" {
		t.Errorf("unexpected content %q", resp.Content)
	}
}
