package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sophiahq/sophia-gateway/internal/config"
	"github.com/sophiahq/sophia-gateway/internal/metrics"
)

// Cache is the response cache the router consults before dialing providers
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte)
}

// Router selects a model from the table and walks the provider fallback
// chain in order until one succeeds
type Router struct {
	registry *Registry
	clients  map[string]Client
	chain    []string
	cache    Cache
	gate     func(provider string) bool
	logger   *slog.Logger
	mu       sync.RWMutex
}

// NewRouter creates a router from config, constructing one client per
// configured provider
func NewRouter(cfg *config.Config, logger *slog.Logger) (*Router, error) {
	registry, err := NewRegistry(&cfg.Routing)
	if err != nil {
		return nil, err
	}

	r := &Router{
		registry: registry,
		clients:  make(map[string]Client, len(cfg.Providers)),
		chain:    cfg.Routing.Chain,
		logger:   logger,
	}

	for i := range cfg.Providers {
		pc := &cfg.Providers[i]
		client, err := createClient(pc)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", pc.Name, err)
		}
		r.clients[pc.Name] = client
	}

	if len(r.chain) == 0 {
		for i := range cfg.Providers {
			r.chain = append(r.chain, cfg.Providers[i].Name)
		}
	}

	return r, nil
}

func createClient(pc *config.ProviderConfig) (Client, error) {
	switch pc.Type {
	case "portkey":
		return NewPortkeyClient(&PortkeyConfig{
			Name:       pc.Name,
			BaseURL:    pc.BaseURL,
			APIKey:     pc.APIKey,
			VirtualKey: pc.VirtualKey,
			Timeout:    pc.GetTimeout(),
		})
	case "openrouter":
		return NewOpenRouterClient(&OpenRouterConfig{
			Name:    pc.Name,
			BaseURL: pc.BaseURL,
			APIKey:  pc.APIKey,
			AppURL:  pc.AppURL,
			AppName: pc.AppName,
			Timeout: pc.GetTimeout(),
		})
	case "cortex":
		return NewCortexClient(&CortexConfig{
			Name:      pc.Name,
			Account:   pc.Account,
			Token:     pc.Token,
			Warehouse: pc.Warehouse,
			Database:  pc.Database,
			Schema:    pc.Schema,
			Timeout:   pc.GetTimeout(),
		})
	case "openai-compatible":
		return NewOpenAIClient(&OpenAIConfig{
			Name:    pc.Name,
			BaseURL: pc.BaseURL,
			APIKey:  pc.APIKey,
			Timeout: pc.GetTimeout(),
		})
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", pc.Type)
	}
}

// SetCache attaches a response cache
func (r *Router) SetCache(c Cache) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = c
}

// SetGate attaches an availability predicate. Providers the gate rejects
// are skipped, never reordered.
func (r *Router) SetGate(gate func(provider string) bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gate = gate
}

// Registry returns the model table
func (r *Router) Registry() *Registry {
	return r.registry
}

// Clients returns the configured provider clients by name
func (r *Router) Clients() map[string]Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Client, len(r.clients))
	for name, c := range r.clients {
		out[name] = c
	}
	return out
}

// Chain returns the fallback order
func (r *Router) Chain() []string {
	return append([]string(nil), r.chain...)
}

// Complete routes the request: pick a model, try its provider, then walk
// the rest of the chain. Each fallback provider gets its own best model
// for the task since model names are provider-specific.
func (r *Router) Complete(ctx context.Context, req *Request) (*Response, error) {
	r.mu.RLock()
	cache := r.cache
	gate := r.gate
	r.mu.RUnlock()

	primary, err := r.resolvePrimary(req)
	if err != nil {
		return nil, err
	}

	var cacheKey string
	if cache != nil {
		cacheKey = requestKey(req, primary.Name)
		if data, ok := cache.Get(ctx, cacheKey); ok {
			var resp Response
			if err := json.Unmarshal(data, &resp); err == nil {
				metrics.CacheHits.Inc()
				resp.Cached = true
				resp.SessionID = req.SessionID
				return &resp, nil
			}
		}
		metrics.CacheMisses.Inc()
	}

	order := r.attemptOrder(primary.Provider)
	var errs []error
	prev := ""
	for _, name := range order {
		client, ok := r.clients[name]
		if !ok {
			continue
		}
		if gate != nil && !gate(name) {
			r.logger.Debug("skipping unavailable provider", "provider", name)
			errs = append(errs, fmt.Errorf("provider %s: marked down", name))
			continue
		}

		model := primary
		if name != primary.Provider {
			m, err := r.registry.Select(req.Task, func(p string) bool { return p == name })
			if err != nil {
				errs = append(errs, fmt.Errorf("provider %s: no model for task: %w", name, err))
				continue
			}
			model = m
		}

		attempt := *req
		attempt.Model = model.Name

		if prev != "" {
			metrics.FallbackCount.WithLabelValues(prev, name).Inc()
			r.logger.Warn("falling back", "from", prev, "to", name, "model", model.Name)
		}
		prev = name

		start := time.Now()
		resp, err := client.Complete(ctx, &attempt)
		metrics.CompletionLatency.WithLabelValues(name).Observe(time.Since(start).Seconds())
		if err == nil {
			metrics.CompletionTokens.WithLabelValues(name, resp.Model).Add(float64(resp.TokensUsed))
			if cache != nil {
				if data, err := json.Marshal(resp); err == nil {
					cache.Set(ctx, cacheKey, data)
				}
			}
			return resp, nil
		}

		errs = append(errs, err)
		if !IsRetryable(err) {
			r.logger.Error("terminal provider error", "provider", name, "error", err)
			break
		}
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
	}

	return nil, errors.Join(ErrChainExhausted, errors.Join(errs...))
}

// resolvePrimary determines the first model to try: the explicit request
// model if given, otherwise the table's best scorer for the task.
func (r *Router) resolvePrimary(req *Request) (*Model, error) {
	if req.Model != "" {
		return r.registry.Get(req.Model)
	}
	return r.registry.Select(req.Task, nil)
}

// attemptOrder is the primary model's provider followed by the remaining
// chain in configured order
func (r *Router) attemptOrder(primaryProvider string) []string {
	order := make([]string, 0, len(r.chain)+1)
	order = append(order, primaryProvider)
	for _, name := range r.chain {
		if name != primaryProvider {
			order = append(order, name)
		}
	}
	return order
}

func requestKey(req *Request, model string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00%s\x00%d\x00%.3f",
		model, req.Task, req.System, req.Prompt, req.MaxTokens, req.Temperature)
	return "sophia:completion:" + hex.EncodeToString(h.Sum(nil))
}
