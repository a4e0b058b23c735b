package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sophiahq/sophia-gateway/internal/cache"
	"github.com/sophiahq/sophia-gateway/internal/config"
	"github.com/sophiahq/sophia-gateway/internal/health"
	"github.com/sophiahq/sophia-gateway/internal/ledger"
	"github.com/sophiahq/sophia-gateway/internal/llm"
	"github.com/sophiahq/sophia-gateway/internal/metrics"
	"github.com/sophiahq/sophia-gateway/internal/session"
	"github.com/sophiahq/sophia-gateway/internal/tiering"
)

const version = "1.0.0"

// Server is the HTTP facade over the gateway services
type Server struct {
	cfg        *config.Config
	router     *llm.Router
	cache      *cache.Cache
	store      *ledger.Store
	tiering    *tiering.Manager
	monitor    *health.Monitor
	sessions   *session.Store
	mcpSSE     http.Handler
	httpServer *http.Server
	startTime  time.Time
	logger     *slog.Logger
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string                   `json:"status"`
	Version   string                   `json:"version"`
	Uptime    string                   `json:"uptime"`
	Services  map[string]ServiceHealth `json:"services"`
	Timestamp string                   `json:"timestamp"`
}

// ServiceHealth represents a service health status
type ServiceHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// CompletionRequest is the /api/v1/completions request body
type CompletionRequest struct {
	Task        string  `json:"task,omitempty"`
	Model       string  `json:"model,omitempty"`
	Prompt      string  `json:"prompt"`
	System      string  `json:"system,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	SessionID   string  `json:"session_id,omitempty"`
}

// CompletionResponse is the /api/v1/completions response body
type CompletionResponse struct {
	Content    string `json:"content"`
	Model      string `json:"model"`
	Provider   string `json:"provider"`
	TokensUsed int    `json:"tokens_used"`
	Cached     bool   `json:"cached"`
	SessionID  string `json:"session_id,omitempty"`
}

// ModelInfo is one model table row in API form
type ModelInfo struct {
	Name          string   `json:"name"`
	Provider      string   `json:"provider"`
	Quality       float64  `json:"quality"`
	Speed         float64  `json:"speed"`
	CostPer1K     float64  `json:"cost_per_1k"`
	ContextWindow int      `json:"context_window"`
	Capabilities  []string `json:"capabilities,omitempty"`
}

// ProvidersResponse reports the chain order and provider health
type ProvidersResponse struct {
	Chain     []string                         `json:"chain"`
	Providers map[string]health.ProviderStatus `json:"providers,omitempty"`
}

// ResetRequest is the ledger reset request body
type ResetRequest struct {
	Source   string `json:"source"`
	Stream   string `json:"stream"`
	Position string `json:"position"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// New creates the HTTP server. monitor and mcpSSE may be nil.
func New(cfg *config.Config, router *llm.Router, respCache *cache.Cache, store *ledger.Store, tm *tiering.Manager, monitor *health.Monitor, sessions *session.Store, mcpSSE http.Handler, logger *slog.Logger) *Server {
	s := &Server{
		cfg:       cfg,
		router:    router,
		cache:     respCache,
		store:     store,
		tiering:   tm,
		monitor:   monitor,
		sessions:  sessions,
		mcpSSE:    mcpSSE,
		logger:    logger,
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.wrap("/health", s.healthHandler))
	mux.HandleFunc("/api/v1/completions", s.wrap("/api/v1/completions", s.completionsHandler))
	mux.HandleFunc("/api/v1/models", s.wrap("/api/v1/models", s.modelsHandler))
	mux.HandleFunc("/api/v1/providers", s.wrap("/api/v1/providers", s.providersHandler))
	mux.HandleFunc("/api/v1/cache/stats", s.wrap("/api/v1/cache/stats", s.cacheStatsHandler))
	mux.HandleFunc("/api/v1/ledger/watermarks", s.wrap("/api/v1/ledger/watermarks", s.watermarksHandler))
	mux.HandleFunc("/api/v1/ledger/history", s.wrap("/api/v1/ledger/history", s.ledgerHistoryHandler))
	mux.HandleFunc("/api/v1/ledger/reset", s.wrap("/api/v1/ledger/reset", s.ledgerResetHandler))
	mux.HandleFunc("/api/v1/tiering/sweep", s.wrap("/api/v1/tiering/sweep", s.tieringSweepHandler))
	mux.HandleFunc("/api/v1/sessions", s.wrap("/api/v1/sessions", s.sessionsHandler))
	mux.HandleFunc("/ws/chat", s.wsChatHandler)
	mux.Handle("/metrics", promhttp.Handler())
	if mcpSSE != nil {
		mux.Handle("/mcp/sse", mcpSSE)
	}

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: mux,
	}
	return s
}

// Start begins serving. Blocks until the listener closes.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains and closes the listener
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// wrap instruments a handler with request count and duration metrics
func (s *Server) wrap(endpoint string, h func(http.ResponseWriter, *http.Request) int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		status := h(w, r)
		metrics.RequestCount.WithLabelValues(r.Method, endpoint, fmt.Sprintf("%d", status)).Inc()
		metrics.RequestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) int {
	if r.Method != http.MethodGet {
		return s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}

	services := make(map[string]ServiceHealth)

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	if err := s.cache.Ping(ctx); err != nil {
		services["cache"] = ServiceHealth{Healthy: false, Message: err.Error()}
	} else {
		services["cache"] = ServiceHealth{Healthy: true}
	}

	if _, err := s.store.List(); err != nil {
		services["ledger"] = ServiceHealth{Healthy: false, Message: err.Error()}
	} else {
		services["ledger"] = ServiceHealth{Healthy: true}
	}

	if s.monitor != nil {
		for name, status := range s.monitor.Snapshot() {
			sh := ServiceHealth{Healthy: status.Status != "down"}
			if !sh.Healthy && len(status.History) > 0 {
				sh.Message = status.History[len(status.History)-1].Error
			}
			services["provider:"+name] = sh
		}
	}

	overall := "healthy"
	for _, sh := range services {
		if !sh.Healthy {
			overall = "degraded"
			break
		}
	}

	return s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:    overall,
		Version:   version,
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Services:  services,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) completionsHandler(w http.ResponseWriter, r *http.Request) int {
	if r.Method != http.MethodPost {
		return s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}

	var req CompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return s.writeError(w, http.StatusBadRequest, "invalid request body")
	}
	if req.Prompt == "" {
		return s.writeError(w, http.StatusBadRequest, "prompt is required")
	}

	sess := s.sessions.GetOrCreate(req.SessionID, "")
	_ = s.sessions.AddMessage(sess.ID, "user", req.Prompt)

	resp, err := s.router.Complete(r.Context(), &llm.Request{
		Task:        req.Task,
		Model:       req.Model,
		Prompt:      req.Prompt,
		System:      req.System,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		SessionID:   sess.ID,
	})
	if err != nil {
		s.logger.Error("completion failed", "error", err)
		status := http.StatusBadGateway
		if errors.Is(err, llm.ErrModelUnknown) {
			status = http.StatusBadRequest
		}
		return s.writeError(w, status, err.Error())
	}

	_ = s.sessions.AddMessage(sess.ID, "assistant", resp.Content)

	return s.writeJSON(w, http.StatusOK, CompletionResponse{
		Content:    resp.Content,
		Model:      resp.Model,
		Provider:   resp.Provider,
		TokensUsed: resp.TokensUsed,
		Cached:     resp.Cached,
		SessionID:  sess.ID,
	})
}

func (s *Server) modelsHandler(w http.ResponseWriter, r *http.Request) int {
	if r.Method != http.MethodGet {
		return s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
	models := s.router.Registry().List()
	out := make([]ModelInfo, 0, len(models))
	for _, m := range models {
		out = append(out, ModelInfo{
			Name:          m.Name,
			Provider:      m.Provider,
			Quality:       m.Quality,
			Speed:         m.Speed,
			CostPer1K:     m.CostPer1K,
			ContextWindow: m.ContextWindow,
			Capabilities:  m.Capabilities,
		})
	}
	return s.writeJSON(w, http.StatusOK, map[string]any{"models": out, "tasks": llm.TaskTypes()})
}

func (s *Server) providersHandler(w http.ResponseWriter, r *http.Request) int {
	if r.Method != http.MethodGet {
		return s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
	resp := ProvidersResponse{Chain: s.router.Chain()}
	if s.monitor != nil {
		resp.Providers = s.monitor.Snapshot()
	}
	return s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) cacheStatsHandler(w http.ResponseWriter, r *http.Request) int {
	if r.Method != http.MethodGet {
		return s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
	return s.writeJSON(w, http.StatusOK, s.cache.Stats())
}

func (s *Server) watermarksHandler(w http.ResponseWriter, r *http.Request) int {
	if r.Method != http.MethodGet {
		return s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
	watermarks, err := s.store.List()
	if err != nil {
		return s.writeError(w, http.StatusInternalServerError, err.Error())
	}
	tiers, err := s.store.CountByTier()
	if err != nil {
		return s.writeError(w, http.StatusInternalServerError, err.Error())
	}
	return s.writeJSON(w, http.StatusOK, map[string]any{"watermarks": watermarks, "tiers": tiers})
}

func (s *Server) ledgerHistoryHandler(w http.ResponseWriter, r *http.Request) int {
	if r.Method != http.MethodGet {
		return s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
	source := r.URL.Query().Get("source")
	stream := r.URL.Query().Get("stream")
	if source == "" || stream == "" {
		return s.writeError(w, http.StatusBadRequest, "source and stream are required")
	}
	history, err := s.store.History(source, stream, 0)
	if err != nil {
		return s.writeError(w, http.StatusInternalServerError, err.Error())
	}
	return s.writeJSON(w, http.StatusOK, map[string]any{"history": history})
}

func (s *Server) ledgerResetHandler(w http.ResponseWriter, r *http.Request) int {
	if r.Method != http.MethodPost {
		return s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
	var req ResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return s.writeError(w, http.StatusBadRequest, "invalid request body")
	}
	if req.Source == "" || req.Stream == "" {
		return s.writeError(w, http.StatusBadRequest, "source and stream are required")
	}
	if err := s.store.Reset(req.Source, req.Stream, req.Position); err != nil {
		return s.writeError(w, http.StatusInternalServerError, err.Error())
	}
	s.logger.Info("watermark reset", "source", req.Source, "stream", req.Stream, "position", req.Position)
	return s.writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (s *Server) tieringSweepHandler(w http.ResponseWriter, r *http.Request) int {
	if r.Method != http.MethodPost {
		return s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
	res, err := s.tiering.Sweep()
	if err != nil {
		return s.writeError(w, http.StatusInternalServerError, err.Error())
	}
	return s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) sessionsHandler(w http.ResponseWriter, r *http.Request) int {
	if r.Method != http.MethodGet {
		return s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
	return s.writeJSON(w, http.StatusOK, map[string]any{"sessions": s.sessions.List()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) int {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response failed", "error", err)
	}
	return status
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) int {
	return s.writeJSON(w, status, errorResponse{Error: msg})
}
