// Package health tracks LLM provider liveness. Each provider gets a
// bounded result history; a provider goes down only after a run of
// consecutive failures, so one transient error never drops it from the
// routing chain.
package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sophiahq/sophia-gateway/internal/config"
	"github.com/sophiahq/sophia-gateway/internal/llm"
)

// CheckResult is one probe outcome
type CheckResult struct {
	Timestamp time.Time `json:"timestamp"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
}

// ProviderStatus is the current view of one provider
type ProviderStatus struct {
	Name        string        `json:"name"`
	Status      string        `json:"status"` // up, down, unknown
	Consecutive int           `json:"consecutive_failures"`
	History     []CheckResult `json:"history"`
	LastSuccess time.Time     `json:"last_success,omitempty"`
}

// Monitor probes provider health on a fixed interval
type Monitor struct {
	clients   map[string]llm.Client
	statuses  map[string]*ProviderStatus
	interval  time.Duration
	threshold int
	history   int
	logger    *slog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.RWMutex
}

// NewMonitor creates and starts a provider health monitor. Returns nil when
// monitoring is disabled.
func NewMonitor(cfg *config.HealthConfig, clients map[string]llm.Client, logger *slog.Logger) *Monitor {
	if !cfg.Enabled {
		return nil
	}

	m := &Monitor{
		clients:   clients,
		statuses:  make(map[string]*ProviderStatus, len(clients)),
		interval:  cfg.GetCheckInterval(),
		threshold: cfg.FailureThreshold,
		history:   cfg.HistorySize,
		logger:    logger,
	}
	for name := range clients {
		m.statuses[name] = &ProviderStatus{
			Name:    name,
			Status:  "unknown",
			History: make([]CheckResult, 0),
		}
	}

	m.ctx, m.cancel = context.WithCancel(context.Background())
	go m.run()
	return m
}

func (m *Monitor) run() {
	m.CheckNow()
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.CheckNow()
		}
	}
}

// CheckNow probes every provider once
func (m *Monitor) CheckNow() {
	for name, client := range m.clients {
		ctx, cancel := context.WithTimeout(m.ctx, 10*time.Second)
		err := client.Health(ctx)
		cancel()

		res := CheckResult{Timestamp: time.Now(), Success: err == nil}
		if err != nil {
			res.Error = err.Error()
		}
		m.record(name, res)
	}
}

func (m *Monitor) record(name string, res CheckResult) {
	m.mu.Lock()
	defer m.mu.Unlock()

	status, ok := m.statuses[name]
	if !ok {
		return
	}

	status.History = append(status.History, res)
	if len(status.History) > m.history {
		status.History = status.History[1:]
	}

	if res.Success {
		status.Consecutive = 0
		status.LastSuccess = res.Timestamp
		if status.Status != "up" {
			m.logger.Info("provider up", "provider", name)
		}
		status.Status = "up"
		return
	}

	status.Consecutive++
	if status.Consecutive >= m.threshold {
		if status.Status != "down" {
			m.logger.Warn("provider down", "provider", name, "failures", status.Consecutive, "error", res.Error)
		}
		status.Status = "down"
	}
}

// Available reports whether a provider may serve traffic. Unknown counts as
// available so the gateway routes before the first probe completes.
func (m *Monitor) Available(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	status, ok := m.statuses[name]
	if !ok {
		return false
	}
	return status.Status != "down"
}

// Snapshot returns a copy of all provider statuses
func (m *Monitor) Snapshot() map[string]ProviderStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]ProviderStatus, len(m.statuses))
	for name, s := range m.statuses {
		c := *s
		c.History = append([]CheckResult(nil), s.History...)
		out[name] = c
	}
	return out
}

// Shutdown stops the probe loop
func (m *Monitor) Shutdown() {
	m.cancel()
}
