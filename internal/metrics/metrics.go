package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sophia_gateway_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "sophia_gateway_request_duration_seconds",
			Help: "HTTP request duration in seconds",
		},
		[]string{"method", "endpoint"},
	)

	CompletionLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "sophia_gateway_completion_latency_seconds",
			Help: "LLM completion latency in seconds per provider",
		},
		[]string{"provider"},
	)

	CompletionTokens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sophia_gateway_completion_tokens_total",
			Help: "Total tokens consumed per provider and model",
		},
		[]string{"provider", "model"},
	)

	FallbackCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sophia_gateway_fallbacks_total",
			Help: "Completion attempts that fell through to a later provider",
		},
		[]string{"from", "to"},
	)

	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sophia_gateway_cache_hits_total",
			Help: "Completion cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sophia_gateway_cache_misses_total",
			Help: "Completion cache misses",
		},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sophia_gateway_active_sessions",
			Help: "Number of active chat sessions",
		},
	)

	WatermarkAdvances = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sophia_gateway_watermark_advances_total",
			Help: "Watermark ledger advances per source",
		},
		[]string{"source"},
	)

	TieringMoves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sophia_gateway_tiering_moves_total",
			Help: "Records moved between storage tiers",
		},
		[]string{"transition"},
	)
)
