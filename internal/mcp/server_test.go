package mcp

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sophiahq/sophia-gateway/internal/config"
	"github.com/sophiahq/sophia-gateway/internal/ledger"
	"github.com/sophiahq/sophia-gateway/internal/llm"
	"github.com/sophiahq/sophia-gateway/internal/logging"
)

func TestNewRegistersTools(t *testing.T) {
	store, err := ledger.Open(filepath.Join(t.TempDir(), "mcp.db"), 10)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := &config.Config{
		Providers: []config.ProviderConfig{
			{Name: "local", Type: "openai-compatible", BaseURL: "http://127.0.0.1:1", APIKey: "k"},
		},
		Routing: config.RoutingConfig{
			DefaultTask: "chat",
			Chain:       []string{"local"},
			Models: []config.ModelConfig{
				{Name: "m", Provider: "local", Quality: 0.5, Speed: 0.5, CostPer1K: 0.001, ContextWindow: 4096},
			},
		},
	}
	router, err := llm.NewRouter(cfg, logging.WithComponent("test"))
	require.NoError(t, err)

	s := New(router, store, nil, nil, logging.WithComponent("mcp"))
	require.NotNil(t, s)
	assert.NotNil(t, s.srv)
	assert.NotNil(t, s.SSEHandler())
}
