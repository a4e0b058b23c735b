package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const validConfig = `
server:
  host: 127.0.0.1
  port: 9090
providers:
  - name: portkey
    type: portkey
    base_url: http://localhost:8787/v1
    api_key: pk-test
  - name: openrouter
    type: openrouter
    api_key: or-test
routing:
  default_task: chat
  chain: [portkey, openrouter]
  models:
    - name: gpt-4o
      provider: portkey
      quality: 9
      speed: 6
      cost_per_1k: 0.005
      context_window: 128000
cache:
  enabled: true
  ttl: 10m
`

func TestLoad(t *testing.T) {
	path := writeConfig(t, validConfig)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if len(cfg.Providers) != 2 {
		t.Fatalf("expected 2 providers, got %d", len(cfg.Providers))
	}
	if cfg.Cache.GetTTL().Minutes() != 10 {
		t.Errorf("expected 10m TTL, got %v", cfg.Cache.GetTTL())
	}
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
providers:
  - name: p
    type: openai-compatible
    base_url: http://localhost:1234/v1
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Routing.DefaultTask != "chat" {
		t.Errorf("expected default task chat, got %s", cfg.Routing.DefaultTask)
	}
	if cfg.Ledger.HistoryLimit != 100 {
		t.Errorf("expected history limit 100, got %d", cfg.Ledger.HistoryLimit)
	}
}

func TestLoadEnvExpansion(t *testing.T) {
	t.Setenv("TEST_PORTKEY_KEY", "pk-from-env")
	path := writeConfig(t, `
providers:
  - name: portkey
    type: portkey
    api_key: ${TEST_PORTKEY_KEY}
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Providers[0].APIKey != "pk-from-env" {
		t.Errorf("expected expanded key, got %q", cfg.Providers[0].APIKey)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		config string
	}{
		{"no providers", `server: {port: 1}`},
		{"unknown type", `
providers:
  - name: p
    type: bogus
`},
		{"duplicate provider", `
providers:
  - name: p
    type: openrouter
  - name: p
    type: openrouter
`},
		{"chain unknown provider", `
providers:
  - name: p
    type: openrouter
routing:
  chain: [missing]
`},
		{"model unknown provider", `
providers:
  - name: p
    type: openrouter
routing:
  models:
    - name: m
      provider: missing
`},
		{"cortex missing account", `
providers:
  - name: cx
    type: cortex
`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.config)
			if _, err := Load(path); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestTieringDurations(t *testing.T) {
	tc := TieringConfig{HotToWarm: "12h", WarmToCold: "bad"}
	if tc.GetHotToWarm().Hours() != 12 {
		t.Errorf("expected 12h, got %v", tc.GetHotToWarm())
	}
	// Invalid values fall back to the default.
	if tc.GetWarmToCold().Hours() != 7*24 {
		t.Errorf("expected default 168h, got %v", tc.GetWarmToCold())
	}
}
