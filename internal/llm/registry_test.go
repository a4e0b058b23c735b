package llm

import (
	"testing"

	"github.com/sophiahq/sophia-gateway/internal/config"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := NewRegistry(&config.RoutingConfig{
		DefaultTask: "chat",
		Models: []config.ModelConfig{
			{Name: "big-model", Provider: "portkey", Quality: 9.5, Speed: 4, CostPer1K: 0.01, ContextWindow: 200000, Capabilities: []string{"code"}},
			{Name: "fast-model", Provider: "openrouter", Quality: 6, Speed: 9, CostPer1K: 0.0005, ContextWindow: 32000},
			{Name: "cortex-model", Provider: "cortex", Quality: 7, Speed: 6, CostPer1K: 0.002, ContextWindow: 32000},
		},
	})
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	return r
}

func TestRegistryGet(t *testing.T) {
	r := testRegistry(t)
	m, err := r.Get("big-model")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if m.Provider != "portkey" {
		t.Errorf("expected portkey, got %s", m.Provider)
	}
	if _, err := r.Get("nope"); err == nil {
		t.Error("expected error for unknown model")
	}
}

func TestSelectAnalysisPrefersQuality(t *testing.T) {
	r := testRegistry(t)
	m, err := r.Select("analysis", nil)
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if m.Name != "big-model" {
		t.Errorf("expected big-model for analysis, got %s", m.Name)
	}
}

func TestSelectCheapPrefersCost(t *testing.T) {
	r := testRegistry(t)
	m, err := r.Select("cheap", nil)
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if m.Name != "fast-model" {
		t.Errorf("expected fast-model for cheap, got %s", m.Name)
	}
}

func TestSelectRespectsAvailability(t *testing.T) {
	r := testRegistry(t)
	m, err := r.Select("analysis", func(p string) bool { return p == "cortex" })
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if m.Name != "cortex-model" {
		t.Errorf("expected cortex-model, got %s", m.Name)
	}

	if _, err := r.Select("chat", func(string) bool { return false }); err == nil {
		t.Error("expected error when nothing is available")
	}
}

func TestSelectUnknownTaskFallsBackToChat(t *testing.T) {
	r := testRegistry(t)
	m1, err := r.Select("chat", nil)
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	m2, err := r.Select("made-up-task", nil)
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if m1.Name != m2.Name {
		t.Errorf("unknown task should score like chat: %s vs %s", m1.Name, m2.Name)
	}
}

func TestSelectDeterministic(t *testing.T) {
	r := testRegistry(t)
	first, err := r.Select("chat", nil)
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	for i := 0; i < 10; i++ {
		m, err := r.Select("chat", nil)
		if err != nil {
			t.Fatalf("Select failed: %v", err)
		}
		if m.Name != first.Name {
			t.Fatalf("selection not deterministic: %s vs %s", m.Name, first.Name)
		}
	}
}

func TestHasCapability(t *testing.T) {
	r := testRegistry(t)
	m, _ := r.Get("big-model")
	if !m.HasCapability("code") {
		t.Error("expected code capability")
	}
	if m.HasCapability("vision") {
		t.Error("did not expect vision capability")
	}
}
