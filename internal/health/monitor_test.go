package health

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sophiahq/sophia-gateway/internal/config"
	"github.com/sophiahq/sophia-gateway/internal/llm"
	"github.com/sophiahq/sophia-gateway/internal/logging"
)

type probeClient struct {
	name    string
	failing atomic.Bool
}

func (p *probeClient) Name() string { return p.name }

func (p *probeClient) Complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	return nil, errors.New("not used")
}

func (p *probeClient) Health(ctx context.Context) error {
	if p.failing.Load() {
		return errors.New("probe failed")
	}
	return nil
}

// testMonitor builds a monitor without the background probe loop so each
// test drives probes through CheckNow alone.
func testMonitor(t *testing.T, clients map[string]llm.Client) *Monitor {
	t.Helper()
	m := &Monitor{
		clients:   clients,
		statuses:  make(map[string]*ProviderStatus, len(clients)),
		threshold: 3,
		history:   5,
		logger:    logging.WithComponent("health"),
	}
	for name := range clients {
		m.statuses[name] = &ProviderStatus{Name: name, Status: "unknown"}
	}
	m.ctx, m.cancel = context.WithCancel(context.Background())
	t.Cleanup(m.Shutdown)
	return m
}

func TestDisabledReturnsNil(t *testing.T) {
	m := NewMonitor(&config.HealthConfig{Enabled: false}, nil, logging.WithComponent("health"))
	assert.Nil(t, m)
}

func TestUnknownBeforeFirstProbe(t *testing.T) {
	m := testMonitor(t, map[string]llm.Client{})
	assert.False(t, m.Available("never-registered"))
}

func TestHealthySequence(t *testing.T) {
	c := &probeClient{name: "portkey"}
	m := testMonitor(t, map[string]llm.Client{"portkey": c})

	m.CheckNow()
	assert.True(t, m.Available("portkey"))

	snap := m.Snapshot()
	status := snap["portkey"]
	assert.Equal(t, "up", status.Status)
	assert.Zero(t, status.Consecutive)
	assert.False(t, status.LastSuccess.IsZero())
}

func TestDownAfterConsecutiveFailures(t *testing.T) {
	c := &probeClient{name: "portkey"}
	c.failing.Store(true)
	m := testMonitor(t, map[string]llm.Client{"portkey": c})

	m.CheckNow()
	m.CheckNow()
	assert.True(t, m.Available("portkey"), "below threshold, still available")

	m.CheckNow()
	assert.False(t, m.Available("portkey"))
	assert.Equal(t, "down", m.Snapshot()["portkey"].Status)
}

func TestSuccessResetsFailureCount(t *testing.T) {
	c := &probeClient{name: "openrouter"}
	c.failing.Store(true)
	m := testMonitor(t, map[string]llm.Client{"openrouter": c})

	m.CheckNow()
	m.CheckNow()
	c.failing.Store(false)
	m.CheckNow()

	status := m.Snapshot()["openrouter"]
	assert.Equal(t, "up", status.Status)
	assert.Zero(t, status.Consecutive)

	// Failures after a recovery start the count over.
	c.failing.Store(true)
	m.CheckNow()
	assert.True(t, m.Available("openrouter"))
}

func TestHistoryBounded(t *testing.T) {
	c := &probeClient{name: "portkey"}
	m := testMonitor(t, map[string]llm.Client{"portkey": c})

	for i := 0; i < 10; i++ {
		m.CheckNow()
	}
	assert.Len(t, m.Snapshot()["portkey"].History, 5)
}

func TestSnapshotIsCopy(t *testing.T) {
	c := &probeClient{name: "portkey"}
	m := testMonitor(t, map[string]llm.Client{"portkey": c})
	m.CheckNow()

	snap := m.Snapshot()
	status := snap["portkey"]
	status.History[0].Error = "mutated"
	assert.Empty(t, m.Snapshot()["portkey"].History[0].Error)
}
