package tiering

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sophiahq/sophia-gateway/internal/config"
	"github.com/sophiahq/sophia-gateway/internal/ledger"
	"github.com/sophiahq/sophia-gateway/internal/logging"
)

func testManager(t *testing.T) (*Manager, *ledger.Store) {
	t.Helper()
	store, err := ledger.Open(filepath.Join(t.TempDir(), "test.db"), 10)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := &config.TieringConfig{
		Enabled:       true,
		HotToWarm:     "24h",
		WarmToCold:    "168h",
		ColdRetention: "720h",
	}
	return New(store, cfg, logging.WithComponent("tiering")), store
}

// backdate sets a record's last access time age hours in the past.
func backdate(t *testing.T, store *ledger.Store, externalID string, hours int) {
	t.Helper()
	_, err := store.DB().Exec(
		`UPDATE records SET last_accessed = datetime('now', ?) WHERE external_id = ?`,
		fmt.Sprintf("-%d hours", hours), externalID,
	)
	require.NoError(t, err)
}

func TestSweepDemotesByAge(t *testing.T) {
	m, store := testManager(t)

	require.NoError(t, store.UpsertRecord(&ledger.Record{Source: "gong", ExternalID: "fresh", Content: "a"}))
	require.NoError(t, store.UpsertRecord(&ledger.Record{Source: "gong", ExternalID: "stale", Content: "b"}))
	backdate(t, store, "stale", 48)

	res, err := m.Sweep()
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.HotToWarm)
	assert.Equal(t, int64(0), res.WarmToCold)
	assert.Equal(t, int64(0), res.Archived)

	tiers, err := store.CountByTier()
	require.NoError(t, err)
	assert.Equal(t, 1, tiers[ledger.TierHot])
	assert.Equal(t, 1, tiers[ledger.TierWarm])
}

func TestSweepMovesOneStepPerPass(t *testing.T) {
	m, store := testManager(t)

	// Older than every threshold, but a single sweep only demotes one tier.
	require.NoError(t, store.UpsertRecord(&ledger.Record{Source: "gong", ExternalID: "ancient", Content: "x"}))
	backdate(t, store, "ancient", 24*365)

	res, err := m.Sweep()
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.HotToWarm)
	assert.Equal(t, int64(0), res.WarmToCold)

	res, err = m.Sweep()
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.WarmToCold)

	res, err = m.Sweep()
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Archived)

	tiers, err := store.CountByTier()
	require.NoError(t, err)
	assert.Equal(t, 0, tiers[ledger.TierHot]+tiers[ledger.TierWarm]+tiers[ledger.TierCold])
}

func TestSweepEmptyStore(t *testing.T) {
	m, _ := testManager(t)
	res, err := m.Sweep()
	require.NoError(t, err)
	assert.Zero(t, res.HotToWarm)
	assert.Zero(t, res.WarmToCold)
	assert.Zero(t, res.Archived)
	assert.False(t, res.SweptAt.IsZero())
}

func TestTouchKeepsRecordHot(t *testing.T) {
	m, store := testManager(t)

	require.NoError(t, store.UpsertRecord(&ledger.Record{Source: "hubspot", ExternalID: "c1", Content: "x"}))
	backdate(t, store, "c1", 48)
	require.NoError(t, store.TouchRecord("hubspot", "c1"))

	res, err := m.Sweep()
	require.NoError(t, err)
	assert.Zero(t, res.HotToWarm)
}
