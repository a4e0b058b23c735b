// Package tiering demotes synced records through hot, warm, and cold
// storage tiers by last-access age, and archives cold records past
// retention. Sweeps are plain SQL updates against the ledger database.
package tiering

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/sophiahq/sophia-gateway/internal/config"
	"github.com/sophiahq/sophia-gateway/internal/ledger"
	"github.com/sophiahq/sophia-gateway/internal/metrics"
)

// SweepResult holds per-transition counts from one sweep
type SweepResult struct {
	HotToWarm  int64     `json:"hot_to_warm"`
	WarmToCold int64     `json:"warm_to_cold"`
	Archived   int64     `json:"archived"`
	SweptAt    time.Time `json:"swept_at"`
}

// Manager runs tiering sweeps over the ledger's record store
type Manager struct {
	store         *ledger.Store
	hotToWarm     time.Duration
	warmToCold    time.Duration
	coldRetention time.Duration
	logger        *slog.Logger
}

// New creates a tiering manager
func New(store *ledger.Store, cfg *config.TieringConfig, logger *slog.Logger) *Manager {
	return &Manager{
		store:         store,
		hotToWarm:     cfg.GetHotToWarm(),
		warmToCold:    cfg.GetWarmToCold(),
		coldRetention: cfg.GetColdRetention(),
		logger:        logger,
	}
}

// Sweep runs all three transitions and returns the counts. The archive pass
// runs first so a record moves at most one step per sweep.
func (m *Manager) Sweep() (*SweepResult, error) {
	res := &SweepResult{SweptAt: time.Now().UTC()}

	archived, err := m.archive(m.coldRetention)
	if err != nil {
		return nil, fmt.Errorf("archive cold: %w", err)
	}
	res.Archived = archived

	warmToCold, err := m.demote(ledger.TierWarm, ledger.TierCold, m.warmToCold)
	if err != nil {
		return nil, fmt.Errorf("demote warm: %w", err)
	}
	res.WarmToCold = warmToCold

	hotToWarm, err := m.demote(ledger.TierHot, ledger.TierWarm, m.hotToWarm)
	if err != nil {
		return nil, fmt.Errorf("demote hot: %w", err)
	}
	res.HotToWarm = hotToWarm

	metrics.TieringMoves.WithLabelValues("hot_to_warm").Add(float64(res.HotToWarm))
	metrics.TieringMoves.WithLabelValues("warm_to_cold").Add(float64(res.WarmToCold))
	metrics.TieringMoves.WithLabelValues("archived").Add(float64(res.Archived))

	m.logger.Info("tiering sweep complete",
		"hot_to_warm", res.HotToWarm,
		"warm_to_cold", res.WarmToCold,
		"archived", res.Archived)
	return res, nil
}

func (m *Manager) demote(from, to int, age time.Duration) (int64, error) {
	r, err := m.store.DB().Exec(
		`UPDATE records SET tier = ?
		 WHERE tier = ? AND is_archived = 0 AND last_accessed < datetime('now', ?)`,
		to, from, sqliteOffset(age),
	)
	if err != nil {
		return 0, err
	}
	return r.RowsAffected()
}

func (m *Manager) archive(retention time.Duration) (int64, error) {
	r, err := m.store.DB().Exec(
		`UPDATE records SET is_archived = 1
		 WHERE tier = ? AND is_archived = 0 AND last_accessed < datetime('now', ?)`,
		ledger.TierCold, sqliteOffset(retention),
	)
	if err != nil {
		return 0, err
	}
	return r.RowsAffected()
}

// sqliteOffset renders a negative datetime modifier, e.g. "-86400 seconds"
func sqliteOffset(d time.Duration) string {
	return fmt.Sprintf("-%d seconds", int64(d.Seconds()))
}
