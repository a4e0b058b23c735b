package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sophiahq/sophia-gateway/internal/config"
	"github.com/sophiahq/sophia-gateway/internal/integrations"
	"github.com/sophiahq/sophia-gateway/internal/ledger"
	"github.com/sophiahq/sophia-gateway/internal/tiering"
)

const (
	defaultTieringSpec = "0 3 * * *"
	defaultPruneSpec   = "30 3 * * *"
	syncTimeout        = 5 * time.Minute
)

// Scheduler runs the gateway's periodic jobs: tiering sweeps, ledger
// history pruning, and integration syncs
type Scheduler struct {
	cron    *cron.Cron
	store   *ledger.Store
	tiering *tiering.Manager
	syncer  *integrations.Syncer
	logger  *slog.Logger
}

// New creates a scheduler and registers jobs from config. tiering and
// syncer may be nil to skip their jobs.
func New(cfg *config.Config, store *ledger.Store, tm *tiering.Manager, syncer *integrations.Syncer, logger *slog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(),
		store:   store,
		tiering: tm,
		syncer:  syncer,
		logger:  logger,
	}

	if tm != nil && cfg.Tiering.Enabled {
		spec := cfg.Tiering.Schedule
		if spec == "" {
			spec = defaultTieringSpec
		}
		if _, err := s.cron.AddFunc(spec, s.runTieringSweep); err != nil {
			return nil, err
		}
	}

	if _, err := s.cron.AddFunc(defaultPruneSpec, s.runLedgerPrune); err != nil {
		return nil, err
	}

	if syncer != nil {
		if spec := cfg.Integrations.HubSpot.SyncSchedule; spec != "" && cfg.Integrations.HubSpot.Enabled {
			if _, err := s.cron.AddFunc(spec, s.runHubSpotSync); err != nil {
				return nil, err
			}
		}
		if spec := cfg.Integrations.Gong.SyncSchedule; spec != "" && cfg.Integrations.Gong.Enabled {
			if _, err := s.cron.AddFunc(spec, s.runGongSync); err != nil {
				return nil, err
			}
		}
	}

	return s, nil
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop stops the scheduler and waits for running jobs to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Scheduler) runTieringSweep() {
	if _, err := s.tiering.Sweep(); err != nil {
		s.logger.Error("scheduled tiering sweep failed", "error", err)
	}
}

func (s *Scheduler) runLedgerPrune() {
	n, err := s.store.Prune()
	if err != nil {
		s.logger.Error("ledger prune failed", "error", err)
		return
	}
	s.logger.Info("ledger history pruned", "removed", n)
}

func (s *Scheduler) runHubSpotSync() {
	ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
	defer cancel()
	if _, err := s.syncer.SyncHubSpot(ctx); err != nil {
		s.logger.Error("hubspot sync failed", "error", err)
	}
}

func (s *Scheduler) runGongSync() {
	ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
	defer cancel()
	if _, err := s.syncer.SyncGong(ctx); err != nil {
		s.logger.Error("gong sync failed", "error", err)
	}
}
