package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/JaimeRamones/prodflow/internal/models"
)

// RunAller starts a sync run over every tenant.
type RunAller interface {
	RunAll(ctx context.Context) (*models.RunSummary, error)
}

// SyncWorker periodically starts a full sync run.
type SyncWorker struct {
	orchestrator RunAller
	interval     time.Duration
}

// NewSyncWorker constructs a SyncWorker.
func NewSyncWorker(orchestrator RunAller, interval time.Duration) *SyncWorker {
	return &SyncWorker{
		orchestrator: orchestrator,
		interval:     interval,
	}
}

// Start begins the periodic sync loop and listens for context cancellation.
func (w *SyncWorker) Start(ctx context.Context) {
	log.Info().Dur("interval", w.interval).Msg("Starting sync worker")

	w.run(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.run(ctx)
		case <-ctx.Done():
			log.Info().Msg("Sync worker stopped")
			return
		}
	}
}

func (w *SyncWorker) run(ctx context.Context) {
	start := time.Now()
	run, err := w.orchestrator.RunAll(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to start sync run")
		return
	}

	log.Info().
		Str("run_id", run.RunID).
		Int("tenants", len(run.Tenants)).
		Int("failed_tenants", run.FailedTenants).
		Dur("duration", time.Since(start)).
		Msg("Scheduled sync run completed")
}
