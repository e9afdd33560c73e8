package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/JaimeRamones/prodflow/internal/models"
)

// SyncRunRepository persists per-page sync summaries.
type SyncRunRepository struct {
	db *sqlx.DB
}

// NewSyncRunRepository creates a new SyncRunRepository.
func NewSyncRunRepository(db *sqlx.DB) *SyncRunRepository {
	return &SyncRunRepository{db: db}
}

// Create inserts a run row.
func (r *SyncRunRepository) Create(ctx context.Context, run *models.SyncRun) error {
	const q = `
        INSERT INTO sync_runs (id, run_id, tenant_id, page, processed, updated, unchanged, failed,
                               skipped, deferred, ineligible, warnings, error, started_at, finished_at)
        VALUES (:id, :run_id, :tenant_id, :page, :processed, :updated, :unchanged, :failed,
                :skipped, :deferred, :ineligible, :warnings, :error, :started_at, :finished_at)`
	_, err := r.db.NamedExecContext(ctx, q, run)
	return err
}

// ListByTenant returns the tenant's most recent runs, newest first.
func (r *SyncRunRepository) ListByTenant(ctx context.Context, tenantID string, limit int) ([]models.SyncRun, error) {
	const q = `
        SELECT id, run_id, tenant_id, page, processed, updated, unchanged, failed,
               skipped, deferred, ineligible, warnings, error, started_at, finished_at
        FROM sync_runs
        WHERE tenant_id = $1
        ORDER BY started_at DESC
        LIMIT $2`
	runs := []models.SyncRun{}
	if err := r.db.SelectContext(ctx, &runs, q, tenantID, limit); err != nil {
		return nil, err
	}
	return runs, nil
}
