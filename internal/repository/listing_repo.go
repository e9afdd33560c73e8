package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/JaimeRamones/prodflow/internal/models"
	"github.com/JaimeRamones/prodflow/internal/utils"
)

// ListingRepository handles data access for marketplace_listings.
type ListingRepository struct {
	db             *sqlx.DB
	optimisticLock bool
}

// NewListingRepository creates a new ListingRepository. With optimisticLock
// set, write-backs only apply if the row version is unchanged since it was read.
func NewListingRepository(db *sqlx.DB, optimisticLock bool) *ListingRepository {
	return &ListingRepository{db: db, optimisticLock: optimisticLock}
}

// ListPage returns one page of the tenant's listings ordered by id.
func (r *ListingRepository) ListPage(ctx context.Context, tenantID string, limit, offset int) ([]models.MarketplaceListing, error) {
	const q = `
        SELECT id, tenant_id, meli_id, variation_id, sku, has_variations, sync_enabled,
               last_synced_price, marketplace_min_price, last_synced_quantity, last_synced_status, last_synced_at,
               last_sync_attempt_at, sync_error, version, created_at, updated_at
        FROM marketplace_listings
        WHERE tenant_id = $1
        ORDER BY id
        LIMIT $2 OFFSET $3`
	var listings []models.MarketplaceListing
	if err := r.db.SelectContext(ctx, &listings, q, tenantID, limit, offset); err != nil {
		return nil, err
	}
	return listings, nil
}

// UpdateSyncedState records what the marketplace accepted in a single statement.
func (r *ListingRepository) UpdateSyncedState(ctx context.Context, s models.SyncedState) error {
	q := `
        UPDATE marketplace_listings SET
            last_synced_price = $2,
            last_synced_quantity = $3,
            last_synced_status = $4,
            variation_id = COALESCE($5, variation_id),
            marketplace_min_price = $6,
            last_synced_at = NOW(),
            last_sync_attempt_at = NOW(),
            sync_error = NULL,
            version = version + 1,
            updated_at = NOW()
        WHERE id = $1`
	args := []any{s.ListingID, s.Price, s.Quantity, string(s.Status), s.VariationID, s.MinPrice}
	if r.optimisticLock {
		q += ` AND version = $7`
		args = append(args, s.ExpectedVersion)
	}

	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if r.optimisticLock {
			return fmt.Errorf("listing %d: %w", s.ListingID, utils.ErrListingConflict)
		}
		return fmt.Errorf("listing %d not found", s.ListingID)
	}
	return nil
}

// MarkSyncError records a failed attempt without touching the synced state.
func (r *ListingRepository) MarkSyncError(ctx context.Context, listingID int64, reason string, at time.Time) error {
	const q = `
        UPDATE marketplace_listings
        SET sync_error = $2, last_sync_attempt_at = $3, updated_at = NOW()
        WHERE id = $1`
	_, err := r.db.ExecContext(ctx, q, listingID, reason, at)
	return err
}
