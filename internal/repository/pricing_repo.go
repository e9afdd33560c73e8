package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/JaimeRamones/prodflow/internal/models"
	"github.com/JaimeRamones/prodflow/internal/utils"
)

// PricingRepository reads tenant pricing rules and kit definitions.
type PricingRepository struct {
	db *sqlx.DB
}

// NewPricingRepository creates a new PricingRepository.
func NewPricingRepository(db *sqlx.DB) *PricingRepository {
	return &PricingRepository{db: db}
}

// GetRules returns the tenant's pricing rules with active kits attached.
func (r *PricingRepository) GetRules(ctx context.Context, tenantID string) (*models.PricingRules, error) {
	const q = `
        SELECT tenant_id, default_markup_percent, premium_markup_percent, safety_stock
        FROM pricing_rules
        WHERE tenant_id = $1`
	var rules models.PricingRules
	if err := r.db.GetContext(ctx, &rules, q, tenantID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("tenant %s has no pricing rules: %w", tenantID, utils.ErrTenantNotConfigured)
		}
		return nil, err
	}

	const kq = `
        SELECT id, tenant_id, suffix, bundle_quantity, discount_percent, is_active
        FROM kit_rules
        WHERE tenant_id = $1 AND is_active = true
        ORDER BY id`
	if err := r.db.SelectContext(ctx, &rules.Kits, kq, tenantID); err != nil {
		return nil, err
	}
	return &rules, nil
}
