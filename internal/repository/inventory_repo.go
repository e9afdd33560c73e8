package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/JaimeRamones/prodflow/internal/models"
)

// InventoryRepository reads the stock sources the aggregator merges.
type InventoryRepository struct {
	db *sqlx.DB
}

// NewInventoryRepository creates a new InventoryRepository.
func NewInventoryRepository(db *sqlx.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

// ListInventory returns every own-inventory row of the tenant.
func (r *InventoryRepository) ListInventory(ctx context.Context, tenantID string) ([]models.InventoryItem, error) {
	const q = `
        SELECT id, tenant_id, sku, cost_price, quantity_available, supplier_id, updated_at
        FROM inventory_items
        WHERE tenant_id = $1
        ORDER BY id`
	var items []models.InventoryItem
	if err := r.db.SelectContext(ctx, &items, q, tenantID); err != nil {
		return nil, err
	}
	return items, nil
}

// ListSupplierRows returns the feed rows of the tenant's active suppliers,
// joined with each supplier's markup. Rows come back in feed order so the
// first positive supplier cost is deterministic.
func (r *InventoryRepository) ListSupplierRows(ctx context.Context, tenantID string) ([]models.SupplierStockRow, error) {
	const q = `
        SELECT ss.id, ss.sku, ss.cost_price, ss.quantity, ss.warehouse_id,
               s.id AS supplier_id, s.markup_percent AS supplier_markup
        FROM supplier_stock ss
        JOIN warehouses w ON w.id = ss.warehouse_id
        JOIN suppliers s ON s.id = w.supplier_id
        WHERE s.tenant_id = $1
          AND s.is_active = true
        ORDER BY s.id, ss.id`
	var rows []models.SupplierStockRow
	if err := r.db.SelectContext(ctx, &rows, q, tenantID); err != nil {
		return nil, err
	}
	return rows, nil
}
