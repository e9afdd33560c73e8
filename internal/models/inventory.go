package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// InventoryItem is a tenant's own stock row. Read-only to the sync core.
type InventoryItem struct {
	ID                int64           `db:"id" json:"id"`
	TenantID          string          `db:"tenant_id" json:"tenantId"`
	SKU               string          `db:"sku" json:"sku"`
	CostPrice         decimal.Decimal `db:"cost_price" json:"costPrice"`
	QuantityAvailable int             `db:"quantity_available" json:"quantityAvailable"`
	SupplierID        *int64          `db:"supplier_id" json:"supplierId,omitempty"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updatedAt"`
}

// Supplier is static pricing configuration for a stock source.
type Supplier struct {
	ID            int64               `db:"id" json:"id"`
	TenantID      string              `db:"tenant_id" json:"tenantId"`
	Name          string              `db:"name" json:"name"`
	MarkupPercent decimal.NullDecimal `db:"markup_percent" json:"markupPercent"`
	IsActive      bool                `db:"is_active" json:"isActive"`
}

// SupplierStockRow is a normalized supplier feed row, joined with the owning
// supplier so the aggregator can tell whether its cost is usable.
type SupplierStockRow struct {
	ID             int64               `db:"id" json:"id"`
	SKU            string              `db:"sku" json:"sku"`
	CostPrice      decimal.Decimal     `db:"cost_price" json:"costPrice"`
	Quantity       int                 `db:"quantity" json:"quantity"`
	WarehouseID    int64               `db:"warehouse_id" json:"warehouseId"`
	SupplierID     int64               `db:"supplier_id" json:"supplierId"`
	SupplierMarkup decimal.NullDecimal `db:"supplier_markup" json:"supplierMarkup"`
}
