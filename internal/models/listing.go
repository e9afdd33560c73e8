package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ListingStatus is the marketplace publication state we track.
type ListingStatus string

const (
	ListingActive ListingStatus = "active"
	ListingPaused ListingStatus = "paused"
)

// StatusForStock derives the publication state from available stock.
func StatusForStock(stock int) ListingStatus {
	if stock > 0 {
		return ListingActive
	}
	return ListingPaused
}

// MarketplaceListing is the last-known synced state of one marketplace entry.
// Identity is (tenant_id, meli_id, variation_id); a nil variation is its own identity.
type MarketplaceListing struct {
	ID                  int64               `db:"id" json:"id"`
	TenantID            string              `db:"tenant_id" json:"tenantId"`
	MeliID              string              `db:"meli_id" json:"meliId"`
	VariationID         *int64              `db:"variation_id" json:"variationId,omitempty"`
	SKU                 string              `db:"sku" json:"sku"`
	HasVariations       bool                `db:"has_variations" json:"hasVariations"`
	SyncEnabled         bool                `db:"sync_enabled" json:"syncEnabled"`
	LastSyncedPrice     decimal.NullDecimal `db:"last_synced_price" json:"lastSyncedPrice"`
	// MarketplaceMinPrice is the floor the marketplace last enforced on this listing.
	MarketplaceMinPrice decimal.NullDecimal `db:"marketplace_min_price" json:"marketplaceMinPrice"`
	LastSyncedQuantity  *int                `db:"last_synced_quantity" json:"lastSyncedQuantity,omitempty"`
	LastSyncedStatus    *ListingStatus      `db:"last_synced_status" json:"lastSyncedStatus,omitempty"`
	LastSyncedAt        *time.Time          `db:"last_synced_at" json:"lastSyncedAt,omitempty"`
	LastSyncAttemptAt   *time.Time          `db:"last_sync_attempt_at" json:"lastSyncAttemptAt,omitempty"`
	SyncError           *string             `db:"sync_error" json:"syncError,omitempty"`
	Version             int64               `db:"version" json:"version"`
	CreatedAt           time.Time           `db:"created_at" json:"-"`
	UpdatedAt           time.Time           `db:"updated_at" json:"updatedAt"`
}

// SyncedState is what the driver writes back after the marketplace accepted an update.
type SyncedState struct {
	ListingID       int64
	VariationID     *int64
	Price           decimal.Decimal
	Quantity        int
	Status          ListingStatus
	MinPrice        decimal.NullDecimal
	ExpectedVersion int64
}
