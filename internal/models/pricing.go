package models

import "github.com/shopspring/decimal"

// PremiumSuffix marks the premium variant of a base SKU.
const PremiumSuffix = "-PR"

// PricingRules is a tenant's pricing configuration.
type PricingRules struct {
	TenantID             string              `db:"tenant_id" json:"tenantId"`
	DefaultMarkupPercent decimal.NullDecimal `db:"default_markup_percent" json:"defaultMarkupPercent"`
	PremiumMarkupPercent decimal.NullDecimal `db:"premium_markup_percent" json:"premiumMarkupPercent"`
	SafetyStock          int                 `db:"safety_stock" json:"safetyStock"`

	Kits []KitRule `db:"-" json:"kits"`
}

// KitRule bundles BundleQuantity units of a base SKU into one listing.
type KitRule struct {
	ID              int64           `db:"id" json:"id"`
	TenantID        string          `db:"tenant_id" json:"tenantId"`
	Suffix          string          `db:"suffix" json:"suffix"`
	BundleQuantity  int             `db:"bundle_quantity" json:"bundleQuantity"`
	DiscountPercent decimal.Decimal `db:"discount_percent" json:"discountPercent"`
	IsActive        bool            `db:"is_active" json:"isActive"`
}
