package models

import "github.com/shopspring/decimal"

// CostSource tells where an aggregated base cost came from.
type CostSource string

const (
	CostFromInventory CostSource = "inventory"
	CostFromSupplier  CostSource = "supplier"
)

// AggregatedStock is the merged stock and cost of one normalized SKU across
// every source. Recomputed on each run, never persisted.
type AggregatedStock struct {
	SKU            string
	TotalStock     int
	BaseCost       decimal.Decimal
	CostSource     CostSource
	SupplierID     *int64
	SupplierMarkup decimal.NullDecimal
}

// VirtualSkuKind is the rule that produced a VirtualSku.
type VirtualSkuKind string

const (
	SkuBase    VirtualSkuKind = "base"
	SkuPremium VirtualSkuKind = "premium"
	SkuKit     VirtualSkuKind = "kit"
)

// VirtualSku is a sellable SKU with its computed price and stock.
// A zero price means the SKU must not be listed.
type VirtualSku struct {
	SKU     string
	BaseSKU string
	Kind    VirtualSkuKind
	Price   decimal.Decimal
	Stock   int
}
