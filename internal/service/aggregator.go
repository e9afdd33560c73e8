package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/JaimeRamones/prodflow/internal/models"
	"github.com/JaimeRamones/prodflow/internal/utils"
)

// AggregationResult is the merged view of a tenant's stock sources.
type AggregationResult struct {
	Entries map[string]models.AggregatedStock
	// Ineligible lists SKUs with stock but no positive cost from any source.
	Ineligible []string
}

// StockAggregator merges own inventory and supplier feeds per SKU.
type StockAggregator struct {
	store InventoryStore
}

// NewStockAggregator constructs a StockAggregator.
func NewStockAggregator(store InventoryStore) *StockAggregator {
	return &StockAggregator{store: store}
}

// Aggregate loads the tenant's sources and merges them.
func (a *StockAggregator) Aggregate(ctx context.Context, tenantID string) (*AggregationResult, error) {
	items, err := a.store.ListInventory(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("load inventory: %w", err)
	}
	rows, err := a.store.ListSupplierRows(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("load supplier stock: %w", err)
	}

	res := AggregateStock(items, rows)
	log.Debug().
		Str("tenant_id", tenantID).
		Int("inventory_rows", len(items)).
		Int("supplier_rows", len(rows)).
		Int("skus", len(res.Entries)).
		Int("ineligible", len(res.Ineligible)).
		Msg("Stock aggregated")
	return &res, nil
}

type stockAcc struct {
	total   int
	hasCost bool
	entry   models.AggregatedStock
}

// AggregateStock merges items and rows in one pass keyed by normalized SKU.
// Quantities from every source add up. The base cost is the inventory cost
// when positive, else the first positive cost of a supplier with a markup.
func AggregateStock(items []models.InventoryItem, rows []models.SupplierStockRow) AggregationResult {
	accs := make(map[string]*stockAcc, len(items)+len(rows))
	get := func(raw string) *stockAcc {
		sku := utils.NormalizeSKU(raw)
		if sku == "" {
			return nil
		}
		acc, ok := accs[sku]
		if !ok {
			acc = &stockAcc{entry: models.AggregatedStock{SKU: sku}}
			accs[sku] = acc
		}
		return acc
	}

	for i := range items {
		it := &items[i]
		acc := get(it.SKU)
		if acc == nil {
			continue
		}
		acc.total += max(it.QuantityAvailable, 0)
		if !acc.hasCost && it.CostPrice.IsPositive() {
			acc.hasCost = true
			acc.entry.BaseCost = it.CostPrice
			acc.entry.CostSource = models.CostFromInventory
		}
	}

	for i := range rows {
		row := &rows[i]
		acc := get(row.SKU)
		if acc == nil {
			continue
		}
		acc.total += max(row.Quantity, 0)
		if !acc.hasCost && row.CostPrice.IsPositive() && row.SupplierMarkup.Valid {
			supplierID := row.SupplierID
			acc.hasCost = true
			acc.entry.BaseCost = row.CostPrice
			acc.entry.CostSource = models.CostFromSupplier
			acc.entry.SupplierID = &supplierID
			acc.entry.SupplierMarkup = row.SupplierMarkup
		}
	}

	res := AggregationResult{Entries: make(map[string]models.AggregatedStock, len(accs))}
	for sku, acc := range accs {
		if !acc.hasCost {
			res.Ineligible = append(res.Ineligible, sku)
			continue
		}
		acc.entry.TotalStock = acc.total
		res.Entries[sku] = acc.entry
	}
	sort.Strings(res.Ineligible)
	return res
}
