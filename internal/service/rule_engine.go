package service

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/JaimeRamones/prodflow/internal/models"
	"github.com/JaimeRamones/prodflow/internal/utils"
)

var hundred = decimal.NewFromInt(100)

// RuleEngine expands aggregated base SKUs into sellable virtual SKUs.
type RuleEngine struct {
	minPrice    decimal.Decimal
	maxQuantity int
}

// NewRuleEngine constructs a RuleEngine. A non-zero price below minPrice is
// raised to it; stock above maxQuantity is capped (0 disables the cap).
func NewRuleEngine(minPrice decimal.Decimal, maxQuantity int) *RuleEngine {
	return &RuleEngine{minPrice: minPrice, maxQuantity: maxQuantity}
}

// ExpandAll expands every entry and merges outputs that land on the same SKU,
// keeping the lowest positive price and the summed stock. A merged price is 0
// only when every colliding output is unlistable.
func (e *RuleEngine) ExpandAll(entries map[string]models.AggregatedStock, rules *models.PricingRules) (map[string]models.VirtualSku, error) {
	if err := checkRules(rules); err != nil {
		return nil, err
	}

	out := make(map[string]models.VirtualSku, len(entries)*(2+len(rules.Kits)))
	for _, entry := range entries {
		for _, v := range e.expand(entry, rules) {
			prev, ok := out[v.SKU]
			if !ok {
				out[v.SKU] = v
				continue
			}
			if v.Price.IsPositive() && (prev.Price.IsZero() || v.Price.LessThan(prev.Price)) {
				prev.Price = v.Price
			}
			prev.Stock = e.capStock(prev.Stock + v.Stock)
			out[v.SKU] = prev
		}
	}
	return out, nil
}

// Expand returns the base SKU followed by its premium and kit variants.
func (e *RuleEngine) Expand(entry models.AggregatedStock, rules *models.PricingRules) ([]models.VirtualSku, error) {
	if err := checkRules(rules); err != nil {
		return nil, err
	}
	return e.expand(entry, rules), nil
}

func checkRules(rules *models.PricingRules) error {
	if rules == nil {
		return utils.ErrTenantNotConfigured
	}
	if !rules.DefaultMarkupPercent.Valid {
		return fmt.Errorf("tenant %s: %w", rules.TenantID, utils.ErrMissingMarkup)
	}
	return nil
}

func (e *RuleEngine) expand(entry models.AggregatedStock, rules *models.PricingRules) []models.VirtualSku {
	markup := rules.DefaultMarkupPercent.Decimal
	if entry.CostSource == models.CostFromSupplier && entry.SupplierMarkup.Valid {
		markup = entry.SupplierMarkup.Decimal
	}
	// Kept unrounded; only published prices are rounded.
	basePrice := entry.BaseCost.Mul(percentFactor(markup))
	stock := max(entry.TotalStock-rules.SafetyStock, 0)

	out := make([]models.VirtualSku, 0, 2+len(rules.Kits))
	out = append(out, models.VirtualSku{
		SKU:     entry.SKU,
		BaseSKU: entry.SKU,
		Kind:    models.SkuBase,
		Price:   e.finalPrice(basePrice),
		Stock:   e.capStock(stock),
	})

	if rules.PremiumMarkupPercent.Valid {
		out = append(out, models.VirtualSku{
			SKU:     utils.NormalizeSKU(entry.SKU + models.PremiumSuffix),
			BaseSKU: entry.SKU,
			Kind:    models.SkuPremium,
			Price:   e.finalPrice(basePrice.Mul(percentFactor(rules.PremiumMarkupPercent.Decimal))),
			Stock:   e.capStock(stock),
		})
	}

	for _, kit := range rules.Kits {
		if kit.BundleQuantity <= 0 || kit.Suffix == "" {
			continue
		}
		bundle := decimal.NewFromInt(int64(kit.BundleQuantity))
		discount := decimal.NewFromInt(1).Sub(kit.DiscountPercent.Div(hundred))
		out = append(out, models.VirtualSku{
			SKU:     utils.NormalizeSKU(entry.SKU + kit.Suffix),
			BaseSKU: entry.SKU,
			Kind:    models.SkuKit,
			Price:   e.finalPrice(basePrice.Mul(bundle).Mul(discount)),
			Stock:   e.capStock(stock / kit.BundleQuantity),
		})
	}
	return out
}

// finalPrice rounds to cents and applies the price floor. Zero stays zero.
func (e *RuleEngine) finalPrice(p decimal.Decimal) decimal.Decimal {
	p = p.Round(2)
	if p.Sign() <= 0 {
		return decimal.Zero
	}
	if p.LessThan(e.minPrice) {
		return e.minPrice.Round(2)
	}
	return p
}

func (e *RuleEngine) capStock(n int) int {
	if n < 0 {
		return 0
	}
	if e.maxQuantity > 0 && n > e.maxQuantity {
		return e.maxQuantity
	}
	return n
}

func percentFactor(pct decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(1).Add(pct.Div(hundred))
}
