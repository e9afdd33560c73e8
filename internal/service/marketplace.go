package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/JaimeRamones/prodflow/internal/models"
	"github.com/JaimeRamones/prodflow/internal/utils"
	"github.com/JaimeRamones/prodflow/pkg/meli"
	"github.com/JaimeRamones/prodflow/pkg/retry"
)

// MeliRefresher adapts the marketplace client to TokenRefresher.
type MeliRefresher struct {
	API MarketplaceAPI
}

// RefreshToken implements TokenRefresher.
func (r MeliRefresher) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	resp, err := r.API.RefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresIn:    time.Duration(resp.ExpiresIn) * time.Second,
	}, nil
}

// Target addresses one listing on the marketplace.
type Target struct {
	ItemID      string
	VariationID *int64
}

// ListingUpdate holds the fields that changed. Nil fields are not sent.
type ListingUpdate struct {
	Price    *decimal.Decimal
	Quantity *int
	Status   *models.ListingStatus
}

// ApplyResult reports what the marketplace finally accepted.
type ApplyResult struct {
	// AppliedPrice is set when the marketplace minimum replaced the computed price.
	AppliedPrice *decimal.Decimal
	Warning      string
}

// MarketplaceService applies listing updates with the shared retry policy,
// a fixed pacing between calls and transparent token refresh.
type MarketplaceService struct {
	api     MarketplaceAPI
	tokens  *TokenSource
	policy  retry.Policy
	limiter *rate.Limiter
}

// NewMarketplaceService constructs a MarketplaceService. updateDelay is the
// minimum spacing between two marketplace calls.
func NewMarketplaceService(api MarketplaceAPI, tokens *TokenSource, policy retry.Policy, updateDelay time.Duration) *MarketplaceService {
	limit := rate.Inf
	if updateDelay > 0 {
		limit = rate.Every(updateDelay)
	}
	return &MarketplaceService{
		api:     api,
		tokens:  tokens,
		policy:  policy,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Apply pushes update to target. A price-too-low rejection is retried once
// with the marketplace-stated minimum.
func (s *MarketplaceService) Apply(ctx context.Context, tenantID string, target Target, update ListingUpdate) (ApplyResult, error) {
	var result ApplyResult

	payload := buildItemUpdate(target, update, update.Price)
	err := s.call(ctx, tenantID, func(ctx context.Context, token string) error {
		_, err := s.api.UpdateItem(ctx, token, target.ItemID, payload)
		return err
	})
	if err == nil || update.Price == nil {
		return result, err
	}

	var apiErr *meli.APIError
	if !errors.As(err, &apiErr) {
		return result, err
	}
	minimum, ok := apiErr.MinimumPrice()
	if !ok {
		return result, err
	}

	log.Warn().
		Str("tenant_id", tenantID).
		Str("meli_id", target.ItemID).
		Str("price", update.Price.StringFixed(2)).
		Str("minimum", minimum.StringFixed(2)).
		Msg("Price below marketplace minimum, retrying with minimum")

	payload = buildItemUpdate(target, update, &minimum)
	err = s.call(ctx, tenantID, func(ctx context.Context, token string) error {
		_, err := s.api.UpdateItem(ctx, token, target.ItemID, payload)
		return err
	})
	if err != nil {
		return result, err
	}
	result.AppliedPrice = &minimum
	result.Warning = fmt.Sprintf("%s: price %s raised to marketplace minimum %s",
		target.ItemID, update.Price.StringFixed(2), minimum.StringFixed(2))
	return result, nil
}

// ResolveVariation finds the live variation of itemID whose seller SKU
// matches sku. Zero or several matches are an error.
func (s *MarketplaceService) ResolveVariation(ctx context.Context, tenantID, itemID, sku string) (int64, error) {
	var variations []meli.Variation
	err := s.call(ctx, tenantID, func(ctx context.Context, token string) error {
		var err error
		variations, err = s.api.GetVariations(ctx, token, itemID)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("fetch variations of %s: %w", itemID, err)
	}

	want := utils.NormalizeSKU(sku)
	var (
		found   int64
		matches int
	)
	for _, v := range variations {
		if utils.NormalizeSKU(v.SellerSKU()) == want {
			found = v.ID
			matches++
		}
	}
	if matches != 1 {
		return 0, fmt.Errorf("%s sku %q: %d matching variations: %w", itemID, sku, matches, utils.ErrVariationNotResolved)
	}
	return found, nil
}

// call runs fn under the retry policy. Every attempt waits for the pacing
// limiter. An auth-expired answer refreshes the token and retries once.
func (s *MarketplaceService) call(ctx context.Context, tenantID string, fn func(ctx context.Context, token string) error) error {
	authRetried := false
	return s.policy.Do(ctx, func(ctx context.Context, attempt int) error {
		token, err := s.tokens.Token(ctx, tenantID)
		if err != nil {
			return retry.Permanent(err)
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return retry.Permanent(err)
		}
		err = fn(ctx, token)

		var apiErr *meli.APIError
		if err == nil || authRetried || !errors.As(err, &apiErr) || !apiErr.IsAuthExpired() {
			return err
		}
		authRetried = true

		token, rerr := s.tokens.Refresh(ctx, tenantID, token)
		if rerr != nil {
			return retry.Permanent(rerr)
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return retry.Permanent(err)
		}
		return fn(ctx, token)
	})
}

// buildItemUpdate nests variation fields under a single-element variations
// array. Item status is only sent for listings without variations.
func buildItemUpdate(target Target, update ListingUpdate, price *decimal.Decimal) *meli.ItemUpdate {
	var p *float64
	if price != nil {
		f := price.Round(2).InexactFloat64()
		p = &f
	}

	if target.VariationID != nil {
		return &meli.ItemUpdate{
			Variations: []meli.VariationUpdate{{
				ID:                *target.VariationID,
				Price:             p,
				AvailableQuantity: update.Quantity,
			}},
		}
	}

	var status *string
	if update.Status != nil {
		st := string(*update.Status)
		status = &st
	}
	return &meli.ItemUpdate{
		Price:             p,
		AvailableQuantity: update.Quantity,
		Status:            status,
	}
}
