package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/JaimeRamones/prodflow/internal/models"
	"github.com/JaimeRamones/prodflow/internal/utils"
)

var priceTolerance = decimal.RequireFromString("0.01")

// ListingDelta is the minimal change needed to bring a listing in line with
// its computed SKU. Nil fields are unchanged.
type ListingDelta struct {
	Price    *decimal.Decimal
	Quantity *int
	Status   *models.ListingStatus

	// State is what the listing row holds once the delta is applied.
	State models.SyncedState
}

// Empty reports whether nothing needs to be sent.
func (d ListingDelta) Empty() bool {
	return d.Price == nil && d.Quantity == nil && d.Status == nil
}

// Update converts the delta into the marketplace payload fields.
func (d ListingDelta) Update() ListingUpdate {
	return ListingUpdate{Price: d.Price, Quantity: d.Quantity, Status: d.Status}
}

// Diff compares a listing's last synced state with its computed SKU.
// A zero price means "do not list": quantity goes to 0 and no price is sent.
// Status is only sent together with a quantity change, and never for a
// variation.
func Diff(listing models.MarketplaceListing, target models.VirtualSku) ListingDelta {
	quantity := target.Stock
	unlistable := target.Price.IsZero()
	if unlistable {
		quantity = 0
	}
	status := models.StatusForStock(quantity)

	var d ListingDelta
	d.State = models.SyncedState{
		ListingID:       listing.ID,
		VariationID:     listing.VariationID,
		Quantity:        quantity,
		MinPrice:        listing.MarketplaceMinPrice,
		ExpectedVersion: listing.Version,
	}

	// Status lives on the item: a variation pauses through quantity 0 alone so
	// its siblings stay live.
	variation := listing.VariationID != nil || listing.HasVariations
	quantityChanged := listing.LastSyncedQuantity == nil || *listing.LastSyncedQuantity != quantity
	if quantityChanged {
		q := quantity
		d.Quantity = &q
		if !variation && (listing.LastSyncedStatus == nil || *listing.LastSyncedStatus != status) {
			st := status
			d.Status = &st
		}
	}
	d.State.Status = status
	if !quantityChanged && listing.LastSyncedStatus != nil {
		d.State.Status = *listing.LastSyncedStatus
	}

	// A price below the floor the marketplace enforced before would only be
	// rejected and clamped again.
	price := target.Price
	if minPrice := listing.MarketplaceMinPrice; !unlistable && minPrice.Valid && price.LessThan(minPrice.Decimal) {
		price = minPrice.Decimal
	}

	last := listing.LastSyncedPrice
	switch {
	case unlistable:
		d.State.Price = last.Decimal
	case !last.Valid || price.Sub(last.Decimal).Abs().GreaterThan(priceTolerance):
		p := price
		d.Price = &p
		d.State.Price = p
	default:
		d.State.Price = last.Decimal
	}
	return d
}

// Marketplace applies listing updates for a tenant.
type Marketplace interface {
	Apply(ctx context.Context, tenantID string, target Target, update ListingUpdate) (ApplyResult, error)
	ResolveVariation(ctx context.Context, tenantID, itemID, sku string) (int64, error)
}

// BatchResult counts the outcome of one batch of listings.
type BatchResult struct {
	Processed int
	Updated   int
	Unchanged int
	Failed    int
	Skipped   int
	Deferred  int
	Warnings  []string
	Failures  []models.ListingFailure
	// Fatal is set when the tenant cannot continue (credentials).
	Fatal error
}

// ListingSyncDriver diffs listings against computed SKUs and pushes the deltas.
type ListingSyncDriver struct {
	listings    ListingStore
	market      Marketplace
	concurrency int
	now         func() time.Time
}

// NewListingSyncDriver constructs a ListingSyncDriver. concurrency bounds the
// in-flight marketplace updates of one batch.
func NewListingSyncDriver(listings ListingStore, market Marketplace, concurrency int) *ListingSyncDriver {
	if concurrency < 1 {
		concurrency = 1
	}
	return &ListingSyncDriver{
		listings:    listings,
		market:      market,
		concurrency: concurrency,
		now:         time.Now,
	}
}

type listingOutcome int

const (
	outcomeUpdated listingOutcome = iota
	outcomeUnchanged
	outcomeSkipped
	outcomeFailed
	outcomeDeferred
)

// SyncBatch processes listings concurrently. One listing failing never stops
// the others; listings not started before deadline are reported as deferred.
func (d *ListingSyncDriver) SyncBatch(ctx context.Context, tenantID string, listings []models.MarketplaceListing, computed map[string]models.VirtualSku, deadline time.Time) BatchResult {
	var (
		mu  sync.Mutex
		res BatchResult
	)
	record := func(outcome listingOutcome, warning string, failure *models.ListingFailure) {
		mu.Lock()
		defer mu.Unlock()
		switch outcome {
		case outcomeUpdated:
			res.Updated++
		case outcomeUnchanged:
			res.Unchanged++
		case outcomeSkipped:
			res.Skipped++
		case outcomeFailed:
			res.Failed++
			res.Failures = append(res.Failures, *failure)
		case outcomeDeferred:
			res.Deferred++
			return
		}
		res.Processed++
		if warning != "" {
			res.Warnings = append(res.Warnings, warning)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)
	for i := range listings {
		listing := listings[i]
		g.Go(func() error {
			if gctx.Err() != nil || (!deadline.IsZero() && d.now().After(deadline)) {
				record(outcomeDeferred, "", nil)
				return nil
			}
			outcome, warning, err := d.syncListing(gctx, tenantID, listing, computed)
			if err == nil {
				record(outcome, warning, nil)
				return nil
			}
			record(outcomeFailed, "", &models.ListingFailure{
				ListingID: listing.ID,
				MeliID:    listing.MeliID,
				SKU:       listing.SKU,
				Reason:    err.Error(),
			})
			// Tenant-wide failures cancel the rest of the batch.
			if utils.IsTenantFatal(err) {
				return err
			}
			return nil
		})
	}
	res.Fatal = g.Wait()
	return res
}

func (d *ListingSyncDriver) syncListing(ctx context.Context, tenantID string, listing models.MarketplaceListing, computed map[string]models.VirtualSku) (listingOutcome, string, error) {
	logger := log.With().
		Str("tenant_id", tenantID).
		Int64("listing_id", listing.ID).
		Str("meli_id", listing.MeliID).
		Str("sku", listing.SKU).
		Logger()

	if !listing.SyncEnabled {
		return outcomeSkipped, "", nil
	}
	target, ok := computed[utils.NormalizeSKU(listing.SKU)]
	if !ok {
		// No data is not evidence of zero stock.
		logger.Debug().Msg("No computed stock for listing, leaving untouched")
		return outcomeSkipped, "", nil
	}

	delta := Diff(listing, target)
	if delta.Empty() {
		return outcomeUnchanged, "", nil
	}

	variationID := listing.VariationID
	if variationID == nil && listing.HasVariations {
		id, err := d.market.ResolveVariation(ctx, tenantID, listing.MeliID, listing.SKU)
		if err != nil {
			d.markError(ctx, logger, listing.ID, err)
			return outcomeFailed, "", err
		}
		variationID = &id
		delta.State.VariationID = &id
		logger.Info().Int64("variation_id", id).Msg("Resolved live variation id")
	}

	result, err := d.market.Apply(ctx, tenantID, Target{ItemID: listing.MeliID, VariationID: variationID}, delta.Update())
	if err != nil {
		d.markError(ctx, logger, listing.ID, err)
		return outcomeFailed, "", err
	}
	if result.AppliedPrice != nil {
		delta.State.Price = *result.AppliedPrice
		delta.State.MinPrice = decimal.NewNullDecimal(*result.AppliedPrice)
	}

	if err := d.listings.UpdateSyncedState(ctx, delta.State); err != nil {
		if errors.Is(err, utils.ErrListingConflict) {
			logger.Warn().Msg("Listing changed during sync, keeping newer row")
		} else {
			logger.Error().Err(err).Msg("Failed to write back synced state")
		}
		return outcomeFailed, result.Warning, err
	}

	logger.Debug().
		Bool("price", delta.Price != nil).
		Bool("quantity", delta.Quantity != nil).
		Bool("status", delta.Status != nil).
		Msg("Listing synced")
	return outcomeUpdated, result.Warning, nil
}

func (d *ListingSyncDriver) markError(ctx context.Context, logger zerolog.Logger, listingID int64, cause error) {
	logger.Warn().Err(cause).Msg("Listing sync failed")
	// The batch context may already be cancelled by a tenant-wide failure.
	ctx = context.WithoutCancel(ctx)
	if err := d.listings.MarkSyncError(ctx, listingID, cause.Error(), d.now()); err != nil {
		logger.Error().Err(err).Msg("Failed to record listing sync error")
	}
}
