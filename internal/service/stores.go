package service

import (
	"context"
	"time"

	"github.com/JaimeRamones/prodflow/internal/cache"
	"github.com/JaimeRamones/prodflow/internal/models"
	"github.com/JaimeRamones/prodflow/pkg/meli"
)

// InventoryStore reads the stock sources of a tenant.
type InventoryStore interface {
	ListInventory(ctx context.Context, tenantID string) ([]models.InventoryItem, error)
	ListSupplierRows(ctx context.Context, tenantID string) ([]models.SupplierStockRow, error)
}

// ListingStore reads and writes back marketplace listings.
type ListingStore interface {
	ListPage(ctx context.Context, tenantID string, limit, offset int) ([]models.MarketplaceListing, error)
	UpdateSyncedState(ctx context.Context, s models.SyncedState) error
	MarkSyncError(ctx context.Context, listingID int64, reason string, at time.Time) error
}

// CredentialStore holds tenant OAuth tokens.
type CredentialStore interface {
	ListTenantIDs(ctx context.Context) ([]string, error)
	GetByTenant(ctx context.Context, tenantID string) (*models.TenantCredential, error)
	SaveTokens(ctx context.Context, tenantID, accessToken, refreshToken string, expiresAt time.Time) error
}

// PricingStore reads tenant pricing rules.
type PricingStore interface {
	GetRules(ctx context.Context, tenantID string) (*models.PricingRules, error)
}

// SyncRunStore persists sync summaries.
type SyncRunStore interface {
	Create(ctx context.Context, run *models.SyncRun) error
}

// MarketplaceAPI is the subset of the marketplace REST client the sync uses.
type MarketplaceAPI interface {
	UpdateItem(ctx context.Context, accessToken, itemID string, update *meli.ItemUpdate) (*meli.Item, error)
	GetVariations(ctx context.Context, accessToken, itemID string) ([]meli.Variation, error)
	RefreshToken(ctx context.Context, refreshToken string) (*meli.TokenResponse, error)
}

// PageScheduler carries page jobs between invocations and guards pages
// against concurrent reruns.
type PageScheduler interface {
	Enqueue(ctx context.Context, job cache.PageJob) error
	AcquirePageLock(ctx context.Context, tenantID string, page int) (*cache.PageLock, bool, error)
	ReleasePageLock(ctx context.Context, lock *cache.PageLock) error
}

// SummaryNotifier is told about every finished tenant page.
type SummaryNotifier interface {
	NotifySyncSummary(summary *models.SyncSummary)
}
