package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/JaimeRamones/prodflow/internal/cache"
	"github.com/JaimeRamones/prodflow/internal/models"
	"github.com/JaimeRamones/prodflow/internal/utils"
	"github.com/JaimeRamones/prodflow/pkg/meli"
	"github.com/JaimeRamones/prodflow/pkg/retry"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func nullDec(s string) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: dec(s), Valid: true}
}

func intPtr(v int) *int { return &v }

func statusPtr(s models.ListingStatus) *models.ListingStatus { return &s }

func noSleepPolicy() retry.Policy {
	p := retry.Default()
	p.Sleep = func(context.Context, time.Duration) error { return nil }
	return p
}

type fakeInventory struct {
	items map[string][]models.InventoryItem
	rows  map[string][]models.SupplierStockRow
}

func (f *fakeInventory) ListInventory(_ context.Context, tenantID string) ([]models.InventoryItem, error) {
	return f.items[tenantID], nil
}

func (f *fakeInventory) ListSupplierRows(_ context.Context, tenantID string) ([]models.SupplierStockRow, error) {
	return f.rows[tenantID], nil
}

type fakeListings struct {
	mu       sync.Mutex
	rows     []models.MarketplaceListing
	errors   map[int64]string
	writeErr error
}

func (f *fakeListings) ListPage(_ context.Context, tenantID string, limit, offset int) ([]models.MarketplaceListing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.MarketplaceListing
	for _, l := range f.rows {
		if l.TenantID == tenantID {
			out = append(out, l)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	end := min(offset+limit, len(out))
	return append([]models.MarketplaceListing(nil), out[offset:end]...), nil
}

func (f *fakeListings) UpdateSyncedState(_ context.Context, s models.SyncedState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	for i := range f.rows {
		if f.rows[i].ID != s.ListingID {
			continue
		}
		l := &f.rows[i]
		l.LastSyncedPrice = decimal.NullDecimal{Decimal: s.Price, Valid: true}
		l.LastSyncedQuantity = intPtr(s.Quantity)
		l.LastSyncedStatus = statusPtr(s.Status)
		l.MarketplaceMinPrice = s.MinPrice
		if s.VariationID != nil {
			l.VariationID = s.VariationID
		}
		l.Version++
		return nil
	}
	return nil
}

func (f *fakeListings) MarkSyncError(_ context.Context, listingID int64, reason string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.errors == nil {
		f.errors = map[int64]string{}
	}
	f.errors[listingID] = reason
	return nil
}

func (f *fakeListings) get(id int64) models.MarketplaceListing {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.rows {
		if l.ID == id {
			return l
		}
	}
	return models.MarketplaceListing{}
}

type fakeCredentials struct {
	mu    sync.Mutex
	creds map[string]*models.TenantCredential
	saved int
}

func (f *fakeCredentials) ListTenantIDs(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for id := range f.creds {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeCredentials) GetByTenant(_ context.Context, tenantID string) (*models.TenantCredential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.creds[tenantID]
	if !ok {
		return nil, utils.ErrMissingCredentials
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCredentials) SaveTokens(_ context.Context, tenantID, access, refresh string, exp time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.creds[tenantID]
	c.AccessToken, c.RefreshToken, c.ExpiresAt = access, refresh, exp
	f.saved++
	return nil
}

func validCred(tenantID, token string) *models.TenantCredential {
	return &models.TenantCredential{
		TenantID:     tenantID,
		AccessToken:  token,
		RefreshToken: "refresh-" + tenantID,
		ExpiresAt:    time.Now().Add(time.Hour),
	}
}

// fakeAPI records marketplace calls. update decides the outcome of each
// UpdateItem call; nil means success.
type fakeAPI struct {
	mu         sync.Mutex
	updates    []fakeCall
	variations map[string][]meli.Variation
	update     func(call fakeCall, n int) error
	refresh    func(refreshToken string) (*meli.TokenResponse, error)
	refreshes  int
}

type fakeCall struct {
	Token  string
	ItemID string
	Update meli.ItemUpdate
}

func (f *fakeAPI) UpdateItem(_ context.Context, token, itemID string, u *meli.ItemUpdate) (*meli.Item, error) {
	f.mu.Lock()
	call := fakeCall{Token: token, ItemID: itemID, Update: *u}
	f.updates = append(f.updates, call)
	n := len(f.updates)
	fn := f.update
	f.mu.Unlock()
	if fn != nil {
		if err := fn(call, n); err != nil {
			return nil, err
		}
	}
	return &meli.Item{ID: itemID}, nil
}

func (f *fakeAPI) GetVariations(_ context.Context, _ string, itemID string) ([]meli.Variation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.variations[itemID], nil
}

func (f *fakeAPI) RefreshToken(_ context.Context, refreshToken string) (*meli.TokenResponse, error) {
	f.mu.Lock()
	f.refreshes++
	fn := f.refresh
	f.mu.Unlock()
	if fn != nil {
		return fn(refreshToken)
	}
	return &meli.TokenResponse{AccessToken: "fresh-token", RefreshToken: "fresh-refresh", ExpiresIn: 21600}, nil
}

func (f *fakeAPI) calls() []fakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fakeCall(nil), f.updates...)
}

func (f *fakeAPI) callsFor(itemID string) int {
	n := 0
	for _, c := range f.calls() {
		if c.ItemID == itemID {
			n++
		}
	}
	return n
}

type fakePages struct {
	mu     sync.Mutex
	jobs   []cache.PageJob
	held   map[string]bool
	owners map[*cache.PageLock]string
}

func (f *fakePages) Enqueue(_ context.Context, job cache.PageJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, job)
	return nil
}

func (f *fakePages) AcquirePageLock(_ context.Context, tenantID string, page int) (*cache.PageLock, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held == nil {
		f.held = map[string]bool{}
		f.owners = map[*cache.PageLock]string{}
	}
	key := fmt.Sprintf("%s:%d", tenantID, page)
	if f.held[key] {
		return nil, false, nil
	}
	lock := &cache.PageLock{}
	f.held[key] = true
	f.owners[lock] = key
	return lock, true, nil
}

func (f *fakePages) ReleasePageLock(_ context.Context, lock *cache.PageLock) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.held, f.owners[lock])
	delete(f.owners, lock)
	return nil
}

func (f *fakePages) hold(tenantID string, page int) {
	_, _, _ = f.AcquirePageLock(context.Background(), tenantID, page)
}

type fakeRuns struct {
	mu   sync.Mutex
	runs []models.SyncRun
}

func (f *fakeRuns) Create(_ context.Context, run *models.SyncRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, *run)
	return nil
}

type fakeNotifier struct {
	mu        sync.Mutex
	summaries []models.SyncSummary
}

func (f *fakeNotifier) NotifySyncSummary(s *models.SyncSummary) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaries = append(f.summaries, *s)
}
