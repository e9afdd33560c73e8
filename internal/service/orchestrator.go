package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/JaimeRamones/prodflow/internal/cache"
	"github.com/JaimeRamones/prodflow/internal/models"
	"github.com/JaimeRamones/prodflow/internal/utils"
)

// OrchestratorConfig holds the batching knobs of a sync run.
type OrchestratorConfig struct {
	BatchSize         int
	SoftDeadline      time.Duration
	TenantConcurrency int
}

// TokenProvider hands out tenant access tokens.
type TokenProvider interface {
	Token(ctx context.Context, tenantID string) (string, error)
}

// SyncOrchestrator runs the aggregate, expand and sync pipeline per tenant
// and per page, isolating failures per tenant.
type SyncOrchestrator struct {
	aggregator  *StockAggregator
	engine      *RuleEngine
	driver      *ListingSyncDriver
	pricing     PricingStore
	listings    ListingStore
	credentials CredentialStore
	tokens      TokenProvider
	runs        SyncRunStore
	pages       PageScheduler
	notifier    SummaryNotifier
	cfg         OrchestratorConfig
	now         func() time.Time
}

// OrchestratorDeps groups the collaborators of a SyncOrchestrator.
type OrchestratorDeps struct {
	Aggregator  *StockAggregator
	Engine      *RuleEngine
	Driver      *ListingSyncDriver
	Pricing     PricingStore
	Listings    ListingStore
	Credentials CredentialStore
	Tokens      TokenProvider
	Runs        SyncRunStore
	Pages       PageScheduler
	Notifier    SummaryNotifier
}

// NewSyncOrchestrator constructs a SyncOrchestrator.
func NewSyncOrchestrator(deps OrchestratorDeps, cfg OrchestratorConfig) *SyncOrchestrator {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 100
	}
	if cfg.TenantConcurrency < 1 {
		cfg.TenantConcurrency = 1
	}
	return &SyncOrchestrator{
		aggregator:  deps.Aggregator,
		engine:      deps.Engine,
		driver:      deps.Driver,
		pricing:     deps.Pricing,
		listings:    deps.Listings,
		credentials: deps.Credentials,
		tokens:      deps.Tokens,
		runs:        deps.Runs,
		pages:       deps.Pages,
		notifier:    deps.Notifier,
		cfg:         cfg,
		now:         time.Now,
	}
}

// RunAll syncs page 0 of every tenant with credentials. Later pages are
// scheduled on the page queue. Per-tenant failures are reported in the
// summary; only failing to list tenants returns an error.
func (o *SyncOrchestrator) RunAll(ctx context.Context) (*models.RunSummary, error) {
	tenantIDs, err := o.credentials.ListTenantIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}

	run := &models.RunSummary{
		RunID:     uuid.New().String(),
		Tenants:   make([]models.SyncSummary, len(tenantIDs)),
		StartedAt: o.now().UTC(),
	}
	log.Info().Str("run_id", run.RunID).Int("tenants", len(tenantIDs)).Msg("Sync run started")

	var g errgroup.Group
	g.SetLimit(o.cfg.TenantConcurrency)
	for i, tenantID := range tenantIDs {
		i, tenantID := i, tenantID
		g.Go(func() error {
			summary, err := o.RunPage(ctx, cache.PageJob{RunID: run.RunID, TenantID: tenantID})
			if summary == nil {
				summary = &models.SyncSummary{RunID: run.RunID, TenantID: tenantID, Warnings: []string{}}
			}
			if err != nil && summary.Error == "" {
				summary.Error = err.Error()
			}
			run.Tenants[i] = *summary
			return nil
		})
	}
	_ = g.Wait()

	for _, s := range run.Tenants {
		if s.Error == "" {
			run.Succeeded++
		} else {
			run.FailedTenants++
		}
	}
	run.FinishedAt = o.now().UTC()

	log.Info().
		Str("run_id", run.RunID).
		Int("succeeded", run.Succeeded).
		Int("failed", run.FailedTenants).
		Dur("duration", run.FinishedAt.Sub(run.StartedAt)).
		Msg("Sync run finished")
	return run, nil
}

// RunTenantPage syncs one page of one tenant under a fresh run id.
func (o *SyncOrchestrator) RunTenantPage(ctx context.Context, tenantID string, page int) (*models.SyncSummary, error) {
	return o.RunPage(ctx, cache.PageJob{RunID: uuid.New().String(), TenantID: tenantID, Page: page})
}

// RunPage syncs the page described by job. It returns utils.ErrPageLocked
// without doing anything when another worker holds the page.
func (o *SyncOrchestrator) RunPage(ctx context.Context, job cache.PageJob) (*models.SyncSummary, error) {
	if job.Page < 0 {
		job.Page = 0
	}
	lock, ok, err := o.pages.AcquirePageLock(ctx, job.TenantID, job.Page)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("tenant %s page %d: %w", job.TenantID, job.Page, utils.ErrPageLocked)
	}

	summary := &models.SyncSummary{
		RunID:     job.RunID,
		TenantID:  job.TenantID,
		Page:      job.Page,
		Warnings:  []string{},
		StartedAt: o.now().UTC(),
	}
	syncErr := o.syncPage(ctx, summary)

	if err := o.pages.ReleasePageLock(context.WithoutCancel(ctx), lock); err != nil {
		log.Warn().Err(err).Str("tenant_id", job.TenantID).Int("page", job.Page).Msg("Failed to release page lock")
	}

	if syncErr == nil && summary.NextPage != nil {
		next := cache.PageJob{RunID: job.RunID, TenantID: job.TenantID, Page: *summary.NextPage}
		if err := o.pages.Enqueue(ctx, next); err != nil {
			log.Error().Err(err).Str("tenant_id", job.TenantID).Int("page", next.Page).Msg("Failed to schedule next page")
			summary.Warnings = append(summary.Warnings, fmt.Sprintf("next page %d not scheduled: %v", next.Page, err))
		}
	}

	if syncErr != nil {
		summary.Error = syncErr.Error()
	}
	summary.FinishedAt = o.now().UTC()
	o.record(ctx, summary)

	logEvent := log.Info()
	if syncErr != nil {
		logEvent = log.Error().Err(syncErr)
	}
	logEvent.
		Str("run_id", summary.RunID).
		Str("tenant_id", summary.TenantID).
		Int("page", summary.Page).
		Int("processed", summary.Processed).
		Int("updated", summary.Updated).
		Int("unchanged", summary.Unchanged).
		Int("failed", summary.Failed).
		Int("skipped", summary.Skipped).
		Int("deferred", summary.Deferred).
		Dur("duration", summary.FinishedAt.Sub(summary.StartedAt)).
		Msg("Tenant page synced")

	return summary, syncErr
}

func (o *SyncOrchestrator) syncPage(ctx context.Context, summary *models.SyncSummary) error {
	tenantID := summary.TenantID
	deadline := summary.StartedAt.Add(o.cfg.SoftDeadline)
	if o.cfg.SoftDeadline <= 0 {
		deadline = time.Time{}
	}

	rules, err := o.pricing.GetRules(ctx, tenantID)
	if err != nil {
		return err
	}
	agg, err := o.aggregator.Aggregate(ctx, tenantID)
	if err != nil {
		return err
	}
	summary.Ineligible = len(agg.Ineligible)

	computed, err := o.engine.ExpandAll(agg.Entries, rules)
	if err != nil {
		return err
	}

	// Fail the tenant early when no valid credentials can be obtained.
	if _, err := o.tokens.Token(ctx, tenantID); err != nil {
		return err
	}

	offset := summary.Page * o.cfg.BatchSize
	listings, err := o.listings.ListPage(ctx, tenantID, o.cfg.BatchSize, offset)
	if err != nil {
		return fmt.Errorf("load listings: %w", err)
	}

	res := o.driver.SyncBatch(ctx, tenantID, listings, computed, deadline)
	summary.Processed = res.Processed
	summary.Updated = res.Updated
	summary.Unchanged = res.Unchanged
	summary.Failed = res.Failed
	summary.Skipped = res.Skipped
	summary.Deferred = res.Deferred
	summary.Failures = res.Failures
	summary.Warnings = append(summary.Warnings, res.Warnings...)
	if res.Fatal != nil {
		return res.Fatal
	}

	switch {
	case res.Deferred > 0 && res.Processed == 0:
		// Rescheduling would loop forever; the page worker's attempt limit applies instead.
		return fmt.Errorf("tenant %s page %d: soft deadline passed before any listing: %w",
			tenantID, summary.Page, utils.ErrPageNoProgress)
	case res.Deferred > 0:
		// Out of time: the same page runs again; finished listings will diff clean.
		next := summary.Page
		summary.NextPage = &next
	case len(listings) == o.cfg.BatchSize:
		next := summary.Page + 1
		summary.NextPage = &next
	}
	return nil
}

func (o *SyncOrchestrator) record(ctx context.Context, summary *models.SyncSummary) {
	if o.runs != nil {
		run := &models.SyncRun{
			ID:         uuid.New().String(),
			RunID:      summary.RunID,
			TenantID:   summary.TenantID,
			Page:       summary.Page,
			Processed:  summary.Processed,
			Updated:    summary.Updated,
			Unchanged:  summary.Unchanged,
			Failed:     summary.Failed,
			Skipped:    summary.Skipped,
			Deferred:   summary.Deferred,
			Ineligible: summary.Ineligible,
			Warnings:   summary.Warnings,
			StartedAt:  summary.StartedAt,
			FinishedAt: summary.FinishedAt,
		}
		if summary.Error != "" {
			msg := summary.Error
			run.Error = &msg
		}
		if err := o.runs.Create(context.WithoutCancel(ctx), run); err != nil {
			log.Error().Err(err).Str("tenant_id", summary.TenantID).Msg("Failed to persist sync run")
		}
	}
	if o.notifier != nil {
		o.notifier.NotifySyncSummary(summary)
	}
}

// IsRetryablePageError reports whether a failed page is worth another attempt.
func IsRetryablePageError(err error) bool {
	if err == nil {
		return false
	}
	return !utils.IsTenantFatal(err) &&
		!errors.Is(err, utils.ErrPageLocked) &&
		!errors.Is(err, context.Canceled)
}
