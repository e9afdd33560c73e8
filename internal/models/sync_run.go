package models

import (
	"time"

	"github.com/lib/pq"
)

// ListingFailure describes one listing that could not be synced in a batch.
type ListingFailure struct {
	ListingID int64  `json:"listingId"`
	MeliID    string `json:"meliId"`
	SKU       string `json:"sku"`
	Reason    string `json:"reason"`
}

// SyncSummary is the outcome of one (tenant, page) sync invocation.
type SyncSummary struct {
	RunID      string           `json:"runId"`
	TenantID   string           `json:"tenantId"`
	Page       int              `json:"page"`
	Processed  int              `json:"processed"`
	Updated    int              `json:"updated"`
	Unchanged  int              `json:"unchanged"`
	Failed     int              `json:"failed"`
	Skipped    int              `json:"skipped"`
	Deferred   int              `json:"deferred"`
	Ineligible int              `json:"ineligible"`
	Warnings   []string         `json:"warnings"`
	Failures   []ListingFailure `json:"failures,omitempty"`
	NextPage   *int             `json:"nextPage,omitempty"`
	Error      string           `json:"error,omitempty"`
	StartedAt  time.Time        `json:"startedAt"`
	FinishedAt time.Time        `json:"finishedAt"`
}

// RunSummary aggregates the per-tenant summaries of one orchestrator run.
type RunSummary struct {
	RunID         string        `json:"runId"`
	Tenants       []SyncSummary `json:"tenants"`
	Succeeded     int           `json:"succeeded"`
	FailedTenants int           `json:"failedTenants"`
	StartedAt     time.Time     `json:"startedAt"`
	FinishedAt    time.Time     `json:"finishedAt"`
}

// SyncRun is the persisted form of a SyncSummary.
type SyncRun struct {
	ID         string         `db:"id" json:"id"`
	RunID      string         `db:"run_id" json:"runId"`
	TenantID   string         `db:"tenant_id" json:"tenantId"`
	Page       int            `db:"page" json:"page"`
	Processed  int            `db:"processed" json:"processed"`
	Updated    int            `db:"updated" json:"updated"`
	Unchanged  int            `db:"unchanged" json:"unchanged"`
	Failed     int            `db:"failed" json:"failed"`
	Skipped    int            `db:"skipped" json:"skipped"`
	Deferred   int            `db:"deferred" json:"deferred"`
	Ineligible int            `db:"ineligible" json:"ineligible"`
	Warnings   pq.StringArray `db:"warnings" json:"warnings"`
	Error      *string        `db:"error" json:"error,omitempty"`
	StartedAt  time.Time      `db:"started_at" json:"startedAt"`
	FinishedAt time.Time      `db:"finished_at" json:"finishedAt"`
}
