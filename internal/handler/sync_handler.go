package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/JaimeRamones/prodflow/internal/models"
	"github.com/JaimeRamones/prodflow/internal/utils"
)

// SyncRunner is the orchestrator surface used by the invocation endpoints.
type SyncRunner interface {
	RunAll(ctx context.Context) (*models.RunSummary, error)
	RunTenantPage(ctx context.Context, tenantID string, page int) (*models.SyncSummary, error)
}

// SyncRunLister reads persisted sync summaries.
type SyncRunLister interface {
	ListByTenant(ctx context.Context, tenantID string, limit int) ([]models.SyncRun, error)
}

// SyncHandler exposes the sync pipeline over HTTP.
type SyncHandler struct {
	runner SyncRunner
	runs   SyncRunLister
}

// NewSyncHandler creates a new SyncHandler.
func NewSyncHandler(runner SyncRunner, runs SyncRunLister) *SyncHandler {
	return &SyncHandler{runner: runner, runs: runs}
}

// TenantSyncRequest is the body of POST /v1/sync/tenant.
type TenantSyncRequest struct {
	TenantID string `json:"tenantId" binding:"required"`
	Page     *int   `json:"page"`
}

// RunAll handles POST /v1/sync/run.
func (h *SyncHandler) RunAll(c *gin.Context) {
	run, err := h.runner.RunAll(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("Sync run could not start")
		utils.Error(c, http.StatusInternalServerError, "STORE_UNAVAILABLE", "Failed to list tenants")
		return
	}
	utils.Success(c, http.StatusOK, "Sync run completed", run)
}

// RunTenant handles POST /v1/sync/tenant.
func (h *SyncHandler) RunTenant(c *gin.Context) {
	var req TenantSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "tenantId is required")
		return
	}
	page := 0
	if req.Page != nil {
		if *req.Page < 0 {
			utils.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "page must be >= 0")
			return
		}
		page = *req.Page
	}

	summary, err := h.runner.RunTenantPage(c.Request.Context(), req.TenantID, page)
	if err == nil {
		utils.Success(c, http.StatusOK, "Tenant page synced", summary)
		return
	}

	status, code := tenantErrorStatus(err)
	if summary != nil {
		utils.ErrorWithData(c, status, code, err.Error(), summary)
		return
	}
	utils.Error(c, status, code, err.Error())
}

func tenantErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, utils.ErrPageLocked):
		return http.StatusConflict, "PAGE_LOCKED"
	case errors.Is(err, utils.ErrPageNoProgress):
		return http.StatusGatewayTimeout, "PAGE_NO_PROGRESS"
	case errors.Is(err, utils.ErrTokenRefresh):
		return http.StatusBadGateway, "TOKEN_REFRESH_FAILED"
	case errors.Is(err, utils.ErrMissingCredentials):
		return http.StatusUnprocessableEntity, "MISSING_CREDENTIALS"
	case errors.Is(err, utils.ErrMissingMarkup):
		return http.StatusUnprocessableEntity, "MISSING_MARKUP"
	case errors.Is(err, utils.ErrTenantNotConfigured):
		return http.StatusUnprocessableEntity, "TENANT_NOT_CONFIGURED"
	default:
		return http.StatusInternalServerError, "SYNC_FAILED"
	}
}

// ListRuns handles GET /v1/sync/tenants/:tenantId/runs?limit=
func (h *SyncHandler) ListRuns(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 200 {
			utils.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "limit must be between 1 and 200")
			return
		}
		limit = n
	}

	runs, err := h.runs.ListByTenant(c.Request.Context(), c.Param("tenantId"), limit)
	if err != nil {
		log.Error().Err(err).Str("tenant_id", c.Param("tenantId")).Msg("Failed to list sync runs")
		utils.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list sync runs")
		return
	}
	utils.Success(c, http.StatusOK, "Sync runs retrieved", runs)
}
