package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/JaimeRamones/prodflow/internal/models"
	"github.com/JaimeRamones/prodflow/internal/utils"
)

// CredentialRepository stores tenant marketplace tokens, sealed at rest.
type CredentialRepository struct {
	db     *sqlx.DB
	sealer *utils.TokenSealer
}

// NewCredentialRepository creates a new CredentialRepository.
func NewCredentialRepository(db *sqlx.DB, sealer *utils.TokenSealer) *CredentialRepository {
	return &CredentialRepository{db: db, sealer: sealer}
}

// ListTenantIDs returns tenants that have a refresh token on file.
func (r *CredentialRepository) ListTenantIDs(ctx context.Context) ([]string, error) {
	const q = `
        SELECT tenant_id FROM tenant_credentials
        WHERE refresh_token <> ''
        ORDER BY tenant_id`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, q); err != nil {
		return nil, err
	}
	return ids, nil
}

// GetByTenant returns the tenant's credentials with tokens opened.
func (r *CredentialRepository) GetByTenant(ctx context.Context, tenantID string) (*models.TenantCredential, error) {
	const q = `
        SELECT tenant_id, meli_user_id, access_token, refresh_token, expires_at, updated_at
        FROM tenant_credentials
        WHERE tenant_id = $1`
	var cred models.TenantCredential
	if err := r.db.GetContext(ctx, &cred, q, tenantID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("tenant %s: %w", tenantID, utils.ErrMissingCredentials)
		}
		return nil, err
	}

	var err error
	if cred.AccessToken, err = r.sealer.Open(cred.AccessToken); err != nil {
		return nil, fmt.Errorf("open access token: %w", err)
	}
	if cred.RefreshToken, err = r.sealer.Open(cred.RefreshToken); err != nil {
		return nil, fmt.Errorf("open refresh token: %w", err)
	}
	return &cred, nil
}

// SaveTokens persists a refreshed token pair and its expiry.
func (r *CredentialRepository) SaveTokens(ctx context.Context, tenantID, accessToken, refreshToken string, expiresAt time.Time) error {
	access, err := r.sealer.Seal(accessToken)
	if err != nil {
		return err
	}
	refresh, err := r.sealer.Seal(refreshToken)
	if err != nil {
		return err
	}

	const q = `
        UPDATE tenant_credentials
        SET access_token = $2, refresh_token = $3, expires_at = $4, updated_at = NOW()
        WHERE tenant_id = $1`
	res, err := r.db.ExecContext(ctx, q, tenantID, access, refresh, expiresAt)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("tenant %s: %w", tenantID, utils.ErrMissingCredentials)
	}
	return nil
}
