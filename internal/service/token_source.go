package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/JaimeRamones/prodflow/internal/models"
	"github.com/JaimeRamones/prodflow/internal/utils"
	"github.com/JaimeRamones/prodflow/pkg/retry"
)

const tokenRefreshSkew = 60 * time.Second

// TokenRefresher exchanges a refresh token for a new token pair.
type TokenRefresher interface {
	RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error)
}

// TokenPair is a freshly issued access/refresh token pair.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}

type tenantToken struct {
	mu   sync.Mutex
	cred *models.TenantCredential
}

// TokenSource hands out per-tenant access tokens, refreshing them shortly
// before expiry or when the marketplace rejects them. Callers for the same
// tenant share a single refresh.
type TokenSource struct {
	store     CredentialStore
	refresher TokenRefresher
	policy    retry.Policy
	now       func() time.Time

	mu      sync.Mutex
	tenants map[string]*tenantToken
}

// NewTokenSource constructs a TokenSource. Refresh calls run under policy.
func NewTokenSource(store CredentialStore, refresher TokenRefresher, policy retry.Policy) *TokenSource {
	return &TokenSource{
		store:     store,
		refresher: refresher,
		policy:    policy,
		now:       time.Now,
		tenants:   make(map[string]*tenantToken),
	}
}

func (s *TokenSource) entry(tenantID string) *tenantToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tenants[tenantID]
	if !ok {
		t = &tenantToken{}
		s.tenants[tenantID] = t
	}
	return t
}

// Token returns a usable access token for tenantID.
func (s *TokenSource) Token(ctx context.Context, tenantID string) (string, error) {
	t := s.entry(tenantID)
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cred == nil {
		cred, err := s.store.GetByTenant(ctx, tenantID)
		if err != nil {
			return "", err
		}
		t.cred = cred
	}
	if t.cred.AccessToken != "" && !t.cred.ExpiresWithin(s.now(), tokenRefreshSkew) {
		return t.cred.AccessToken, nil
	}
	if err := s.refreshLocked(ctx, tenantID, t); err != nil {
		return "", err
	}
	return t.cred.AccessToken, nil
}

// Refresh is called after the marketplace rejected stale. If another caller
// already replaced that token, the newer one is returned without refreshing.
func (s *TokenSource) Refresh(ctx context.Context, tenantID, stale string) (string, error) {
	t := s.entry(tenantID)
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cred != nil && t.cred.AccessToken != stale && !t.cred.ExpiresWithin(s.now(), tokenRefreshSkew) {
		return t.cred.AccessToken, nil
	}
	if err := s.refreshLocked(ctx, tenantID, t); err != nil {
		return "", err
	}
	return t.cred.AccessToken, nil
}

func (s *TokenSource) refreshLocked(ctx context.Context, tenantID string, t *tenantToken) error {
	// Another instance may have rotated the pair since we cached it.
	stored, err := s.store.GetByTenant(ctx, tenantID)
	if err != nil {
		return err
	}
	if t.cred != nil && stored.AccessToken != t.cred.AccessToken && !stored.ExpiresWithin(s.now(), tokenRefreshSkew) {
		t.cred = stored
		return nil
	}
	if stored.RefreshToken == "" {
		return fmt.Errorf("tenant %s has no refresh token: %w", tenantID, utils.ErrMissingCredentials)
	}

	var pair *TokenPair
	err = s.policy.Do(ctx, func(ctx context.Context, _ int) error {
		var err error
		pair, err = s.refresher.RefreshToken(ctx, stored.RefreshToken)
		return err
	})
	if err != nil {
		log.Error().Err(err).Str("tenant_id", tenantID).Msg("Token refresh failed")
		return fmt.Errorf("tenant %s: %w: %w", tenantID, utils.ErrTokenRefresh, err)
	}
	if pair.RefreshToken == "" {
		pair.RefreshToken = stored.RefreshToken
	}
	expiresAt := s.now().Add(pair.ExpiresIn)
	if err := s.store.SaveTokens(ctx, tenantID, pair.AccessToken, pair.RefreshToken, expiresAt); err != nil {
		return fmt.Errorf("tenant %s: persist refreshed tokens: %w: %w", tenantID, utils.ErrTokenRefresh, err)
	}

	updated := *stored
	updated.AccessToken = pair.AccessToken
	updated.RefreshToken = pair.RefreshToken
	updated.ExpiresAt = expiresAt
	t.cred = &updated

	log.Info().Str("tenant_id", tenantID).Time("expires_at", expiresAt).Msg("Marketplace token refreshed")
	return nil
}
