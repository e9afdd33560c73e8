package utils

import "errors"

// Common application errors used across services.
var (
	ErrTenantNotConfigured  = errors.New("TENANT_NOT_CONFIGURED")
	ErrMissingMarkup        = errors.New("MISSING_MARKUP")
	ErrMissingCredentials   = errors.New("MISSING_CREDENTIALS")
	ErrTokenRefresh         = errors.New("TOKEN_REFRESH_FAILED")
	ErrVariationNotResolved = errors.New("VARIATION_NOT_RESOLVED")
	ErrPageLocked           = errors.New("PAGE_LOCKED")
	ErrListingConflict      = errors.New("LISTING_VERSION_CONFLICT")
	ErrPageNoProgress       = errors.New("PAGE_NO_PROGRESS")
	ErrInvalidToken         = errors.New("INVALID_TOKEN")
)

// IsTenantFatal reports whether err stops a tenant's run without being worth a retry.
func IsTenantFatal(err error) bool {
	return errors.Is(err, ErrTenantNotConfigured) ||
		errors.Is(err, ErrMissingMarkup) ||
		errors.Is(err, ErrMissingCredentials) ||
		errors.Is(err, ErrTokenRefresh)
}
