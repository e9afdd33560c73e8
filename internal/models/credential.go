package models

import "time"

// TenantCredential holds a tenant's marketplace OAuth tokens.
type TenantCredential struct {
	TenantID     string    `db:"tenant_id" json:"tenantId"`
	MeliUserID   int64     `db:"meli_user_id" json:"meliUserId"`
	AccessToken  string    `db:"access_token" json:"-"`
	RefreshToken string    `db:"refresh_token" json:"-"`
	ExpiresAt    time.Time `db:"expires_at" json:"expiresAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// ExpiresWithin reports whether the access token expires before now+d.
func (c *TenantCredential) ExpiresWithin(now time.Time, d time.Duration) bool {
	return !c.ExpiresAt.After(now.Add(d))
}
