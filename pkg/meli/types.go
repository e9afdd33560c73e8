package meli

import "strings"

// Item status values accepted by PUT /items/{id}.
const (
	StatusActive = "active"
	StatusPaused = "paused"
)

// AttributeSellerSKU is the attribute id the seller uses to tag a variation with its SKU.
const AttributeSellerSKU = "SELLER_SKU"

// Attribute is a marketplace item or variation attribute.
type Attribute struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	ValueName string `json:"value_name"`
}

// ItemUpdate is a partial update for PUT /items/{id}.
// Nil fields are omitted so the marketplace only validates what changed.
type ItemUpdate struct {
	Price             *float64          `json:"price,omitempty"`
	AvailableQuantity *int              `json:"available_quantity,omitempty"`
	Status            *string           `json:"status,omitempty"`
	Attributes        []Attribute       `json:"attributes,omitempty"`
	Variations        []VariationUpdate `json:"variations,omitempty"`
}

// VariationUpdate nests per-variation fields inside an ItemUpdate.
type VariationUpdate struct {
	ID                int64       `json:"id"`
	Price             *float64    `json:"price,omitempty"`
	AvailableQuantity *int        `json:"available_quantity,omitempty"`
	Attributes        []Attribute `json:"attributes,omitempty"`
}

// Item is the subset of the item resource returned after an update.
type Item struct {
	ID                string  `json:"id"`
	Status            string  `json:"status"`
	Price             float64 `json:"price"`
	AvailableQuantity int     `json:"available_quantity"`
}

// Variation is one entry of GET /items/{id}/variations.
type Variation struct {
	ID                int64       `json:"id"`
	Price             float64     `json:"price"`
	AvailableQuantity int         `json:"available_quantity"`
	SellerCustomField string      `json:"seller_custom_field"`
	Attributes        []Attribute `json:"attributes"`
}

// SellerSKU returns the seller-assigned SKU of the variation, preferring the
// SELLER_SKU attribute over the legacy seller_custom_field.
func (v Variation) SellerSKU() string {
	for _, a := range v.Attributes {
		if strings.EqualFold(a.ID, AttributeSellerSKU) && a.ValueName != "" {
			return a.ValueName
		}
	}
	return v.SellerCustomField
}

// TokenResponse is the body of POST /oauth/token.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`
	UserID       int64  `json:"user_id"`
	RefreshToken string `json:"refresh_token"`
}
