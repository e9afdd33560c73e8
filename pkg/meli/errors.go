package meli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Cause is one validation cause attached to an error response.
type Cause struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

// APIError is returned for every non-2xx response.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Causes     []Cause
	Body       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("meli api error %d: %s (code: %s)", e.StatusCode, e.Message, e.Code)
	}
	return fmt.Sprintf("meli api error %d", e.StatusCode)
}

// HTTPStatus exposes the status code to the retry policy.
func (e *APIError) HTTPStatus() int { return e.StatusCode }

// IsAuthExpired reports whether the access token was rejected.
func (e *APIError) IsAuthExpired() bool {
	if e.StatusCode == http.StatusUnauthorized {
		return true
	}
	if e.StatusCode == http.StatusForbidden {
		code := strings.ToLower(e.Code)
		return strings.Contains(code, "token") || strings.Contains(strings.ToLower(e.Message), "invalid access token")
	}
	return false
}

var (
	minPriceCodes = map[string]bool{
		"item.price.invalid": true,
		"item.price.minimum": true,
		"item.price.too_low": true,
		"price.minimum":      true,
	}
	minPriceText = regexp.MustCompile(`(?i)(minimum|m[ií]nimo|at least|greater than or equal to|mayor o igual a)`)
	numberRe     = regexp.MustCompile(`\d+(?:[.,]\d+)?`)
)

// MinimumPrice extracts the marketplace-stated minimum price from a
// price-too-low rejection. ok is false for any other error. The message must
// state a minimum; the amount is the first number after that wording.
func (e *APIError) MinimumPrice() (decimal.Decimal, bool) {
	if e.StatusCode != http.StatusBadRequest {
		return decimal.Zero, false
	}
	for _, c := range e.Causes {
		code := strings.ToLower(c.Code)
		if !minPriceCodes[code] && !strings.Contains(code, "price") {
			continue
		}
		if v, ok := statedMinimum(c.Message); ok {
			return v, true
		}
	}
	msg := strings.ToLower(e.Message)
	if strings.Contains(msg, "price") || strings.Contains(msg, "precio") {
		return statedMinimum(e.Message)
	}
	return decimal.Zero, false
}

func statedMinimum(s string) (decimal.Decimal, bool) {
	loc := minPriceText.FindStringIndex(s)
	if loc == nil {
		return decimal.Zero, false
	}
	num := numberRe.FindString(s[loc[1]:])
	if num == "" {
		return decimal.Zero, false
	}
	v, err := decimal.NewFromString(strings.ReplaceAll(num, ",", "."))
	if err != nil || !v.IsPositive() {
		return decimal.Zero, false
	}
	return v, true
}

// parseAPIError decodes an error body leniently: the marketplace returns cause
// either as a list of objects or a list of strings.
func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Body: string(body)}

	var raw struct {
		Error   string          `json:"error"`
		Message string          `json:"message"`
		Cause   json.RawMessage `json:"cause"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return apiErr
	}
	apiErr.Code = raw.Error
	apiErr.Message = raw.Message

	if len(raw.Cause) == 0 {
		return apiErr
	}
	var causes []Cause
	if err := json.Unmarshal(raw.Cause, &causes); err == nil {
		apiErr.Causes = causes
		return apiErr
	}
	var texts []string
	if err := json.Unmarshal(raw.Cause, &texts); err == nil {
		for _, t := range texts {
			apiErr.Causes = append(apiErr.Causes, Cause{Message: t})
		}
	}
	return apiErr
}
