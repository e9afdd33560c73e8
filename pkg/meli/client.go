package meli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// DefaultBaseURL is the MercadoLibre REST API base URL.
	DefaultBaseURL = "https://api.mercadolibre.com"

	// maxResponseSize is the maximum accepted response body size (10MB)
	maxResponseSize = 10 * 1024 * 1024
)

// Config holds the marketplace application credentials.
type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// Client is a thin HTTP client for the MercadoLibre items and OAuth endpoints.
// It performs exactly one request per call; retries belong to the caller.
type Client struct {
	httpClient *http.Client
	config     Config
	debug      bool
}

// NewClient creates a new marketplace client.
func NewClient(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		config:     config,
		debug:      os.Getenv("ENV") == "development",
	}
}

// UpdateItem applies a partial update with PUT /items/{id}.
func (c *Client) UpdateItem(ctx context.Context, accessToken, itemID string, update *ItemUpdate) (*Item, error) {
	var item Item
	path := "/items/" + url.PathEscape(itemID)
	if err := c.doJSON(ctx, http.MethodPut, path, accessToken, update, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// GetVariations lists the live variations of an item.
func (c *Client) GetVariations(ctx context.Context, accessToken, itemID string) ([]Variation, error) {
	var variations []Variation
	path := "/items/" + url.PathEscape(itemID) + "/variations"
	if err := c.doJSON(ctx, http.MethodGet, path, accessToken, nil, &variations); err != nil {
		return nil, err
	}
	return variations, nil
}

// RefreshToken exchanges a refresh token for a new access/refresh pair.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", c.config.ClientID)
	form.Set("client_secret", c.config.ClientSecret)
	form.Set("refresh_token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	var tok TokenResponse
	if err := c.do(req, "/oauth/token", &tok); err != nil {
		return nil, err
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("token response without access_token")
	}
	return &tok, nil
}

func (c *Client) doJSON(ctx context.Context, method, path, accessToken string, body any, result any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		if c.debug {
			log.Debug().
				Str("method", method).
				Str("endpoint", c.config.BaseURL+path).
				RawJSON("request", payload).
				Msg("[MELI] Outgoing request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	return c.do(req, path, result)
}

func (c *Client) do(req *http.Request, path string, result any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if c.debug {
		log.Debug().
			Str("endpoint", path).
			Int("status_code", resp.StatusCode).
			RawJSON("response", sanitizeForLog(respBody)).
			Msg("[MELI] Incoming response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseAPIError(resp.StatusCode, respBody)
	}
	if result == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// sanitizeForLog masks token fields before a body reaches the debug log.
func sanitizeForLog(data []byte) []byte {
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		if json.Valid(data) {
			return data
		}
		return []byte(`{"_error": "non-json body"}`)
	}
	for key := range obj {
		k := strings.ToLower(key)
		if strings.Contains(k, "token") || strings.Contains(k, "secret") {
			obj[key] = "***MASKED***"
		}
	}
	sanitized, err := json.Marshal(obj)
	if err != nil {
		return []byte(`{"_error": "failed to marshal sanitized data"}`)
	}
	return sanitized
}
