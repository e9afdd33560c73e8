package meli

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }
func strPtr(v string) *string     { return &v }

func TestUpdateItemSendsOnlyChangedFields(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/items/MLA123" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("missing bearer token")
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		_, _ = w.Write([]byte(`{"id":"MLA123","status":"active","price":120,"available_quantity":0}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	item, err := c.UpdateItem(context.Background(), "tok", "MLA123", &ItemUpdate{AvailableQuantity: intPtr(0)})
	if err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	if item.ID != "MLA123" {
		t.Errorf("item id = %q", item.ID)
	}
	if len(got) != 1 {
		t.Fatalf("payload = %v, want only available_quantity", got)
	}
	if q, ok := got["available_quantity"].(float64); !ok || q != 0 {
		t.Errorf("available_quantity = %v", got["available_quantity"])
	}
}

func TestUpdateItemNestsVariation(t *testing.T) {
	var got struct {
		Status     string `json:"status"`
		Variations []struct {
			ID    int64   `json:"id"`
			Price float64 `json:"price"`
		} `json:"variations"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"id":"MLA1"}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	_, err := c.UpdateItem(context.Background(), "tok", "MLA1", &ItemUpdate{
		Status:     strPtr(StatusPaused),
		Variations: []VariationUpdate{{ID: 777, Price: floatPtr(216)}},
	})
	if err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	if len(got.Variations) != 1 || got.Variations[0].ID != 777 || got.Variations[0].Price != 216 {
		t.Errorf("variations = %+v", got.Variations)
	}
	if got.Status != StatusPaused {
		t.Errorf("status = %q", got.Status)
	}
}

func TestAPIErrorMinimumPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"Validation error","error":"validation_error","status":400,
			"cause":[{"code":"item.price.invalid","message":"The price must be at least 350.00","type":"error"}]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	_, err := c.UpdateItem(context.Background(), "tok", "MLA1", &ItemUpdate{Price: floatPtr(120)})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	minPrice, ok := apiErr.MinimumPrice()
	if !ok {
		t.Fatal("expected minimum price to be detected")
	}
	if minPrice.StringFixed(2) != "350.00" {
		t.Errorf("minimum = %s", minPrice)
	}
	if apiErr.HTTPStatus() != 400 || apiErr.IsAuthExpired() {
		t.Errorf("unexpected classification for %v", apiErr)
	}
}

func TestMinimumPriceParsing(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		message string
		want    string
		ok      bool
	}{
		{"stated minimum", "item.price.invalid", "The price must be at least 350.00", "350.00", true},
		{"trailing category id ignored", "item.price.invalid", "The price must be at least 350.00 for category MLA1055", "350.00", true},
		{"minimum before amount", "item.price.invalid", "minimum price 350", "350.00", true},
		{"spanish wording", "item.price.invalid", "El precio mínimo es 350,00", "350.00", true},
		{"rejected price without minimum wording", "item.price.invalid", "price 120.50 is not valid for listing type gold_special", "", false},
		{"price code with minimum wording", "price.not_allowed", "price must be greater than or equal to 99.90", "99.90", true},
		{"unrelated code", "item.title.invalid", "title must be at least 10 characters", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &APIError{StatusCode: http.StatusBadRequest, Causes: []Cause{{Code: tt.code, Message: tt.message}}}
			got, ok := e.MinimumPrice()
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v (got %s)", ok, tt.ok, got)
			}
			if ok && got.StringFixed(2) != tt.want {
				t.Errorf("minimum = %s, want %s", got.StringFixed(2), tt.want)
			}
		})
	}
}

func TestAPIErrorStringCauses(t *testing.T) {
	e := parseAPIError(400, []byte(`{"message":"body invalid","error":"bad_request","cause":["field x is invalid"]}`))
	if len(e.Causes) != 1 || e.Causes[0].Message != "field x is invalid" {
		t.Fatalf("causes = %+v", e.Causes)
	}
	if _, ok := e.MinimumPrice(); ok {
		t.Error("plain validation error must not be read as a price floor")
	}
}

func TestAuthExpired(t *testing.T) {
	if !(&APIError{StatusCode: 401}).IsAuthExpired() {
		t.Error("401 must be auth expired")
	}
	if !(&APIError{StatusCode: 403, Code: "invalid_token"}).IsAuthExpired() {
		t.Error("403 invalid_token must be auth expired")
	}
	if (&APIError{StatusCode: 403, Code: "forbidden"}).IsAuthExpired() {
		t.Error("plain 403 must not be auth expired")
	}
}

func TestGetVariationsSellerSKU(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/items/MLA9/variations" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`[
			{"id":1,"seller_custom_field":"LEGACY-1","attributes":[]},
			{"id":2,"attributes":[{"id":"SELLER_SKU","value_name":"X1/X2"}]}
		]`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	vars, err := c.GetVariations(context.Background(), "tok", "MLA9")
	if err != nil {
		t.Fatalf("GetVariations: %v", err)
	}
	if len(vars) != 2 {
		t.Fatalf("len = %d", len(vars))
	}
	if vars[0].SellerSKU() != "LEGACY-1" || vars[1].SellerSKU() != "X1/X2" {
		t.Errorf("seller skus = %q, %q", vars[0].SellerSKU(), vars[1].SellerSKU())
	}
}

func TestRefreshToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		if r.Form.Get("grant_type") != "refresh_token" || r.Form.Get("refresh_token") != "rt-1" {
			t.Errorf("form = %v", r.Form)
		}
		_, _ = w.Write([]byte(`{"access_token":"at-2","refresh_token":"rt-2","expires_in":21600}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, ClientID: "app", ClientSecret: "s"})
	tok, err := c.RefreshToken(context.Background(), "rt-1")
	if err != nil {
		t.Fatalf("RefreshToken: %v", err)
	}
	if tok.AccessToken != "at-2" || tok.RefreshToken != "rt-2" || tok.ExpiresIn != 21600 {
		t.Errorf("token = %+v", tok)
	}
}
