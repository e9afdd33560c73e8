package utils

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNormalizeSKU(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"ABC  123", "ABC 123"},
		{"ABC 123", "ABC 123"},
		{" ABC 123 ", "ABC 123"},
		{"ABC 123", "ABC 123"},
		{"\tABC  \n 123 ", "ABC 123"},
		{"X1/X2", "X1/X2"},
		{"   ", ""},
	}
	for _, tt := range tests {
		if got := NormalizeSKU(tt.raw); got != tt.want {
			t.Errorf("NormalizeSKU(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestJWTRoundTrip(t *testing.T) {
	token, err := GenerateJWT("secret", "scheduler", time.Minute)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}
	claims, err := ValidateJWT("secret", token)
	if err != nil {
		t.Fatalf("ValidateJWT: %v", err)
	}
	if claims.Caller != "scheduler" {
		t.Errorf("caller = %q", claims.Caller)
	}

	if _, err := ValidateJWT("other", token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("wrong secret err = %v", err)
	}
	expired, _ := GenerateJWT("secret", "scheduler", -time.Minute)
	if _, err := ValidateJWT("secret", expired); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expired err = %v", err)
	}
}

func TestTokenSealer(t *testing.T) {
	s := NewTokenSealer("seal-key")
	sealed, err := s.Seal("APP_USR-123")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if !strings.HasPrefix(sealed, sealedPrefix) || strings.Contains(sealed, "APP_USR") {
		t.Fatalf("sealed = %q", sealed)
	}
	plain, err := s.Open(sealed)
	if err != nil || plain != "APP_USR-123" {
		t.Fatalf("Open = %q, %v", plain, err)
	}

	if got, _ := s.Open("legacy-plain"); got != "legacy-plain" {
		t.Errorf("legacy value = %q", got)
	}
	if _, err := NewTokenSealer("").Open(sealed); err == nil {
		t.Error("opening a sealed value without a key must fail")
	}
	if _, err := NewTokenSealer("other").Open(sealed); err == nil {
		t.Error("opening with the wrong key must fail")
	}
	passthrough, _ := NewTokenSealer("").Seal("tok")
	if passthrough != "tok" {
		t.Errorf("passthrough = %q", passthrough)
	}
}

func TestIsTenantFatal(t *testing.T) {
	if !IsTenantFatal(errors.Join(errors.New("refresh"), ErrTokenRefresh)) {
		t.Error("token refresh must be tenant fatal")
	}
	if IsTenantFatal(ErrPageLocked) {
		t.Error("page lock is not tenant fatal")
	}
}
