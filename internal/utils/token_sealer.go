package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

const sealedPrefix = "sealed:"

// TokenSealer encrypts marketplace tokens before they reach the credential table.
// A sealer built from an empty secret passes values through unchanged.
type TokenSealer struct {
	key *[32]byte
}

// NewTokenSealer derives the secretbox key from secret.
func NewTokenSealer(secret string) *TokenSealer {
	if secret == "" {
		return &TokenSealer{}
	}
	key := sha256.Sum256([]byte(secret))
	return &TokenSealer{key: &key}
}

// Seal encrypts plain. The output is prefixed so Open can recognize it.
func (s *TokenSealer) Seal(plain string) (string, error) {
	if s == nil || s.key == nil || plain == "" {
		return plain, nil
	}
	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	box := secretbox.Seal(nonce[:], []byte(plain), &nonce, s.key)
	return sealedPrefix + base64.RawURLEncoding.EncodeToString(box), nil
}

// Open decrypts a value produced by Seal. Unsealed values are returned as-is
// so rows written before sealing was enabled keep working.
func (s *TokenSealer) Open(stored string) (string, error) {
	if !strings.HasPrefix(stored, sealedPrefix) {
		return stored, nil
	}
	if s == nil || s.key == nil {
		return "", errors.New("sealed token found but TOKEN_SEAL_KEY is not set")
	}
	box, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(stored, sealedPrefix))
	if err != nil {
		return "", fmt.Errorf("failed to decode sealed token: %w", err)
	}
	if len(box) < 24+secretbox.Overhead {
		return "", errors.New("sealed token too short")
	}
	var nonce [24]byte
	copy(nonce[:], box[:24])
	plain, ok := secretbox.Open(nil, box[24:], &nonce, s.key)
	if !ok {
		return "", errors.New("failed to open sealed token")
	}
	return string(plain), nil
}
