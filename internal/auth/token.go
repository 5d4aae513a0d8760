package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

// TokenBytes is the entropy of session and anti-forgery tokens (256 bits).
const TokenBytes = 32

const tokenPrefixLen = 8

// NewOpaqueToken returns a random bearer token and the hash that gets persisted.
func NewOpaqueToken() (raw string, hash string, err error) {
	raw, err = RandomToken()
	if err != nil {
		return "", "", err
	}
	return raw, HashToken(raw), nil
}

func RandomToken() (string, error) {
	buf := make([]byte, TokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// TokenPrefix is the only part of a token that may appear in logs or audit detail.
func TokenPrefix(raw string) string {
	if len(raw) <= tokenPrefixLen {
		return raw
	}
	return raw[:tokenPrefixLen]
}
