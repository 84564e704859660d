package userforms

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// GenerateSecureToken generates a cryptographically secure random token
func GenerateSecureToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// TokensEqual compares two secrets in constant time.
func TokensEqual(known, provided string) bool {
	if known == "" || provided == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(known), []byte(provided)) == 1
}
