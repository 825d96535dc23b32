package services

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// randomToken generates a URL-safe opaque string with length*8 bits of
// entropy. Authorization codes and refresh tokens use 32 bytes (256 bits).
func randomToken(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
