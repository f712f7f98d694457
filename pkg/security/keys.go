package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

const accessKeyBytes = 24

// NewAccessKey generates a URL-safe random dashboard key. The plaintext is
// handed to the caller exactly once and never persisted.
func NewAccessKey() (string, error) {
	buf := make([]byte, accessKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating access key: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// DigestKey returns the hex sha256 digest stored in place of the plaintext.
// The digest is deterministic so keys can be validated by an indexed lookup.
func DigestKey(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}
