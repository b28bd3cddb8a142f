package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

// NewPlainToken generates a random opaque bearer token. The plain value is
// handed to the client once; only its digest is persisted.
func NewPlainToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// HashToken returns the hex sha256 digest stored at rest for a plain token.
func HashToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}
