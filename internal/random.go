// Package internal holds non-exported helpers shared across the engine.
package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

// NewHex returns n cryptographically random bytes, hex-encoded.
func NewHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// HashToken returns the hex-encoded SHA-256 of a secret token. Stored
// tokens are always hashed; only the email carries the plaintext.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
