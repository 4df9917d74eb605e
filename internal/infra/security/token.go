package security

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashToken calculates a SHA-256 hash of the provided value. Used wherever a
// token must be referenced without storing or logging the raw credential.
func HashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
