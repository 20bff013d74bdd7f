package common

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sha256Hex hex-encodes the SHA-256 digest of s. OTP codes and
// idempotency payloads are stored hashed with this.
func Sha256Hex(s string) string {
	digest := sha256.Sum256([]byte(s))
	return hex.EncodeToString(digest[:])
}
