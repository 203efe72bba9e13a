// Package fingerprint computes content fingerprints for uploaded documents.
//
// The fingerprint is a pure function of the raw bytes: the same statement
// uploaded twice under different filenames collapses to the same value, which
// is what makes cross-session dedup of analysis results possible.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data. Empty input is valid.
func Sum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
