// Package fingerprint computes content checksums used as document change and
// completeness markers. The checksum is not meant for security purposes.
package fingerprint

import (
	"crypto/sha256"
	"encoding/base64"
)

// Checksum returns the base64-encoded SHA-256 digest of the full document text
func Checksum(text string) string {
	sum := sha256.Sum256([]byte(text))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// Equal reports whether a stored marker matches the checksum of text.
// An empty marker never matches.
func Equal(marker, text string) bool {
	if marker == "" {
		return false
	}
	return marker == Checksum(text)
}
