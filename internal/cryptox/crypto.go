// Package cryptox provides the content digests used to name cached
// attachments and to derive stable account keys.
package cryptox

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Digest returns the hex-encoded BLAKE2b-256 digest of data.
func Digest(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ShortDigest returns the first n hex characters of Digest(data).
// n is clamped to the full digest length.
func ShortDigest(data []byte, n int) string {
	d := Digest(data)
	if n <= 0 || n > len(d) {
		return d
	}
	return d[:n]
}
