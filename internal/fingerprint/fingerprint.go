// Package fingerprint computes content-addressed digests for uploaded files.
//
// The digest is the deduplication key: identical bytes always produce the
// same fingerprint, regardless of filename or upload time.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// Size is the length of a hex-encoded fingerprint.
const Size = sha256.Size * 2

// Sum reads r to EOF and returns the SHA-256 digest of its content as a
// lowercase hex string. Content is streamed in 8 KiB blocks so large uploads
// never need to be buffered a second time.
func Sum(r io.Reader) (string, error) {
	h := sha256.New()
	buf := make([]byte, 8192)
	if _, err := io.CopyBuffer(h, r, buf); err != nil {
		return "", fmt.Errorf("hashing content: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SumBytes returns the SHA-256 digest of b as a lowercase hex string.
func SumBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
