// Package fingerprint computes the deduplication digests for URLs and
// article content. Hashes are pure functions: the same normalized input
// always yields the same 16-character hex digest.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// DigestLen is the length of the hex digests produced by this package.
const DigestLen = 16

// NormalizeURL trims surrounding whitespace and strips the fragment so
// that trivially different spellings of the same URL hash identically.
func NormalizeURL(raw string) string {
	s := strings.TrimSpace(raw)
	if i := strings.IndexByte(s, '#'); i >= 0 {
		s = s[:i]
	}
	return s
}

// URLHash returns the dedup key for a URL.
func URLHash(url string) string {
	return digest(NormalizeURL(url))
}

// ContentHash returns the digest of article content. Empty content
// hashes the empty string.
func ContentHash(content string) string {
	return digest(content)
}

func digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:DigestLen]
}
