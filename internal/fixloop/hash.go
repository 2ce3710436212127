// File: internal/fixloop/hash.go
package fixloop

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

var (
	// Sandbox copies live in fresh temp directories, so raw error text
	// differs across attempts even when the error is identical. Strip the
	// variable prefix before hashing.
	sandboxPathRegex = regexp.MustCompile(`/[\w./-]*crucible-sandbox-[\w-]+/?`)
	whitespaceRegex  = regexp.MustCompile(`\s+`)
	durationRegex    = regexp.MustCompile(`\(\d+\.\d+s\)`)
)

// errorHash fingerprints an error signal for repeated-error detection.
// Two signals that differ only in temp paths, timing, or whitespace hash
// identically.
func errorHash(text string) string {
	normalized := sandboxPathRegex.ReplaceAllString(text, "")
	normalized = durationRegex.ReplaceAllString(normalized, "")
	normalized = whitespaceRegex.ReplaceAllString(normalized, " ")
	normalized = strings.ToLower(strings.TrimSpace(normalized))

	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
