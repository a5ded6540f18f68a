package textutil

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

var decimalPattern = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)$`)

// Normalize trims surrounding whitespace and collapses doubled spaces.
func Normalize(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "  ", " ")
}

// IsInteger reports whether s is a bare decimal integer.
func IsInteger(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// IsNumber reports whether s is a plain decimal number, optionally signed
// and with a fractional part. Words such as NaN or Inf and hex literals are
// not numbers here.
func IsNumber(s string) bool {
	return decimalPattern.MatchString(strings.TrimSpace(s))
}

// Hash computes a SHA-256 hex hash of a string for deduplication.
func Hash(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

// Truncate shortens a string to maxLen runes, appending "..." if truncated.
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
