package util

import "strings"

// SafeTruncate truncates s to at most maxLen bytes without panicking.
// Log statements use this to show only a prefix of codes and tokens.
// A negative maxLen yields an empty string.
func SafeTruncate(s string, maxLen int) string {
	if maxLen < 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}

// NormalizeURL strips trailing slashes so issuer URLs compare equal
// regardless of how they were configured. Redirect URIs are deliberately
// NOT normalized; those must match byte for byte.
func NormalizeURL(url string) string {
	return strings.TrimRight(url, "/")
}
