// Package util provides small shared helpers used across the issuer.
//
// Key utilities:
//   - SafeTruncate: truncates strings for logging sensitive data
//   - NormalizeURL: trims trailing slashes for issuer URL comparison
package util
