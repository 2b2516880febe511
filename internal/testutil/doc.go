// Package testutil provides shared test fixtures and helpers: deterministic
// time, random string generation, PKCE pairs, and prebuilt storage records.
package testutil
