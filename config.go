package oauth

import (
	"github.com/driftmap/oauth/server"
)

// Config holds the full issuer configuration: the protocol core plus the
// HTTP layer's own knobs.
type Config struct {
	// Server configures the protocol core (issuer URL, TTLs, rotation,
	// supported scopes).
	Server server.Config

	// RateLimit configures per-IP rate limiting at the HTTP layer.
	RateLimit RateLimitConfig

	// EnableAuditLogging enables the structured security audit log.
	// Sensitive values are logged as SHA-256 hashes or short prefixes.
	EnableAuditLogging bool
}

// RateLimitConfig holds HTTP rate limiting configuration.
type RateLimitConfig struct {
	// Rate is requests per second allowed per IP. Zero disables limiting.
	Rate int

	// Burst is the maximum burst size allowed per IP.
	Burst int
}

// applyDefaults fills in the HTTP layer defaults. The protocol core
// applies its own when the server is constructed.
func (c *Config) applyDefaults() {
	if c.RateLimit.Rate > 0 && c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = c.RateLimit.Rate * 2
	}
}
