package server

import (
	"log/slog"
)

// Config holds OAuth server configuration.
type Config struct {
	// Issuer is the server's issuer identifier (base URL). Appears as
	// the iss claim in access tokens and in the metadata document.
	Issuer string

	// AuthorizationCodeTTL is how long authorization codes are valid
	AuthorizationCodeTTL int64 // seconds, default: 600 (10 minutes)

	// AccessTokenTTL is how long access tokens are valid
	AccessTokenTTL int64 // seconds, default: 3600 (1 hour)

	// RefreshTokenTTL is how long refresh tokens are valid
	RefreshTokenTTL int64 // seconds, default: 7776000 (90 days)

	// RotateRefreshTokens controls whether a refresh grant issues a new
	// refresh token and revokes the old one atomically (OAuth 2.1).
	// Default: true (secure by default)
	RotateRefreshTokens bool

	// TrustProxy enables trusting X-Forwarded-For headers for client IP
	// extraction. Only enable behind a trusted reverse proxy.
	// Default: false
	TrustProxy bool

	// TrustedProxyCount is the number of trusted proxies in front of
	// this server, used with TrustProxy. Default: 1
	TrustedProxyCount int

	// ClockSkewGracePeriod is the grace period for expiry checks (in
	// seconds), tolerating clock drift between instances. Default: 5
	ClockSkewGracePeriod int64

	// SupportedScopes lists the scopes the server recognizes at all.
	// Scope requests are additionally restricted per client. If empty,
	// server-level validation is skipped and only the client's own
	// scope set applies.
	SupportedScopes []string

	// AllowInsecureHTTP permits a non-HTTPS issuer outside localhost.
	// Never enable in production. Default: false
	AllowInsecureHTTP bool
}

// applySecureDefaults applies secure-by-default configuration values.
func applySecureDefaults(config *Config, logger *slog.Logger) *Config {
	applyTimeDefaults(config)
	applySecurityDefaults(config, logger)
	return config
}

func applyTimeDefaults(config *Config) {
	if config.AuthorizationCodeTTL == 0 {
		config.AuthorizationCodeTTL = 600 // 10 minutes
	}
	if config.AccessTokenTTL == 0 {
		config.AccessTokenTTL = 3600 // 1 hour
	}
	if config.RefreshTokenTTL == 0 {
		config.RefreshTokenTTL = 7776000 // 90 days
	}
	if config.TrustedProxyCount == 0 {
		config.TrustedProxyCount = 1
	}
	if config.ClockSkewGracePeriod == 0 {
		config.ClockSkewGracePeriod = 5
	}
}

// applySecurityDefaults enables rotation for fresh configs and warns
// when it has been explicitly switched off.
func applySecurityDefaults(config *Config, logger *slog.Logger) {
	isDefaultConfig := !config.RotateRefreshTokens && !config.TrustProxy && !config.AllowInsecureHTTP

	if isDefaultConfig {
		config.RotateRefreshTokens = true
		return
	}

	if !config.RotateRefreshTokens {
		logger.Warn("SECURITY WARNING: refresh token rotation is DISABLED",
			"risk", "Stolen refresh tokens stay valid until expiry",
			"recommendation", "Set RotateRefreshTokens=true for OAuth 2.1 compliance")
	}
	if config.TrustProxy {
		logger.Warn("SECURITY NOTICE: trusting proxy headers",
			"risk", "IP spoofing if proxy is not properly configured",
			"config", "TrustedProxyCount should match your proxy chain length")
	}
	if config.AllowInsecureHTTP {
		logger.Warn("SECURITY WARNING: insecure HTTP issuer is ALLOWED",
			"risk", "Tokens and credentials exposed to interception",
			"recommendation", "Use HTTPS for all non-localhost deployments")
	}
}
