package server

import (
	"fmt"
	"log/slog"

	"golang.org/x/oauth2"

	"github.com/driftmap/oauth/instrumentation"
	"github.com/driftmap/oauth/security"
	"github.com/driftmap/oauth/storage"
	"github.com/driftmap/oauth/token"
)

const tokenIDLogLength = 8

// safeTruncate safely truncates a string to maxLen characters for
// logging token prefixes without exposing full values.
func safeTruncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}

// Server implements the OAuth 2.1 authorization server logic. It
// coordinates the storage backends and the access token signer; HTTP
// framing lives in the root package.
type Server struct {
	clientStore              storage.ClientStore
	codeStore                storage.CodeStore
	tokenStore               storage.TokenStore
	signer                   *token.Signer
	Auditor                  *security.Auditor
	Metrics                  *instrumentation.Metrics
	SecurityEventRateLimiter *security.RateLimiter // rate limiter for security event logging (DoS prevention)
	Logger                   *slog.Logger
	Config                   *Config
}

// New creates a new OAuth server.
func New(
	clientStore storage.ClientStore,
	codeStore storage.CodeStore,
	tokenStore storage.TokenStore,
	signer *token.Signer,
	config *Config,
	logger *slog.Logger,
) (*Server, error) {
	if clientStore == nil {
		return nil, fmt.Errorf("client store is required")
	}
	if codeStore == nil {
		return nil, fmt.Errorf("code store is required")
	}
	if tokenStore == nil {
		return nil, fmt.Errorf("token store is required")
	}
	if signer == nil {
		return nil, fmt.Errorf("token signer is required")
	}
	if config == nil {
		config = &Config{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	config = applySecureDefaults(config, logger)

	srv := &Server{
		clientStore: clientStore,
		codeStore:   codeStore,
		tokenStore:  tokenStore,
		signer:      signer,
		Config:      config,
		Logger:      logger,
	}

	if err := srv.validateHTTPSEnforcement(); err != nil {
		return nil, err
	}

	return srv, nil
}

// SetAuditor sets the security auditor.
func (s *Server) SetAuditor(aud *security.Auditor) {
	s.Auditor = aud
}

// SetMetrics attaches security metrics (PKCE failures, code replays,
// refresh token reuse). Nil disables recording.
func (s *Server) SetMetrics(m *instrumentation.Metrics) {
	s.Metrics = m
}

// SetSecurityEventRateLimiter sets the rate limiter for security event
// logging. This prevents log flooding from repeated replay attempts.
func (s *Server) SetSecurityEventRateLimiter(rl *security.RateLimiter) {
	s.SecurityEventRateLimiter = rl
}

// generateRandomToken generates a cryptographically secure random token.
// oauth2.GenerateVerifier produces a 43-character URL-safe string with
// 256 bits of entropy, which is what codes and refresh tokens need.
func generateRandomToken() string {
	return oauth2.GenerateVerifier()
}
