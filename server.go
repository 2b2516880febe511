// Package oauth is the HTTP surface of the Driftmap OAuth 2.1 issuer: an
// authorization-code-with-PKCE authorization server with refresh token
// rotation and RFC 7009 revocation. The protocol logic lives in the
// server package; this package frames it as JSON endpoints, resolves the
// end user through a pluggable session resolver, and wires in rate
// limiting, audit logging, and OpenTelemetry instrumentation.
package oauth

import (
	"fmt"
	"log/slog"

	"github.com/driftmap/oauth/instrumentation"
	"github.com/driftmap/oauth/internal/util"
	"github.com/driftmap/oauth/security"
	"github.com/driftmap/oauth/server"
	"github.com/driftmap/oauth/sessions"
	"github.com/driftmap/oauth/storage"
	"github.com/driftmap/oauth/token"
)

// securityEventRateLimit bounds how often replay detections hit the
// error log, keyed per user+client.
const (
	securityEventRate  = 1
	securityEventBurst = 5
)

// Server ties the protocol core to its collaborators: the session
// resolver that authenticates end users and the optional rate limiter
// and instrumentation.
type Server struct {
	core            *server.Server
	resolver        sessions.Resolver
	ipRateLimiter   *security.RateLimiter
	eventLimiter    *security.RateLimiter
	Instrumentation *instrumentation.Instrumentation
	logger          *slog.Logger
	config          *Config
}

// NewServer creates the issuer. The resolver supplies the authenticated
// user behind authorization requests; storage backends and the signing
// key are injected so deployments choose memory, valkey, or a relational
// store.
func NewServer(
	clientStore storage.ClientStore,
	codeStore storage.CodeStore,
	tokenStore storage.TokenStore,
	signer *token.Signer,
	resolver sessions.Resolver,
	config *Config,
	logger *slog.Logger,
) (*Server, error) {
	if resolver == nil {
		return nil, fmt.Errorf("session resolver is required")
	}
	if config == nil {
		config = &Config{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	config.applyDefaults()

	// Endpoint URLs in the metadata document are built by concatenation,
	// so a trailing slash on the issuer would produce double slashes.
	config.Server.Issuer = util.NormalizeURL(config.Server.Issuer)

	core, err := server.New(clientStore, codeStore, tokenStore, signer, &config.Server, logger)
	if err != nil {
		return nil, err
	}

	s := &Server{
		core:     core,
		resolver: resolver,
		logger:   logger,
		config:   config,
	}

	if config.EnableAuditLogging {
		core.SetAuditor(security.NewAuditor(logger, true))
	}

	s.eventLimiter = security.NewRateLimiter(securityEventRate, securityEventBurst, logger)
	core.SetSecurityEventRateLimiter(s.eventLimiter)

	if config.RateLimit.Rate > 0 {
		s.ipRateLimiter = security.NewRateLimiter(config.RateLimit.Rate, config.RateLimit.Burst, logger)
	}

	return s, nil
}

// SetInstrumentation attaches OpenTelemetry metrics and tracing. Call
// before NewHandler so the handler picks up the tracer.
func (s *Server) SetInstrumentation(inst *instrumentation.Instrumentation) {
	s.Instrumentation = inst
	if inst != nil {
		s.core.SetMetrics(inst.Metrics())
	} else {
		s.core.SetMetrics(nil)
	}
}

// Core exposes the protocol layer for embedding applications that drive
// the flows directly instead of through HTTP.
func (s *Server) Core() *server.Server {
	return s.core
}

// Config returns the server configuration.
func (s *Server) Config() *Config {
	return s.config
}

// Close releases background resources (rate limiter janitors).
func (s *Server) Close() {
	if s.ipRateLimiter != nil {
		s.ipRateLimiter.Stop()
	}
	if s.eventLimiter != nil {
		s.eventLimiter.Stop()
	}
}
