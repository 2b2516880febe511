package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/driftmap/oauth/instrumentation"
	"github.com/driftmap/oauth/security"
	"github.com/driftmap/oauth/server"
	"github.com/driftmap/oauth/sessions"
)

const (
	tokenTypeBearer = "Bearer"

	// maxRequestBodyBytes bounds JSON request bodies. OAuth requests are
	// tiny; anything near this limit is abuse.
	maxRequestBodyBytes = 1 << 20
)

// Grant types accepted at the token endpoint.
const (
	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypeRefreshToken      = "refresh_token"
)

// Handler serves the issuer's HTTP endpoints.
type Handler struct {
	server *Server
	logger *slog.Logger
	tracer trace.Tracer
}

// NewHandler creates the HTTP handler for a server.
func NewHandler(srv *Server, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	h := &Handler{
		server: srv,
		logger: logger,
	}

	if srv.Instrumentation != nil {
		h.tracer = srv.Instrumentation.Tracer("http")
	}

	return h
}

// RegisterRoutes mounts the OAuth endpoints on mux. Every route carries
// the request-ID middleware.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("/oauth/authorize", security.RequestIDMiddleware(http.HandlerFunc(h.ServeAuthorize)))
	mux.Handle("/oauth/token", security.RequestIDMiddleware(http.HandlerFunc(h.ServeToken)))
	mux.Handle("/oauth/revoke", security.RequestIDMiddleware(http.HandlerFunc(h.ServeRevocation)))
	mux.Handle("/.well-known/oauth-authorization-server",
		security.RequestIDMiddleware(http.HandlerFunc(h.ServeAuthorizationServerMetadata)))
}

// ServeAuthorize handles POST /oauth/authorize. The end user must be
// authenticated; the session resolver decides how.
func (h *Handler) ServeAuthorize(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	ctx := r.Context()

	var span trace.Span
	if h.tracer != nil {
		ctx, span = h.tracer.Start(ctx, "oauth.http.authorize")
		defer span.End()
	}
	r = r.WithContext(ctx)

	if r.Method != http.MethodPost {
		h.recordHTTPMetrics("authorize", r.Method, http.StatusMethodNotAllowed, startTime)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	clientIP := h.clientIP(r)
	if h.checkIPRateLimit(w, clientIP, "authorize", startTime, span) {
		return
	}

	user, err := h.server.resolver.ResolveSession(r)
	if err != nil {
		if errors.Is(err, sessions.ErrNoSession) {
			h.recordHTTPMetrics("authorize", http.MethodPost, http.StatusUnauthorized, startTime)
			instrumentation.SetSpanError(span, "no authenticated session")
			h.writeError(w, ErrorCodeAccessDenied, "User authentication required", http.StatusUnauthorized)
			return
		}
		h.logger.Error("Session resolution failed", "error", err, "ip", clientIP)
		h.recordHTTPMetrics("authorize", http.MethodPost, http.StatusInternalServerError, startTime)
		instrumentation.RecordError(span, err)
		h.writeError(w, ErrorCodeServerError, "Internal server error", http.StatusInternalServerError)
		return
	}

	var req AuthorizeRequest
	if !h.decodeJSON(w, r, &req, "authorize", startTime, span) {
		return
	}

	instrumentation.SetSpanAttributes(span,
		attribute.String(instrumentation.AttrClientID, req.ClientID))

	result, oauthErr := h.server.core.Authorize(ctx, server.AuthorizeRequest{
		ClientID:            req.ClientID,
		ResponseType:        req.ResponseType,
		RedirectURI:         req.RedirectURI,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
		Scope:               req.Scope,
		State:               req.State,
		UserID:              user.ID,
	})
	if oauthErr != nil {
		h.recordHTTPMetrics("authorize", http.MethodPost, oauthErr.Status, startTime)
		instrumentation.SetSpanError(span, oauthErr.Code)
		h.writeOAuthError(w, oauthErr)
		return
	}

	h.recordCodeIssued(ctx, req.ClientID)
	h.recordHTTPMetrics("authorize", http.MethodPost, http.StatusOK, startTime)
	instrumentation.SetSpanSuccess(span)

	h.writeJSON(w, http.StatusOK, AuthorizeResponse{
		AuthorizationCode: result.Code,
		State:             result.State,
		ExpiresIn:         int64(time.Until(result.ExpiresAt).Seconds()),
	})
}

// ServeToken handles POST /oauth/token for both grant types. Client
// credentials come from the JSON body or HTTP Basic auth; Basic auth
// wins when both are present.
func (h *Handler) ServeToken(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	ctx := r.Context()

	var span trace.Span
	if h.tracer != nil {
		ctx, span = h.tracer.Start(ctx, "oauth.http.token")
		defer span.End()
	}
	r = r.WithContext(ctx)

	if r.Method != http.MethodPost {
		h.recordHTTPMetrics("token", r.Method, http.StatusMethodNotAllowed, startTime)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	clientIP := h.clientIP(r)
	if h.checkIPRateLimit(w, clientIP, "token", startTime, span) {
		return
	}

	var req TokenRequest
	if !h.decodeJSON(w, r, &req, "token", startTime, span) {
		return
	}

	if authClientID, authClientSecret, ok := r.BasicAuth(); ok {
		req.ClientID = authClientID
		req.ClientSecret = authClientSecret
	}

	instrumentation.SetSpanAttributes(span,
		attribute.String(instrumentation.AttrClientID, req.ClientID),
		attribute.String(instrumentation.AttrGrantType, req.GrantType))

	var (
		result   *server.TokenResult
		oauthErr *server.Error
	)
	switch req.GrantType {
	case GrantTypeAuthorizationCode:
		result, oauthErr = h.server.core.ExchangeAuthorizationCode(ctx, server.ExchangeRequest{
			Code:         req.Code,
			ClientID:     req.ClientID,
			ClientSecret: req.ClientSecret,
			RedirectURI:  req.RedirectURI,
			CodeVerifier: req.CodeVerifier,
		})
	case GrantTypeRefreshToken:
		result, oauthErr = h.server.core.RefreshAccessToken(ctx, server.RefreshRequest{
			RefreshToken: req.RefreshToken,
			ClientID:     req.ClientID,
			ClientSecret: req.ClientSecret,
		})
	case "":
		oauthErr = &Error{Code: ErrorCodeInvalidRequest, Description: "grant_type is required", Status: http.StatusBadRequest}
	default:
		oauthErr = &Error{
			Code:        ErrorCodeUnsupportedGrantType,
			Description: fmt.Sprintf("unsupported grant_type: %s", req.GrantType),
			Status:      http.StatusBadRequest,
		}
	}
	if oauthErr != nil {
		h.logger.Debug("Token request failed",
			"grant_type", req.GrantType,
			"client_id", req.ClientID,
			"ip", clientIP,
			"error", oauthErr.Code)
		h.recordHTTPMetrics("token", http.MethodPost, oauthErr.Status, startTime)
		instrumentation.SetSpanError(span, oauthErr.Code)
		h.writeOAuthError(w, oauthErr)
		return
	}

	switch req.GrantType {
	case GrantTypeAuthorizationCode:
		h.recordCodeExchange(ctx, req.ClientID)
	case GrantTypeRefreshToken:
		h.recordTokenRefresh(ctx, req.ClientID)
	}
	h.recordHTTPMetrics("token", http.MethodPost, http.StatusOK, startTime)
	instrumentation.SetSpanSuccess(span)

	h.writeJSON(w, http.StatusOK, TokenResponse{
		AccessToken:  result.AccessToken,
		TokenType:    result.TokenType,
		ExpiresIn:    result.ExpiresIn,
		RefreshToken: result.RefreshToken,
		Scope:        result.Scope,
	})
}

// ServeRevocation handles POST /oauth/revoke (RFC 7009).
func (h *Handler) ServeRevocation(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	ctx := r.Context()

	var span trace.Span
	if h.tracer != nil {
		ctx, span = h.tracer.Start(ctx, "oauth.http.revoke")
		defer span.End()
	}
	r = r.WithContext(ctx)

	if r.Method != http.MethodPost {
		h.recordHTTPMetrics("revoke", r.Method, http.StatusMethodNotAllowed, startTime)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	clientIP := h.clientIP(r)
	if h.checkIPRateLimit(w, clientIP, "revoke", startTime, span) {
		return
	}

	var req RevokeRequest
	if !h.decodeJSON(w, r, &req, "revoke", startTime, span) {
		return
	}

	if authClientID, authClientSecret, ok := r.BasicAuth(); ok {
		req.ClientID = authClientID
		req.ClientSecret = authClientSecret
	}

	instrumentation.SetSpanAttributes(span,
		attribute.String(instrumentation.AttrClientID, req.ClientID))

	if oauthErr := h.server.core.RevokeToken(ctx, server.RevokeRequest{
		Token:        req.Token,
		ClientID:     req.ClientID,
		ClientSecret: req.ClientSecret,
	}); oauthErr != nil {
		h.recordHTTPMetrics("revoke", http.MethodPost, oauthErr.Status, startTime)
		instrumentation.SetSpanError(span, oauthErr.Code)
		h.writeOAuthError(w, oauthErr)
		return
	}

	h.recordTokenRevocation(ctx, req.ClientID)
	h.recordHTTPMetrics("revoke", http.MethodPost, http.StatusOK, startTime)
	instrumentation.SetSpanSuccess(span)

	h.writeJSON(w, http.StatusOK, RevokeResponse{Success: true})
}

// ServeAuthorizationServerMetadata handles the RFC 8414 discovery
// document.
func (h *Handler) ServeAuthorizationServerMetadata(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	if r.Method != http.MethodGet {
		h.recordHTTPMetrics("metadata", r.Method, http.StatusMethodNotAllowed, startTime)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	issuer := h.server.config.Server.Issuer
	metadata := AuthorizationServerMetadata{
		Issuer:                 issuer,
		AuthorizationEndpoint:  issuer + "/oauth/authorize",
		TokenEndpoint:          issuer + "/oauth/token",
		RevocationEndpoint:     issuer + "/oauth/revoke",
		ScopesSupported:        h.server.config.Server.SupportedScopes,
		ResponseTypesSupported: []string{"code"},
		GrantTypesSupported:    []string{GrantTypeAuthorizationCode, GrantTypeRefreshToken},
		TokenEndpointAuthMethodsSupported: []string{
			"client_secret_basic", "client_secret_post", "none",
		},
		CodeChallengeMethodsSupported: []string{server.PKCEMethodS256},
	}

	w.Header().Set("Cache-Control", "public, max-age=3600")
	h.recordHTTPMetrics("metadata", http.MethodGet, http.StatusOK, startTime)
	h.writeJSON(w, http.StatusOK, metadata)
}

// clientIP extracts the caller's IP honoring the proxy configuration.
func (h *Handler) clientIP(r *http.Request) string {
	return security.GetClientIP(r, h.server.config.Server.TrustProxy, h.server.config.Server.TrustedProxyCount)
}

// checkIPRateLimit enforces the per-IP limiter. Returns true when the
// request was rejected.
func (h *Handler) checkIPRateLimit(w http.ResponseWriter, clientIP, endpoint string, startTime time.Time, span trace.Span) bool {
	if h.server.ipRateLimiter == nil {
		return false
	}
	if h.server.ipRateLimiter.Allow(clientIP) {
		return false
	}

	h.logger.Warn("Rate limit exceeded", "ip", clientIP, "endpoint", endpoint)
	if h.server.core.Auditor != nil {
		h.server.core.Auditor.LogRateLimitExceeded(clientIP, "")
	}
	if h.server.Instrumentation != nil {
		h.server.Instrumentation.Metrics().RecordRateLimitExceeded(context.Background(), "ip")
	}
	h.recordHTTPMetrics(endpoint, http.MethodPost, http.StatusTooManyRequests, startTime)
	instrumentation.SetSpanError(span, "rate limit exceeded")
	h.writeError(w, ErrorCodeInvalidRequest, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
	return true
}

// decodeJSON reads the request body into dst. Returns false (after
// writing the error response) when the body is unreadable.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst any, endpoint string, startTime time.Time, span trace.Span) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		h.recordHTTPMetrics(endpoint, r.Method, http.StatusBadRequest, startTime)
		instrumentation.RecordError(span, err)
		h.writeError(w, ErrorCodeInvalidRequest, "Malformed JSON request body", http.StatusBadRequest)
		return false
	}
	return true
}

// writeJSON serializes v with the standard security headers.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	security.SetSecurityHeaders(w, h.server.config.Server.Issuer)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to write response", "error", err)
	}
}

// writeOAuthError serializes a protocol error.
func (h *Handler) writeOAuthError(w http.ResponseWriter, oauthErr *Error) {
	h.writeError(w, oauthErr.Code, oauthErr.Description, oauthErr.Status)
}

// writeError serializes an {error, error_description} body.
func (h *Handler) writeError(w http.ResponseWriter, code, description string, status int) {
	security.SetSecurityHeaders(w, h.server.config.Server.Issuer)
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", tokenTypeBearer)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: code, ErrorDescription: description}); err != nil {
		h.logger.Error("Failed to write error response", "error", err)
	}
}

func (h *Handler) recordHTTPMetrics(endpoint, method string, status int, startTime time.Time) {
	if h.server.Instrumentation == nil {
		return
	}
	durationMs := time.Since(startTime).Seconds() * 1000
	h.server.Instrumentation.Metrics().RecordHTTPRequest(context.Background(), method, endpoint, status, durationMs)
}

func (h *Handler) recordCodeIssued(ctx context.Context, clientID string) {
	if h.server.Instrumentation != nil {
		h.server.Instrumentation.Metrics().RecordCodeIssued(ctx, clientID)
	}
}

func (h *Handler) recordCodeExchange(ctx context.Context, clientID string) {
	if h.server.Instrumentation != nil {
		h.server.Instrumentation.Metrics().RecordCodeExchange(ctx, clientID, server.PKCEMethodS256)
	}
}

func (h *Handler) recordTokenRefresh(ctx context.Context, clientID string) {
	if h.server.Instrumentation != nil {
		h.server.Instrumentation.Metrics().RecordTokenRefresh(ctx, clientID, h.server.config.Server.RotateRefreshTokens)
	}
}

func (h *Handler) recordTokenRevocation(ctx context.Context, clientID string) {
	if h.server.Instrumentation != nil {
		h.server.Instrumentation.Metrics().RecordTokenRevocation(ctx, clientID)
	}
}
