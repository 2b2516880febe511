package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/driftmap/oauth/security"
	"github.com/driftmap/oauth/storage"
)

// ExchangeRequest carries the parameters of an authorization_code grant.
type ExchangeRequest struct {
	Code         string
	ClientID     string
	ClientSecret string
	RedirectURI  string
	CodeVerifier string
}

// RefreshRequest carries the parameters of a refresh_token grant.
type RefreshRequest struct {
	RefreshToken string
	ClientID     string
	ClientSecret string
}

// TokenResult is the outcome of a successful grant.
type TokenResult struct {
	AccessToken  string
	TokenType    string
	ExpiresIn    int64
	RefreshToken string
	Scope        string
}

// ExchangeAuthorizationCode exchanges a single-use authorization code
// for an access token and a refresh token.
//
// SECURITY: the code is consumed before any other grant check runs, so a
// failure in a later step (redirect URI, client binding, PKCE) still
// burns the code. An attacker who steals a code can invalidate it but
// never turn it into tokens. A consume that reports the code was already
// consumed is treated as a replay: every refresh token for that
// user+client is revoked.
func (s *Server) ExchangeAuthorizationCode(ctx context.Context, req ExchangeRequest) (*TokenResult, *Error) {
	if req.Code == "" {
		return nil, invalidRequest("missing required parameter: code")
	}

	client, oauthErr := s.authenticateClient(ctx, req.ClientID, req.ClientSecret, storage.GrantTypeAuthorizationCode)
	if oauthErr != nil {
		return nil, oauthErr
	}

	authCode, err := s.codeStore.ConsumeAuthorizationCode(ctx, req.Code)
	if err != nil {
		if errors.Is(err, storage.ErrCodeConsumed) && authCode != nil {
			s.handleCodeReplay(ctx, authCode, req.ClientID)
			return nil, invalidGrant()
		}

		s.Logger.Debug("Authorization code validation failed",
			"reason", err.Error(),
			"client_id", req.ClientID,
			"code_prefix", safeTruncate(req.Code, tokenIDLogLength))
		s.auditAuthFailure("", req.ClientID, "invalid_authorization_code")
		return nil, invalidGrant()
	}

	// The code is now burned. Every check below fails closed without
	// un-consuming it.

	if authCode.ClientID != req.ClientID {
		s.Logger.Debug("Authorization code validation failed",
			"reason", "client_id_mismatch",
			"provided_client_id", req.ClientID,
			"code_prefix", safeTruncate(req.Code, tokenIDLogLength))
		s.auditAuthFailure("", req.ClientID, "client_id_mismatch")
		return nil, invalidGrant()
	}

	if authCode.RedirectURI != req.RedirectURI {
		s.Logger.Debug("Authorization code validation failed",
			"reason", "redirect_uri_mismatch",
			"client_id", req.ClientID,
			"code_prefix", safeTruncate(req.Code, tokenIDLogLength))
		s.auditAuthFailure(authCode.UserID, req.ClientID, "redirect_uri_mismatch")
		return nil, invalidGrant()
	}

	if err := validatePKCE(authCode.CodeChallenge, req.CodeVerifier); err != nil {
		if s.Auditor != nil {
			s.Auditor.LogEvent(security.Event{
				Type:     "pkce_validation_failed",
				UserID:   authCode.UserID,
				ClientID: req.ClientID,
				Details:  map[string]any{"reason": err.Error()},
			})
		}
		s.auditAuthFailure(authCode.UserID, req.ClientID, "pkce_validation_failed")
		if s.Metrics != nil {
			s.Metrics.RecordPKCEValidationFailed(ctx, PKCEMethodS256)
		}
		return nil, invalidGrant()
	}

	result, oauthErr := s.issueTokens(ctx, authCode.UserID, client.ClientID, authCode.Scope)
	if oauthErr != nil {
		return nil, oauthErr
	}

	if s.Auditor != nil {
		s.Auditor.LogTokenIssued(authCode.UserID, client.ClientID, "", authCode.Scope)
	}

	return result, nil
}

// RefreshAccessToken exchanges a refresh token for a new access token,
// rotating the refresh token when rotation is enabled: the replacement
// is issued and the old token revoked in one atomic storage operation.
func (s *Server) RefreshAccessToken(ctx context.Context, req RefreshRequest) (*TokenResult, *Error) {
	if req.RefreshToken == "" {
		return nil, invalidRequest("missing required parameter: refresh_token")
	}

	client, oauthErr := s.authenticateClient(ctx, req.ClientID, req.ClientSecret, storage.GrantTypeRefreshToken)
	if oauthErr != nil {
		return nil, oauthErr
	}

	refreshToken, err := s.tokenStore.GetRefreshToken(ctx, req.RefreshToken)
	if err != nil {
		s.Logger.Debug("Refresh token validation failed",
			"reason", err.Error(),
			"client_id", req.ClientID,
			"token_prefix", safeTruncate(req.RefreshToken, tokenIDLogLength))
		s.auditAuthFailure("", req.ClientID, "invalid_refresh_token")
		return nil, invalidGrant()
	}

	switch {
	case refreshToken.Revoked:
		// A revoked token being presented is the rotation-theft signal.
		s.auditAuthFailure(refreshToken.UserID, req.ClientID, "revoked_refresh_token")
		if s.Metrics != nil {
			s.Metrics.RecordRefreshReuseDetected(ctx)
		}
		return nil, invalidGrant()
	case security.IsExpiredWithGracePeriod(refreshToken.ExpiresAt, time.Duration(s.Config.ClockSkewGracePeriod)*time.Second):
		s.auditAuthFailure(refreshToken.UserID, req.ClientID, "expired_refresh_token")
		return nil, invalidGrant()
	case refreshToken.ClientID != client.ClientID:
		s.auditAuthFailure(refreshToken.UserID, req.ClientID, "refresh_token_client_mismatch")
		return nil, invalidGrant()
	}

	// The stored scope is authoritative: a refresh never widens access.
	scope := refreshToken.Scope

	accessToken, _, err := s.signer.Mint(refreshToken.UserID, client.ClientID, scope,
		time.Duration(s.Config.AccessTokenTTL)*time.Second)
	if err != nil {
		s.Logger.Error("Failed to mint access token", "error", err)
		return nil, serverError()
	}

	result := &TokenResult{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   s.Config.AccessTokenTTL,
		Scope:       scope,
	}

	if s.Config.RotateRefreshTokens {
		newToken := s.newRefreshToken(refreshToken.UserID, client.ClientID, scope)
		if err := s.tokenStore.RotateRefreshToken(ctx, refreshToken.Token, newToken); err != nil {
			// A concurrent refresh won the rotation race. The loser gets
			// invalid_grant, same as any other spent token.
			if errors.Is(err, storage.ErrRefreshTokenRevoked) || errors.Is(err, storage.ErrRefreshTokenNotFound) {
				s.auditAuthFailure(refreshToken.UserID, req.ClientID, "refresh_rotation_conflict")
				return nil, invalidGrant()
			}
			s.Logger.Error("Failed to rotate refresh token", "error", err)
			return nil, serverError()
		}
		result.RefreshToken = newToken.Token

		s.Logger.Info("Refresh token rotated",
			"client_id", client.ClientID,
			"old_token_prefix", safeTruncate(refreshToken.Token, tokenIDLogLength))
	} else {
		result.RefreshToken = refreshToken.Token
		s.Logger.Warn("Refresh token reused (rotation disabled)", "client_id", client.ClientID)
	}

	if s.Auditor != nil {
		s.Auditor.LogTokenRefreshed(refreshToken.UserID, client.ClientID, "", s.Config.RotateRefreshTokens)
	}

	return result, nil
}

// authenticateClient resolves a client and verifies its credentials for
// the given grant type. Confidential clients must present their secret;
// public clients authenticate with PKCE instead.
func (s *Server) authenticateClient(ctx context.Context, clientID, clientSecret, grantType string) (*storage.Client, *Error) {
	if clientID == "" {
		return nil, invalidRequest("missing required parameter: client_id")
	}

	// ValidateClientSecret runs a bcrypt comparison even for unknown
	// clients, so this path does not leak registration status by timing.
	if err := s.clientStore.ValidateClientSecret(ctx, clientID, clientSecret); err != nil {
		s.auditAuthFailure("", clientID, ErrorCodeInvalidClient)
		return nil, invalidClient("client authentication failed")
	}

	client, err := s.clientStore.GetClient(ctx, clientID)
	if err != nil {
		s.auditAuthFailure("", clientID, ErrorCodeInvalidClient)
		return nil, invalidClient("client authentication failed")
	}

	if !client.AllowsGrantType(grantType) {
		s.auditAuthFailure("", clientID, "grant_type_not_allowed")
		return nil, unsupportedGrantType(fmt.Sprintf("client is not authorized for the %s grant", grantType))
	}

	return client, nil
}

// issueTokens mints a signed access token and persists a fresh refresh
// token for the user+client pair.
func (s *Server) issueTokens(ctx context.Context, userID, clientID, scope string) (*TokenResult, *Error) {
	accessToken, _, err := s.signer.Mint(userID, clientID, scope,
		time.Duration(s.Config.AccessTokenTTL)*time.Second)
	if err != nil {
		s.Logger.Error("Failed to mint access token", "error", err)
		return nil, serverError()
	}

	refreshToken := s.newRefreshToken(userID, clientID, scope)
	if err := s.tokenStore.SaveRefreshToken(ctx, refreshToken); err != nil {
		s.Logger.Error("Failed to save refresh token", "error", err)
		return nil, serverError()
	}

	return &TokenResult{
		AccessToken:  accessToken,
		TokenType:    "Bearer",
		ExpiresIn:    s.Config.AccessTokenTTL,
		RefreshToken: refreshToken.Token,
		Scope:        scope,
	}, nil
}

// newRefreshToken builds an unsaved refresh token record.
func (s *Server) newRefreshToken(userID, clientID, scope string) *storage.RefreshToken {
	now := time.Now()
	return &storage.RefreshToken{
		Token:     generateRandomToken(),
		ClientID:  clientID,
		UserID:    userID,
		Scope:     scope,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Duration(s.Config.RefreshTokenTTL) * time.Second),
	}
}

// handleCodeReplay reacts to an authorization code being presented a
// second time. Replay is a token-theft indicator: all refresh tokens for
// the code's user+client are revoked (OAuth 2.1 section 4.1.2).
func (s *Server) handleCodeReplay(ctx context.Context, authCode *storage.AuthorizationCode, clientID string) {
	// Rate limit logging so an attacker replaying in a loop cannot
	// flood the logs.
	if s.SecurityEventRateLimiter == nil || s.SecurityEventRateLimiter.Allow(authCode.UserID+":"+authCode.ClientID) {
		s.Logger.Error("Authorization code replay detected - revoking all tokens",
			"client_id", authCode.ClientID,
			"code_prefix", safeTruncate(authCode.Code, tokenIDLogLength))
	}

	if s.Metrics != nil {
		s.Metrics.RecordCodeReplayDetected(ctx)
	}

	revoked, err := s.tokenStore.RevokeTokensForUserClient(ctx, authCode.UserID, authCode.ClientID)
	if err != nil {
		s.Logger.Error("Failed to revoke tokens after code replay", "error", err)
	}

	if s.Auditor != nil {
		s.Auditor.LogCodeReplay(authCode.UserID, authCode.ClientID, revoked)
		s.Auditor.LogAuthFailure(authCode.UserID, clientID, "", "authorization_code_replay")
	}
}
