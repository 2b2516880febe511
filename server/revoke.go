package server

import (
	"context"
	"errors"

	"github.com/driftmap/oauth/storage"
)

// RevokeRequest carries the parameters of a token revocation call.
type RevokeRequest struct {
	Token        string
	ClientID     string
	ClientSecret string
}

// RevokeToken revokes a refresh token (RFC 7009). Revocation is
// idempotent: revoking an unknown token, or one already revoked,
// succeeds without complaint so callers cannot probe which tokens
// exist. A client may only revoke its own tokens; attempting to revoke
// another client's token is rejected with a generic error.
func (s *Server) RevokeToken(ctx context.Context, req RevokeRequest) *Error {
	if req.Token == "" {
		return invalidRequest("missing required parameter: token")
	}
	if req.ClientID == "" {
		return invalidRequest("missing required parameter: client_id")
	}

	if err := s.clientStore.ValidateClientSecret(ctx, req.ClientID, req.ClientSecret); err != nil {
		s.auditAuthFailure("", req.ClientID, ErrorCodeInvalidClient)
		return invalidClient("client authentication failed")
	}

	refreshToken, err := s.tokenStore.GetRefreshToken(ctx, req.Token)
	if err != nil {
		if errors.Is(err, storage.ErrRefreshTokenNotFound) {
			return nil
		}
		s.Logger.Error("Failed to look up token for revocation", "error", err)
		return serverError()
	}

	if refreshToken.ClientID != req.ClientID {
		s.Logger.Warn("Revocation rejected for token owned by another client",
			"client_id", req.ClientID,
			"token_prefix", safeTruncate(req.Token, tokenIDLogLength))
		s.auditAuthFailure(refreshToken.UserID, req.ClientID, "revocation_client_mismatch")
		// Generic description: the response must not confirm who owns
		// the token.
		return invalidRequest("invalid request")
	}

	if refreshToken.Revoked {
		return nil
	}

	if err := s.tokenStore.RevokeRefreshToken(ctx, req.Token); err != nil {
		// A concurrent revocation got there first.
		if errors.Is(err, storage.ErrRefreshTokenRevoked) || errors.Is(err, storage.ErrRefreshTokenNotFound) {
			return nil
		}
		s.Logger.Error("Failed to revoke refresh token", "error", err)
		return serverError()
	}

	s.Logger.Info("Refresh token revoked",
		"client_id", req.ClientID,
		"token_prefix", safeTruncate(req.Token, tokenIDLogLength))

	if s.Auditor != nil {
		s.Auditor.LogTokenRevoked(refreshToken.UserID, req.ClientID, "")
	}

	return nil
}
