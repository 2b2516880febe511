package server

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/driftmap/oauth/storage"
)

// AuthorizeRequest carries the parameters of an authorization request.
// UserID comes from the session layer, never from the request body.
type AuthorizeRequest struct {
	ClientID            string
	ResponseType        string
	RedirectURI         string
	CodeChallenge       string
	CodeChallengeMethod string
	Scope               string
	State               string
	UserID              string
}

// AuthorizeResult is the outcome of a successful authorization request.
type AuthorizeResult struct {
	Code      string
	State     string
	ExpiresAt time.Time
}

// Authorize validates an authorization request for an authenticated user
// and issues a single-use authorization code bound to the PKCE
// challenge.
//
// Validation order is fixed: parameter presence, response_type,
// challenge method and format, client lookup, redirect URI, scopes.
// Each failure maps to a distinct OAuth error so clients can be fixed,
// except where RFC 6749 demands opacity.
func (s *Server) Authorize(ctx context.Context, req AuthorizeRequest) (*AuthorizeResult, *Error) {
	if req.UserID == "" {
		return nil, serverError()
	}

	if oauthErr := s.validateAuthorizeParams(req); oauthErr != nil {
		s.auditAuthFailure("", req.ClientID, oauthErr.Code)
		return nil, oauthErr
	}

	client, err := s.clientStore.GetClient(ctx, req.ClientID)
	if err != nil {
		s.auditAuthFailure("", req.ClientID, ErrorCodeInvalidClient)
		return nil, invalidClient("unknown client")
	}

	if !client.AllowsGrantType(storage.GrantTypeAuthorizationCode) {
		s.auditAuthFailure(req.UserID, req.ClientID, "grant_type_not_allowed")
		return nil, invalidRequest("client is not authorized for the authorization_code grant")
	}

	if err := validateRedirectURI(client, req.RedirectURI); err != nil {
		s.auditAuthFailure(req.UserID, req.ClientID, "redirect_uri_not_registered")
		return nil, invalidRequest("redirect_uri is not registered for this client")
	}

	if err := validateScopes(req.Scope, s.Config.SupportedScopes); err != nil {
		s.auditAuthFailure(req.UserID, req.ClientID, ErrorCodeInvalidScope)
		return nil, invalidScope(err.Error())
	}
	if err := validateScopes(req.Scope, client.Scopes); err != nil {
		s.auditAuthFailure(req.UserID, req.ClientID, ErrorCodeInvalidScope)
		return nil, invalidScope(err.Error())
	}

	code := generateRandomToken()
	now := time.Now()
	authCode := &storage.AuthorizationCode{
		Code:                code,
		ClientID:            client.ClientID,
		UserID:              req.UserID,
		RedirectURI:         req.RedirectURI,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
		Scope:               req.Scope,
		CreatedAt:           now,
		ExpiresAt:           now.Add(time.Duration(s.Config.AuthorizationCodeTTL) * time.Second),
	}

	if err := s.codeStore.SaveAuthorizationCode(ctx, authCode); err != nil {
		s.Logger.Error("Failed to save authorization code", "error", err, "client_id", client.ClientID)
		return nil, serverError()
	}

	if s.Auditor != nil {
		s.Auditor.LogCodeIssued(req.UserID, client.ClientID, req.Scope)
	}

	s.Logger.Info("Authorization code issued",
		"client_id", client.ClientID,
		"code_prefix", safeTruncate(code, tokenIDLogLength),
		"scope", req.Scope)

	return &AuthorizeResult{
		Code:      code,
		State:     req.State,
		ExpiresAt: authCode.ExpiresAt,
	}, nil
}

// validateAuthorizeParams runs the parameter-level checks that need no
// storage access, in the order clients should learn about them.
func (s *Server) validateAuthorizeParams(req AuthorizeRequest) *Error {
	var missing []string
	for _, p := range []struct{ name, value string }{
		{"client_id", req.ClientID},
		{"response_type", req.ResponseType},
		{"redirect_uri", req.RedirectURI},
		{"code_challenge", req.CodeChallenge},
		{"code_challenge_method", req.CodeChallengeMethod},
	} {
		if p.value == "" {
			missing = append(missing, p.name)
		}
	}
	if len(missing) > 0 {
		return invalidRequest(fmt.Sprintf("missing required parameters: %s", strings.Join(missing, ", ")))
	}

	if req.ResponseType != "code" {
		return unsupportedResponseType(fmt.Sprintf("unsupported response_type: %s (only \"code\" is supported)", req.ResponseType))
	}

	// S256 only. The plain method defeats the purpose of PKCE and is
	// rejected outright rather than downgraded.
	if req.CodeChallengeMethod != PKCEMethodS256 {
		return invalidRequest(fmt.Sprintf("unsupported code_challenge_method: %s (only S256 is supported)", req.CodeChallengeMethod))
	}

	if err := validateCodeChallenge(req.CodeChallenge); err != nil {
		return invalidRequest(err.Error())
	}

	return nil
}

// auditAuthFailure logs an authentication/authorization failure if an
// auditor is configured.
func (s *Server) auditAuthFailure(userID, clientID, reason string) {
	if s.Auditor == nil {
		return
	}
	s.Auditor.LogAuthFailure(userID, clientID, "", reason)
}
