package oauth

import (
	"github.com/driftmap/oauth/server"
)

// Error is a protocol-level OAuth error carrying the HTTP status to
// serve it with.
type Error = server.Error

// OAuth error codes (RFC 6749 section 5.2).
const (
	ErrorCodeInvalidRequest          = server.ErrorCodeInvalidRequest
	ErrorCodeInvalidClient           = server.ErrorCodeInvalidClient
	ErrorCodeInvalidGrant            = server.ErrorCodeInvalidGrant
	ErrorCodeInvalidScope            = server.ErrorCodeInvalidScope
	ErrorCodeUnsupportedResponseType = server.ErrorCodeUnsupportedResponseType
	ErrorCodeUnsupportedGrantType    = server.ErrorCodeUnsupportedGrantType
	ErrorCodeServerError             = server.ErrorCodeServerError
)

// ErrorCodeAccessDenied is served when the authorization endpoint is
// called without an authenticated user session.
const ErrorCodeAccessDenied = "access_denied"
