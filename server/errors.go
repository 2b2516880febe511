package server

import (
	"fmt"
	"net/http"
)

// OAuth 2.0 error codes from RFC 6749 section 5.2.
const (
	ErrorCodeInvalidRequest          = "invalid_request"
	ErrorCodeInvalidClient           = "invalid_client"
	ErrorCodeInvalidGrant            = "invalid_grant"
	ErrorCodeInvalidScope            = "invalid_scope"
	ErrorCodeUnsupportedResponseType = "unsupported_response_type"
	ErrorCodeUnsupportedGrantType    = "unsupported_grant_type"
	ErrorCodeServerError             = "server_error"
)

// Error is a protocol-level OAuth error. The HTTP layer serializes it as
// the standard {error, error_description} JSON body with Status.
type Error struct {
	Code        string
	Description string
	Status      int
}

func (e *Error) Error() string {
	if e.Description == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

func invalidRequest(description string) *Error {
	return &Error{Code: ErrorCodeInvalidRequest, Description: description, Status: http.StatusBadRequest}
}

func invalidClient(description string) *Error {
	return &Error{Code: ErrorCodeInvalidClient, Description: description, Status: http.StatusUnauthorized}
}

// invalidGrant carries a deliberately generic description: RFC 6749
// forbids telling the caller whether a code was unknown, expired,
// consumed, or failed PKCE.
func invalidGrant() *Error {
	return &Error{Code: ErrorCodeInvalidGrant, Description: "invalid grant", Status: http.StatusBadRequest}
}

func invalidScope(description string) *Error {
	return &Error{Code: ErrorCodeInvalidScope, Description: description, Status: http.StatusBadRequest}
}

func unsupportedResponseType(description string) *Error {
	return &Error{Code: ErrorCodeUnsupportedResponseType, Description: description, Status: http.StatusBadRequest}
}

func unsupportedGrantType(description string) *Error {
	return &Error{Code: ErrorCodeUnsupportedGrantType, Description: description, Status: http.StatusBadRequest}
}

func serverError() *Error {
	return &Error{Code: ErrorCodeServerError, Description: "internal server error", Status: http.StatusInternalServerError}
}
