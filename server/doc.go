// Package server implements the OAuth 2.1 authorization server logic,
// independent of any HTTP framing.
//
// A Server coordinates the three storage interfaces (clients, codes,
// refresh tokens) and a token signer to run the authorization-code flow
// with PKCE, refresh token rotation, and revocation. The HTTP layer in
// the root package translates requests into calls on Server and maps the
// returned *Error values onto RFC 6749 error responses.
//
// Security posture is fixed rather than configurable where OAuth 2.1
// demands it: PKCE with S256 is mandatory on every authorization
// request, authorization codes are single-use with replay detection, and
// redirect URIs match registered values byte for byte.
package server
