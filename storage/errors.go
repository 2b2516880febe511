package storage

import "errors"

// Sentinel errors returned by store implementations. Callers match them
// with errors.Is and map them onto protocol error codes; the messages are
// deliberately generic so they can be surfaced in logs without leaking
// token material.
var (
	// ErrClientNotFound is returned when a client ID is not registered.
	ErrClientNotFound = errors.New("client not found")

	// ErrInvalidClientCredentials is returned when client authentication
	// fails. Deliberately identical for unknown clients and bad secrets.
	ErrInvalidClientCredentials = errors.New("invalid client credentials")

	// ErrCodeNotFound is returned when an authorization code does not exist.
	ErrCodeNotFound = errors.New("authorization code not found")

	// ErrCodeExpired is returned when an authorization code's absolute
	// expiry has passed. Detected lazily at consume time.
	ErrCodeExpired = errors.New("authorization code expired")

	// ErrCodeConsumed is returned when an authorization code has already
	// been exchanged. A second exchange attempt is a replay signal.
	ErrCodeConsumed = errors.New("authorization code already consumed")

	// ErrRefreshTokenNotFound is returned when a refresh token does not exist.
	ErrRefreshTokenNotFound = errors.New("refresh token not found")

	// ErrRefreshTokenRevoked is returned when a refresh token has been revoked.
	ErrRefreshTokenRevoked = errors.New("refresh token revoked")

	// ErrRefreshTokenExpired is returned when a refresh token's expiry has passed.
	ErrRefreshTokenExpired = errors.New("refresh token expired")
)
