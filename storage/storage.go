// Package storage defines interfaces for persisting OAuth clients,
// authorization codes, and refresh tokens. Implementations are provided
// in subpackages for in-memory, Valkey, and relational (GORM) backends.
package storage

import (
	"context"
	"time"
)

// ClientStore provides access to registered OAuth clients.
// The authorization core only reads clients; registration happens
// out-of-band (seed data or admin tooling) through SaveClient.
// All methods accept context.Context for tracing and cancellation.
type ClientStore interface {
	// SaveClient persists a client registration. Used by seeding and
	// admin tooling only, never by the request path.
	SaveClient(ctx context.Context, client *Client) error

	// GetClient retrieves a client by ID. Returns ErrClientNotFound if
	// the client does not exist.
	GetClient(ctx context.Context, clientID string) (*Client, error)

	// ValidateClientSecret checks a confidential client's secret against
	// its stored bcrypt hash. Returns an error on mismatch or unknown client.
	ValidateClientSecret(ctx context.Context, clientID, clientSecret string) error
}

// CodeStore persists single-use authorization codes.
// All methods accept context.Context for tracing and cancellation.
type CodeStore interface {
	// SaveAuthorizationCode persists a freshly issued authorization code.
	SaveAuthorizationCode(ctx context.Context, code *AuthorizationCode) error

	// ConsumeAuthorizationCode atomically marks an authorization code as
	// consumed and returns its data. Fails with:
	//   - ErrCodeNotFound if the code does not exist
	//   - ErrCodeExpired if the code's expiry has passed
	//   - ErrCodeConsumed if the code was already exchanged (replay);
	//     the code data is still returned alongside the error so callers
	//     can revoke the tokens minted from the first exchange
	// SECURITY: This operation MUST be atomic. Two concurrent calls with
	// the same code must yield exactly one success.
	ConsumeAuthorizationCode(ctx context.Context, code string) (*AuthorizationCode, error)

	// DeleteAuthorizationCode removes an authorization code. Used by the
	// expiry janitor, not the request path.
	DeleteAuthorizationCode(ctx context.Context, code string) error
}

// TokenStore persists refresh tokens with their revocation state.
// Refresh tokens are never deleted by the request path; revocation only
// flips a flag so the row stays behind for auditing.
// All methods accept context.Context for tracing and cancellation.
type TokenStore interface {
	// SaveRefreshToken persists a newly issued refresh token.
	SaveRefreshToken(ctx context.Context, token *RefreshToken) error

	// GetRefreshToken retrieves a refresh token by its value. Returns
	// ErrRefreshTokenNotFound if it does not exist.
	GetRefreshToken(ctx context.Context, token string) (*RefreshToken, error)

	// RevokeRefreshToken atomically marks a refresh token revoked.
	// Returns ErrRefreshTokenNotFound for unknown tokens and
	// ErrRefreshTokenRevoked if it was already revoked; both are treated
	// as success by the revocation endpoint. A successful call sets
	// RevokedAt exactly once; later calls never alter it.
	RevokeRefreshToken(ctx context.Context, token string) error

	// RotateRefreshToken atomically revokes oldToken and persists
	// newToken. There is no window in which both tokens are usable:
	// either the rotation happens completely or not at all. Fails with
	// ErrRefreshTokenNotFound or ErrRefreshTokenRevoked if oldToken is
	// not live.
	RotateRefreshToken(ctx context.Context, oldToken string, newToken *RefreshToken) error

	// RevokeTokensForUserClient revokes every live refresh token for a
	// user+client pair. Called when authorization code replay is
	// detected. Returns the number of tokens revoked.
	RevokeTokensForUserClient(ctx context.Context, userID, clientID string) (int, error)
}

// Client type constants.
const (
	ClientTypeConfidential = "confidential"
	ClientTypePublic       = "public"
)

// Grant type constants.
const (
	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypeRefreshToken      = "refresh_token"
)

// Client represents a registered OAuth client application.
type Client struct {
	ClientID         string
	ClientSecretHash string // bcrypt hash; empty for public clients
	ClientType       string // "public" or "confidential"
	ClientName       string
	RedirectURIs     []string // exact-match allowed redirect URIs
	Scopes           []string // scopes the client may ever request
	GrantTypes       []string
	CreatedAt        time.Time
}

// Public reports whether the client is a public client (no secret, relies
// on PKCE at the token endpoint).
func (c *Client) Public() bool {
	return c.ClientType == ClientTypePublic
}

// AllowsGrantType reports whether the client may use the given grant type.
// An empty GrantTypes list means the default pair (authorization_code,
// refresh_token) is allowed.
func (c *Client) AllowsGrantType(grantType string) bool {
	if len(c.GrantTypes) == 0 {
		return grantType == GrantTypeAuthorizationCode || grantType == GrantTypeRefreshToken
	}
	for _, g := range c.GrantTypes {
		if g == grantType {
			return true
		}
	}
	return false
}

// AuthorizationCode represents a single-use grant artifact. A code moves
// from issued to consumed (ConsumedAt set) exactly once, or expires.
type AuthorizationCode struct {
	Code                string
	ClientID            string
	UserID              string
	RedirectURI         string // must be replayed byte-identically at exchange
	CodeChallenge       string // base64url SHA-256 digest supplied by the client
	CodeChallengeMethod string // always "S256"
	Scope               string // space-separated granted scopes
	CreatedAt           time.Time
	ExpiresAt           time.Time
	ConsumedAt          *time.Time // nil until exchanged
}

// Consumed reports whether the code has already been exchanged.
func (c *AuthorizationCode) Consumed() bool {
	return c.ConsumedAt != nil
}

// RefreshToken represents a long-lived credential for silent renewal.
// Revocation is terminal; there is no un-revoke.
type RefreshToken struct {
	Token     string
	ClientID  string
	UserID    string
	Scope     string // space-separated; access tokens minted on refresh never exceed this
	Revoked   bool
	RevokedAt *time.Time
	CreatedAt time.Time
	ExpiresAt time.Time
}
