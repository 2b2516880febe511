package valkey

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	valkeygo "github.com/valkey-io/valkey-go"

	"github.com/driftmap/oauth/storage"
)

const (
	// DefaultKeyPrefix is the default prefix for all Valkey keys.
	DefaultKeyPrefix = "driftmap:"

	// DefaultConsumedCodeRetention is how long a consumed authorization
	// code stays in Valkey after exchange. Keeping consumed codes around
	// is what makes replay detectable; once the key falls out, a replay
	// degrades to a generic not-found.
	DefaultConsumedCodeRetention = 24 * time.Hour

	// tokenIDLogLength is the number of characters shown when logging
	// codes and tokens.
	tokenIDLogLength = 8

	// connectionVerifyTimeout bounds the initial PING.
	connectionVerifyTimeout = 5 * time.Second

	// MaxTokenLength caps token strings to prevent DoS via oversized keys.
	MaxTokenLength = 512

	// MaxIDLength caps identifiers (userID, clientID).
	MaxIDLength = 256
)

// Config holds configuration for the Valkey storage backend.
type Config struct {
	// Address is the Valkey server address (required), e.g. "localhost:6379".
	Address string

	// Password is the optional password for authentication.
	Password string

	// DB is the optional database number (default 0).
	DB int

	// KeyPrefix is the prefix for all keys (default "driftmap:").
	KeyPrefix string

	// TLS is the optional TLS configuration for encrypted connections.
	TLS *tls.Config

	// Logger is the optional structured logger (default slog.Default()).
	Logger *slog.Logger

	// ConsumedCodeRetention overrides how long consumed codes are kept
	// for replay detection. Default 24h.
	ConsumedCodeRetention time.Duration
}

// Store is a Valkey-backed implementation of ClientStore, CodeStore, and
// TokenStore. Expiry is enforced with key TTLs; the security-critical
// consume and revoke transitions run as Lua scripts so they stay atomic
// across concurrent issuer instances.
type Store struct {
	client                valkeygo.Client
	prefix                string
	logger                *slog.Logger
	consumedCodeRetention time.Duration
}

// Compile-time interface checks.
var (
	_ storage.ClientStore = (*Store)(nil)
	_ storage.CodeStore   = (*Store)(nil)
	_ storage.TokenStore  = (*Store)(nil)
)

// New creates a Valkey-backed store, verifying the connection before
// returning.
func New(cfg Config) (*Store, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("valkey address is required")
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	retention := cfg.ConsumedCodeRetention
	if retention <= 0 {
		retention = DefaultConsumedCodeRetention
	}

	opts := valkeygo.ClientOption{
		InitAddress: []string{cfg.Address},
		SelectDB:    cfg.DB,
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.TLS != nil {
		opts.TLSConfig = cfg.TLS
	}

	client, err := valkeygo.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create valkey client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectionVerifyTimeout)
	defer cancel()

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to valkey: %w", err)
	}

	logger.Info("Connected to Valkey storage",
		"address", cfg.Address,
		"db", cfg.DB,
		"prefix", prefix)

	return &Store{
		client:                client,
		prefix:                prefix,
		logger:                logger,
		consumedCodeRetention: retention,
	}, nil
}

// Close closes the Valkey client connection.
func (s *Store) Close() {
	s.client.Close()
	s.logger.Info("Valkey storage connection closed")
}

// SetLogger sets a custom logger for the store.
func (s *Store) SetLogger(logger *slog.Logger) {
	s.logger = logger
}

// ============================================================
// Key Helpers
// ============================================================

// clientKey returns the key for a client: {prefix}client:{clientID}
func (s *Store) clientKey(clientID string) string {
	return fmt.Sprintf("%sclient:%s", s.prefix, clientID)
}

// codeKey returns the key for an authorization code: {prefix}code:{code}
func (s *Store) codeKey(code string) string {
	return fmt.Sprintf("%scode:%s", s.prefix, code)
}

// refreshTokenKey returns the key for a refresh token: {prefix}refresh:{token}
func (s *Store) refreshTokenKey(token string) string {
	return fmt.Sprintf("%srefresh:%s", s.prefix, token)
}

// userClientKey returns the set key tracking a user+client's refresh
// tokens: {prefix}userclient:{userID}:{clientID}
func (s *Store) userClientKey(userID, clientID string) string {
	return fmt.Sprintf("%suserclient:%s:%s", s.prefix, userID, clientID)
}

// ============================================================
// Lua Scripts for Atomic Operations
// ============================================================
//
// These scripts keep the security-critical transitions atomic in
// Valkey/Redis, so concurrent requests across issuer instances cannot
// race a code consume or a token rotation.

// luaConsumeAuthorizationCode atomically checks and marks an
// authorization code as consumed.
//
// KEYS[1] = code key
// ARGV[1] = current Unix timestamp in seconds
// ARGV[2] = retention in seconds for the consumed code
//
// Returns:
//   - the original JSON data if the code was live and is now consumed
//   - "NOT_FOUND" if the key doesn't exist
//   - "EXPIRED" if the code's expiry has passed
//   - "CONSUMED:<json>" if the code was already consumed (data returned
//     so the caller can revoke tokens minted from the first exchange)
const luaConsumeAuthorizationCode = `
local data = redis.call('GET', KEYS[1])
if not data then
    return 'NOT_FOUND'
end

local code = cjson.decode(data)

-- Consumed is checked before expiry so a replayed code still surfaces as
-- consumed (and triggers revocation) after its natural lifetime lapses.
if code.consumed_at then
    return 'CONSUMED:' .. data
end

local now = tonumber(ARGV[1])
local expiresAt = tonumber(code.expires_at)
if expiresAt and now > expiresAt then
    return 'EXPIRED'
end

-- Mark consumed and extend the key so replays stay detectable after the
-- original code TTL would have lapsed.
code.consumed_at = now
redis.call('SET', KEYS[1], cjson.encode(code), 'EX', ARGV[2])

return data
`

// luaRevokeRefreshToken atomically flips a refresh token's revoked flag.
//
// KEYS[1] = refresh token key
// ARGV[1] = current Unix timestamp in seconds
//
// Returns:
//   - "OK" if the token was live and is now revoked
//   - "NOT_FOUND" if the key doesn't exist
//   - "REVOKED" if the token was already revoked (RevokedAt untouched)
const luaRevokeRefreshToken = `
local data = redis.call('GET', KEYS[1])
if not data then
    return 'NOT_FOUND'
end

local token = cjson.decode(data)
if token.revoked then
    return 'REVOKED'
end

token.revoked = true
token.revoked_at = tonumber(ARGV[1])
redis.call('SET', KEYS[1], cjson.encode(token), 'KEEPTTL')

return 'OK'
`

// luaRotateRefreshToken atomically revokes the old refresh token and
// stores its replacement. Either both writes happen or neither does, so
// there is no window in which the old and new tokens are both usable.
//
// KEYS[1] = old refresh token key
// KEYS[2] = new refresh token key
// ARGV[1] = current Unix timestamp in seconds
// ARGV[2] = new token JSON
// ARGV[3] = new token TTL in seconds
//
// Returns:
//   - "OK" on success
//   - "NOT_FOUND" if the old token doesn't exist
//   - "REVOKED" if the old token was already revoked
const luaRotateRefreshToken = `
local data = redis.call('GET', KEYS[1])
if not data then
    return 'NOT_FOUND'
end

local token = cjson.decode(data)
if token.revoked then
    return 'REVOKED'
end

token.revoked = true
token.revoked_at = tonumber(ARGV[1])
redis.call('SET', KEYS[1], cjson.encode(token), 'KEEPTTL')
redis.call('SET', KEYS[2], ARGV[2], 'EX', ARGV[3])

return 'OK'
`

// ============================================================
// Shared Helpers
// ============================================================

// isNilError reports whether err is the Valkey nil reply (key missing).
func isNilError(err error) bool {
	return valkeygo.IsValkeyNil(err)
}

// calculateTTL returns the TTL for a key based on its expiry time, or 0
// if already expired.
func calculateTTL(expiresAt time.Time) time.Duration {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return 0
	}
	return ttl
}

// validateStringLength rejects oversized inputs before they become keys.
func validateStringLength(value string, maxLen int, fieldName string) error {
	if len(value) > maxLen {
		return fmt.Errorf("%s exceeds maximum length of %d bytes", fieldName, maxLen)
	}
	return nil
}

func safeTruncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
