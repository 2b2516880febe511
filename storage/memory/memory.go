// Package memory provides an in-memory implementation of all storage
// interfaces. It is suitable for development, testing, and single-instance
// deployments.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"

	"github.com/driftmap/oauth/instrumentation"
	"github.com/driftmap/oauth/internal/util"
	"github.com/driftmap/oauth/security"
	"github.com/driftmap/oauth/storage"
)

// tokenIDLogLength is the number of characters shown when logging codes
// and tokens. Enough to correlate, not enough to replay.
const tokenIDLogLength = 8

// dummyBcryptHash is compared against when a client does not exist, so
// secret validation takes the same time either way.
const dummyBcryptHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// Store is an in-memory implementation of ClientStore, CodeStore, and
// TokenStore.
type Store struct {
	mu sync.RWMutex

	clients       map[string]*storage.Client
	authCodes     map[string]*storage.AuthorizationCode
	refreshTokens map[string]*storage.RefreshToken

	// Instrumentation
	instrumentation *instrumentation.Instrumentation
	tracer          trace.Tracer

	// Atomic counters for gauge callbacks (lock-free reads)
	clientsCountAtomic       atomic.Int64
	authCodesCountAtomic     atomic.Int64
	refreshTokensCountAtomic atomic.Int64

	// Cleanup
	cleanupInterval      time.Duration
	consumedCodeGrace    time.Duration
	revokedRetentionDays int64
	stopCleanup          chan struct{}
	stopOnce             sync.Once
	logger               *slog.Logger
}

// Compile-time interface checks.
var (
	_ storage.ClientStore = (*Store)(nil)
	_ storage.CodeStore   = (*Store)(nil)
	_ storage.TokenStore  = (*Store)(nil)
)

// New creates an in-memory store with the default cleanup interval of one
// minute.
func New() *Store {
	return NewWithInterval(time.Minute)
}

// NewWithInterval creates an in-memory store with a custom cleanup
// interval. Non-positive intervals fall back to one minute.
func NewWithInterval(cleanupInterval time.Duration) *Store {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}

	s := &Store{
		clients:       make(map[string]*storage.Client),
		authCodes:     make(map[string]*storage.AuthorizationCode),
		refreshTokens: make(map[string]*storage.RefreshToken),

		cleanupInterval: cleanupInterval,
		// Consumed codes are kept for a grace window so a replay maps to
		// ErrCodeConsumed (triggering token revocation) instead of the
		// uninformative ErrCodeNotFound.
		consumedCodeGrace:    24 * time.Hour,
		revokedRetentionDays: 90,
		stopCleanup:          make(chan struct{}),
		logger:               slog.Default(),
	}

	go s.cleanupLoop()

	return s
}

// SetLogger sets a custom logger.
func (s *Store) SetLogger(logger *slog.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = logger
}

// SetRevokedTokenRetentionDays sets how long revoked refresh tokens are
// kept for auditing before the janitor removes them. Default: 90 days.
func (s *Store) SetRevokedTokenRetentionDays(days int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revokedRetentionDays = days
}

// SetInstrumentation wires OpenTelemetry instrumentation into the store
// and registers storage size gauges.
func (s *Store) SetInstrumentation(inst *instrumentation.Instrumentation) {
	s.mu.Lock()
	s.instrumentation = inst
	if inst != nil {
		s.tracer = inst.Tracer("storage")
	}
	s.clientsCountAtomic.Store(int64(len(s.clients)))
	s.authCodesCountAtomic.Store(int64(len(s.authCodes)))
	s.refreshTokensCountAtomic.Store(int64(len(s.refreshTokens)))
	s.mu.Unlock()

	if inst != nil {
		err := inst.RegisterStorageSizeCallbacks(
			func() int64 { return s.clientsCountAtomic.Load() },
			func() int64 { return s.authCodesCountAtomic.Load() },
			func() int64 { return s.refreshTokensCountAtomic.Load() },
		)
		if err != nil {
			s.logger.Warn("Failed to register storage size callbacks", "error", err)
		}
	}
}

// Stop terminates the background cleanup goroutine. Safe to call more
// than once.
func (s *Store) Stop() {
	s.stopOnce.Do(func() { close(s.stopCleanup) })
}

// ============================================================
// ClientStore Implementation
// ============================================================

// SaveClient persists a client registration.
func (s *Store) SaveClient(ctx context.Context, client *storage.Client) error {
	ctx, span := s.startStorageSpan(ctx, "save_client")
	defer span.End()

	startTime := time.Now()
	var err error
	defer func() {
		s.recordStorageOperation(ctx, span, "save_client", err, startTime)
	}()

	if client == nil || client.ClientID == "" {
		err = fmt.Errorf("invalid client")
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, existed := s.clients[client.ClientID]
	s.clients[client.ClientID] = client
	if !existed {
		s.clientsCountAtomic.Add(1)
	}

	s.logger.Debug("Saved client", "client_id", client.ClientID, "client_type", client.ClientType)
	return nil
}

// GetClient retrieves a client by ID.
func (s *Store) GetClient(ctx context.Context, clientID string) (*storage.Client, error) {
	ctx, span := s.startStorageSpan(ctx, "get_client")
	defer span.End()

	startTime := time.Now()
	var err error
	defer func() {
		s.recordStorageOperation(ctx, span, "get_client", err, startTime)
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()

	client, ok := s.clients[clientID]
	if !ok {
		err = fmt.Errorf("%w: %s", storage.ErrClientNotFound, clientID)
		return nil, err
	}

	return client, nil
}

// ValidateClientSecret validates a confidential client's secret against
// its stored bcrypt hash.
//
// SECURITY: a bcrypt comparison runs on every call, against a dummy hash
// when the client does not exist, so response timing does not reveal
// whether a client ID is registered.
func (s *Store) ValidateClientSecret(ctx context.Context, clientID, clientSecret string) error {
	client, err := s.GetClient(ctx, clientID)

	hashToCompare := dummyBcryptHash
	isPublic := false
	if err == nil {
		if client.Public() {
			isPublic = true
		} else if client.ClientSecretHash != "" {
			hashToCompare = client.ClientSecretHash
		}
	}

	bcryptErr := bcrypt.CompareHashAndPassword([]byte(hashToCompare), []byte(clientSecret))

	// Public clients carry no secret; they authenticate with PKCE instead.
	if isPublic && err == nil {
		return nil
	}
	if err != nil || bcryptErr != nil {
		return storage.ErrInvalidClientCredentials
	}

	return nil
}

// ListClients lists all registered clients.
func (s *Store) ListClients(ctx context.Context) ([]*storage.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clients := make([]*storage.Client, 0, len(s.clients))
	for _, client := range s.clients {
		clients = append(clients, client)
	}

	return clients, nil
}

// ============================================================
// CodeStore Implementation
// ============================================================

// SaveAuthorizationCode persists a freshly issued authorization code.
func (s *Store) SaveAuthorizationCode(ctx context.Context, code *storage.AuthorizationCode) error {
	ctx, span := s.startStorageSpan(ctx, "save_authorization_code")
	defer span.End()

	startTime := time.Now()
	var err error
	defer func() {
		s.recordStorageOperation(ctx, span, "save_authorization_code", err, startTime)
	}()

	if code == nil || code.Code == "" {
		err = fmt.Errorf("invalid authorization code")
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, existed := s.authCodes[code.Code]
	s.authCodes[code.Code] = code
	if !existed {
		s.authCodesCountAtomic.Add(1)
	}

	s.logger.Debug("Saved authorization code",
		"code_prefix", util.SafeTruncate(code.Code, tokenIDLogLength),
		"client_id", code.ClientID)
	return nil
}

// ConsumeAuthorizationCode atomically marks a code as consumed and
// returns it.
//
// SECURITY: the check-and-set runs under the write lock, so of any number
// of concurrent calls with the same code exactly one succeeds; the rest
// get ErrCodeConsumed. On ErrCodeConsumed the code data is returned
// alongside the error so the caller can revoke tokens minted from the
// first exchange. Not-found and expired return nil data to avoid leaking
// anything about unknown codes.
func (s *Store) ConsumeAuthorizationCode(ctx context.Context, code string) (*storage.AuthorizationCode, error) {
	ctx, span := s.startStorageSpan(ctx, "consume_authorization_code")
	defer span.End()

	startTime := time.Now()
	var err error
	defer func() {
		s.recordStorageOperation(ctx, span, "consume_authorization_code", err, startTime)
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	authCode, ok := s.authCodes[code]
	if !ok {
		err = storage.ErrCodeNotFound
		return nil, err
	}

	// Consumed is checked before expiry: a replayed code must surface as
	// consumed even after its natural lifetime has lapsed, or the replay
	// would not trigger token revocation.
	if authCode.Consumed() {
		codeCopy := *authCode
		err = storage.ErrCodeConsumed
		return &codeCopy, err
	}

	if security.IsExpired(authCode.ExpiresAt) {
		err = fmt.Errorf("%w: %s", storage.ErrCodeExpired, util.SafeTruncate(code, tokenIDLogLength))
		return nil, err
	}

	now := time.Now()
	authCode.ConsumedAt = &now

	s.logger.Debug("Consumed authorization code",
		"code_prefix", util.SafeTruncate(code, tokenIDLogLength))

	codeCopy := *authCode
	return &codeCopy, nil
}

// DeleteAuthorizationCode removes an authorization code.
func (s *Store) DeleteAuthorizationCode(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, existed := s.authCodes[code]; existed {
		delete(s.authCodes, code)
		s.authCodesCountAtomic.Add(-1)
	}
	return nil
}

// ============================================================
// TokenStore Implementation
// ============================================================

// SaveRefreshToken persists a newly issued refresh token.
func (s *Store) SaveRefreshToken(ctx context.Context, token *storage.RefreshToken) error {
	ctx, span := s.startStorageSpan(ctx, "save_refresh_token")
	defer span.End()

	startTime := time.Now()
	var err error
	defer func() {
		s.recordStorageOperation(ctx, span, "save_refresh_token", err, startTime)
	}()

	if token == nil || token.Token == "" {
		err = fmt.Errorf("invalid refresh token")
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.saveRefreshTokenLocked(token)
	return nil
}

// saveRefreshTokenLocked stores a token. Caller holds s.mu.
func (s *Store) saveRefreshTokenLocked(token *storage.RefreshToken) {
	_, existed := s.refreshTokens[token.Token]
	s.refreshTokens[token.Token] = token
	if !existed {
		s.refreshTokensCountAtomic.Add(1)
	}

	s.logger.Debug("Saved refresh token",
		"token_prefix", util.SafeTruncate(token.Token, tokenIDLogLength),
		"client_id", token.ClientID)
}

// GetRefreshToken retrieves a refresh token by value.
func (s *Store) GetRefreshToken(ctx context.Context, token string) (*storage.RefreshToken, error) {
	ctx, span := s.startStorageSpan(ctx, "get_refresh_token")
	defer span.End()

	startTime := time.Now()
	var err error
	defer func() {
		s.recordStorageOperation(ctx, span, "get_refresh_token", err, startTime)
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()

	rt, ok := s.refreshTokens[token]
	if !ok {
		err = storage.ErrRefreshTokenNotFound
		return nil, err
	}

	rtCopy := *rt
	return &rtCopy, nil
}

// RevokeRefreshToken atomically marks a refresh token revoked.
func (s *Store) RevokeRefreshToken(ctx context.Context, token string) error {
	ctx, span := s.startStorageSpan(ctx, "revoke_refresh_token")
	defer span.End()

	startTime := time.Now()
	var err error
	defer func() {
		s.recordStorageOperation(ctx, span, "revoke_refresh_token", err, startTime)
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	err = s.revokeRefreshTokenLocked(token)
	return err
}

// revokeRefreshTokenLocked flips the revoked flag. Caller holds s.mu.
func (s *Store) revokeRefreshTokenLocked(token string) error {
	rt, ok := s.refreshTokens[token]
	if !ok {
		return storage.ErrRefreshTokenNotFound
	}
	if rt.Revoked {
		return storage.ErrRefreshTokenRevoked
	}

	now := time.Now()
	rt.Revoked = true
	rt.RevokedAt = &now

	s.logger.Debug("Revoked refresh token",
		"token_prefix", util.SafeTruncate(token, tokenIDLogLength))
	return nil
}

// RotateRefreshToken atomically revokes oldToken and persists newToken.
// Both steps happen under one critical section, so no window exists in
// which both tokens are usable or neither is.
func (s *Store) RotateRefreshToken(ctx context.Context, oldToken string, newToken *storage.RefreshToken) error {
	ctx, span := s.startStorageSpan(ctx, "rotate_refresh_token")
	defer span.End()

	startTime := time.Now()
	var err error
	defer func() {
		s.recordStorageOperation(ctx, span, "rotate_refresh_token", err, startTime)
	}()

	if newToken == nil || newToken.Token == "" {
		err = fmt.Errorf("invalid replacement refresh token")
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err = s.revokeRefreshTokenLocked(oldToken); err != nil {
		return err
	}
	s.saveRefreshTokenLocked(newToken)
	return nil
}

// RevokeTokensForUserClient revokes every live refresh token for a
// user+client pair. Called on authorization code replay detection.
func (s *Store) RevokeTokensForUserClient(ctx context.Context, userID, clientID string) (int, error) {
	ctx, span := s.startStorageSpan(ctx, "revoke_tokens_for_user_client")
	defer span.End()

	startTime := time.Now()
	var err error
	defer func() {
		s.recordStorageOperation(ctx, span, "revoke_tokens_for_user_client", err, startTime)
	}()

	if span != nil {
		span.SetAttributes(attribute.String("client_id", clientID))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	revoked := 0
	for _, rt := range s.refreshTokens {
		if rt.UserID == userID && rt.ClientID == clientID && !rt.Revoked {
			rt.Revoked = true
			rt.RevokedAt = &now
			revoked++
		}
	}

	if revoked > 0 {
		s.logger.Info("Revoked refresh tokens for user and client",
			"client_id", clientID,
			"count", revoked)
	}
	return revoked, nil
}

// ============================================================
// Cleanup
// ============================================================

func (s *Store) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCleanup:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *Store) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	cleaned := 0
	now := time.Now()

	// Expired codes go once their expiry passes; consumed codes survive a
	// grace window beyond that so replays are still detectable.
	for code, authCode := range s.authCodes {
		drop := false
		if authCode.Consumed() {
			drop = now.After(authCode.ConsumedAt.Add(s.consumedCodeGrace))
		} else {
			drop = security.IsExpired(authCode.ExpiresAt)
		}
		if drop {
			delete(s.authCodes, code)
			s.authCodesCountAtomic.Add(-1)
			cleaned++
		}
	}

	// Expired refresh tokens are removed immediately; revoked ones are
	// retained for auditing until the retention period lapses.
	retentionDays := s.revokedRetentionDays
	if retentionDays == 0 {
		retentionDays = 90
	}
	revokedThreshold := now.Add(-time.Duration(retentionDays) * 24 * time.Hour)
	for tokenValue, rt := range s.refreshTokens {
		drop := false
		if security.IsExpired(rt.ExpiresAt) {
			drop = true
		} else if rt.Revoked {
			revokedTime := rt.CreatedAt
			if rt.RevokedAt != nil {
				revokedTime = *rt.RevokedAt
			}
			drop = revokedTime.Before(revokedThreshold)
		}
		if drop {
			delete(s.refreshTokens, tokenValue)
			s.refreshTokensCountAtomic.Add(-1)
			cleaned++
		}
	}

	if cleaned > 0 {
		s.logger.Debug("Cleaned up expired entries", "count", cleaned)
	}
}

// ============================================================
// Instrumentation helpers
// ============================================================

// startStorageSpan starts a span for a storage operation. Returns a
// non-recording span when instrumentation is not configured.
func (s *Store) startStorageSpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	if s.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}

	return s.tracer.Start(ctx, fmt.Sprintf("storage.%s", operation),
		trace.WithAttributes(
			attribute.String("operation", operation),
		))
}

// recordStorageOperation records metrics for a storage operation and sets
// the span status.
func (s *Store) recordStorageOperation(ctx context.Context, span trace.Span, operation string, err error, startTime time.Time) {
	if s.instrumentation == nil {
		return
	}

	durationMs := float64(time.Since(startTime).Milliseconds())
	result := "success"
	if err != nil {
		result = "error"
		if span != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	} else if span != nil {
		span.SetStatus(codes.Ok, "")
	}

	s.instrumentation.Metrics().RecordStorageOperation(ctx, operation, result, durationMs)
}
