package valkey

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/driftmap/oauth/storage"
)

// ============================================================
// TokenStore Implementation
// ============================================================

// SaveRefreshToken persists a refresh token with a TTL matching its
// expiry, and indexes it in the user+client set so replay-triggered bulk
// revocation can find it.
func (s *Store) SaveRefreshToken(ctx context.Context, token *storage.RefreshToken) error {
	if token == nil || token.Token == "" {
		return fmt.Errorf("invalid refresh token")
	}
	if err := s.validateRefreshToken(token); err != nil {
		return err
	}

	ttl := calculateTTL(token.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("refresh token already expired")
	}

	data, err := json.Marshal(toRefreshTokenJSON(token))
	if err != nil {
		return fmt.Errorf("failed to marshal refresh token: %w", err)
	}

	key := s.refreshTokenKey(token.Token)
	if err := s.client.Do(ctx,
		s.client.B().Set().Key(key).Value(string(data)).Ex(ttl).Build(),
	).Error(); err != nil {
		return fmt.Errorf("failed to save refresh token: %w", err)
	}

	s.indexTokenForUserClient(ctx, token, ttl)

	s.logger.Debug("Saved refresh token",
		"token_prefix", safeTruncate(token.Token, tokenIDLogLength),
		"client_id", token.ClientID)
	return nil
}

func (s *Store) validateRefreshToken(token *storage.RefreshToken) error {
	if err := validateStringLength(token.Token, MaxTokenLength, "token"); err != nil {
		return err
	}
	if err := validateStringLength(token.UserID, MaxIDLength, "userID"); err != nil {
		return err
	}
	return validateStringLength(token.ClientID, MaxIDLength, "clientID")
}

// indexTokenForUserClient adds the token to the user+client set.
// Best-effort: a failed index means replay revocation may miss this
// token, which is logged but does not fail issuance.
func (s *Store) indexTokenForUserClient(ctx context.Context, token *storage.RefreshToken, ttl time.Duration) {
	setKey := s.userClientKey(token.UserID, token.ClientID)

	if err := s.client.Do(ctx,
		s.client.B().Sadd().Key(setKey).Member(token.Token).Build(),
	).Error(); err != nil {
		s.logger.Warn("Failed to index refresh token for user+client",
			"client_id", token.ClientID,
			"error", err)
		return
	}

	// The set lives as long as its longest-lived member.
	if err := s.client.Do(ctx,
		s.client.B().Expire().Key(setKey).Seconds(int64(ttl.Seconds())).Gt().Build(),
	).Error(); err != nil {
		s.logger.Warn("Failed to refresh user+client set TTL", "error", err)
	}
}

// GetRefreshToken retrieves a refresh token by value.
func (s *Store) GetRefreshToken(ctx context.Context, token string) (*storage.RefreshToken, error) {
	key := s.refreshTokenKey(token)

	data, err := s.client.Do(ctx, s.client.B().Get().Key(key).Build()).ToString()
	if err != nil {
		if isNilError(err) {
			return nil, storage.ErrRefreshTokenNotFound
		}
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}

	var j refreshTokenJSON
	if err := json.Unmarshal([]byte(data), &j); err != nil {
		return nil, fmt.Errorf("failed to unmarshal refresh token: %w", err)
	}

	return fromRefreshTokenJSON(&j), nil
}

// RevokeRefreshToken atomically marks a refresh token revoked via Lua
// script. The record stays behind (with its original TTL) for auditing.
func (s *Store) RevokeRefreshToken(ctx context.Context, token string) error {
	key := s.refreshTokenKey(token)

	result, err := s.client.Do(ctx,
		s.client.B().Eval().Script(luaRevokeRefreshToken).
			Numkeys(1).
			Key(key).
			Arg(fmt.Sprintf("%d", time.Now().Unix())).
			Build(),
	).ToString()
	if err != nil {
		return fmt.Errorf("failed to execute atomic token revoke: %w", err)
	}

	switch result {
	case "NOT_FOUND":
		return storage.ErrRefreshTokenNotFound
	case "REVOKED":
		return storage.ErrRefreshTokenRevoked
	}

	s.logger.Debug("Revoked refresh token",
		"token_prefix", safeTruncate(token, tokenIDLogLength))
	return nil
}

// RotateRefreshToken atomically revokes oldToken and persists newToken in
// a single Lua script, so no concurrent refresh can observe a state where
// both (or neither) are usable.
func (s *Store) RotateRefreshToken(ctx context.Context, oldToken string, newToken *storage.RefreshToken) error {
	if newToken == nil || newToken.Token == "" {
		return fmt.Errorf("invalid replacement refresh token")
	}
	if err := s.validateRefreshToken(newToken); err != nil {
		return err
	}

	ttl := calculateTTL(newToken.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("replacement refresh token already expired")
	}

	data, err := json.Marshal(toRefreshTokenJSON(newToken))
	if err != nil {
		return fmt.Errorf("failed to marshal replacement refresh token: %w", err)
	}

	result, err := s.client.Do(ctx,
		s.client.B().Eval().Script(luaRotateRefreshToken).
			Numkeys(2).
			Key(s.refreshTokenKey(oldToken)).
			Key(s.refreshTokenKey(newToken.Token)).
			Arg(fmt.Sprintf("%d", time.Now().Unix())).
			Arg(string(data)).
			Arg(fmt.Sprintf("%d", int64(ttl.Seconds()))).
			Build(),
	).ToString()
	if err != nil {
		return fmt.Errorf("failed to execute atomic token rotation: %w", err)
	}

	switch result {
	case "NOT_FOUND":
		return storage.ErrRefreshTokenNotFound
	case "REVOKED":
		return storage.ErrRefreshTokenRevoked
	}

	s.indexTokenForUserClient(ctx, newToken, ttl)

	s.logger.Debug("Rotated refresh token",
		"old_token_prefix", safeTruncate(oldToken, tokenIDLogLength),
		"new_token_prefix", safeTruncate(newToken.Token, tokenIDLogLength))
	return nil
}

// RevokeTokensForUserClient revokes every live refresh token for a
// user+client pair using the index set. Returns the number revoked.
func (s *Store) RevokeTokensForUserClient(ctx context.Context, userID, clientID string) (int, error) {
	setKey := s.userClientKey(userID, clientID)

	members, err := s.client.Do(ctx, s.client.B().Smembers().Key(setKey).Build()).AsStrSlice()
	if err != nil {
		if isNilError(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to list tokens for user+client: %w", err)
	}

	revoked := 0
	for _, tokenValue := range members {
		switch err := s.RevokeRefreshToken(ctx, tokenValue); {
		case err == nil:
			revoked++
		case errors.Is(err, storage.ErrRefreshTokenNotFound):
			// Expired out of Valkey; drop the stale index entry.
			if remErr := s.client.Do(ctx,
				s.client.B().Srem().Key(setKey).Member(tokenValue).Build(),
			).Error(); remErr != nil {
				s.logger.Warn("Failed to prune stale token index entry", "error", remErr)
			}
		case errors.Is(err, storage.ErrRefreshTokenRevoked):
			// Already revoked, nothing to count.
		default:
			return revoked, err
		}
	}

	if revoked > 0 {
		s.logger.Info("Revoked refresh tokens for user and client",
			"client_id", clientID,
			"count", revoked)
	}
	return revoked, nil
}
