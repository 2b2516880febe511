package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/driftmap/oauth/storage"
)

// SaveRefreshToken persists a refresh token.
func (s *Store) SaveRefreshToken(ctx context.Context, token *storage.RefreshToken) error {
	if token == nil || token.Token == "" {
		return fmt.Errorf("invalid refresh token")
	}

	if err := s.db.WithContext(ctx).Create(toRefreshTokenRecord(token)).Error; err != nil {
		return fmt.Errorf("failed to save refresh token: %w", err)
	}

	s.logger.Debug("Saved refresh token",
		"token_prefix", safeTruncate(token.Token, tokenIDLogLength),
		"client_id", token.ClientID)
	return nil
}

// GetRefreshToken retrieves a refresh token by value.
func (s *Store) GetRefreshToken(ctx context.Context, token string) (*storage.RefreshToken, error) {
	var record refreshTokenRecord
	err := s.db.WithContext(ctx).
		Where("token = ?", token).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrRefreshTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}

	return record.toRefreshToken(), nil
}

// RevokeRefreshToken atomically marks a refresh token revoked. A
// conditional UPDATE guarantees that of any number of concurrent calls
// exactly one flips the flag; the rest see ErrRefreshTokenRevoked. The
// row is kept for auditing.
func (s *Store) RevokeRefreshToken(ctx context.Context, token string) error {
	err := s.revokeRefreshTokenTx(ctx, s.db, token)
	if err != nil {
		return err
	}

	s.logger.Debug("Revoked refresh token",
		"token_prefix", safeTruncate(token, tokenIDLogLength))
	return nil
}

// revokeRefreshTokenTx runs the conditional revoke UPDATE on the given
// handle, which may be a transaction.
func (s *Store) revokeRefreshTokenTx(ctx context.Context, db *gorm.DB, token string) error {
	now := time.Now()

	tx := db.WithContext(ctx).
		Model(&refreshTokenRecord{}).
		Where("token = ? AND revoked = ?", token, false).
		Updates(map[string]any{"revoked": true, "revoked_at": now})
	if tx.Error != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", tx.Error)
	}
	if tx.RowsAffected == 1 {
		return nil
	}

	var record refreshTokenRecord
	err := db.WithContext(ctx).
		Where("token = ?", token).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return storage.ErrRefreshTokenNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read refresh token: %w", err)
	}
	return storage.ErrRefreshTokenRevoked
}

// RotateRefreshToken atomically revokes oldToken and persists newToken in
// one transaction, so no concurrent refresh can observe a state where
// both (or neither) are usable. If revoking the old token fails, the new
// token is never persisted.
func (s *Store) RotateRefreshToken(ctx context.Context, oldToken string, newToken *storage.RefreshToken) error {
	if newToken == nil || newToken.Token == "" {
		return fmt.Errorf("invalid replacement refresh token")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.revokeRefreshTokenTx(ctx, tx, oldToken); err != nil {
			return err
		}
		if err := tx.Create(toRefreshTokenRecord(newToken)).Error; err != nil {
			return fmt.Errorf("failed to save replacement refresh token: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Debug("Rotated refresh token",
		"old_token_prefix", safeTruncate(oldToken, tokenIDLogLength),
		"new_token_prefix", safeTruncate(newToken.Token, tokenIDLogLength))
	return nil
}

// RevokeTokensForUserClient revokes every live refresh token for a
// user+client pair in a single UPDATE. Returns the number revoked.
func (s *Store) RevokeTokensForUserClient(ctx context.Context, userID, clientID string) (int, error) {
	now := time.Now()

	tx := s.db.WithContext(ctx).
		Model(&refreshTokenRecord{}).
		Where("user_id = ? AND client_id = ? AND revoked = ?", userID, clientID, false).
		Updates(map[string]any{"revoked": true, "revoked_at": now})
	if tx.Error != nil {
		return 0, fmt.Errorf("failed to revoke tokens for user and client: %w", tx.Error)
	}

	revoked := int(tx.RowsAffected)
	if revoked > 0 {
		s.logger.Info("Revoked refresh tokens for user and client",
			"client_id", clientID,
			"count", revoked)
	}
	return revoked, nil
}
