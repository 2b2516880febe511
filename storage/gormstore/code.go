package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/driftmap/oauth/storage"
)

// SaveAuthorizationCode persists a newly issued authorization code.
func (s *Store) SaveAuthorizationCode(ctx context.Context, code *storage.AuthorizationCode) error {
	if code == nil || code.Code == "" {
		return fmt.Errorf("invalid authorization code")
	}
	if !code.ExpiresAt.After(time.Now()) {
		return fmt.Errorf("authorization code already expired")
	}

	if err := s.db.WithContext(ctx).Create(toAuthorizationCodeRecord(code)).Error; err != nil {
		return fmt.Errorf("failed to save authorization code: %w", err)
	}

	s.logger.Debug("Saved authorization code",
		"code_prefix", safeTruncate(code.Code, tokenIDLogLength),
		"client_id", code.ClientID)
	return nil
}

// ConsumeAuthorizationCode atomically marks a code consumed and returns
// its data. The conditional UPDATE resolves concurrent exchanges at the
// database: exactly one caller sees RowsAffected == 1.
//
// A code that was already consumed returns its data along with
// ErrCodeConsumed, so the caller can revoke everything derived from it.
func (s *Store) ConsumeAuthorizationCode(ctx context.Context, code string) (*storage.AuthorizationCode, error) {
	now := time.Now()

	tx := s.db.WithContext(ctx).
		Model(&authorizationCodeRecord{}).
		Where("code = ? AND consumed_at IS NULL AND expires_at > ?", code, now).
		Update("consumed_at", now)
	if tx.Error != nil {
		return nil, fmt.Errorf("failed to consume authorization code: %w", tx.Error)
	}

	var record authorizationCodeRecord
	err := s.db.WithContext(ctx).
		Where("code = ?", code).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrCodeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read authorization code: %w", err)
	}

	if tx.RowsAffected == 1 {
		s.logger.Debug("Consumed authorization code",
			"code_prefix", safeTruncate(code, tokenIDLogLength),
			"client_id", record.ClientID)
		return record.toAuthorizationCode(), nil
	}

	// The UPDATE matched nothing: the row exists but was either expired
	// or already consumed by a racing exchange.
	if record.ConsumedAt != nil {
		return record.toAuthorizationCode(), storage.ErrCodeConsumed
	}
	return nil, storage.ErrCodeExpired
}

// DeleteAuthorizationCode removes a code, e.g. after a failed exchange.
func (s *Store) DeleteAuthorizationCode(ctx context.Context, code string) error {
	if err := s.db.WithContext(ctx).
		Where("code = ?", code).
		Delete(&authorizationCodeRecord{}).Error; err != nil {
		return fmt.Errorf("failed to delete authorization code: %w", err)
	}
	return nil
}
