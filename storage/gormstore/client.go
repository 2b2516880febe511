package gormstore

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/driftmap/oauth/storage"
)

// dummyBcryptHash keeps secret validation constant-time for unknown
// clients. bcrypt hash of an arbitrary string, never matched against
// real secrets.
const dummyBcryptHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// SaveClient creates or replaces a registered client.
func (s *Store) SaveClient(ctx context.Context, client *storage.Client) error {
	if client == nil || client.ClientID == "" {
		return fmt.Errorf("invalid client")
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "client_id"}},
			UpdateAll: true,
		}).
		Create(toClientRecord(client)).Error
	if err != nil {
		return fmt.Errorf("failed to save client: %w", err)
	}

	s.logger.Debug("Saved client", "client_id", client.ClientID, "client_type", client.ClientType)
	return nil
}

// GetClient retrieves a registered client by ID.
func (s *Store) GetClient(ctx context.Context, clientID string) (*storage.Client, error) {
	var record clientRecord
	err := s.db.WithContext(ctx).
		Where("client_id = ?", clientID).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", storage.ErrClientNotFound, clientID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}

	return record.toClient(), nil
}

// ValidateClientSecret validates a confidential client's secret against
// its stored bcrypt hash.
//
// SECURITY: a bcrypt comparison always runs, against a dummy hash when
// the client is unknown, so response timing does not reveal whether a
// client ID is registered.
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

	if isPublic && err == nil {
		return nil
	}
	if err != nil || bcryptErr != nil {
		return storage.ErrInvalidClientCredentials
	}

	return nil
}
