package gormstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/driftmap/oauth/storage"
)

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const (
	// DefaultConsumedCodeRetention is how long consumed authorization
	// codes stay queryable after consumption, for replay detection.
	DefaultConsumedCodeRetention = 24 * time.Hour

	// DefaultRevokedTokenRetention is how long revoked refresh tokens
	// stay in the table, for auditing.
	DefaultRevokedTokenRetention = 90 * 24 * time.Hour

	tokenIDLogLength = 8
)

// Config holds SQL storage configuration.
type Config struct {
	// Driver selects the database backend: "postgres" or "sqlite".
	Driver string

	// DSN is the driver-specific connection string, e.g.
	// "host=localhost user=oauth dbname=oauth" for postgres or
	// "file:oauth.db" for sqlite.
	DSN string

	// Logger for storage events. Defaults to slog.Default.
	Logger *slog.Logger

	// ConsumedCodeRetention overrides how long consumed codes are kept
	// for replay detection. Default 24h.
	ConsumedCodeRetention time.Duration

	// RevokedTokenRetention overrides how long revoked tokens are kept
	// for auditing. Default 90 days.
	RevokedTokenRetention time.Duration
}

// Store is a SQL-backed implementation of ClientStore, CodeStore, and
// TokenStore. Single-use and rotation guarantees are enforced with
// conditional UPDATEs and transactions rather than in-process locks, so
// multiple issuer instances can share one database.
type Store struct {
	db                    *gorm.DB
	logger                *slog.Logger
	consumedCodeRetention time.Duration
	revokedTokenRetention time.Duration
}

// Compile-time interface checks.
var (
	_ storage.ClientStore = (*Store)(nil)
	_ storage.CodeStore   = (*Store)(nil)
	_ storage.TokenStore  = (*Store)(nil)
)

// Open connects to the configured database and migrates the schema.
func Open(cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database DSN is required")
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case DriverPostgres:
		dialector = postgres.Open(cfg.DSN)
	case DriverSQLite, "":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return newStore(db, cfg)
}

// NewWithDB wraps an existing GORM connection, migrating the schema.
// Useful when the embedding application manages the connection pool.
func NewWithDB(db *gorm.DB, cfg Config) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	return newStore(db, cfg)
}

func newStore(db *gorm.DB, cfg Config) (*Store, error) {
	if err := db.AutoMigrate(
		&clientRecord{},
		&authorizationCodeRecord{},
		&refreshTokenRecord{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	codeRetention := cfg.ConsumedCodeRetention
	if codeRetention <= 0 {
		codeRetention = DefaultConsumedCodeRetention
	}

	tokenRetention := cfg.RevokedTokenRetention
	if tokenRetention <= 0 {
		tokenRetention = DefaultRevokedTokenRetention
	}

	logger.Info("Connected to SQL storage", "driver", db.Dialector.Name())

	return &Store{
		db:                    db,
		logger:                logger,
		consumedCodeRetention: codeRetention,
		revokedTokenRetention: tokenRetention,
	}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SetLogger sets a custom logger for the store.
func (s *Store) SetLogger(logger *slog.Logger) {
	s.logger = logger
}

// Cleanup removes rows that have outlived their usefulness: unconsumed
// codes past expiry, consumed codes past the replay-detection retention,
// expired refresh tokens, and revoked tokens past the audit retention.
func (s *Store) Cleanup(ctx context.Context) error {
	now := time.Now()

	if err := s.db.WithContext(ctx).
		Where("consumed_at IS NULL AND expires_at < ?", now).
		Delete(&authorizationCodeRecord{}).Error; err != nil {
		return fmt.Errorf("failed to clean up expired codes: %w", err)
	}

	if err := s.db.WithContext(ctx).
		Where("consumed_at IS NOT NULL AND consumed_at < ?", now.Add(-s.consumedCodeRetention)).
		Delete(&authorizationCodeRecord{}).Error; err != nil {
		return fmt.Errorf("failed to clean up consumed codes: %w", err)
	}

	if err := s.db.WithContext(ctx).
		Where("revoked = ? AND expires_at < ?", false, now).
		Delete(&refreshTokenRecord{}).Error; err != nil {
		return fmt.Errorf("failed to clean up expired refresh tokens: %w", err)
	}

	if err := s.db.WithContext(ctx).
		Where("revoked = ? AND revoked_at < ?", true, now.Add(-s.revokedTokenRetention)).
		Delete(&refreshTokenRecord{}).Error; err != nil {
		return fmt.Errorf("failed to clean up revoked refresh tokens: %w", err)
	}

	return nil
}

func safeTruncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
