// Package mock provides mock implementations of storage interfaces for testing.
package mock

import (
	"context"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/driftmap/oauth/storage"
)

// MockClientStore is a mock implementation of ClientStore for testing.
// Every method delegates to a Func field so individual tests can inject
// failures; the defaults behave like an in-memory store.
type MockClientStore struct {
	mu                 sync.RWMutex
	clients            map[string]*storage.Client
	SaveClientFunc     func(ctx context.Context, client *storage.Client) error
	GetClientFunc      func(ctx context.Context, clientID string) (*storage.Client, error)
	ValidateSecretFunc func(ctx context.Context, clientID, clientSecret string) error
	CallCounts         map[string]int
}

// NewMockClientStore creates a new mock client store.
func NewMockClientStore() *MockClientStore {
	m := &MockClientStore{
		clients:    make(map[string]*storage.Client),
		CallCounts: make(map[string]int),
	}

	m.SaveClientFunc = func(_ context.Context, client *storage.Client) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.clients[client.ClientID] = client
		return nil
	}

	m.GetClientFunc = func(_ context.Context, clientID string) (*storage.Client, error) {
		m.mu.RLock()
		defer m.mu.RUnlock()
		client, ok := m.clients[clientID]
		if !ok {
			return nil, storage.ErrClientNotFound
		}
		return client, nil
	}

	m.ValidateSecretFunc = func(_ context.Context, clientID, clientSecret string) error {
		// Mirrors the real stores: a bcrypt comparison always runs, so
		// tests exercising the timing-safe path behave the same way.
		dummyHash := "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

		m.mu.RLock()
		client, ok := m.clients[clientID]
		m.mu.RUnlock()

		hashToCompare := dummyHash
		isPublic := false
		if ok {
			if client.Public() {
				isPublic = true
			} else if client.ClientSecretHash != "" {
				hashToCompare = client.ClientSecretHash
			}
		}

		bcryptErr := bcrypt.CompareHashAndPassword([]byte(hashToCompare), []byte(clientSecret))

		if isPublic && ok {
			return nil
		}
		if !ok || bcryptErr != nil {
			return storage.ErrInvalidClientCredentials
		}
		return nil
	}

	return m
}

// SaveClient saves a registered client.
func (m *MockClientStore) SaveClient(ctx context.Context, client *storage.Client) error {
	m.CallCounts["SaveClient"]++
	return m.SaveClientFunc(ctx, client)
}

// GetClient retrieves a client by ID.
func (m *MockClientStore) GetClient(ctx context.Context, clientID string) (*storage.Client, error) {
	m.CallCounts["GetClient"]++
	return m.GetClientFunc(ctx, clientID)
}

// ValidateClientSecret validates a client's secret.
func (m *MockClientStore) ValidateClientSecret(ctx context.Context, clientID, clientSecret string) error {
	m.CallCounts["ValidateClientSecret"]++
	return m.ValidateSecretFunc(ctx, clientID, clientSecret)
}

// ResetCallCounts resets all call counters.
func (m *MockClientStore) ResetCallCounts() {
	m.CallCounts = make(map[string]int)
}

// MockCodeStore is a mock implementation of CodeStore for testing.
type MockCodeStore struct {
	mu              sync.RWMutex
	codes           map[string]*storage.AuthorizationCode
	SaveCodeFunc    func(ctx context.Context, code *storage.AuthorizationCode) error
	ConsumeCodeFunc func(ctx context.Context, code string) (*storage.AuthorizationCode, error)
	DeleteCodeFunc  func(ctx context.Context, code string) error
	CallCounts      map[string]int
}

// NewMockCodeStore creates a new mock code store.
func NewMockCodeStore() *MockCodeStore {
	m := &MockCodeStore{
		codes:      make(map[string]*storage.AuthorizationCode),
		CallCounts: make(map[string]int),
	}

	m.SaveCodeFunc = func(_ context.Context, code *storage.AuthorizationCode) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.codes[code.Code] = code
		return nil
	}

	m.ConsumeCodeFunc = func(_ context.Context, code string) (*storage.AuthorizationCode, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		authCode, ok := m.codes[code]
		if !ok {
			return nil, storage.ErrCodeNotFound
		}
		if authCode.Consumed() {
			codeCopy := *authCode
			return &codeCopy, storage.ErrCodeConsumed
		}
		if time.Now().After(authCode.ExpiresAt) {
			return nil, storage.ErrCodeExpired
		}
		now := time.Now()
		authCode.ConsumedAt = &now
		codeCopy := *authCode
		return &codeCopy, nil
	}

	m.DeleteCodeFunc = func(_ context.Context, code string) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.codes, code)
		return nil
	}

	return m
}

// SaveAuthorizationCode saves an issued authorization code.
func (m *MockCodeStore) SaveAuthorizationCode(ctx context.Context, code *storage.AuthorizationCode) error {
	m.CallCounts["SaveAuthorizationCode"]++
	return m.SaveCodeFunc(ctx, code)
}

// ConsumeAuthorizationCode atomically consumes an authorization code.
func (m *MockCodeStore) ConsumeAuthorizationCode(ctx context.Context, code string) (*storage.AuthorizationCode, error) {
	m.CallCounts["ConsumeAuthorizationCode"]++
	return m.ConsumeCodeFunc(ctx, code)
}

// DeleteAuthorizationCode removes an authorization code.
func (m *MockCodeStore) DeleteAuthorizationCode(ctx context.Context, code string) error {
	m.CallCounts["DeleteAuthorizationCode"]++
	return m.DeleteCodeFunc(ctx, code)
}

// ResetCallCounts resets all call counters.
func (m *MockCodeStore) ResetCallCounts() {
	m.CallCounts = make(map[string]int)
}

// MockTokenStore is a mock implementation of TokenStore for testing.
type MockTokenStore struct {
	mu                   sync.RWMutex
	tokens               map[string]*storage.RefreshToken
	SaveRefreshFunc      func(ctx context.Context, token *storage.RefreshToken) error
	GetRefreshFunc       func(ctx context.Context, token string) (*storage.RefreshToken, error)
	RevokeRefreshFunc    func(ctx context.Context, token string) error
	RotateRefreshFunc    func(ctx context.Context, oldToken string, newToken *storage.RefreshToken) error
	RevokeUserClientFunc func(ctx context.Context, userID, clientID string) (int, error)
	CallCounts           map[string]int
}

// NewMockTokenStore creates a new mock token store.
func NewMockTokenStore() *MockTokenStore {
	m := &MockTokenStore{
		tokens:     make(map[string]*storage.RefreshToken),
		CallCounts: make(map[string]int),
	}

	m.SaveRefreshFunc = func(_ context.Context, token *storage.RefreshToken) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.tokens[token.Token] = token
		return nil
	}

	m.GetRefreshFunc = func(_ context.Context, token string) (*storage.RefreshToken, error) {
		m.mu.RLock()
		defer m.mu.RUnlock()
		rt, ok := m.tokens[token]
		if !ok {
			return nil, storage.ErrRefreshTokenNotFound
		}
		rtCopy := *rt
		return &rtCopy, nil
	}

	m.RevokeRefreshFunc = func(_ context.Context, token string) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.revokeLocked(token)
	}

	m.RotateRefreshFunc = func(_ context.Context, oldToken string, newToken *storage.RefreshToken) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		if err := m.revokeLocked(oldToken); err != nil {
			return err
		}
		m.tokens[newToken.Token] = newToken
		return nil
	}

	m.RevokeUserClientFunc = func(_ context.Context, userID, clientID string) (int, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		revoked := 0
		now := time.Now()
		for _, rt := range m.tokens {
			if rt.UserID == userID && rt.ClientID == clientID && !rt.Revoked {
				rt.Revoked = true
				rt.RevokedAt = &now
				revoked++
			}
		}
		return revoked, nil
	}

	return m
}

// revokeLocked flips the revoked flag. Caller holds m.mu.
func (m *MockTokenStore) revokeLocked(token string) error {
	rt, ok := m.tokens[token]
	if !ok {
		return storage.ErrRefreshTokenNotFound
	}
	if rt.Revoked {
		return storage.ErrRefreshTokenRevoked
	}
	now := time.Now()
	rt.Revoked = true
	rt.RevokedAt = &now
	return nil
}

// SaveRefreshToken saves a refresh token.
func (m *MockTokenStore) SaveRefreshToken(ctx context.Context, token *storage.RefreshToken) error {
	m.CallCounts["SaveRefreshToken"]++
	return m.SaveRefreshFunc(ctx, token)
}

// GetRefreshToken retrieves a refresh token by value.
func (m *MockTokenStore) GetRefreshToken(ctx context.Context, token string) (*storage.RefreshToken, error) {
	m.CallCounts["GetRefreshToken"]++
	return m.GetRefreshFunc(ctx, token)
}

// RevokeRefreshToken marks a refresh token revoked.
func (m *MockTokenStore) RevokeRefreshToken(ctx context.Context, token string) error {
	m.CallCounts["RevokeRefreshToken"]++
	return m.RevokeRefreshFunc(ctx, token)
}

// RotateRefreshToken revokes oldToken and saves newToken.
func (m *MockTokenStore) RotateRefreshToken(ctx context.Context, oldToken string, newToken *storage.RefreshToken) error {
	m.CallCounts["RotateRefreshToken"]++
	return m.RotateRefreshFunc(ctx, oldToken, newToken)
}

// RevokeTokensForUserClient revokes all live tokens for a user+client pair.
func (m *MockTokenStore) RevokeTokensForUserClient(ctx context.Context, userID, clientID string) (int, error) {
	m.CallCounts["RevokeTokensForUserClient"]++
	return m.RevokeUserClientFunc(ctx, userID, clientID)
}

// ResetCallCounts resets all call counters.
func (m *MockTokenStore) ResetCallCounts() {
	m.CallCounts = make(map[string]int)
}

// Compile-time interface checks.
var (
	_ storage.ClientStore = (*MockClientStore)(nil)
	_ storage.CodeStore   = (*MockCodeStore)(nil)
	_ storage.TokenStore  = (*MockTokenStore)(nil)
)
