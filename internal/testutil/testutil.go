package testutil

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/driftmap/oauth/storage"
)

// TestClientSecret is the plaintext secret matching the hash embedded in
// the fixtures below.
const TestClientSecret = "secret"

// testClientSecretHash is the bcrypt hash of TestClientSecret, generated
// once at init. MinCost keeps test startup cheap; the hash only needs to
// be valid, not strong.
var testClientSecretHash = func() string {
	hash, err := bcrypt.GenerateFromPassword([]byte(TestClientSecret), bcrypt.MinCost)
	if err != nil {
		panic(fmt.Sprintf("failed to hash test client secret: %v", err))
	}
	return string(hash)
}()

// MockTime provides a controllable time source for deterministic testing.
type MockTime struct {
	now time.Time
}

// NewMockTime creates a mock time provider starting at t.
func NewMockTime(t time.Time) *MockTime {
	return &MockTime{now: t}
}

// Now returns the current mock time.
func (m *MockTime) Now() time.Time {
	return m.now
}

// Advance moves the mock time forward by d.
func (m *MockTime) Advance(d time.Duration) {
	m.now = m.now.Add(d)
}

// Set sets the mock time to a specific value.
func (m *MockTime) Set(t time.Time) {
	m.now = t
}

// GenerateRandomString generates a random base64url string of the given length.
func GenerateRandomString(length int) string {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("failed to generate random string: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(b)[:length]
}

// GeneratePKCEPair generates a valid S256 challenge and verifier pair.
// Returns (challenge, verifier) where challenge is the base64url-encoded
// SHA-256 hash of the verifier.
func GeneratePKCEPair() (challenge, verifier string) {
	verifier = GenerateRandomString(50)
	hash := sha256.Sum256([]byte(verifier))
	challenge = base64.RawURLEncoding.EncodeToString(hash[:])
	return challenge, verifier
}

// NewConfidentialClient creates a registered confidential client fixture.
func NewConfidentialClient() *storage.Client {
	return &storage.Client{
		ClientID:         "test-client-id",
		ClientSecretHash: testClientSecretHash,
		ClientType:       storage.ClientTypeConfidential,
		ClientName:       "Test Client",
		RedirectURIs:     []string{"https://example.com/callback"},
		Scopes:           []string{"openid", "email", "profile"},
		GrantTypes:       []string{"authorization_code", "refresh_token"},
		CreatedAt:        time.Now(),
	}
}

// NewPublicClient creates a registered public client fixture.
func NewPublicClient() *storage.Client {
	return &storage.Client{
		ClientID:     "test-public-client",
		ClientType:   storage.ClientTypePublic,
		ClientName:   "Test Public Client",
		RedirectURIs: []string{"https://example.com/callback"},
		Scopes:       []string{"openid", "email", "profile"},
		GrantTypes:   []string{"authorization_code", "refresh_token"},
		CreatedAt:    time.Now(),
	}
}

// NewAuthorizationCode creates an unconsumed authorization code fixture
// bound to the given PKCE challenge.
func NewAuthorizationCode(challenge string) *storage.AuthorizationCode {
	return &storage.AuthorizationCode{
		Code:                GenerateRandomString(32),
		ClientID:            "test-client-id",
		UserID:              "test-user-123",
		RedirectURI:         "https://example.com/callback",
		CodeChallenge:       challenge,
		CodeChallengeMethod: "S256",
		Scope:               "openid email profile",
		CreatedAt:           time.Now(),
		ExpiresAt:           time.Now().Add(10 * time.Minute),
	}
}

// NewRefreshToken creates an active refresh token fixture.
func NewRefreshToken() *storage.RefreshToken {
	return &storage.RefreshToken{
		Token:     GenerateRandomString(43),
		ClientID:  "test-client-id",
		UserID:    "test-user-123",
		Scope:     "openid email profile",
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(720 * time.Hour),
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error but got nil")
	}
}
