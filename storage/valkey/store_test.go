package valkey

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeyHelpers(t *testing.T) {
	s := &Store{prefix: "driftmap:"}

	assert.Equal(t, "driftmap:client:web-app", s.clientKey("web-app"))
	assert.Equal(t, "driftmap:code:abc123", s.codeKey("abc123"))
	assert.Equal(t, "driftmap:refresh:tok456", s.refreshTokenKey("tok456"))
	assert.Equal(t, "driftmap:userclient:user-1:web-app", s.userClientKey("user-1", "web-app"))
}

func TestKeyHelpersCustomPrefix(t *testing.T) {
	s := &Store{prefix: "test:oauth:"}

	assert.Equal(t, "test:oauth:client:c1", s.clientKey("c1"))
	assert.Equal(t, "test:oauth:refresh:t1", s.refreshTokenKey("t1"))
}

func TestCalculateTTL(t *testing.T) {
	tests := []struct {
		name      string
		expiresAt time.Time
		wantZero  bool
	}{
		{
			name:      "future expiry",
			expiresAt: time.Now().Add(10 * time.Minute),
			wantZero:  false,
		},
		{
			name:      "past expiry",
			expiresAt: time.Now().Add(-time.Minute),
			wantZero:  true,
		},
		{
			name:      "zero time",
			expiresAt: time.Time{},
			wantZero:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ttl := calculateTTL(tt.expiresAt)
			if tt.wantZero {
				assert.Equal(t, time.Duration(0), ttl)
			} else {
				assert.Greater(t, ttl, 9*time.Minute)
				assert.LessOrEqual(t, ttl, 10*time.Minute)
			}
		})
	}
}

func TestValidateStringLength(t *testing.T) {
	assert.NoError(t, validateStringLength("short", 10, "token"))
	assert.NoError(t, validateStringLength("", 10, "token"))

	long := make([]byte, MaxTokenLength+1)
	for i := range long {
		long[i] = 'a'
	}
	err := validateStringLength(string(long), MaxTokenLength, "token")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "token")
	assert.Contains(t, err.Error(), "maximum length")
}

func TestSafeTruncate(t *testing.T) {
	assert.Equal(t, "abcd", safeTruncate("abcd", 8))
	assert.Equal(t, "abcdefgh", safeTruncate("abcdefghijklmnop", 8))
	assert.Equal(t, "", safeTruncate("", 8))
}

func TestNewRequiresAddress(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "address is required")
}
