package valkey

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftmap/oauth/storage"
)

func TestClientRoundTrip(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	client := &storage.Client{
		ClientID:         "web-app",
		ClientSecretHash: "$2a$10$abcdefghijklmnopqrstuv",
		ClientType:       storage.ClientTypeConfidential,
		ClientName:       "Web Application",
		RedirectURIs:     []string{"https://app.example.com/callback"},
		Scopes:           []string{"openid", "profile"},
		GrantTypes:       []string{"authorization_code", "refresh_token"},
		CreatedAt:        now,
	}

	data, err := json.Marshal(toClientJSON(client))
	require.NoError(t, err)

	var j clientJSON
	require.NoError(t, json.Unmarshal(data, &j))
	got := fromClientJSON(&j)

	assert.Equal(t, client.ClientID, got.ClientID)
	assert.Equal(t, client.ClientSecretHash, got.ClientSecretHash)
	assert.Equal(t, client.ClientType, got.ClientType)
	assert.Equal(t, client.RedirectURIs, got.RedirectURIs)
	assert.Equal(t, client.GrantTypes, got.GrantTypes)
	assert.True(t, client.CreatedAt.Equal(got.CreatedAt))
}

func TestAuthorizationCodeRoundTrip(t *testing.T) {
	now := time.Now().Truncate(time.Second)

	t.Run("unconsumed", func(t *testing.T) {
		code := &storage.AuthorizationCode{
			Code:                "code-abc",
			ClientID:            "web-app",
			UserID:              "user-1",
			RedirectURI:         "https://app.example.com/callback",
			CodeChallenge:       "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM",
			CodeChallengeMethod: "S256",
			Scope:               "openid",
			CreatedAt:           now,
			ExpiresAt:           now.Add(10 * time.Minute),
		}

		data, err := json.Marshal(toAuthorizationCodeJSON(code))
		require.NoError(t, err)

		var j authorizationCodeJSON
		require.NoError(t, json.Unmarshal(data, &j))
		got := fromAuthorizationCodeJSON(&j)

		assert.Equal(t, code.Code, got.Code)
		assert.Equal(t, code.CodeChallenge, got.CodeChallenge)
		assert.Equal(t, code.CodeChallengeMethod, got.CodeChallengeMethod)
		assert.True(t, code.ExpiresAt.Equal(got.ExpiresAt))
		assert.Nil(t, got.ConsumedAt)
		assert.False(t, got.Consumed())
	})

	t.Run("consumed", func(t *testing.T) {
		consumed := now.Add(time.Minute)
		code := &storage.AuthorizationCode{
			Code:       "code-xyz",
			ClientID:   "web-app",
			UserID:     "user-1",
			CreatedAt:  now,
			ExpiresAt:  now.Add(10 * time.Minute),
			ConsumedAt: &consumed,
		}

		data, err := json.Marshal(toAuthorizationCodeJSON(code))
		require.NoError(t, err)

		var j authorizationCodeJSON
		require.NoError(t, json.Unmarshal(data, &j))
		got := fromAuthorizationCodeJSON(&j)

		require.NotNil(t, got.ConsumedAt)
		assert.True(t, consumed.Equal(*got.ConsumedAt))
		assert.True(t, got.Consumed())
	})
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	now := time.Now().Truncate(time.Second)

	t.Run("active", func(t *testing.T) {
		token := &storage.RefreshToken{
			Token:     "refresh-token-value",
			ClientID:  "web-app",
			UserID:    "user-1",
			Scope:     "openid profile",
			CreatedAt: now,
			ExpiresAt: now.Add(720 * time.Hour),
		}

		data, err := json.Marshal(toRefreshTokenJSON(token))
		require.NoError(t, err)

		var j refreshTokenJSON
		require.NoError(t, json.Unmarshal(data, &j))
		got := fromRefreshTokenJSON(&j)

		assert.Equal(t, token.Token, got.Token)
		assert.Equal(t, token.Scope, got.Scope)
		assert.False(t, got.Revoked)
		assert.Nil(t, got.RevokedAt)
		assert.True(t, token.ExpiresAt.Equal(got.ExpiresAt))
	})

	t.Run("revoked", func(t *testing.T) {
		revokedAt := now.Add(time.Hour)
		token := &storage.RefreshToken{
			Token:     "revoked-token",
			ClientID:  "web-app",
			UserID:    "user-1",
			Revoked:   true,
			RevokedAt: &revokedAt,
			CreatedAt: now,
			ExpiresAt: now.Add(720 * time.Hour),
		}

		data, err := json.Marshal(toRefreshTokenJSON(token))
		require.NoError(t, err)

		var j refreshTokenJSON
		require.NoError(t, json.Unmarshal(data, &j))
		got := fromRefreshTokenJSON(&j)

		assert.True(t, got.Revoked)
		require.NotNil(t, got.RevokedAt)
		assert.True(t, revokedAt.Equal(*got.RevokedAt))
	})
}

// The Lua scripts compare timestamps with tonumber, so the JSON form must
// store Unix seconds as bare numbers, not RFC 3339 strings.
func TestTimestampsAreUnixSeconds(t *testing.T) {
	now := time.Now()
	code := &storage.AuthorizationCode{
		Code:      "c",
		ClientID:  "cl",
		UserID:    "u",
		CreatedAt: now,
		ExpiresAt: now.Add(time.Minute),
	}

	data, err := json.Marshal(toAuthorizationCodeJSON(code))
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))

	_, ok := raw["expires_at"].(float64)
	assert.True(t, ok, "expires_at must be a JSON number")
	_, ok = raw["created_at"].(float64)
	assert.True(t, ok, "created_at must be a JSON number")
}
