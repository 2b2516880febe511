package valkey

import (
	"time"

	"github.com/driftmap/oauth/storage"
)

// JSON wire forms for stored records. Timestamps are Unix seconds so the
// Lua scripts can compare them with tonumber.

type clientJSON struct {
	ClientID         string   `json:"client_id"`
	ClientSecretHash string   `json:"client_secret_hash,omitempty"`
	ClientType       string   `json:"client_type"`
	ClientName       string   `json:"client_name,omitempty"`
	RedirectURIs     []string `json:"redirect_uris"`
	Scopes           []string `json:"scopes,omitempty"`
	GrantTypes       []string `json:"grant_types,omitempty"`
	CreatedAt        int64    `json:"created_at"`
}

func toClientJSON(client *storage.Client) *clientJSON {
	return &clientJSON{
		ClientID:         client.ClientID,
		ClientSecretHash: client.ClientSecretHash,
		ClientType:       client.ClientType,
		ClientName:       client.ClientName,
		RedirectURIs:     client.RedirectURIs,
		Scopes:           client.Scopes,
		GrantTypes:       client.GrantTypes,
		CreatedAt:        client.CreatedAt.Unix(),
	}
}

func fromClientJSON(j *clientJSON) *storage.Client {
	if j == nil {
		return nil
	}
	return &storage.Client{
		ClientID:         j.ClientID,
		ClientSecretHash: j.ClientSecretHash,
		ClientType:       j.ClientType,
		ClientName:       j.ClientName,
		RedirectURIs:     j.RedirectURIs,
		Scopes:           j.Scopes,
		GrantTypes:       j.GrantTypes,
		CreatedAt:        time.Unix(j.CreatedAt, 0),
	}
}

type authorizationCodeJSON struct {
	Code                string `json:"code"`
	ClientID            string `json:"client_id"`
	UserID              string `json:"user_id"`
	RedirectURI         string `json:"redirect_uri"`
	CodeChallenge       string `json:"code_challenge,omitempty"`
	CodeChallengeMethod string `json:"code_challenge_method,omitempty"`
	Scope               string `json:"scope,omitempty"`
	CreatedAt           int64  `json:"created_at"`
	ExpiresAt           int64  `json:"expires_at"`
	ConsumedAt          *int64 `json:"consumed_at,omitempty"`
}

func toAuthorizationCodeJSON(code *storage.AuthorizationCode) *authorizationCodeJSON {
	j := &authorizationCodeJSON{
		Code:                code.Code,
		ClientID:            code.ClientID,
		UserID:              code.UserID,
		RedirectURI:         code.RedirectURI,
		CodeChallenge:       code.CodeChallenge,
		CodeChallengeMethod: code.CodeChallengeMethod,
		Scope:               code.Scope,
		CreatedAt:           code.CreatedAt.Unix(),
		ExpiresAt:           code.ExpiresAt.Unix(),
	}
	if code.ConsumedAt != nil {
		consumed := code.ConsumedAt.Unix()
		j.ConsumedAt = &consumed
	}
	return j
}

func fromAuthorizationCodeJSON(j *authorizationCodeJSON) *storage.AuthorizationCode {
	if j == nil {
		return nil
	}
	code := &storage.AuthorizationCode{
		Code:                j.Code,
		ClientID:            j.ClientID,
		UserID:              j.UserID,
		RedirectURI:         j.RedirectURI,
		CodeChallenge:       j.CodeChallenge,
		CodeChallengeMethod: j.CodeChallengeMethod,
		Scope:               j.Scope,
		CreatedAt:           time.Unix(j.CreatedAt, 0),
		ExpiresAt:           time.Unix(j.ExpiresAt, 0),
	}
	if j.ConsumedAt != nil {
		consumed := time.Unix(*j.ConsumedAt, 0)
		code.ConsumedAt = &consumed
	}
	return code
}

type refreshTokenJSON struct {
	Token     string `json:"token"`
	ClientID  string `json:"client_id"`
	UserID    string `json:"user_id"`
	Scope     string `json:"scope,omitempty"`
	Revoked   bool   `json:"revoked,omitempty"`
	RevokedAt *int64 `json:"revoked_at,omitempty"`
	CreatedAt int64  `json:"created_at"`
	ExpiresAt int64  `json:"expires_at"`
}

func toRefreshTokenJSON(token *storage.RefreshToken) *refreshTokenJSON {
	j := &refreshTokenJSON{
		Token:     token.Token,
		ClientID:  token.ClientID,
		UserID:    token.UserID,
		Scope:     token.Scope,
		Revoked:   token.Revoked,
		CreatedAt: token.CreatedAt.Unix(),
		ExpiresAt: token.ExpiresAt.Unix(),
	}
	if token.RevokedAt != nil {
		revoked := token.RevokedAt.Unix()
		j.RevokedAt = &revoked
	}
	return j
}

func fromRefreshTokenJSON(j *refreshTokenJSON) *storage.RefreshToken {
	if j == nil {
		return nil
	}
	token := &storage.RefreshToken{
		Token:     j.Token,
		ClientID:  j.ClientID,
		UserID:    j.UserID,
		Scope:     j.Scope,
		Revoked:   j.Revoked,
		CreatedAt: time.Unix(j.CreatedAt, 0),
		ExpiresAt: time.Unix(j.ExpiresAt, 0),
	}
	if j.RevokedAt != nil {
		revoked := time.Unix(*j.RevokedAt, 0)
		token.RevokedAt = &revoked
	}
	return token
}
