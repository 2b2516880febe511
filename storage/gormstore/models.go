package gormstore

import (
	"time"

	"github.com/driftmap/oauth/storage"
)

// clientRecord is the database row for a registered client.
type clientRecord struct {
	ClientID         string    `gorm:"column:client_id;type:text;primaryKey"`
	ClientSecretHash string    `gorm:"column:client_secret_hash;type:text"`
	ClientType       string    `gorm:"column:client_type;type:text;not null"`
	ClientName       string    `gorm:"column:client_name;type:text"`
	RedirectURIs     []string  `gorm:"column:redirect_uris;serializer:json"`
	Scopes           []string  `gorm:"column:scopes;serializer:json"`
	GrantTypes       []string  `gorm:"column:grant_types;serializer:json"`
	CreatedAt        time.Time `gorm:"column:created_at;not null"`
}

func (clientRecord) TableName() string { return "oauth_clients" }

func toClientRecord(client *storage.Client) *clientRecord {
	return &clientRecord{
		ClientID:         client.ClientID,
		ClientSecretHash: client.ClientSecretHash,
		ClientType:       client.ClientType,
		ClientName:       client.ClientName,
		RedirectURIs:     client.RedirectURIs,
		Scopes:           client.Scopes,
		GrantTypes:       client.GrantTypes,
		CreatedAt:        client.CreatedAt,
	}
}

func (r *clientRecord) toClient() *storage.Client {
	return &storage.Client{
		ClientID:         r.ClientID,
		ClientSecretHash: r.ClientSecretHash,
		ClientType:       r.ClientType,
		ClientName:       r.ClientName,
		RedirectURIs:     r.RedirectURIs,
		Scopes:           r.Scopes,
		GrantTypes:       r.GrantTypes,
		CreatedAt:        r.CreatedAt,
	}
}

// authorizationCodeRecord is the database row for an issued code.
type authorizationCodeRecord struct {
	Code                string     `gorm:"column:code;type:text;primaryKey"`
	ClientID            string     `gorm:"column:client_id;type:text;not null;index"`
	UserID              string     `gorm:"column:user_id;type:text;not null;index"`
	RedirectURI         string     `gorm:"column:redirect_uri;type:text;not null"`
	CodeChallenge       string     `gorm:"column:code_challenge;type:text"`
	CodeChallengeMethod string     `gorm:"column:code_challenge_method;type:text"`
	Scope               string     `gorm:"column:scope;type:text"`
	CreatedAt           time.Time  `gorm:"column:created_at;not null"`
	ExpiresAt           time.Time  `gorm:"column:expires_at;not null;index"`
	ConsumedAt          *time.Time `gorm:"column:consumed_at"`
}

func (authorizationCodeRecord) TableName() string { return "oauth_authorization_codes" }

func toAuthorizationCodeRecord(code *storage.AuthorizationCode) *authorizationCodeRecord {
	return &authorizationCodeRecord{
		Code:                code.Code,
		ClientID:            code.ClientID,
		UserID:              code.UserID,
		RedirectURI:         code.RedirectURI,
		CodeChallenge:       code.CodeChallenge,
		CodeChallengeMethod: code.CodeChallengeMethod,
		Scope:               code.Scope,
		CreatedAt:           code.CreatedAt,
		ExpiresAt:           code.ExpiresAt,
		ConsumedAt:          code.ConsumedAt,
	}
}

func (r *authorizationCodeRecord) toAuthorizationCode() *storage.AuthorizationCode {
	return &storage.AuthorizationCode{
		Code:                r.Code,
		ClientID:            r.ClientID,
		UserID:              r.UserID,
		RedirectURI:         r.RedirectURI,
		CodeChallenge:       r.CodeChallenge,
		CodeChallengeMethod: r.CodeChallengeMethod,
		Scope:               r.Scope,
		CreatedAt:           r.CreatedAt,
		ExpiresAt:           r.ExpiresAt,
		ConsumedAt:          r.ConsumedAt,
	}
}

// refreshTokenRecord is the database row for a refresh token.
type refreshTokenRecord struct {
	Token     string     `gorm:"column:token;type:text;primaryKey"`
	ClientID  string     `gorm:"column:client_id;type:text;not null;index:idx_refresh_user_client"`
	UserID    string     `gorm:"column:user_id;type:text;not null;index:idx_refresh_user_client"`
	Scope     string     `gorm:"column:scope;type:text"`
	Revoked   bool       `gorm:"column:revoked;not null;default:false"`
	RevokedAt *time.Time `gorm:"column:revoked_at"`
	CreatedAt time.Time  `gorm:"column:created_at;not null"`
	ExpiresAt time.Time  `gorm:"column:expires_at;not null;index"`
}

func (refreshTokenRecord) TableName() string { return "oauth_refresh_tokens" }

func toRefreshTokenRecord(token *storage.RefreshToken) *refreshTokenRecord {
	return &refreshTokenRecord{
		Token:     token.Token,
		ClientID:  token.ClientID,
		UserID:    token.UserID,
		Scope:     token.Scope,
		Revoked:   token.Revoked,
		RevokedAt: token.RevokedAt,
		CreatedAt: token.CreatedAt,
		ExpiresAt: token.ExpiresAt,
	}
}

func (r *refreshTokenRecord) toRefreshToken() *storage.RefreshToken {
	return &storage.RefreshToken{
		Token:     r.Token,
		ClientID:  r.ClientID,
		UserID:    r.UserID,
		Scope:     r.Scope,
		Revoked:   r.Revoked,
		RevokedAt: r.RevokedAt,
		CreatedAt: r.CreatedAt,
		ExpiresAt: r.ExpiresAt,
	}
}
