// Package token mints and verifies the issuer's access tokens. Access
// tokens are ES256-signed JWTs so resource servers can validate them
// without a round trip to the issuer; refresh tokens stay opaque and live
// in storage.
package token

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Signer mints and verifies access tokens with a single ES256 key pair.
type Signer struct {
	key    *ecdsa.PrivateKey
	issuer string
}

// Claims is the access token payload. Subject carries the user ID.
type Claims struct {
	jwt.RegisteredClaims
	ClientID string `json:"client_id"`
	Scope    string `json:"scope,omitempty"`
}

// ErrInvalidToken is returned by Verify for any token that fails
// signature, expiry, or issuer checks.
var ErrInvalidToken = errors.New("token: invalid access token")

// NewSigner creates a signer for the given issuer URL. A nil key generates
// a fresh P-256 key pair, which is fine for single-instance deployments;
// multi-instance deployments must share a key.
func NewSigner(key *ecdsa.PrivateKey, issuer string) (*Signer, error) {
	if issuer == "" {
		return nil, errors.New("token: issuer is required")
	}
	if key == nil {
		var err error
		key, err = ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("token: generating signing key: %w", err)
		}
	}
	return &Signer{key: key, issuer: issuer}, nil
}

// PublicKey returns the verification key, for publishing as a JWKS or
// handing to resource servers out of band.
func (s *Signer) PublicKey() *ecdsa.PublicKey {
	return &s.key.PublicKey
}

// Mint signs an access token for the given user and client. It returns the
// compact JWT and its jti for audit correlation.
func (s *Signer) Mint(userID, clientID, scope string, ttl time.Duration) (tokenString, jti string, err error) {
	now := time.Now()
	jti = uuid.NewString()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   userID,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		ClientID: clientID,
		Scope:    scope,
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	tokenString, err = tok.SignedString(s.key)
	if err != nil {
		return "", "", fmt.Errorf("token: signing access token: %w", err)
	}
	return tokenString, jti, nil
}

// Verify parses and validates an access token minted by this signer.
func (s *Signer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return &s.key.PublicKey, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !tok.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
