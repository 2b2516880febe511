package token

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNewSigner(t *testing.T) {
	t.Run("generates key when nil", func(t *testing.T) {
		s, err := NewSigner(nil, "https://auth.example.com")
		if err != nil {
			t.Fatalf("NewSigner() error = %v", err)
		}
		if s.PublicKey() == nil {
			t.Error("PublicKey() should not be nil")
		}
	})

	t.Run("requires issuer", func(t *testing.T) {
		if _, err := NewSigner(nil, ""); err == nil {
			t.Error("NewSigner() should reject empty issuer")
		}
	})

	t.Run("uses provided key", func(t *testing.T) {
		key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			t.Fatal(err)
		}
		s, err := NewSigner(key, "https://auth.example.com")
		if err != nil {
			t.Fatalf("NewSigner() error = %v", err)
		}
		if !s.PublicKey().Equal(&key.PublicKey) {
			t.Error("PublicKey() should match the provided key")
		}
	})
}

func TestSigner_MintAndVerify(t *testing.T) {
	s, err := NewSigner(nil, "https://auth.example.com")
	if err != nil {
		t.Fatal(err)
	}

	tokenString, jti, err := s.Mint("user-1", "client-1", "openid email", time.Hour)
	if err != nil {
		t.Fatalf("Mint() error = %v", err)
	}
	if jti == "" {
		t.Error("Mint() returned empty jti")
	}
	if strings.Count(tokenString, ".") != 2 {
		t.Errorf("Mint() did not return a compact JWT: %q", tokenString)
	}

	claims, err := s.Verify(tokenString)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if claims.Subject != "user-1" {
		t.Errorf("Subject = %q, want user-1", claims.Subject)
	}
	if claims.ClientID != "client-1" {
		t.Errorf("ClientID = %q, want client-1", claims.ClientID)
	}
	if claims.Scope != "openid email" {
		t.Errorf("Scope = %q, want %q", claims.Scope, "openid email")
	}
	if claims.ID != jti {
		t.Errorf("ID = %q, want jti %q", claims.ID, jti)
	}
	if claims.Issuer != "https://auth.example.com" {
		t.Errorf("Issuer = %q", claims.Issuer)
	}
}

func TestSigner_Verify_Expired(t *testing.T) {
	s, err := NewSigner(nil, "https://auth.example.com")
	if err != nil {
		t.Fatal(err)
	}

	tokenString, _, err := s.Mint("user-1", "client-1", "", -time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := s.Verify(tokenString); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify() expired token error = %v, want ErrInvalidToken", err)
	}
}

func TestSigner_Verify_WrongKey(t *testing.T) {
	s1, err := NewSigner(nil, "https://auth.example.com")
	if err != nil {
		t.Fatal(err)
	}
	s2, err := NewSigner(nil, "https://auth.example.com")
	if err != nil {
		t.Fatal(err)
	}

	tokenString, _, err := s1.Mint("user-1", "client-1", "", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := s2.Verify(tokenString); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify() with wrong key error = %v, want ErrInvalidToken", err)
	}
}

func TestSigner_Verify_WrongIssuer(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}

	s1, err := NewSigner(key, "https://auth.example.com")
	if err != nil {
		t.Fatal(err)
	}
	s2, err := NewSigner(key, "https://other.example.com")
	if err != nil {
		t.Fatal(err)
	}

	tokenString, _, err := s1.Mint("user-1", "client-1", "", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := s2.Verify(tokenString); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify() with wrong issuer error = %v, want ErrInvalidToken", err)
	}
}

func TestSigner_Verify_Garbage(t *testing.T) {
	s, err := NewSigner(nil, "https://auth.example.com")
	if err != nil {
		t.Fatal(err)
	}

	for _, bad := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := s.Verify(bad); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Verify(%q) error = %v, want ErrInvalidToken", bad, err)
		}
	}
}
