package server

import (
	"context"
	"testing"

	"github.com/driftmap/oauth/internal/testutil"
	"github.com/driftmap/oauth/storage/memory"
	"github.com/driftmap/oauth/token"
)

const testUserID = "test-user-123"

// setupTestServer builds a server against the in-memory store with a
// confidential and a public client registered.
func setupTestServer(t *testing.T) (*Server, *memory.Store) {
	t.Helper()

	store := memory.New()
	t.Cleanup(func() { store.Stop() })

	signer, err := token.NewSigner(nil, "https://auth.example.com")
	if err != nil {
		t.Fatalf("NewSigner() error = %v", err)
	}

	config := &Config{
		Issuer:               "https://auth.example.com",
		SupportedScopes:      []string{"openid", "email", "profile"},
		AuthorizationCodeTTL: 600,
		AccessTokenTTL:       3600,
		ClockSkewGracePeriod: 5,
	}

	srv, err := New(store, store, store, signer, config, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := context.Background()
	if err := store.SaveClient(ctx, testutil.NewConfidentialClient()); err != nil {
		t.Fatalf("SaveClient() error = %v", err)
	}
	if err := store.SaveClient(ctx, testutil.NewPublicClient()); err != nil {
		t.Fatalf("SaveClient() error = %v", err)
	}

	return srv, store
}

func TestNew_RequiredDependencies(t *testing.T) {
	store := memory.New()
	t.Cleanup(func() { store.Stop() })

	signer, err := token.NewSigner(nil, "https://auth.example.com")
	if err != nil {
		t.Fatalf("NewSigner() error = %v", err)
	}

	config := &Config{Issuer: "https://auth.example.com"}

	tests := []struct {
		name    string
		build   func() (*Server, error)
		wantErr bool
	}{
		{
			name:  "all dependencies present",
			build: func() (*Server, error) { return New(store, store, store, signer, config, nil) },
		},
		{
			name:    "nil client store",
			build:   func() (*Server, error) { return New(nil, store, store, signer, config, nil) },
			wantErr: true,
		},
		{
			name:    "nil code store",
			build:   func() (*Server, error) { return New(store, nil, store, signer, config, nil) },
			wantErr: true,
		},
		{
			name:    "nil token store",
			build:   func() (*Server, error) { return New(store, store, nil, signer, config, nil) },
			wantErr: true,
		},
		{
			name:    "nil signer",
			build:   func() (*Server, error) { return New(store, store, store, nil, config, nil) },
			wantErr: true,
		},
		{
			name:    "missing issuer",
			build:   func() (*Server, error) { return New(store, store, store, signer, &Config{}, nil) },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.build()
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSafeTruncate(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{"longer than max", "abcdefghijklmnop", 8, "abcdefgh"},
		{"exactly max", "abcdefgh", 8, "abcdefgh"},
		{"shorter than max", "abc", 8, "abc"},
		{"empty", "", 8, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := safeTruncate(tt.input, tt.maxLen); got != tt.want {
				t.Errorf("safeTruncate(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
			}
		})
	}
}

func TestGenerateRandomToken(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		tok := generateRandomToken()
		if len(tok) != 43 {
			t.Fatalf("generateRandomToken() length = %d, want 43", len(tok))
		}
		if seen[tok] {
			t.Fatal("generateRandomToken() produced a duplicate")
		}
		seen[tok] = true
	}
}
