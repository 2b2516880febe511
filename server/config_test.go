package server

import (
	"log/slog"
	"testing"

	"github.com/driftmap/oauth/storage/memory"
	"github.com/driftmap/oauth/token"
)

func TestApplySecureDefaults_Times(t *testing.T) {
	config := applySecureDefaults(&Config{}, slog.Default())

	if config.AuthorizationCodeTTL != 600 {
		t.Errorf("AuthorizationCodeTTL = %d, want 600", config.AuthorizationCodeTTL)
	}
	if config.AccessTokenTTL != 3600 {
		t.Errorf("AccessTokenTTL = %d, want 3600", config.AccessTokenTTL)
	}
	if config.RefreshTokenTTL != 7776000 {
		t.Errorf("RefreshTokenTTL = %d, want 7776000", config.RefreshTokenTTL)
	}
	if config.ClockSkewGracePeriod != 5 {
		t.Errorf("ClockSkewGracePeriod = %d, want 5", config.ClockSkewGracePeriod)
	}
	if config.TrustedProxyCount != 1 {
		t.Errorf("TrustedProxyCount = %d, want 1", config.TrustedProxyCount)
	}
}

func TestApplySecureDefaults_ExplicitValuesKept(t *testing.T) {
	config := applySecureDefaults(&Config{
		AuthorizationCodeTTL: 120,
		AccessTokenTTL:       900,
		RefreshTokenTTL:      86400,
	}, slog.Default())

	if config.AuthorizationCodeTTL != 120 {
		t.Errorf("AuthorizationCodeTTL = %d, want 120", config.AuthorizationCodeTTL)
	}
	if config.AccessTokenTTL != 900 {
		t.Errorf("AccessTokenTTL = %d, want 900", config.AccessTokenTTL)
	}
	if config.RefreshTokenTTL != 86400 {
		t.Errorf("RefreshTokenTTL = %d, want 86400", config.RefreshTokenTTL)
	}
}

func TestApplySecureDefaults_RotationOnByDefault(t *testing.T) {
	config := applySecureDefaults(&Config{}, slog.Default())
	if !config.RotateRefreshTokens {
		t.Error("RotateRefreshTokens defaulted to false")
	}
}

func TestApplySecureDefaults_ExplicitRotationOffRespected(t *testing.T) {
	// TrustProxy marks the config as deliberately customized, so the
	// rotation choice stands.
	config := applySecureDefaults(&Config{TrustProxy: true}, slog.Default())
	if config.RotateRefreshTokens {
		t.Error("explicitly disabled rotation was overridden")
	}
}

func TestHTTPSEnforcement(t *testing.T) {
	store := memory.New()
	t.Cleanup(func() { store.Stop() })

	signer, err := token.NewSigner(nil, "https://auth.example.com")
	if err != nil {
		t.Fatalf("NewSigner() error = %v", err)
	}

	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{
			name:   "https issuer",
			config: &Config{Issuer: "https://auth.example.com"},
		},
		{
			name:   "http on localhost",
			config: &Config{Issuer: "http://localhost:8080"},
		},
		{
			name:   "http on loopback IP",
			config: &Config{Issuer: "http://127.0.0.1:8080"},
		},
		{
			name:   "http on IPv6 loopback",
			config: &Config{Issuer: "http://[::1]:8080"},
		},
		{
			name:    "http on public host",
			config:  &Config{Issuer: "http://auth.example.com"},
			wantErr: true,
		},
		{
			name:   "http on public host with explicit override",
			config: &Config{Issuer: "http://auth.example.com", AllowInsecureHTTP: true},
		},
		{
			name:    "missing issuer",
			config:  &Config{},
			wantErr: true,
		},
		{
			name:    "ftp scheme",
			config:  &Config{Issuer: "ftp://auth.example.com"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(store, store, store, signer, tt.config, nil)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
