package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/driftmap/oauth/internal/testutil"
	"github.com/driftmap/oauth/security"
	"github.com/driftmap/oauth/server"
	"github.com/driftmap/oauth/sessions"
	"github.com/driftmap/oauth/storage/memory"
	"github.com/driftmap/oauth/token"
)

const testSessionToken = "session-abc123"

func setupHandlerTest(t *testing.T, config *Config) (*Handler, *memory.Store) {
	t.Helper()

	store := memory.New()
	t.Cleanup(func() { store.Stop() })

	signer, err := token.NewSigner(nil, "https://auth.example.com")
	if err != nil {
		t.Fatalf("NewSigner() error = %v", err)
	}

	resolver := sessions.NewStaticResolver()
	resolver.AddSession(testSessionToken, &sessions.User{
		ID:    "test-user-123",
		Email: "user@example.com",
	})

	if config == nil {
		config = &Config{
			Server: server.Config{
				Issuer:          "https://auth.example.com",
				SupportedScopes: []string{"openid", "email", "profile"},
			},
		}
	}

	srv, err := NewServer(store, store, store, signer, resolver, config, nil)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	t.Cleanup(srv.Close)

	ctx := context.Background()
	if err := store.SaveClient(ctx, testutil.NewConfidentialClient()); err != nil {
		t.Fatalf("SaveClient() error = %v", err)
	}
	if err := store.SaveClient(ctx, testutil.NewPublicClient()); err != nil {
		t.Fatalf("SaveClient() error = %v", err)
	}

	return NewHandler(srv, nil), store
}

func postJSON(t *testing.T, handler http.HandlerFunc, path string, body any, mutate func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()

	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	if mutate != nil {
		mutate(req)
	}

	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func withSession(r *http.Request) {
	r.Header.Set("Authorization", "Bearer "+testSessionToken)
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response body %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestFullAuthorizationCodeFlow(t *testing.T) {
	h, _ := setupHandlerTest(t, nil)
	challenge, verifier := testutil.GeneratePKCEPair()

	// Authorization request with an authenticated session.
	rec := postJSON(t, h.ServeAuthorize, "/oauth/authorize", AuthorizeRequest{
		ClientID:            "test-client-id",
		ResponseType:        "code",
		RedirectURI:         "https://example.com/callback",
		CodeChallenge:       challenge,
		CodeChallengeMethod: "S256",
		Scope:               "openid email",
		State:               "xyz-state",
	}, withSession)

	if rec.Code != http.StatusOK {
		t.Fatalf("authorize status = %d, body = %s", rec.Code, rec.Body.String())
	}
	authResp := decodeBody[AuthorizeResponse](t, rec)
	if authResp.AuthorizationCode == "" {
		t.Fatal("empty authorization code")
	}
	if authResp.State != "xyz-state" {
		t.Errorf("state = %q, want untouched echo", authResp.State)
	}
	if authResp.ExpiresIn <= 0 || authResp.ExpiresIn > 600 {
		t.Errorf("expires_in = %d, want within code TTL", authResp.ExpiresIn)
	}

	// Code exchange.
	rec = postJSON(t, h.ServeToken, "/oauth/token", TokenRequest{
		GrantType:    GrantTypeAuthorizationCode,
		Code:         authResp.AuthorizationCode,
		ClientID:     "test-client-id",
		ClientSecret: testutil.TestClientSecret,
		RedirectURI:  "https://example.com/callback",
		CodeVerifier: verifier,
	}, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("token status = %d, body = %s", rec.Code, rec.Body.String())
	}
	tokenResp := decodeBody[TokenResponse](t, rec)
	if tokenResp.AccessToken == "" || tokenResp.RefreshToken == "" {
		t.Fatal("missing tokens in response")
	}
	if tokenResp.TokenType != "Bearer" {
		t.Errorf("token_type = %q, want Bearer", tokenResp.TokenType)
	}
	if tokenResp.Scope != "openid email" {
		t.Errorf("scope = %q, want granted scope", tokenResp.Scope)
	}

	// Refresh with rotation.
	rec = postJSON(t, h.ServeToken, "/oauth/token", TokenRequest{
		GrantType:    GrantTypeRefreshToken,
		RefreshToken: tokenResp.RefreshToken,
		ClientID:     "test-client-id",
		ClientSecret: testutil.TestClientSecret,
	}, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("refresh status = %d, body = %s", rec.Code, rec.Body.String())
	}
	refreshResp := decodeBody[TokenResponse](t, rec)
	if refreshResp.RefreshToken == "" || refreshResp.RefreshToken == tokenResp.RefreshToken {
		t.Error("refresh token was not rotated")
	}
	if refreshResp.Scope != tokenResp.Scope {
		t.Errorf("refreshed scope = %q, want %q", refreshResp.Scope, tokenResp.Scope)
	}

	// Revocation.
	rec = postJSON(t, h.ServeRevocation, "/oauth/revoke", RevokeRequest{
		Token:        refreshResp.RefreshToken,
		ClientID:     "test-client-id",
		ClientSecret: testutil.TestClientSecret,
	}, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("revoke status = %d, body = %s", rec.Code, rec.Body.String())
	}
	revokeResp := decodeBody[RevokeResponse](t, rec)
	if !revokeResp.Success {
		t.Error("revoke response success = false")
	}

	// The revoked token is dead.
	rec = postJSON(t, h.ServeToken, "/oauth/token", TokenRequest{
		GrantType:    GrantTypeRefreshToken,
		RefreshToken: refreshResp.RefreshToken,
		ClientID:     "test-client-id",
		ClientSecret: testutil.TestClientSecret,
	}, nil)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("refresh after revoke status = %d, want 400", rec.Code)
	}
	errResp := decodeBody[ErrorResponse](t, rec)
	if errResp.Error != ErrorCodeInvalidGrant {
		t.Errorf("error = %q, want %q", errResp.Error, ErrorCodeInvalidGrant)
	}
}

func TestServeAuthorize_RequiresSession(t *testing.T) {
	h, _ := setupHandlerTest(t, nil)
	challenge, _ := testutil.GeneratePKCEPair()

	rec := postJSON(t, h.ServeAuthorize, "/oauth/authorize", AuthorizeRequest{
		ClientID:            "test-client-id",
		ResponseType:        "code",
		RedirectURI:         "https://example.com/callback",
		CodeChallenge:       challenge,
		CodeChallengeMethod: "S256",
	}, nil)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	errResp := decodeBody[ErrorResponse](t, rec)
	if errResp.Error != ErrorCodeAccessDenied {
		t.Errorf("error = %q, want %q", errResp.Error, ErrorCodeAccessDenied)
	}
}

func TestServeAuthorize_MethodNotAllowed(t *testing.T) {
	h, _ := setupHandlerTest(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/oauth/authorize", nil)
	rec := httptest.NewRecorder()
	h.ServeAuthorize(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestServeToken_GrantTypeDispatch(t *testing.T) {
	h, _ := setupHandlerTest(t, nil)

	tests := []struct {
		name      string
		grantType string
		wantError string
	}{
		{"missing grant_type", "", ErrorCodeInvalidRequest},
		{"client_credentials unsupported", "client_credentials", ErrorCodeUnsupportedGrantType},
		{"implicit unsupported", "implicit", ErrorCodeUnsupportedGrantType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, h.ServeToken, "/oauth/token", TokenRequest{
				GrantType: tt.grantType,
				ClientID:  "test-client-id",
			}, nil)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			errResp := decodeBody[ErrorResponse](t, rec)
			if errResp.Error != tt.wantError {
				t.Errorf("error = %q, want %q", errResp.Error, tt.wantError)
			}
		})
	}
}

func TestServeToken_BasicAuthCredentials(t *testing.T) {
	h, _ := setupHandlerTest(t, nil)
	challenge, verifier := testutil.GeneratePKCEPair()

	rec := postJSON(t, h.ServeAuthorize, "/oauth/authorize", AuthorizeRequest{
		ClientID:            "test-client-id",
		ResponseType:        "code",
		RedirectURI:         "https://example.com/callback",
		CodeChallenge:       challenge,
		CodeChallengeMethod: "S256",
		Scope:               "openid",
	}, withSession)
	if rec.Code != http.StatusOK {
		t.Fatalf("authorize status = %d", rec.Code)
	}
	authResp := decodeBody[AuthorizeResponse](t, rec)

	rec = postJSON(t, h.ServeToken, "/oauth/token", TokenRequest{
		GrantType:    GrantTypeAuthorizationCode,
		Code:         authResp.AuthorizationCode,
		RedirectURI:  "https://example.com/callback",
		CodeVerifier: verifier,
	}, func(r *http.Request) {
		r.SetBasicAuth("test-client-id", testutil.TestClientSecret)
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("token status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestServeToken_MalformedJSON(t *testing.T) {
	h, _ := setupHandlerTest(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/oauth/token", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	h.ServeToken(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	errResp := decodeBody[ErrorResponse](t, rec)
	if errResp.Error != ErrorCodeInvalidRequest {
		t.Errorf("error = %q, want %q", errResp.Error, ErrorCodeInvalidRequest)
	}
}

func TestServeRevocation_UnknownTokenSucceeds(t *testing.T) {
	h, _ := setupHandlerTest(t, nil)

	rec := postJSON(t, h.ServeRevocation, "/oauth/revoke", RevokeRequest{
		Token:        "never-issued",
		ClientID:     "test-client-id",
		ClientSecret: testutil.TestClientSecret,
	}, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if resp := decodeBody[RevokeResponse](t, rec); !resp.Success {
		t.Error("success = false for unknown token")
	}
}

func TestServeAuthorizationServerMetadata(t *testing.T) {
	h, _ := setupHandlerTest(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/.well-known/oauth-authorization-server", nil)
	rec := httptest.NewRecorder()
	h.ServeAuthorizationServerMetadata(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	meta := decodeBody[AuthorizationServerMetadata](t, rec)
	if meta.Issuer != "https://auth.example.com" {
		t.Errorf("issuer = %q", meta.Issuer)
	}
	if meta.AuthorizationEndpoint != "https://auth.example.com/oauth/authorize" {
		t.Errorf("authorization_endpoint = %q", meta.AuthorizationEndpoint)
	}
	if meta.TokenEndpoint != "https://auth.example.com/oauth/token" {
		t.Errorf("token_endpoint = %q", meta.TokenEndpoint)
	}
	if meta.RevocationEndpoint != "https://auth.example.com/oauth/revoke" {
		t.Errorf("revocation_endpoint = %q", meta.RevocationEndpoint)
	}
	if len(meta.ResponseTypesSupported) != 1 || meta.ResponseTypesSupported[0] != "code" {
		t.Errorf("response_types_supported = %v, want [code]", meta.ResponseTypesSupported)
	}
	if len(meta.CodeChallengeMethodsSupported) != 1 || meta.CodeChallengeMethodsSupported[0] != "S256" {
		t.Errorf("code_challenge_methods_supported = %v, want [S256]", meta.CodeChallengeMethodsSupported)
	}

	// POST is rejected.
	req = httptest.NewRequest(http.MethodPost, "/.well-known/oauth-authorization-server", nil)
	rec = httptest.NewRecorder()
	h.ServeAuthorizationServerMetadata(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST status = %d, want 405", rec.Code)
	}
}

func TestIPRateLimiting(t *testing.T) {
	config := &Config{
		Server: server.Config{
			Issuer:          "https://auth.example.com",
			SupportedScopes: []string{"openid", "email", "profile"},
		},
		RateLimit: RateLimitConfig{Rate: 1, Burst: 1},
	}
	h, _ := setupHandlerTest(t, config)

	makeRequest := func() int {
		rec := postJSON(t, h.ServeToken, "/oauth/token", TokenRequest{
			GrantType: GrantTypeRefreshToken,
			ClientID:  "test-client-id",
		}, nil)
		return rec.Code
	}

	// Burst of 1: the first request passes the limiter, the second is
	// rejected before any grant processing.
	makeRequest()
	if status := makeRequest(); status != http.StatusTooManyRequests {
		t.Errorf("second request status = %d, want 429", status)
	}
}

func TestRegisterRoutes(t *testing.T) {
	h, _ := setupHandlerTest(t, nil)

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/.well-known/oauth-authorization-server")
	if err != nil {
		t.Fatalf("GET metadata: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("metadata status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get(security.RequestIDHeader); got == "" {
		t.Error("missing request ID header")
	}
}
