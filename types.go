package oauth

// AuthorizeRequest is the JSON body of the authorization endpoint. The
// authenticated user comes from the session resolver, never from the
// body.
type AuthorizeRequest struct {
	ClientID            string `json:"client_id"`
	ResponseType        string `json:"response_type"`
	RedirectURI         string `json:"redirect_uri"`
	CodeChallenge       string `json:"code_challenge"`
	CodeChallengeMethod string `json:"code_challenge_method"`
	Scope               string `json:"scope,omitempty"`
	State               string `json:"state,omitempty"`
}

// AuthorizeResponse is the success body of the authorization endpoint.
type AuthorizeResponse struct {
	// AuthorizationCode is the single-use code to present at the token
	// endpoint.
	AuthorizationCode string `json:"authorization_code"`

	// State echoes the request's state value byte for byte.
	State string `json:"state,omitempty"`

	// ExpiresIn is the code's remaining lifetime in seconds.
	ExpiresIn int64 `json:"expires_in"`
}

// TokenRequest is the JSON body of the token endpoint, covering both
// grant types. Client credentials may instead arrive via HTTP Basic
// auth.
type TokenRequest struct {
	GrantType    string `json:"grant_type"`
	Code         string `json:"code,omitempty"`
	RedirectURI  string `json:"redirect_uri,omitempty"`
	CodeVerifier string `json:"code_verifier,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ClientID     string `json:"client_id,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`
}

// TokenResponse is an OAuth 2.0 token response (RFC 6749 section 5.1).
type TokenResponse struct {
	AccessToken string `json:"access_token"`

	// TokenType is always "Bearer".
	TokenType string `json:"token_type"`

	// ExpiresIn is the lifetime in seconds of the access token.
	ExpiresIn int64 `json:"expires_in,omitempty"`

	RefreshToken string `json:"refresh_token,omitempty"`

	// Scope is the scope the token was actually granted.
	Scope string `json:"scope,omitempty"`
}

// RevokeRequest is the JSON body of the revocation endpoint (RFC 7009).
type RevokeRequest struct {
	Token        string `json:"token"`
	ClientID     string `json:"client_id,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`
}

// RevokeResponse is the success body of the revocation endpoint. The
// body is the same whether or not the token existed.
type RevokeResponse struct {
	Success bool `json:"success"`
}

// ErrorResponse is an OAuth 2.0 error response body.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// AuthorizationServerMetadata is the OAuth 2.0 Authorization Server
// Metadata document (RFC 8414).
type AuthorizationServerMetadata struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	RevocationEndpoint                string   `json:"revocation_endpoint,omitempty"`
	ScopesSupported                   []string `json:"scopes_supported,omitempty"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported,omitempty"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported,omitempty"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported,omitempty"`
}
