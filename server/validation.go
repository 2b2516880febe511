package server

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/driftmap/oauth/storage"
)

// PKCE validation constants (RFC 7636).
const (
	MinCodeVerifierLength = 43
	MaxCodeVerifierLength = 128
	PKCEMethodS256        = "S256"
)

// validateHTTPSEnforcement ensures the issuer runs over HTTPS outside of
// localhost development. OAuth over plain HTTP exposes codes, tokens,
// and client credentials to interception.
func (s *Server) validateHTTPSEnforcement() error {
	if s.Config.Issuer == "" {
		return fmt.Errorf("issuer is required")
	}

	issuerURL, err := url.Parse(s.Config.Issuer)
	if err != nil {
		return fmt.Errorf("invalid issuer URL: %w", err)
	}

	if issuerURL.Scheme == "https" {
		return nil
	}

	if issuerURL.Scheme == "http" {
		hostname := issuerURL.Hostname()

		if isLocalhostHostname(hostname) {
			s.Logger.Warn("Running OAuth issuer over HTTP on localhost",
				"issuer", s.Config.Issuer,
				"recommendation", "Use HTTPS even in development for production-like testing")
			return nil
		}

		if !s.Config.AllowInsecureHTTP {
			return fmt.Errorf(
				"issuer must use HTTPS in production (got %s://%s); "+
					"set AllowInsecureHTTP=true only for controlled test environments",
				issuerURL.Scheme, hostname)
		}

		s.Logger.Error("CRITICAL SECURITY WARNING: running OAuth issuer over HTTP",
			"issuer", s.Config.Issuer,
			"risk", "All tokens and credentials exposed to network sniffing and MITM attacks",
			"action_required", "Switch to HTTPS immediately")
		return nil
	}

	return fmt.Errorf("invalid issuer URL scheme: %s (must be http or https)", issuerURL.Scheme)
}

// isLocalhostHostname checks if a hostname refers to the local machine:
// the localhost name, 0.0.0.0, the whole 127.0.0.0/8 range, and the
// IPv6 loopback (with or without brackets).
func isLocalhostHostname(hostname string) bool {
	if hostname == "localhost" || hostname == "0.0.0.0" {
		return true
	}

	cleanHostname := hostname
	if len(hostname) > 2 && hostname[0] == '[' && hostname[len(hostname)-1] == ']' {
		cleanHostname = hostname[1 : len(hostname)-1]
	}

	if ip := net.ParseIP(cleanHostname); ip != nil {
		return ip.IsLoopback()
	}

	return false
}

// validateRedirectURI checks that a redirect URI is a byte-exact member
// of the client's registered set. No prefix or pattern matching: partial
// matches are how open redirects happen.
func validateRedirectURI(client *storage.Client, redirectURI string) error {
	for _, uri := range client.RedirectURIs {
		if uri == redirectURI {
			return nil
		}
	}
	return fmt.Errorf("redirect URI not registered for client")
}

// validateScopes checks requested scopes against an allowed set and
// returns the offending scope names on failure. A rejected request is
// never silently narrowed to the allowed subset.
func validateScopes(requestedScope string, allowedScopes []string) error {
	if len(allowedScopes) == 0 || requestedScope == "" {
		return nil
	}

	var rejected []string
	for _, reqScope := range strings.Fields(requestedScope) {
		found := false
		for _, allowed := range allowedScopes {
			if reqScope == allowed {
				found = true
				break
			}
		}
		if !found {
			rejected = append(rejected, reqScope)
		}
	}

	if len(rejected) > 0 {
		return fmt.Errorf("scope not allowed: %s", strings.Join(rejected, " "))
	}
	return nil
}

// validateCodeVerifier enforces the RFC 7636 code_verifier grammar:
// 43-128 characters from [A-Za-z0-9-._~]. Rejecting anything else keeps
// null bytes and control characters out of the hash comparison.
func validateCodeVerifier(verifier string) error {
	if len(verifier) < MinCodeVerifierLength {
		return fmt.Errorf("code_verifier must be at least %d characters", MinCodeVerifierLength)
	}
	if len(verifier) > MaxCodeVerifierLength {
		return fmt.Errorf("code_verifier must be at most %d characters", MaxCodeVerifierLength)
	}

	for _, ch := range verifier {
		isValid := (ch >= 'A' && ch <= 'Z') || (ch >= 'a' && ch <= 'z') || (ch >= '0' && ch <= '9') ||
			ch == '-' || ch == '.' || ch == '_' || ch == '~'
		if !isValid {
			return fmt.Errorf("code_verifier contains invalid characters (must be [A-Za-z0-9-._~])")
		}
	}
	return nil
}

// validatePKCE verifies a code_verifier against the stored S256
// challenge per RFC 7636.
func validatePKCE(challenge, verifier string) error {
	if verifier == "" {
		return fmt.Errorf("code_verifier is required")
	}
	if err := validateCodeVerifier(verifier); err != nil {
		return err
	}

	hash := sha256.Sum256([]byte(verifier))
	computedChallenge := base64.RawURLEncoding.EncodeToString(hash[:])

	// Constant-time comparison to prevent timing side channels.
	if subtle.ConstantTimeCompare([]byte(computedChallenge), []byte(challenge)) != 1 {
		return fmt.Errorf("code_verifier does not match code_challenge")
	}
	return nil
}

// validateCodeChallenge checks the challenge format at authorize time: a
// base64url-encoded SHA-256 digest is always exactly 43 characters.
func validateCodeChallenge(challenge string) error {
	if len(challenge) != 43 {
		return fmt.Errorf("code_challenge must be a base64url-encoded SHA-256 digest (43 characters)")
	}
	if _, err := base64.RawURLEncoding.DecodeString(challenge); err != nil {
		return fmt.Errorf("code_challenge is not valid base64url")
	}
	return nil
}
