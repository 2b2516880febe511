package security

// Event type constants for security audit logging. Using constants keeps
// event names consistent across the codebase and greppable in log streams.
const (
	// Authorization flow events

	// EventCodeIssued is logged when an authorization code is issued
	EventCodeIssued = "authorization_code_issued"

	// EventCodeReplayDetected is logged when a consumed authorization code
	// is presented again (token theft indicator)
	EventCodeReplayDetected = "authorization_code_replay_detected"

	// Token lifecycle events

	// EventTokenIssued is logged when tokens are minted from a code exchange
	EventTokenIssued = "token_issued"

	// EventTokenRefreshed is logged on a successful refresh-token grant
	EventTokenRefreshed = "token_refreshed"

	// EventTokenRevoked is logged when a refresh token is revoked
	EventTokenRevoked = "token_revoked"

	// Violation events

	// EventAuthFailure is logged when client authentication or request
	// validation fails
	EventAuthFailure = "auth_failure"

	// EventPKCEValidationFailed is logged when a code_verifier fails the
	// challenge check
	EventPKCEValidationFailed = "pkce_validation_failed"

	// EventScopeEscalationAttempt is logged when a client requests scopes
	// outside its allowed set
	EventScopeEscalationAttempt = "scope_escalation_attempt"

	// EventInvalidRedirect is logged when an unregistered redirect URI is used
	EventInvalidRedirect = "invalid_redirect"

	// EventRateLimitExceeded is logged when a rate limit is exceeded
	EventRateLimitExceeded = "rate_limit_exceeded"

	// EventRevocationClientMismatch is logged when a client attempts to
	// revoke a token it does not own
	EventRevocationClientMismatch = "revocation_client_mismatch"
)
