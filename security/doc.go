// Package security provides cross-cutting protections for the authorization
// server: per-key rate limiting, audit logging, client IP extraction,
// request ID propagation, clock-skew-tolerant expiry checks, and the
// standard security headers for token-bearing responses.
//
// # Rate Limiting
//
// RateLimiter keeps a token bucket per key (client IP or client ID) and
// bounds memory via LRU eviction, so a distributed flood of one-shot keys
// cannot exhaust the process. Idle keys are swept in the background.
//
//	limiter := security.NewRateLimiter(10, 20, logger)
//	defer limiter.Stop()
//
//	if !limiter.Allow(clientIP) {
//	    // respond 429
//	}
//
// # Audit Logging
//
// Auditor emits structured events for every security-relevant decision:
// codes issued, tokens minted, rotations, revocations, replay detections,
// and failures. User identifiers are hashed before logging so audit trails
// never contain raw PII.
package security
