package security

import "time"

// DefaultClockSkewGracePeriod is the grace applied to expiry checks so that
// minor NTP drift between the issuer and its stores does not produce false
// expirations. Tokens remain usable for at most this long past their true
// expiry, which is an acceptable trade for reliability.
const DefaultClockSkewGracePeriod = 5 * time.Second

// IsExpired reports whether expiresAt has passed, allowing the default
// clock skew grace period. A zero time means no expiration.
func IsExpired(expiresAt time.Time) bool {
	return IsExpiredWithGracePeriod(expiresAt, DefaultClockSkewGracePeriod)
}

// IsExpiredWithGracePeriod reports whether expiresAt passed more than
// gracePeriod ago.
func IsExpiredWithGracePeriod(expiresAt time.Time, gracePeriod time.Duration) bool {
	if expiresAt.IsZero() {
		return false
	}
	return time.Now().After(expiresAt.Add(gracePeriod))
}

// ExpiresWithin reports whether expiresAt falls inside the given threshold
// from now. Useful for proactive refresh decisions.
func ExpiresWithin(expiresAt time.Time, threshold time.Duration) bool {
	if expiresAt.IsZero() {
		return false
	}
	return time.Now().Add(threshold).After(expiresAt)
}
