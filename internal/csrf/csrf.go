// Package csrf implements double-submit anti-forgery token minting and
// comparison.
package csrf

import (
	"crypto/subtle"
	"time"

	pkgcrypto "perimgate/internal/crypto"
)

// TTL is the CSRF token lifetime. Tokens are minted on demand and never
// rotated mid-life; matches are permitted to repeat within the lifetime.
const TTL = 10 * time.Minute

// tokenBytes of randomness per token (hex-encoded on the wire).
const tokenBytes = 32

// Mint returns a fresh unpredictable token for the cookie and the hidden
// form field.
func Mint() (string, error) {
	return pkgcrypto.RandToken(tokenBytes)
}

// Check reports whether the cookie-held and form-carried tokens are both
// present and byte-equal. The comparison is constant-time to avoid leaking
// match length through timing.
func Check(cookieToken, formToken string) bool {
	if cookieToken == "" || formToken == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(cookieToken), []byte(formToken)) == 1
}
