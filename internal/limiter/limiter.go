// Package limiter defines interfaces and implementations for request rate
// limiting over a fixed window per client key.
package limiter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Decision is the outcome of a single attempt.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration // how long until the window resets, when limited
}

// Limiter admits or rejects attempts per client key. Implementations are
// allowed to be approximate under concurrency but must keep the set of
// tracked keys bounded.
type Limiter interface {
	// Attempt records one attempt for the key and reports whether it is
	// admitted.
	Attempt(ctx context.Context, key string) (Decision, error)
}

// HashKey returns a stable hash for a client key (typically an IP) so raw
// addresses never reach the shared store.
func HashKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}
