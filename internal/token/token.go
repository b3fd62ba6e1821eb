// Package token implements the session token codec: minting and verifying
// signed, self-contained identity assertions.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"perimgate/internal/errs"
	"perimgate/internal/model"
)

// Claims is the session token payload. Baseline is the global session
// version fixed at process configuration; Epoch is the per-subject counter
// from the epoch store. A bump of either invalidates the token.
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	Baseline int64  `json:"v"`
	Epoch    int64  `json:"sv"`
	jwt.RegisteredClaims
}

// Codec signs and verifies session tokens with a single shared HS256 key.
type Codec struct {
	key      []byte
	baseline int64
	ttl      time.Duration
	now      func() time.Time
}

// New constructs a codec. The same clock source is used for minting and
// expiry checks, so a token exactly at its expiry instant is expired.
func New(key []byte, baseline int64, ttl time.Duration) *Codec {
	return &Codec{key: key, baseline: baseline, ttl: ttl, now: time.Now}
}

// WithClock overrides the codec clock; for tests.
func (c *Codec) WithClock(now func() time.Time) *Codec {
	c.now = now
	return c
}

// TTL reports the configured token lifetime.
func (c *Codec) TTL() time.Duration { return c.ttl }

// Mint produces a signed token for the identity at the given per-subject
// epoch. The token is not persisted anywhere; the signature is the only
// thing that makes it trustworthy.
func (c *Codec) Mint(id model.Identity, epoch int64) (string, time.Time, error) {
	now := c.now()
	exp := now.Add(c.ttl)
	claims := Claims{
		Username: id.Username,
		Role:     string(id.Role),
		Baseline: c.baseline,
		Epoch:    epoch,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.SubjectID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
	return signed, exp, err
}

// Verify checks signature, signing algorithm, expiry, and the global
// baseline version. Any failure yields errs.ErrUnauthorized: a forged token
// and an expired one are indistinguishable to callers. The per-subject
// epoch in the returned claims still has to be checked against the epoch
// store by the caller.
func (c *Codec) Verify(raw string) (model.Identity, Claims, error) {
	if raw == "" {
		return model.Identity{}, Claims{}, errs.ErrUnauthorized
	}
	var claims Claims
	parsed, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		// reject algorithm substitution (none, RS256, ...)
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return c.key, nil
	}, jwt.WithTimeFunc(c.now))
	if err != nil || !parsed.Valid {
		return model.Identity{}, Claims{}, errs.ErrUnauthorized
	}
	if claims.Baseline != c.baseline {
		return model.Identity{}, Claims{}, errs.ErrUnauthorized
	}
	if claims.Subject == "" {
		return model.Identity{}, Claims{}, errs.ErrUnauthorized
	}
	id := model.Identity{
		SubjectID: claims.Subject,
		Username:  claims.Username,
		Role:      model.ParseRole(claims.Role),
	}
	return id, claims, nil
}
