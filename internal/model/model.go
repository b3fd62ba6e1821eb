// Package model defines domain entities used by services, the gateway, and repositories.
package model

import (
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
)

// Role is the coarse authorization level carried in session tokens.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole maps a raw string to a Role, defaulting to RoleUser.
// Only an exact "admin" grants the elevated role.
func ParseRole(s string) Role {
	if s == string(RoleAdmin) {
		return RoleAdmin
	}
	return RoleUser
}

// Identity is the authenticated principal as asserted by a verified session token.
// It is immutable once minted; the authoritative copy lives in the user store.
type Identity struct {
	SubjectID string // stable, opaque user id
	Username  string // display name, matched case-insensitively
	Role      Role
}

// EqualUsername compares usernames case-insensitively.
func EqualUsername(a, b string) bool {
	return strings.EqualFold(a, b)
}

// User represents an account stored in the user store. Passwords are kept
// only as Argon2id hashes with per-user salts.
type User struct {
	ID        uuid.UUID // PK
	Username  string    // unique (case-insensitive)
	Role      Role
	PwdHash   []byte // Argon2id(password, SaltAuth)
	SaltAuth  []byte // per-user auth salt
	CreatedAt time.Time
}

// Identity projects the token-visible fields of a user.
func (u *User) Identity() Identity {
	return Identity{SubjectID: u.ID.String(), Username: u.Username, Role: u.Role}
}
