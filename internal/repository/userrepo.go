// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"perimgate/internal/model"
)

// UserRepository is the credential-store contract the gateway depends on.
// The backing implementation (SQL, JSON file, directory service) is an
// external concern.
type UserRepository interface {
	// Create inserts a new user. Returns errs.ErrAlreadyExists when the
	// username is taken (case-insensitively).
	Create(ctx context.Context, u *model.User) error
	// GetByID loads a user by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	// GetByUsername loads a user by username, matched case-insensitively.
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	// UpdatePassword replaces the password hash and salt for a user.
	UpdatePassword(ctx context.Context, id uuid.UUID, pwdHash, saltAuth []byte) error
}
