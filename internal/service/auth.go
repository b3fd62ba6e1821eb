// Package service contains the application services behind the gateway's
// entry points.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"

	pkgcrypto "perimgate/internal/crypto"
	"perimgate/internal/epoch"
	"perimgate/internal/errs"
	"perimgate/internal/model"
	"perimgate/internal/repository"
	"perimgate/internal/token"
)

// AuthService defines authentication and account operations. Rate limiting
// and CSRF belong to the gateway edge and run before any of these.
type AuthService interface {
	// Login verifies credentials and mints a session token at the subject's
	// current epoch.
	Login(ctx context.Context, username, password string) (string, time.Time, model.User, error)
	// Register creates a new user with secure password hashing.
	Register(ctx context.Context, username, password string, role model.Role) (model.User, error)
	// ChangePassword verifies the current password and replaces it.
	ChangePassword(ctx context.Context, subjectID, current, next string) error
	// RevokeSessions bumps the subject's epoch, invalidating every
	// outstanding token ("sign out everywhere").
	RevokeSessions(ctx context.Context, subjectID string) (int64, error)
}

type AuthServiceImpl struct {
	users       repository.UserRepository
	codec       *token.Codec
	epochs      epoch.Store
	allowWrites bool
}

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(users repository.UserRepository, codec *token.Codec, epochs epoch.Store, allowWrites bool) *AuthServiceImpl {
	return &AuthServiceImpl{users: users, codec: codec, epochs: epochs, allowWrites: allowWrites}
}

// Login authenticates a user. A missing user and a wrong password are
// indistinguishable to the caller.
func (s *AuthServiceImpl) Login(ctx context.Context, username, password string) (string, time.Time, model.User, error) {
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil || !pkgcrypto.VerifyPassword([]byte(password), u.SaltAuth, u.PwdHash) {
		// user lookup errors are masked as unauthorized
		return "", time.Time{}, model.User{}, errs.ErrUnauthorized
	}

	id := u.Identity()
	ep, err := s.epochs.Current(ctx, id.SubjectID)
	if err != nil {
		// epoch store outage degrades to the lazy default rather than
		// blocking every login
		ep = 1
	}
	signed, exp, err := s.codec.Mint(id, ep)
	if err != nil {
		return "", time.Time{}, model.User{}, err
	}
	return signed, exp, *u, nil
}

// Register creates a new user record with a fresh per-user salt.
func (s *AuthServiceImpl) Register(ctx context.Context, username, password string, role model.Role) (model.User, error) {
	if !s.allowWrites {
		return model.User{}, errs.ErrWriteDisabled
	}
	if username == "" || password == "" {
		return model.User{}, errors.New("empty username/password")
	}
	uid, err := uuid.NewV4()
	if err != nil {
		return model.User{}, err
	}
	salt, err := pkgcrypto.RandBytes(pkgcrypto.SaltLen)
	if err != nil {
		return model.User{}, err
	}
	u := &model.User{
		ID:       uid,
		Username: username,
		Role:     role,
		PwdHash:  pkgcrypto.HashPassword([]byte(password), salt),
		SaltAuth: salt,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return model.User{}, err
	}
	return *u, nil
}

// ChangePassword verifies the current password before rehashing the new one
// with a fresh salt.
func (s *AuthServiceImpl) ChangePassword(ctx context.Context, subjectID, current, next string) error {
	if !s.allowWrites {
		return errs.ErrWriteDisabled
	}
	uid, err := uuid.FromString(subjectID)
	if err != nil {
		return errs.ErrUnauthorized
	}
	u, err := s.users.GetByID(ctx, uid)
	if err != nil {
		return errs.ErrUnauthorized
	}
	if !pkgcrypto.VerifyPassword([]byte(current), u.SaltAuth, u.PwdHash) {
		return errs.ErrUnauthorized
	}
	salt, err := pkgcrypto.RandBytes(pkgcrypto.SaltLen)
	if err != nil {
		return err
	}
	return s.users.UpdatePassword(ctx, uid, pkgcrypto.HashPassword([]byte(next), salt), salt)
}

// RevokeSessions bumps the subject's epoch.
func (s *AuthServiceImpl) RevokeSessions(ctx context.Context, subjectID string) (int64, error) {
	return s.epochs.Bump(ctx, subjectID)
}
