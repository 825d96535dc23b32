package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"go.nexauth.dev/idp/domain"
	"go.nexauth.dev/idp/errors"
)

// dummyPasswordHash is verified against when the user lookup misses, so an
// unknown username costs the same bcrypt work as a wrong password.
const dummyPasswordHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// CredentialAuthenticator verifies resource-owner credentials. All failure
// modes (unknown user, wrong password, non-active account) collapse into
// ErrAuthenticationFailed so the caller learns nothing it should not.
type CredentialAuthenticator struct {
	users  domain.UserRepository
	hasher PasswordHasher
}

// NewCredentialAuthenticator creates an authenticator.
func NewCredentialAuthenticator(users domain.UserRepository, hasher PasswordHasher) *CredentialAuthenticator {
	return &CredentialAuthenticator{users: users, hasher: hasher}
}

// Authenticate verifies username/password and returns the user. The account
// must be active; a correct password on a suspended account still fails.
func (a *CredentialAuthenticator) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	user, err := a.users.GetUserByUsername(ctx, username)
	if err != nil {
		// Burn the same hash cost as the found-user path.
		_ = a.hasher.Verify(dummyPasswordHash, password)
		return nil, errors.ErrAuthenticationFailed
	}

	if err := a.hasher.Verify(user.PasswordHash, password); err != nil {
		return nil, errors.ErrAuthenticationFailed
	}

	if user.Status != domain.UserStatusActive {
		return nil, errors.ErrAuthenticationFailed
	}

	now := time.Now().UTC()
	if err := a.users.TouchLastLogin(ctx, user.ID, now); err == nil {
		user.LastLoginAt = &now
	}

	return user, nil
}

// Register creates a new user with a hashed password. Role defaults to
// domain.RoleUser when unset; unknown roles are rejected.
func (a *CredentialAuthenticator) Register(ctx context.Context, username, email, password,
	firstName, lastName string, role domain.UserRole,
) (*domain.User, error) {
	if role == "" {
		role = domain.RoleUser
	}
	if !role.Valid() {
		return nil, errors.ErrAuthenticationFailed
	}

	hash, err := a.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		FirstName:    firstName,
		LastName:     lastName,
		Role:         role,
		Status:       domain.UserStatusActive,
	}
	if err := a.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	log.Info().Str("userID", user.ID).Str("username", username).Msg("User registered")
	return user, nil
}
