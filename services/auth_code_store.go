package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"go.nexauth.dev/idp/domain"
)

const authCodeBytes = 32 // 256 bits of entropy

// AuthCodeStore issues and single-use-consumes short-lived authorization
// codes. Atomicity of Consume lives in the repository; this layer owns code
// generation and expiry policy.
type AuthCodeStore struct {
	repo domain.AuthCodeRepository
	ttl  time.Duration
}

// NewAuthCodeStore creates a store. ttl defaults to 10 minutes when zero.
func NewAuthCodeStore(repo domain.AuthCodeRepository, ttl time.Duration) *AuthCodeStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &AuthCodeStore{repo: repo, ttl: ttl}
}

// Issue generates and stores a fresh single-use code.
func (s *AuthCodeStore) Issue(ctx context.Context, clientID, userID, scope string) (string, error) {
	code, err := randomToken(authCodeBytes)
	if err != nil {
		return "", err
	}

	authCode := &domain.AuthCode{
		Code:      code,
		ClientID:  clientID,
		UserID:    userID,
		Scope:     scope,
		ExpiresAt: time.Now().UTC().Add(s.ttl),
		Used:      false,
	}
	if err := s.repo.SaveAuthCode(ctx, authCode); err != nil {
		return "", err
	}

	log.Debug().Str("clientID", clientID).Str("userID", userID).Msg("Authorization code issued")
	return code, nil
}

// Consume atomically marks the code used and returns its payload. Exactly
// one of any concurrent calls with the same code succeeds; the rest fail
// with ErrCodeAlreadyUsed. Expired codes always fail, used or not.
func (s *AuthCodeStore) Consume(ctx context.Context, code string) (*domain.AuthCode, error) {
	return s.repo.ConsumeAuthCode(ctx, code)
}
