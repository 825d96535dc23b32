package domain

import (
	"context"
	"time"
)

// AuthCode represents a single-use OAuth 2.0 authorization code.
// Lifecycle: issued -> used (terminal) or issued -> expired (checked at
// read time). The used flag only ever goes one way.
type AuthCode struct {
	Code      string    `bson:"code"       json:"code"`
	ClientID  string    `bson:"client_id"  json:"client_id"`
	UserID    string    `bson:"user_id"    json:"user_id"`
	Scope     string    `bson:"scope"      json:"scope"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	Used      bool      `bson:"used"       json:"used"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// AuthCodeRepository defines the storage contract for authorization codes.
type AuthCodeRepository interface {
	SaveAuthCode(ctx context.Context, code *AuthCode) error
	// ConsumeAuthCode atomically flips used from false to true and returns
	// the code payload. Of any number of concurrent calls with the same
	// code, exactly one succeeds; the rest fail with ErrCodeAlreadyUsed.
	// Expired or unknown codes fail with ErrCodeExpired / ErrCodeNotFound.
	ConsumeAuthCode(ctx context.Context, code string) (*AuthCode, error)
	DeleteExpiredAuthCodes(ctx context.Context) error
}
