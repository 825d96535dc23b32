package domain

import (
	"context"
	"time"
)

// Token is the persisted record of an issued token pair. The access token is
// a signed JWT and is not authoritative for session state; the refresh token
// is the durable credential and is rotated (deleted and re-created) on every
// refresh exchange.
type Token struct {
	ID           string `bson:"_id,omitempty"  json:"id"`
	AccessToken  string `bson:"access_token"   json:"access_token"`
	RefreshToken string `bson:"refresh_token"  json:"refresh_token"`
	ClientID     string `bson:"client_id"      json:"client_id"`
	UserID       string `bson:"user_id"        json:"user_id"`
	Scope        string `bson:"scope"          json:"scope"`
	Role         string `bson:"role,omitempty" json:"role,omitempty"`
	// AccessExpiresAt mirrors the access token's exp claim; introspection
	// uses it for the active check. ExpiresAt is the refresh expiry and
	// bounds the record's own lifetime.
	AccessExpiresAt time.Time `bson:"access_expires_at" json:"access_expires_at"`
	ExpiresAt       time.Time `bson:"expires_at"        json:"expires_at"`
	CreatedAt       time.Time `bson:"created_at"        json:"created_at"`
}

// TokenRepository defines the storage contract for token records.
type TokenRepository interface {
	StoreToken(ctx context.Context, token *Token) error
	// ConsumeRefreshToken atomically removes and returns the record for the
	// given refresh token. Exactly one of any concurrent calls wins; the
	// rest fail with ErrRefreshTokenNotFound. This delete-before-reissue is
	// what makes rotation replay-safe.
	ConsumeRefreshToken(ctx context.Context, refreshToken string) (*Token, error)
	GetByAccessToken(ctx context.Context, accessToken string) (*Token, error)
	DeleteByAccessToken(ctx context.Context, accessToken string) error
	DeleteExpiredTokens(ctx context.Context) error
}
