package cache

import (
	"context"
	"time"
)

// TokenEntry is the cached projection of an issued access token, kept for
// the introspection fast path so hot tokens skip the database.
type TokenEntry struct {
	ID        string    `redis:"id"`
	ClientID  string    `redis:"clientId"`
	UserID    string    `redis:"userId"`
	Scope     string    `redis:"scope"`
	Role      string    `redis:"role"`
	ExpiresAt time.Time `redis:"expiresAt"`
	CreatedAt time.Time `redis:"createdAt"`
}

// TokenStore caches access-token entries keyed by the token value.
type TokenStore interface {
	Set(ctx context.Context, tokenValue string, entry *TokenEntry) error
	Get(ctx context.Context, tokenValue string) (*TokenEntry, error)
	Delete(ctx context.Context, tokenValue string) error
	Clear(ctx context.Context) error
}
