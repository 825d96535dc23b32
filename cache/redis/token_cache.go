package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"go.nexauth.dev/idp/cache"
)

// TokenStore implements cache.TokenStore backed by Redis, for deployments
// where multiple issuer instances share one introspection cache.
type TokenStore struct {
	client *redis.Client
	prefix string
}

// NewTokenStore creates a Redis-backed token store. prefix namespaces the
// keys so several services can share one Redis.
func NewTokenStore(client *redis.Client, prefix string) *TokenStore {
	return &TokenStore{client: client, prefix: prefix}
}

func (s *TokenStore) key(tokenValue string) string {
	return fmt.Sprintf("%s:token:%s", s.prefix, cache.HashToken(tokenValue))
}

// Set stores an entry with a TTL matching the token expiry.
func (s *TokenStore) Set(ctx context.Context, tokenValue string, entry *cache.TokenEntry) error {
	ttl := time.Until(entry.ExpiresAt)
	if ttl <= 0 {
		return nil
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal token entry: %w", err)
	}

	if err := s.client.Set(ctx, s.key(tokenValue), payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set token entry in redis: %w", err)
	}
	return nil
}

// Get retrieves an entry, or cache.ErrEntryNotFound on miss.
func (s *TokenStore) Get(ctx context.Context, tokenValue string) (*cache.TokenEntry, error) {
	payload, err := s.client.Get(ctx, s.key(tokenValue)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, cache.ErrEntryNotFound
		}
		return nil, fmt.Errorf("failed to get token entry from redis: %w", err)
	}

	var entry cache.TokenEntry
	if err := json.Unmarshal(payload, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token entry: %w", err)
	}
	return &entry, nil
}

// Delete removes an entry.
func (s *TokenStore) Delete(ctx context.Context, tokenValue string) error {
	return s.client.Del(ctx, s.key(tokenValue)).Err()
}

// Clear removes every entry under this store's prefix.
func (s *TokenStore) Clear(ctx context.Context) error {
	var cursor uint64
	pattern := fmt.Sprintf("%s:token:*", s.prefix)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return fmt.Errorf("failed to scan token keys: %w", err)
		}
		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("failed to delete token keys: %w", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
