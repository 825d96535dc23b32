package cache

import (
	"context"
	"errors"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// ErrEntryNotFound is returned when a token is not in the cache.
var ErrEntryNotFound = errors.New("token entry not found in cache")

// MemoryTokenStore implements TokenStore using ttlcache. Entries expire with
// the token itself; the background janitor reclaims them.
type MemoryTokenStore struct {
	cache *ttlcache.Cache[string, *TokenEntry]
}

// NewMemoryTokenStore creates an in-memory token store with automatic cleanup.
func NewMemoryTokenStore() *MemoryTokenStore {
	c := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, *TokenEntry](),
	)
	go c.Start()

	return &MemoryTokenStore{cache: c}
}

// Set implements TokenStore.Set.
func (s *MemoryTokenStore) Set(_ context.Context, tokenValue string, entry *TokenEntry) error {
	ttl := time.Until(entry.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	s.cache.Set(HashToken(tokenValue), entry, ttl)
	return nil
}

// Get implements TokenStore.Get.
func (s *MemoryTokenStore) Get(_ context.Context, tokenValue string) (*TokenEntry, error) {
	item := s.cache.Get(HashToken(tokenValue))
	if item == nil {
		return nil, ErrEntryNotFound
	}
	return item.Value(), nil
}

// Delete implements TokenStore.Delete.
func (s *MemoryTokenStore) Delete(_ context.Context, tokenValue string) error {
	s.cache.Delete(HashToken(tokenValue))
	return nil
}

// Clear implements TokenStore.Clear.
func (s *MemoryTokenStore) Clear(_ context.Context) error {
	s.cache.DeleteAll()
	return nil
}

// Close stops the cleanup goroutine.
func (s *MemoryTokenStore) Close() error {
	s.cache.Stop()
	return nil
}
