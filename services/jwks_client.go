package services

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/rs/zerolog/log"

	"go.nexauth.dev/idp/errors"
)

const jwksCacheKey = "jwks"

// JWKSClient fetches a remote JWKS document and serves verification keys
// from it, caching the document for a bounded TTL. It implements
// PublicKeyProvider for validators that do not share a process with the
// key manager.
type JWKSClient struct {
	url    string
	client *http.Client
	cache  *ttlcache.Cache[string, *JSONWebKeySet]

	mu       sync.Mutex
	lastGood *JSONWebKeySet
}

// NewJWKSClient builds a client for the given JWKS URL. cacheTTL bounds how
// long a fetched document is reused; the HTTP client has a hard timeout so a
// slow endpoint cannot stall validation indefinitely.
func NewJWKSClient(url string, cacheTTL time.Duration) *JWKSClient {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	c := &JWKSClient{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		cache: ttlcache.New[string, *JSONWebKeySet](
			ttlcache.WithTTL[string, *JSONWebKeySet](cacheTTL),
			ttlcache.WithDisableTouchOnHit[string, *JSONWebKeySet](),
		),
	}
	go c.cache.Start()
	return c
}

// PublicKeyFor returns the RSA key for kid from the cached document,
// fetching it first if needed. An empty kid matches a single-key set.
func (c *JWKSClient) PublicKeyFor(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	set, err := c.keySet(ctx)
	if err != nil {
		return nil, err
	}

	for i := range set.Keys {
		key := &set.Keys[i]
		if key.Kty != "RSA" {
			continue
		}
		if kid == "" || key.Kid == kid || key.Kid == "" {
			return key.RSAPublicKey()
		}
	}
	return nil, fmt.Errorf("%w: no key with id %q in JWKS", errors.ErrKeyUnavailable, kid)
}

// Invalidate drops the cached document so the next lookup refetches.
func (c *JWKSClient) Invalidate() {
	c.cache.Delete(jwksCacheKey)
}

// Close stops the cache janitor.
func (c *JWKSClient) Close() {
	c.cache.Stop()
}

func (c *JWKSClient) keySet(ctx context.Context) (*JSONWebKeySet, error) {
	if item := c.cache.Get(jwksCacheKey); item != nil {
		return item.Value(), nil
	}

	set, err := c.fetch(ctx)
	if err != nil {
		// Degrade to the last successfully fetched document rather than
		// failing every validation during an endpoint outage.
		c.mu.Lock()
		stale := c.lastGood
		c.mu.Unlock()
		if stale != nil {
			log.Warn().Err(err).Str("url", c.url).
				Msg("JWKS refresh failed, serving last known document")
			return stale, nil
		}
		return nil, err
	}

	c.cache.Set(jwksCacheKey, set, ttlcache.DefaultTTL)
	c.mu.Lock()
	c.lastGood = set
	c.mu.Unlock()
	log.Debug().Str("url", c.url).Int("keys", len(set.Keys)).Msg("Refreshed JWKS document")
	return set, nil
}

func (c *JWKSClient) fetch(ctx context.Context) (*JSONWebKeySet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building JWKS request: %w", errors.ErrKeyUnavailable, err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching JWKS: %w", errors.ErrKeyUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: JWKS endpoint returned %d", errors.ErrKeyUnavailable, resp.StatusCode)
	}

	set := &JSONWebKeySet{}
	if err := json.NewDecoder(resp.Body).Decode(set); err != nil {
		return nil, fmt.Errorf("%w: decoding JWKS: %w", errors.ErrKeyUnavailable, err)
	}
	if len(set.Keys) == 0 {
		return nil, fmt.Errorf("%w: JWKS document has no keys", errors.ErrKeyUnavailable)
	}
	return set, nil
}
