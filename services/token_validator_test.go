package services

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.nexauth.dev/idp/errors"
)

func signTestToken(t *testing.T, key *rsa.PrivateKey, claims AccessTokenClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func testClaims(issuer string, ttl time.Duration) AccessTokenClaims {
	now := time.Now().UTC()
	return AccessTokenClaims{
		ClientID: "client-abc",
		Scope:    "openid",
		Role:     "user",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   "user-1",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        "jti-1",
		},
	}
}

func newTestKeys(t *testing.T) *KeyManager {
	t.Helper()
	keys, err := LoadOrGenerateKeyManager(context.Background(), &fakeSigningKeyRepo{})
	require.NoError(t, err)
	return keys
}

func TestTokenValidator_ValidToken(t *testing.T) {
	keys := newTestKeys(t)
	validator := NewTokenValidator(keys, "oauth-idp", "")

	signed := signTestToken(t, keys.SigningKey(), testClaims("oauth-idp", time.Hour))

	claims, err := validator.Validate(context.Background(), signed)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "client-abc", claims.ClientID)
}

func TestTokenValidator_ExpiredToken(t *testing.T) {
	keys := newTestKeys(t)
	validator := NewTokenValidator(keys, "oauth-idp", "")

	signed := signTestToken(t, keys.SigningKey(), testClaims("oauth-idp", -time.Second))

	_, err := validator.Validate(context.Background(), signed)
	assert.ErrorIs(t, err, errors.ErrTokenExpired)
}

func TestTokenValidator_TamperedSignature(t *testing.T) {
	keys := newTestKeys(t)
	validator := NewTokenValidator(keys, "oauth-idp", "")

	signed := signTestToken(t, keys.SigningKey(), testClaims("oauth-idp", time.Hour))

	// Flip one byte of the signature segment.
	parts := strings.Split(signed, ".")
	require.Len(t, parts, 3)
	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	require.NoError(t, err)
	sig[0] ^= 0x01
	parts[2] = base64.RawURLEncoding.EncodeToString(sig)

	_, err = validator.Validate(context.Background(), strings.Join(parts, "."))
	assert.ErrorIs(t, err, errors.ErrTokenMalformed)
}

func TestTokenValidator_GarbageToken(t *testing.T) {
	keys := newTestKeys(t)
	validator := NewTokenValidator(keys, "oauth-idp", "")

	_, err := validator.Validate(context.Background(), "not.a.jwt")
	assert.ErrorIs(t, err, errors.ErrTokenMalformed)
}

func TestTokenValidator_WrongIssuer(t *testing.T) {
	keys := newTestKeys(t)
	validator := NewTokenValidator(keys, "oauth-idp", "")

	signed := signTestToken(t, keys.SigningKey(), testClaims("some-other-idp", time.Hour))

	_, err := validator.Validate(context.Background(), signed)
	assert.ErrorIs(t, err, errors.ErrIssuerMismatch)
}

func TestTokenValidator_RejectsNonRS256(t *testing.T) {
	keys := newTestKeys(t)
	validator := NewTokenValidator(keys, "oauth-idp", "")

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, testClaims("oauth-idp", time.Hour))
	signed, err := token.SignedString([]byte("shared-secret"))
	require.NoError(t, err)

	_, err = validator.Validate(context.Background(), signed)
	assert.ErrorIs(t, err, errors.ErrTokenMalformed)
}

func TestTokenValidator_WrongKey(t *testing.T) {
	keys := newTestKeys(t)
	validator := NewTokenValidator(keys, "oauth-idp", "")

	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	signed := signTestToken(t, otherKey, testClaims("oauth-idp", time.Hour))

	_, err = validator.Validate(context.Background(), signed)
	assert.ErrorIs(t, err, errors.ErrTokenMalformed)
}

// The published JWKS modulus and exponent must reconstruct a key that
// verifies locally signed tokens.
func TestTokenValidator_JWKSRoundTrip(t *testing.T) {
	keys := newTestKeys(t)

	set := keys.JWKS()
	require.Len(t, set.Keys, 1)

	rebuilt, err := set.Keys[0].RSAPublicKey()
	require.NoError(t, err)
	assert.Equal(t, keys.VerificationKey().N, rebuilt.N)
	assert.Equal(t, keys.VerificationKey().E, rebuilt.E)

	signed := signTestToken(t, keys.SigningKey(), testClaims("oauth-idp", time.Hour))

	parsed, err := jwt.ParseWithClaims(signed, &AccessTokenClaims{}, func(token *jwt.Token) (any, error) {
		return rebuilt, nil
	}, jwt.WithValidMethods([]string{"RS256"}))
	require.NoError(t, err)
	assert.True(t, parsed.Valid)
}

// failingKeyProvider simulates an unreachable key source.
type failingKeyProvider struct{}

func (failingKeyProvider) PublicKeyFor(context.Context, string) (*rsa.PublicKey, error) {
	return nil, fmt.Errorf("%w: jwks endpoint unreachable", errors.ErrKeyUnavailable)
}

func (failingKeyProvider) Invalidate() {}

func TestTokenValidator_KeyOutageIsNotMalformed(t *testing.T) {
	keys := newTestKeys(t)
	signed := signTestToken(t, keys.SigningKey(), testClaims("oauth-idp", time.Hour))

	validator := NewTokenValidator(failingKeyProvider{}, "oauth-idp", "")

	_, err := validator.Validate(context.Background(), signed)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrKeyUnavailable)
	assert.NotErrorIs(t, err, errors.ErrTokenMalformed)
}
