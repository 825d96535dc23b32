package services

import (
	"context"
	"crypto/rsa"
	stderrors "errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"go.nexauth.dev/idp/errors"
)

// PublicKeyProvider resolves verification keys by key ID. Implementations
// may cache; Invalidate drops that cache so a fresh fetch happens on the
// next PublicKeyFor call.
type PublicKeyProvider interface {
	PublicKeyFor(ctx context.Context, kid string) (*rsa.PublicKey, error)
	Invalidate()
}

// TokenValidator verifies RS256 access tokens against a key provider and a
// fixed issuer, with an optional expected audience.
type TokenValidator struct {
	provider PublicKeyProvider
	issuer   string
	audience string
}

// NewTokenValidator builds a validator. audience may be empty, in which case
// the aud claim is not checked.
func NewTokenValidator(provider PublicKeyProvider, issuer, audience string) *TokenValidator {
	return &TokenValidator{provider: provider, issuer: issuer, audience: audience}
}

// Validate parses and verifies a bearer token. On a signature failure it
// invalidates the key provider once and retries, which covers key rotation
// between the token being minted and verified. Failure modes are distinct:
// ErrTokenExpired, ErrIssuerMismatch, ErrAudienceMismatch, and
// ErrTokenMalformed for everything else.
func (v *TokenValidator) Validate(ctx context.Context, tokenValue string) (*AccessTokenClaims, error) {
	claims, err := v.parse(ctx, tokenValue)
	if err != nil && stderrors.Is(err, jwt.ErrTokenSignatureInvalid) {
		v.provider.Invalidate()
		claims, err = v.parse(ctx, tokenValue)
	}
	if err != nil {
		return nil, mapJWTError(err)
	}

	if claims.Issuer != v.issuer {
		return nil, errors.ErrIssuerMismatch
	}
	if v.audience != "" {
		found := false
		for _, aud := range claims.Audience {
			if aud == v.audience {
				found = true
				break
			}
		}
		if !found {
			return nil, errors.ErrAudienceMismatch
		}
	}
	return claims, nil
}

func (v *TokenValidator) parse(ctx context.Context, tokenValue string) (*AccessTokenClaims, error) {
	claims := &AccessTokenClaims{}
	_, err := jwt.ParseWithClaims(tokenValue, claims, func(token *jwt.Token) (any, error) {
		kid, _ := token.Header["kid"].(string)
		key, err := v.provider.PublicKeyFor(ctx, kid)
		if err != nil {
			return nil, fmt.Errorf("resolving verification key: %w", err)
		}
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func mapJWTError(err error) error {
	if stderrors.Is(err, jwt.ErrTokenExpired) {
		return errors.ErrTokenExpired
	}
	// A key-resolution failure is an infrastructure outage, not a bad
	// token; it must not surface as a client-side verdict.
	if stderrors.Is(err, errors.ErrKeyUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", errors.ErrTokenMalformed, err)
}
