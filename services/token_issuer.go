package services

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"go.nexauth.dev/idp/cache"
	"go.nexauth.dev/idp/domain"
	"go.nexauth.dev/idp/errors"
)

const refreshTokenBytes = 32 // 256 bits of entropy

// AccessTokenClaims is the claim set minted into every access token. It is
// built once per mint; the audience is the only optional member.
type AccessTokenClaims struct {
	ClientID string `json:"client_id"`
	Scope    string `json:"scope,omitempty"`
	Role     string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// TokenPair is the response payload of every successful token operation.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope,omitempty"`
}

// TokenIssuerConfig carries the issuance policy.
type TokenIssuerConfig struct {
	// Issuer is the fixed iss claim.
	Issuer string
	// AccessTokenTTLMinutes drives both the exp claim and expires_in, which
	// is always exactly AccessTokenTTLMinutes * 60.
	AccessTokenTTLMinutes int
	// RefreshTokenTTL bounds the refresh-token record lifetime.
	RefreshTokenTTL time.Duration
}

// TokenIssuer mints signed access tokens and opaque refresh tokens, persists
// the refresh records, and rotates them on every refresh exchange.
type TokenIssuer struct {
	clients *ClientRegistry
	authn   *CredentialAuthenticator
	codes   *AuthCodeStore
	users   domain.UserRepository
	tokens  domain.TokenRepository
	store   cache.TokenStore
	keys    *KeyManager
	cfg     TokenIssuerConfig
}

// NewTokenIssuer wires the issuer. The cache store may be nil; minted tokens
// then skip the introspection fast path.
func NewTokenIssuer(
	clients *ClientRegistry,
	authn *CredentialAuthenticator,
	codes *AuthCodeStore,
	users domain.UserRepository,
	tokens domain.TokenRepository,
	store cache.TokenStore,
	keys *KeyManager,
	cfg TokenIssuerConfig,
) *TokenIssuer {
	if cfg.AccessTokenTTLMinutes <= 0 {
		cfg.AccessTokenTTLMinutes = 60
	}
	if cfg.RefreshTokenTTL <= 0 {
		cfg.RefreshTokenTTL = 7 * 24 * time.Hour
	}
	return &TokenIssuer{
		clients: clients,
		authn:   authn,
		codes:   codes,
		users:   users,
		tokens:  tokens,
		store:   store,
		keys:    keys,
		cfg:     cfg,
	}
}

// IssueFromCode exchanges an authorization code for a token pair. The code
// is consumed exactly once; if anything fails after consumption the code
// stays burned, which is the replay defence, not a bug.
func (s *TokenIssuer) IssueFromCode(ctx context.Context, code, clientID, clientSecret, redirectURI string) (*TokenPair, error) {
	client, err := s.clients.Validate(ctx, clientID, clientSecret)
	if err != nil {
		return nil, err
	}
	if redirectURI != "" && !client.HasRedirectURI(redirectURI) {
		return nil, errors.ErrInvalidRedirect
	}

	authCode, err := s.codes.Consume(ctx, code)
	if err != nil {
		return nil, err
	}
	if authCode.ClientID != clientID {
		return nil, fmt.Errorf("%w: code issued to a different client", errors.ErrInvalidGrant)
	}

	user, err := s.users.GetUserByID(ctx, authCode.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown subject", errors.ErrInvalidGrant)
	}
	if user.Status != domain.UserStatusActive {
		return nil, fmt.Errorf("%w: subject not active", errors.ErrInvalidGrant)
	}

	return s.mint(ctx, client.ID, user, authCode.Scope, "")
}

// IssueDirect authenticates the resource owner and mints a pair directly,
// for trusted first-party flows that skip the code step.
func (s *TokenIssuer) IssueDirect(ctx context.Context, username, password, clientID, scope string) (*TokenPair, error) {
	return s.IssueDirectForAudience(ctx, username, password, clientID, scope, "")
}

// IssueDirectForAudience is IssueDirect with an explicit aud claim, for
// role-scoped redirect targets.
func (s *TokenIssuer) IssueDirectForAudience(ctx context.Context, username, password, clientID, scope, audience string) (*TokenPair, error) {
	client, err := s.clients.GetActiveClient(ctx, clientID)
	if err != nil {
		return nil, err
	}

	user, err := s.authn.Authenticate(ctx, username, password)
	if err != nil {
		return nil, err
	}

	allowedScope, err := s.clients.ScopesAllowed(ctx, client.ID, scope)
	if err != nil {
		return nil, err
	}

	return s.mint(ctx, client.ID, user, allowedScope, audience)
}

// Refresh rotates a refresh token: the old record is atomically removed
// before the new pair is minted, so a second use of the same token, however
// concurrent, fails with an invalid-grant error.
func (s *TokenIssuer) Refresh(ctx context.Context, refreshToken, clientID, clientSecret string) (*TokenPair, error) {
	client, err := s.clients.Validate(ctx, clientID, clientSecret)
	if err != nil {
		return nil, err
	}

	record, err := s.tokens.ConsumeRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if record.ClientID != client.ID {
		return nil, fmt.Errorf("%w: refresh token issued to a different client", errors.ErrInvalidGrant)
	}
	if time.Now().UTC().After(record.ExpiresAt) {
		return nil, fmt.Errorf("%w: refresh token expired", errors.ErrInvalidGrant)
	}

	user, err := s.users.GetUserByID(ctx, record.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown subject", errors.ErrInvalidGrant)
	}
	if user.Status != domain.UserStatusActive {
		return nil, fmt.Errorf("%w: subject not active", errors.ErrInvalidGrant)
	}

	return s.mint(ctx, client.ID, user, record.Scope, "")
}

// mint is the shared minting procedure: build the claim set, sign with the
// key manager, generate the opaque refresh token, persist the record, warm
// the cache.
func (s *TokenIssuer) mint(ctx context.Context, clientID string, user *domain.User, scope, audience string) (*TokenPair, error) {
	now := time.Now().UTC()
	accessTTL := time.Duration(s.cfg.AccessTokenTTLMinutes) * time.Minute
	tokenID := uuid.NewString()

	claims := AccessTokenClaims{
		ClientID: clientID,
		Scope:    scope,
		Role:     string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(accessTTL)),
			ID:        tokenID,
		},
	}
	if audience != "" {
		claims.Audience = jwt.ClaimStrings{audience}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = s.keys.KeyID()

	signed, err := token.SignedString(s.keys.SigningKey())
	if err != nil {
		return nil, fmt.Errorf("%w: failed to sign access token: %w", errors.ErrKeyUnavailable, err)
	}

	refreshToken, err := randomToken(refreshTokenBytes)
	if err != nil {
		return nil, err
	}

	record := &domain.Token{
		ID:              tokenID,
		AccessToken:     signed,
		RefreshToken:    refreshToken,
		ClientID:        clientID,
		UserID:          user.ID,
		Scope:           scope,
		Role:            string(user.Role),
		AccessExpiresAt: now.Add(accessTTL),
		ExpiresAt:       now.Add(s.cfg.RefreshTokenTTL),
		CreatedAt:       now,
	}
	if err := s.tokens.StoreToken(ctx, record); err != nil {
		return nil, err
	}

	if s.store != nil {
		entry := &cache.TokenEntry{
			ID:        tokenID,
			ClientID:  clientID,
			UserID:    user.ID,
			Scope:     scope,
			Role:      string(user.Role),
			ExpiresAt: now.Add(accessTTL),
			CreatedAt: now,
		}
		if err := s.store.Set(ctx, signed, entry); err != nil {
			log.Warn().Err(err).Msg("Failed to cache access token")
		}
	}

	return &TokenPair{
		AccessToken:  signed,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    s.cfg.AccessTokenTTLMinutes * 60,
		Scope:        scope,
	}, nil
}

// TokenIntrospection is the RFC 7662 response shape.
type TokenIntrospection struct {
	Active   bool   `json:"active"`
	Scope    string `json:"scope,omitempty"`
	ClientID string `json:"client_id,omitempty"`
	Sub      string `json:"sub,omitempty"`
	Role     string `json:"role,omitempty"`
	Exp      int64  `json:"exp,omitempty"`
	Iat      int64  `json:"iat,omitempty"`
	Iss      string `json:"iss,omitempty"`
	Jti      string `json:"jti,omitempty"`
}

// Introspect reports the state of an access token for a validated client,
// consulting the cache before the repository. Unknown or expired tokens are
// simply inactive, per RFC 7662.
func (s *TokenIssuer) Introspect(ctx context.Context, tokenValue, clientID, clientSecret string) (*TokenIntrospection, error) {
	if _, err := s.clients.Validate(ctx, clientID, clientSecret); err != nil {
		return nil, err
	}

	if s.store != nil {
		if entry, err := s.store.Get(ctx, tokenValue); err == nil {
			if time.Now().UTC().After(entry.ExpiresAt) {
				_ = s.store.Delete(ctx, tokenValue)
				return &TokenIntrospection{Active: false}, nil
			}
			return &TokenIntrospection{
				Active:   true,
				Scope:    entry.Scope,
				ClientID: entry.ClientID,
				Sub:      entry.UserID,
				Role:     entry.Role,
				Exp:      entry.ExpiresAt.Unix(),
				Iat:      entry.CreatedAt.Unix(),
				Iss:      s.cfg.Issuer,
				Jti:      entry.ID,
			}, nil
		}
	}

	record, err := s.tokens.GetByAccessToken(ctx, tokenValue)
	if err != nil {
		return &TokenIntrospection{Active: false}, nil
	}
	// The record outlives the access token by the refresh TTL; liveness is
	// the access token's own expiry, not the record's.
	if time.Now().UTC().After(record.AccessExpiresAt) {
		return &TokenIntrospection{Active: false}, nil
	}
	return &TokenIntrospection{
		Active:   true,
		Scope:    record.Scope,
		ClientID: record.ClientID,
		Sub:      record.UserID,
		Role:     record.Role,
		Exp:      record.AccessExpiresAt.Unix(),
		Iat:      record.CreatedAt.Unix(),
		Iss:      s.cfg.Issuer,
		Jti:      record.ID,
	}, nil
}

// Revoke drops an access token from cache and storage, and burns the value
// as a refresh token if that is what it was. Always succeeds for a validated
// client, per RFC 7009.
func (s *TokenIssuer) Revoke(ctx context.Context, tokenValue, clientID, clientSecret string) error {
	if _, err := s.clients.Validate(ctx, clientID, clientSecret); err != nil {
		return err
	}

	if s.store != nil {
		if err := s.store.Delete(ctx, tokenValue); err != nil {
			log.Warn().Err(err).Msg("Failed to evict token from cache")
		}
	}
	if err := s.tokens.DeleteByAccessToken(ctx, tokenValue); err != nil {
		log.Warn().Err(err).Msg("Failed to delete access token record")
	}
	if _, err := s.tokens.ConsumeRefreshToken(ctx, tokenValue); err == nil {
		log.Debug().Msg("Refresh token revoked")
	}
	return nil
}
