package mongodb

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"go.nexauth.dev/idp/domain"
	"go.nexauth.dev/idp/errors"
)

// TokenRepository implements domain.TokenRepository.
type TokenRepository struct {
	tokens *mongo.Collection
}

// NewTokenRepository creates the repository and ensures its indexes.
func NewTokenRepository(ctx context.Context, db *mongo.Database) (*TokenRepository, error) {
	repo := &TokenRepository{tokens: db.Collection(TokensCollection)}
	_, err := repo.tokens.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "refresh_token", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "access_token", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "expires_at", Value: 1}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create token indexes: %w", err)
	}
	return repo, nil
}

// StoreToken persists a freshly minted token pair record.
func (r *TokenRepository) StoreToken(ctx context.Context, token *domain.Token) error {
	if _, err := r.tokens.InsertOne(ctx, token); err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("refresh token already exists: %w", err)
		}
		log.Error().Err(err).Str("clientID", token.ClientID).Msg("Error storing token record")
		return fmt.Errorf("failed to store token record: %w", err)
	}
	return nil
}

// ConsumeRefreshToken removes and returns the record for refreshToken in one
// atomic operation. Concurrent refreshes of the same token race on the
// delete; the single winner gets the document, the rest get
// ErrRefreshTokenNotFound. The record is removed even when it turns out to
// be expired, so replay of a stale token stays impossible.
func (r *TokenRepository) ConsumeRefreshToken(ctx context.Context, refreshToken string) (*domain.Token, error) {
	var token domain.Token
	err := r.tokens.FindOneAndDelete(ctx, bson.M{"refresh_token": refreshToken}).Decode(&token)
	if err != nil {
		if stderrors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.ErrRefreshTokenNotFound
		}
		log.Error().Err(err).Msg("Error consuming refresh token")
		return nil, fmt.Errorf("failed to consume refresh token: %w", err)
	}
	return &token, nil
}

// GetByAccessToken retrieves the record for an access token that has not
// passed its own expiry, for introspection. expires_at is the refresh
// expiry and says nothing about the access token's liveness.
func (r *TokenRepository) GetByAccessToken(ctx context.Context, accessToken string) (*domain.Token, error) {
	var token domain.Token
	err := r.tokens.FindOne(ctx, bson.M{
		"access_token":      accessToken,
		"access_expires_at": bson.M{"$gt": time.Now().UTC()},
	}).Decode(&token)
	if err != nil {
		if stderrors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.ErrRefreshTokenNotFound
		}
		return nil, fmt.Errorf("failed to retrieve token record: %w", err)
	}
	return &token, nil
}

// DeleteByAccessToken removes the record holding accessToken, for revocation.
func (r *TokenRepository) DeleteByAccessToken(ctx context.Context, accessToken string) error {
	result, err := r.tokens.DeleteOne(ctx, bson.M{"access_token": accessToken})
	if err != nil {
		return fmt.Errorf("failed to delete token record: %w", err)
	}
	if result.DeletedCount == 0 {
		log.Debug().Msg("No token record found to revoke")
	}
	return nil
}

// DeleteExpiredTokens removes records past their refresh expiry.
func (r *TokenRepository) DeleteExpiredTokens(ctx context.Context) error {
	_, err := r.tokens.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lte": time.Now().UTC()}})
	return err
}
