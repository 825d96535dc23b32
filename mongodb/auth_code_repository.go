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

// AuthCodeRepository implements domain.AuthCodeRepository.
type AuthCodeRepository struct {
	authCodes *mongo.Collection
}

// NewAuthCodeRepository creates the repository and ensures the code index.
func NewAuthCodeRepository(ctx context.Context, db *mongo.Database) (*AuthCodeRepository, error) {
	repo := &AuthCodeRepository{authCodes: db.Collection(CodesCollection)}
	_, err := repo.authCodes.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "code", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "expires_at", Value: 1}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create auth code indexes: %w", err)
	}
	return repo, nil
}

// SaveAuthCode stores a freshly issued authorization code.
func (r *AuthCodeRepository) SaveAuthCode(ctx context.Context, authCode *domain.AuthCode) error {
	if authCode.Code == "" {
		return stderrors.New("auth code value cannot be empty")
	}
	authCode.CreatedAt = time.Now().UTC()

	if _, err := r.authCodes.InsertOne(ctx, authCode); err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("authorization code already exists: %w", err)
		}
		log.Error().Err(err).Str("clientID", authCode.ClientID).Msg("Error saving authorization code")
		return fmt.Errorf("failed to save authorization code: %w", err)
	}

	log.Debug().Str("clientID", authCode.ClientID).Str("userID", authCode.UserID).
		Msg("Authorization code saved")
	return nil
}

// ConsumeAuthCode flips used from false to true and returns the payload in a
// single conditional update. A race on the same code has exactly one winner;
// the update filter makes the losers miss. The used flag is never reset, even
// when the rest of the exchange fails afterwards.
func (r *AuthCodeRepository) ConsumeAuthCode(ctx context.Context, codeValue string) (*domain.AuthCode, error) {
	now := time.Now().UTC()
	filter := bson.M{
		"code":       codeValue,
		"used":       false,
		"expires_at": bson.M{"$gt": now},
	}
	update := bson.M{"$set": bson.M{"used": true}}

	var authCode domain.AuthCode
	err := r.authCodes.FindOneAndUpdate(ctx, filter, update).Decode(&authCode)
	if err == nil {
		return &authCode, nil
	}
	if !stderrors.Is(err, mongo.ErrNoDocuments) {
		log.Error().Err(err).Msg("Error consuming authorization code")
		return nil, fmt.Errorf("failed to consume authorization code: %w", err)
	}

	// The conditional update missed; classify why for the error taxonomy.
	var existing domain.AuthCode
	err = r.authCodes.FindOne(ctx, bson.M{"code": codeValue}).Decode(&existing)
	switch {
	case stderrors.Is(err, mongo.ErrNoDocuments):
		return nil, errors.ErrCodeNotFound
	case err != nil:
		return nil, fmt.Errorf("failed to classify authorization code: %w", err)
	case existing.Used:
		return nil, errors.ErrCodeAlreadyUsed
	default:
		return nil, errors.ErrCodeExpired
	}
}

// DeleteExpiredAuthCodes removes codes past their expiry.
func (r *AuthCodeRepository) DeleteExpiredAuthCodes(ctx context.Context) error {
	_, err := r.authCodes.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lte": time.Now().UTC()}})
	return err
}
