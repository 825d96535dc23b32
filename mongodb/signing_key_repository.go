package mongodb

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"go.nexauth.dev/idp/domain"
	"go.nexauth.dev/idp/errors"
)

// SigningKeyRepository implements domain.SigningKeyRepository. The signing
// key lives in a single document with a fixed _id; Mongo's unique _id index
// is the first-boot generation guard.
type SigningKeyRepository struct {
	keys *mongo.Collection
}

// NewSigningKeyRepository creates the repository.
func NewSigningKeyRepository(db *mongo.Database) *SigningKeyRepository {
	return &SigningKeyRepository{keys: db.Collection(SigningKeysCollection)}
}

// GetSigningKey loads the persisted key pair, or ErrKeyUnavailable when none
// has been generated yet.
func (r *SigningKeyRepository) GetSigningKey(ctx context.Context) (*domain.SigningKey, error) {
	var key domain.SigningKey
	err := r.keys.FindOne(ctx, bson.M{"_id": domain.SigningKeyID}).Decode(&key)
	if err != nil {
		if stderrors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.ErrKeyUnavailable
		}
		return nil, fmt.Errorf("failed to load signing key: %w", err)
	}
	return &key, nil
}

// InsertSigningKey stores a freshly generated key pair. A duplicate insert
// means another process won the race; the caller reloads.
func (r *SigningKeyRepository) InsertSigningKey(ctx context.Context, key *domain.SigningKey) error {
	key.ID = domain.SigningKeyID
	if key.CreatedAt.IsZero() {
		key.CreatedAt = time.Now().UTC()
	}
	if _, err := r.keys.InsertOne(ctx, key); err != nil {
		if isDuplicateKey(err) {
			return errors.ErrSigningKeyExists
		}
		return fmt.Errorf("failed to persist signing key: %w", err)
	}
	return nil
}
