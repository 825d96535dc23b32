package mongodb

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"go.nexauth.dev/idp/domain"
	"go.nexauth.dev/idp/errors"
)

// ClientRepository implements domain.ClientRepository.
type ClientRepository struct {
	clients *mongo.Collection
}

// NewClientRepository creates the repository and ensures the client_id index.
func NewClientRepository(ctx context.Context, db *mongo.Database) (*ClientRepository, error) {
	repo := &ClientRepository{clients: db.Collection(ClientsCollection)}
	_, err := repo.clients.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "client_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client indexes: %w", err)
	}
	return repo, nil
}

// CreateClient stores a new OAuth2 client.
func (r *ClientRepository) CreateClient(ctx context.Context, c *domain.Client) error {
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	if _, err := r.clients.InsertOne(ctx, c); err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("client %s already exists: %w", c.ID, err)
		}
		return fmt.Errorf("failed to create client: %w", err)
	}
	return nil
}

// GetClient retrieves a client by client_id.
func (r *ClientRepository) GetClient(ctx context.Context, clientID string) (*domain.Client, error) {
	var c domain.Client
	err := r.clients.FindOne(ctx, bson.M{"client_id": clientID}).Decode(&c)
	if err != nil {
		if stderrors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.ErrClientNotFound
		}
		return nil, fmt.Errorf("failed to retrieve client: %w", err)
	}
	return &c, nil
}

// UpdateClient replaces the stored client document.
func (r *ClientRepository) UpdateClient(ctx context.Context, c *domain.Client) error {
	c.UpdatedAt = time.Now().UTC()
	result, err := r.clients.ReplaceOne(ctx, bson.M{"client_id": c.ID}, c)
	if err != nil {
		return fmt.Errorf("failed to update client: %w", err)
	}
	if result.MatchedCount == 0 {
		return errors.ErrClientNotFound
	}
	return nil
}

// DeactivateClient flips is_active off, preserving the audit trail.
func (r *ClientRepository) DeactivateClient(ctx context.Context, clientID string) error {
	result, err := r.clients.UpdateOne(ctx,
		bson.M{"client_id": clientID},
		bson.M{"$set": bson.M{"is_active": false, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("failed to deactivate client: %w", err)
	}
	if result.MatchedCount == 0 {
		return errors.ErrClientNotFound
	}
	return nil
}
