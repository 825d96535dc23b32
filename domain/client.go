package domain

import (
	"context"
	"time"
)

// ClientType defines the type of client application.
type ClientType string

const (
	// ClientTypeConfidential clients can securely store secrets.
	ClientTypeConfidential ClientType = "confidential"
	// ClientTypePublic clients cannot (mobile apps, SPAs).
	ClientTypePublic ClientType = "public"
)

// Client represents a registered OAuth2 client application. Clients are
// deactivated rather than deleted so issued-token history stays auditable.
type Client struct {
	ID           string     `bson:"client_id"      json:"client_id"`
	Secret       string     `bson:"client_secret"  json:"-"`
	Name         string     `bson:"client_name"    json:"client_name"`
	Type         ClientType `bson:"client_type"    json:"client_type"`
	RedirectURIs []string   `bson:"redirect_uris"  json:"redirect_uris"`
	Scopes       []string   `bson:"allowed_scopes" json:"allowed_scopes"`
	IsActive     bool       `bson:"is_active"      json:"is_active"`
	CreatedAt    time.Time  `bson:"created_at"     json:"created_at"`
	UpdatedAt    time.Time  `bson:"updated_at"     json:"updated_at"`
}

// HasRedirectURI reports whether uri is an exact member of the registered
// redirect URI set. No prefix or wildcard matching.
func (c *Client) HasRedirectURI(uri string) bool {
	for _, registered := range c.RedirectURIs {
		if registered == uri {
			return true
		}
	}
	return false
}

// HasScope reports whether the client was granted the given scope.
func (c *Client) HasScope(scope string) bool {
	for _, allowed := range c.Scopes {
		if allowed == scope {
			return true
		}
	}
	return false
}

// ClientRepository defines the storage contract for OAuth2 clients.
type ClientRepository interface {
	CreateClient(ctx context.Context, client *Client) error
	GetClient(ctx context.Context, clientID string) (*Client, error)
	UpdateClient(ctx context.Context, client *Client) error
	// DeactivateClient flips is_active off. Clients are never hard-deleted.
	DeactivateClient(ctx context.Context, clientID string) error
}
