package domain

import (
	"context"
	"time"
)

// SigningKeyID is the fixed identity of the process-wide signing key record.
// A unique index on _id makes concurrent first-boot generation race-free:
// one insert wins, the others reload.
const SigningKeyID = "current"

// SigningKey holds the PEM-encoded RSA key pair used to sign access tokens.
// The private PEM never leaves the issuer process; only the public half is
// exported (raw or as JWKS).
type SigningKey struct {
	ID         string    `bson:"_id"         json:"id"`
	KeyID      string    `bson:"key_id"      json:"key_id"`
	PrivatePEM string    `bson:"private_pem" json:"-"`
	PublicPEM  string    `bson:"public_pem"  json:"public_pem"`
	CreatedAt  time.Time `bson:"created_at"  json:"created_at"`
}

// SigningKeyRepository persists the signing key pair.
type SigningKeyRepository interface {
	GetSigningKey(ctx context.Context) (*SigningKey, error)
	// InsertSigningKey stores a freshly generated key pair. It fails with
	// ErrSigningKeyExists when another process won the first-boot race.
	InsertSigningKey(ctx context.Context, key *SigningKey) error
}
