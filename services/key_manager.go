package services

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	stderrors "errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"go.nexauth.dev/idp/domain"
	"go.nexauth.dev/idp/errors"
)

const rsaKeyBits = 2048

// KeyManager owns the process-wide RSA signing key pair. The private key is
// loaded once at startup and never leaves the process; only the public half
// is exported, raw or as a JWKS document.
type KeyManager struct {
	keyID      string
	privateKey *rsa.PrivateKey
}

// LoadOrGenerateKeyManager loads the persisted key pair, generating and
// persisting a fresh one on first boot. The repository's unique-insert
// semantics arbitrate concurrent first boots: the losing process reloads
// whatever the winner persisted. Any failure here is ErrKeyUnavailable and
// the caller must not serve traffic.
func LoadOrGenerateKeyManager(ctx context.Context, repo domain.SigningKeyRepository) (*KeyManager, error) {
	record, err := repo.GetSigningKey(ctx)
	if stderrors.Is(err, errors.ErrKeyUnavailable) {
		record, err = generateAndPersist(ctx, repo)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrKeyUnavailable, err)
	}

	privateKey, err := parseRSAPrivateKey(record.PrivatePEM)
	if err != nil {
		return nil, fmt.Errorf("%w: corrupt private key material: %w", errors.ErrKeyUnavailable, err)
	}

	return &KeyManager{keyID: record.KeyID, privateKey: privateKey}, nil
}

func generateAndPersist(ctx context.Context, repo domain.SigningKeyRepository) (*domain.SigningKey, error) {
	log.Info().Msg("No signing key persisted, generating a new RSA key pair")

	privateKey, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate RSA key: %w", err)
	}

	privatePEM, err := encodePrivateKeyPEM(privateKey)
	if err != nil {
		return nil, err
	}
	publicPEM, err := encodePublicKeyPEM(&privateKey.PublicKey)
	if err != nil {
		return nil, err
	}

	record := &domain.SigningKey{
		KeyID:      uuid.NewString(),
		PrivatePEM: privatePEM,
		PublicPEM:  publicPEM,
		CreatedAt:  time.Now().UTC(),
	}

	err = repo.InsertSigningKey(ctx, record)
	if stderrors.Is(err, errors.ErrSigningKeyExists) {
		// Another process won the first-boot race; use its key.
		log.Info().Msg("Signing key generated concurrently by another process, reloading")
		return repo.GetSigningKey(ctx)
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// SigningKey returns the private key for JWT signing.
func (m *KeyManager) SigningKey() *rsa.PrivateKey {
	return m.privateKey
}

// VerificationKey returns the public half of the signing key.
func (m *KeyManager) VerificationKey() *rsa.PublicKey {
	return &m.privateKey.PublicKey
}

// KeyID returns the kid carried in token headers and the JWKS document.
func (m *KeyManager) KeyID() string {
	return m.keyID
}

// JWKS exports the public key as a JSON Web Key Set.
func (m *KeyManager) JWKS() JSONWebKeySet {
	publicKey := m.VerificationKey()

	n := base64.RawURLEncoding.EncodeToString(publicKey.N.Bytes())
	e := base64.RawURLEncoding.EncodeToString(big.NewInt(int64(publicKey.E)).Bytes())

	return JSONWebKeySet{
		Keys: []JSONWebKey{
			{
				Kid: m.keyID,
				Kty: "RSA",
				Alg: "RS256",
				Use: "sig",
				N:   n,
				E:   e,
			},
		},
	}
}

// PublicKeyFor implements PublicKeyProvider against the local key pair.
// kid is accepted loosely: tokens signed before a key rotation carry the old
// kid and fail signature verification anyway.
func (m *KeyManager) PublicKeyFor(_ context.Context, _ string) (*rsa.PublicKey, error) {
	return m.VerificationKey(), nil
}

// Invalidate is a no-op: the local key pair is process-scoped and never
// goes stale.
func (m *KeyManager) Invalidate() {}

func encodePrivateKeyPEM(key *rsa.PrivateKey) (string, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return "", fmt.Errorf("failed to marshal private key: %w", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})), nil
}

func encodePublicKeyPEM(key *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(key)
	if err != nil {
		return "", fmt.Errorf("failed to marshal public key: %w", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})), nil
}

func parseRSAPrivateKey(pemData string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, stderrors.New("failed to decode PEM block")
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		// Older dumps may be PKCS#1.
		key, err1 := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err1 != nil {
			return nil, err
		}
		return key, nil
	}

	rsaKey, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, stderrors.New("key is not an RSA private key")
	}
	return rsaKey, nil
}
