package services

import (
	"context"
	"crypto/subtle"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"go.nexauth.dev/idp/domain"
	"go.nexauth.dev/idp/errors"
)

const (
	clientIDPrefix     = "client_"
	clientIDBytes      = 16
	clientSecretBytes  = 32
	defaultClientScope = "openid profile email"
)

// ClientRegistry validates client identity, secrets, redirect URIs and scope
// grants. In strict mode a request naming an unknown scope fails instead of
// being silently narrowed.
type ClientRegistry struct {
	repo         domain.ClientRepository
	strictScopes bool
}

// NewClientRegistry creates a registry over the given repository.
func NewClientRegistry(repo domain.ClientRepository, strictScopes bool) *ClientRegistry {
	return &ClientRegistry{repo: repo, strictScopes: strictScopes}
}

// Register creates a new client with a generated client_id and secret. The
// plaintext secret is returned exactly once.
func (r *ClientRegistry) Register(ctx context.Context, name string, redirectURIs []string,
	scopes []string, clientType domain.ClientType,
) (*domain.Client, error) {
	if name == "" {
		return nil, stderrors.New("client name is required")
	}
	if len(redirectURIs) == 0 {
		return nil, stderrors.New("at least one redirect uri is required")
	}
	if clientType == "" {
		clientType = domain.ClientTypeConfidential
	}
	if len(scopes) == 0 {
		scopes = strings.Fields(defaultClientScope)
	}

	idSuffix, err := randomToken(clientIDBytes)
	if err != nil {
		return nil, err
	}
	secret, err := randomToken(clientSecretBytes)
	if err != nil {
		return nil, err
	}

	client := &domain.Client{
		ID:           clientIDPrefix + idSuffix,
		Secret:       secret,
		Name:         name,
		Type:         clientType,
		RedirectURIs: redirectURIs,
		Scopes:       scopes,
		IsActive:     true,
	}
	if err := r.repo.CreateClient(ctx, client); err != nil {
		return nil, err
	}

	log.Info().Str("client_id", client.ID).Str("name", name).Msg("Client registered")
	return client, nil
}

// Validate returns the client only when it exists, is active, and the secret
// matches in constant time. No partial credit for a wrong secret.
func (r *ClientRegistry) Validate(ctx context.Context, clientID, clientSecret string) (*domain.Client, error) {
	client, err := r.repo.GetClient(ctx, clientID)
	if err != nil {
		return nil, errors.ErrInvalidClient
	}
	if !client.IsActive {
		return nil, errors.ErrInvalidClient
	}
	if subtle.ConstantTimeCompare([]byte(client.Secret), []byte(clientSecret)) != 1 {
		return nil, errors.ErrInvalidClient
	}
	return client, nil
}

// GetActiveClient returns the client if it exists and is active, without
// checking the secret. Used by flows where the client is not authenticated
// (authorize front-channel, trusted first-party login).
func (r *ClientRegistry) GetActiveClient(ctx context.Context, clientID string) (*domain.Client, error) {
	client, err := r.repo.GetClient(ctx, clientID)
	if err != nil {
		return nil, errors.ErrInvalidClient
	}
	if !client.IsActive {
		return nil, errors.ErrInvalidClient
	}
	return client, nil
}

// CheckRedirect verifies exact membership of redirectURI in the client's
// registered set. No prefix or wildcard matching.
func (r *ClientRegistry) CheckRedirect(ctx context.Context, clientID, redirectURI string) error {
	client, err := r.GetActiveClient(ctx, clientID)
	if err != nil {
		return err
	}
	if !client.HasRedirectURI(redirectURI) {
		return errors.ErrInvalidRedirect
	}
	return nil
}

// ScopesAllowed narrows a space-delimited scope request to the subset the
// client holds. Unknown scopes are dropped, or rejected in strict mode.
func (r *ClientRegistry) ScopesAllowed(ctx context.Context, clientID, requestedScope string) (string, error) {
	client, err := r.GetActiveClient(ctx, clientID)
	if err != nil {
		return "", err
	}

	requested := strings.Fields(requestedScope)
	if len(requested) == 0 {
		// No scope requested means the client's full registered grant.
		return strings.Join(client.Scopes, " "), nil
	}

	allowed := make([]string, 0, len(requested))
	for _, scope := range requested {
		if client.HasScope(scope) {
			allowed = append(allowed, scope)
			continue
		}
		if r.strictScopes {
			return "", fmt.Errorf("%w: %s", errors.ErrScopeDenied, scope)
		}
	}
	return strings.Join(allowed, " "), nil
}

// Deactivate disables a client. Records are kept for the audit trail.
func (r *ClientRegistry) Deactivate(ctx context.Context, clientID string) error {
	return r.repo.DeactivateClient(ctx, clientID)
}
