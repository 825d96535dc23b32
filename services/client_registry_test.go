package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.nexauth.dev/idp/domain"
	"go.nexauth.dev/idp/errors"
)

func seedRegistry(t *testing.T, strict bool) (*ClientRegistry, *domain.Client) {
	t.Helper()
	repo := newFakeClientRepo()
	registry := NewClientRegistry(repo, strict)

	client := &domain.Client{
		ID:           "client-xyz",
		Secret:       "topsecret",
		Name:         "App",
		Type:         domain.ClientTypeConfidential,
		RedirectURIs: []string{"https://app.example.com/callback", "https://app.example.com/alt"},
		Scopes:       []string{"openid", "profile"},
		IsActive:     true,
	}
	require.NoError(t, repo.CreateClient(context.Background(), client))
	return registry, client
}

func TestClientRegistry_Register(t *testing.T) {
	registry := NewClientRegistry(newFakeClientRepo(), false)

	client, err := registry.Register(context.Background(), "My App",
		[]string{"https://my.example.com/cb"}, nil, "")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(client.ID, "client_"))
	assert.NotEmpty(t, client.Secret)
	assert.True(t, client.IsActive)
	assert.Equal(t, domain.ClientTypeConfidential, client.Type)
	assert.Equal(t, []string{"openid", "profile", "email"}, client.Scopes)
}

func TestClientRegistry_Validate(t *testing.T) {
	ctx := context.Background()
	registry, client := seedRegistry(t, false)

	got, err := registry.Validate(ctx, client.ID, client.Secret)
	require.NoError(t, err)
	assert.Equal(t, client.ID, got.ID)

	_, err = registry.Validate(ctx, client.ID, "wrong")
	assert.ErrorIs(t, err, errors.ErrInvalidClient)

	_, err = registry.Validate(ctx, "nope", client.Secret)
	assert.ErrorIs(t, err, errors.ErrInvalidClient)
}

func TestClientRegistry_ValidateInactiveClient(t *testing.T) {
	ctx := context.Background()
	registry, client := seedRegistry(t, false)

	require.NoError(t, registry.Deactivate(ctx, client.ID))

	_, err := registry.Validate(ctx, client.ID, client.Secret)
	assert.ErrorIs(t, err, errors.ErrInvalidClient)
}

func TestClientRegistry_CheckRedirectExactMatch(t *testing.T) {
	ctx := context.Background()
	registry, client := seedRegistry(t, false)

	assert.NoError(t, registry.CheckRedirect(ctx, client.ID, "https://app.example.com/callback"))
	assert.NoError(t, registry.CheckRedirect(ctx, client.ID, "https://app.example.com/alt"))

	// No prefix, suffix, or scheme leniency.
	for _, uri := range []string{
		"https://app.example.com/callback/extra",
		"https://app.example.com",
		"http://app.example.com/callback",
		"https://app.example.com/callback?x=1",
		"",
	} {
		err := registry.CheckRedirect(ctx, client.ID, uri)
		assert.ErrorIs(t, err, errors.ErrInvalidRedirect, "uri %q", uri)
	}
}

func TestClientRegistry_ScopesNarrowSilently(t *testing.T) {
	ctx := context.Background()
	registry, client := seedRegistry(t, false)

	scope, err := registry.ScopesAllowed(ctx, client.ID, "openid profile email admin")
	require.NoError(t, err)
	assert.Equal(t, "openid profile", scope)

	// Empty request falls back to the client's full grant.
	scope, err = registry.ScopesAllowed(ctx, client.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "openid profile", scope)
}

func TestClientRegistry_StrictScopesReject(t *testing.T) {
	ctx := context.Background()
	registry, client := seedRegistry(t, true)

	_, err := registry.ScopesAllowed(ctx, client.ID, "openid admin")
	assert.ErrorIs(t, err, errors.ErrScopeDenied)

	scope, err := registry.ScopesAllowed(ctx, client.ID, "openid")
	require.NoError(t, err)
	assert.Equal(t, "openid", scope)
}
