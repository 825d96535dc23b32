package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// JWKSHandler serves the public verification keys. Unauthenticated; never
// contains private key material.
func (oa *OAuth2API) JWKSHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, oa.keys.JWKS())
}

// OpenIDConfigurationHandler serves the discovery document.
func (oa *OAuth2API) OpenIDConfigurationHandler(c echo.Context) error {
	base := oa.issuerURL
	return c.JSON(http.StatusOK, &OpenIDConfiguration{
		Issuer:                           base,
		AuthorizationEndpoint:            base + "/authorize",
		TokenEndpoint:                    base + "/token",
		UserInfoEndpoint:                 base + "/userinfo",
		JWKSURI:                          base + "/.well-known/jwks.json",
		IntrospectionEndpoint:            base + "/introspect",
		RevocationEndpoint:               base + "/revoke",
		ResponseTypesSupported:           []string{"code"},
		GrantTypesSupported:              []string{"authorization_code", "refresh_token"},
		SubjectTypesSupported:            []string{"public"},
		IDTokenSigningAlgValuesSupported: []string{"RS256"},
		ScopesSupported:                  []string{"openid", "profile", "email"},
		TokenEndpointAuthMethods:         []string{"client_secret_basic", "client_secret_post"},
		ClaimsSupported: []string{
			"sub", "iss", "iat", "exp", "aud", "client_id", "scope", "role",
		},
	})
}
