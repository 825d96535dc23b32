//nolint:varnamelen
package echoapi

import (
	stderrors "errors"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"go.nexauth.dev/idp/domain"
	"go.nexauth.dev/idp/errors"
	"go.nexauth.dev/idp/services"
)

// OAuth2API holds the HTTP surface's dependencies.
type OAuth2API struct {
	issuer    *services.TokenIssuer
	validator *services.TokenValidator
	keys      *services.KeyManager
	clients   *services.ClientRegistry
	authn     *services.CredentialAuthenticator
	codes     *services.AuthCodeStore
	users     domain.UserRepository
	issuerURL string
	health    func(c echo.Context) error
}

// NewOAuth2API initializes the HTTP API. healthCheck may be nil; /health
// then reports healthy unconditionally.
func NewOAuth2API(
	issuer *services.TokenIssuer,
	validator *services.TokenValidator,
	keys *services.KeyManager,
	clients *services.ClientRegistry,
	authn *services.CredentialAuthenticator,
	codes *services.AuthCodeStore,
	users domain.UserRepository,
	issuerURL string,
	healthCheck func(c echo.Context) error,
) *OAuth2API {
	return &OAuth2API{
		issuer:    issuer,
		validator: validator,
		keys:      keys,
		clients:   clients,
		authn:     authn,
		codes:     codes,
		users:     users,
		issuerURL: issuerURL,
		health:    healthCheck,
	}
}

// RegisterRoutes registers all routes on the echo instance.
func (oa *OAuth2API) RegisterRoutes(e *echo.Echo) {
	e.POST("/token", oa.TokenHandler)
	e.GET("/authorize", oa.AuthorizeHandler)
	e.POST("/login", oa.LoginHandler)
	e.GET("/userinfo", oa.UserInfoHandler)
	e.POST("/introspect", oa.IntrospectHandler)
	e.POST("/revoke", oa.RevokeHandler)

	e.POST("/register", oa.RegisterUserHandler)
	e.POST("/clients", oa.RegisterClientHandler)

	e.GET("/.well-known/jwks.json", oa.JWKSHandler)
	e.GET("/.well-known/openid-configuration", oa.OpenIDConfigurationHandler)

	e.GET("/health", oa.HealthHandler)
}

// TokenHandler handles POST /token for the authorization_code and
// refresh_token grants. Parameters arrive form-encoded; client credentials
// may come in the form body or as HTTP basic auth.
func (oa *OAuth2API) TokenHandler(c echo.Context) error {
	grantType := c.FormValue("grant_type")
	clientID, clientSecret := clientCredentials(c)

	if grantType == "" {
		return writeError(c, http.StatusBadRequest, errors.CodeInvalidRequest, "Missing grant_type")
	}
	if clientID == "" || clientSecret == "" {
		return writeError(c, http.StatusUnauthorized, errors.CodeInvalidClient, "Missing client credentials")
	}

	ctx := c.Request().Context()

	switch grantType {
	case "authorization_code":
		code := c.FormValue("code")
		if code == "" {
			return writeError(c, http.StatusBadRequest, errors.CodeInvalidRequest, "Missing code")
		}
		pair, err := oa.issuer.IssueFromCode(ctx, code, clientID, clientSecret, c.FormValue("redirect_uri"))
		if err != nil {
			return oauthError(c, err)
		}
		return c.JSON(http.StatusOK, pair)

	case "refresh_token":
		refreshToken := c.FormValue("refresh_token")
		if refreshToken == "" {
			return writeError(c, http.StatusBadRequest, errors.CodeInvalidRequest, "Missing refresh_token")
		}
		pair, err := oa.issuer.Refresh(ctx, refreshToken, clientID, clientSecret)
		if err != nil {
			return oauthError(c, err)
		}
		return c.JSON(http.StatusOK, pair)

	default:
		return writeError(c, http.StatusBadRequest, errors.CodeUnsupportedGrantType,
			"the authorization grant type is not supported")
	}
}

// AuthorizeHandler validates the front-channel request and redirects the
// resource owner to the login step with the query carried along.
func (oa *OAuth2API) AuthorizeHandler(c echo.Context) error {
	clientID := c.QueryParam("client_id")
	redirectURI := c.QueryParam("redirect_uri")
	responseType := c.QueryParam("response_type")
	scope := c.QueryParam("scope")
	state := c.QueryParam("state")

	if responseType != "code" {
		return writeError(c, http.StatusBadRequest, errors.CodeInvalidRequest, "Invalid response_type")
	}

	ctx := c.Request().Context()

	if _, err := oa.clients.GetActiveClient(ctx, clientID); err != nil {
		return writeError(c, http.StatusBadRequest, errors.CodeInvalidClient, "Invalid client")
	}
	if err := oa.clients.CheckRedirect(ctx, clientID, redirectURI); err != nil {
		return writeError(c, http.StatusBadRequest, errors.CodeInvalidRequest, "Invalid redirect URI")
	}
	if _, err := oa.clients.ScopesAllowed(ctx, clientID, scope); err != nil {
		return writeError(c, http.StatusBadRequest, errors.CodeInvalidScope, "Invalid scope requested")
	}

	q := url.Values{}
	q.Set("client_id", clientID)
	q.Set("redirect_uri", redirectURI)
	q.Set("scope", scope)
	q.Set("state", state)

	return c.Redirect(http.StatusFound, "/login?"+q.Encode())
}

// LoginHandler authenticates the resource owner, issues an authorization
// code, and redirects back to the client with code and state.
func (oa *OAuth2API) LoginHandler(c echo.Context) error {
	username := c.FormValue("username")
	password := c.FormValue("password")
	clientID := c.FormValue("client_id")
	redirectURI := c.FormValue("redirect_uri")
	scope := c.FormValue("scope")
	state := c.FormValue("state")

	ctx := c.Request().Context()

	client, err := oa.clients.GetActiveClient(ctx, clientID)
	if err != nil {
		return writeError(c, http.StatusBadRequest, errors.CodeInvalidClient, "Invalid client")
	}
	if err := oa.clients.CheckRedirect(ctx, clientID, redirectURI); err != nil {
		return writeError(c, http.StatusBadRequest, errors.CodeInvalidRequest, "Invalid redirect URI")
	}

	user, err := oa.authn.Authenticate(ctx, username, password)
	if err != nil {
		return writeError(c, http.StatusUnauthorized, errors.CodeAccessDenied, "Invalid credentials")
	}

	allowedScope, err := oa.clients.ScopesAllowed(ctx, client.ID, scope)
	if err != nil {
		return writeError(c, http.StatusBadRequest, errors.CodeInvalidScope, "Invalid scope requested")
	}

	code, err := oa.codes.Issue(ctx, client.ID, user.ID, allowedScope)
	if err != nil {
		log.Error().Err(err).Msg("Failed to issue authorization code")
		return writeError(c, http.StatusInternalServerError, errors.CodeServerError, "Failed to issue authorization code")
	}

	q := url.Values{}
	q.Set("code", code)
	if state != "" {
		q.Set("state", state)
	}
	return c.Redirect(http.StatusFound, redirectURI+"?"+q.Encode())
}

// UserInfoHandler serves the subject claims behind a bearer token.
func (oa *OAuth2API) UserInfoHandler(c echo.Context) error {
	tokenValue, ok := bearerToken(c)
	if !ok {
		return writeError(c, http.StatusUnauthorized, errors.CodeInvalidRequest, "Missing bearer token")
	}

	ctx := c.Request().Context()

	claims, err := oa.validator.Validate(ctx, tokenValue)
	if err != nil {
		if stderrors.Is(err, errors.ErrKeyUnavailable) {
			log.Error().Err(err).Msg("Verification keys unavailable")
			return writeError(c, http.StatusServiceUnavailable, errors.CodeServerError, "Verification keys unavailable")
		}
		return writeError(c, http.StatusUnauthorized, errors.CodeAccessDenied, "Invalid token")
	}

	user, err := oa.users.GetUserByID(ctx, claims.Subject)
	if err != nil {
		return writeError(c, http.StatusUnauthorized, errors.CodeAccessDenied, "Invalid token")
	}

	return c.JSON(http.StatusOK, &UserInfoResponse{
		Sub:       user.ID,
		Username:  user.Username,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Role:      string(user.Role),
		Status:    string(user.Status),
	})
}

// IntrospectHandler implements RFC 7662 token introspection for
// authenticated clients.
func (oa *OAuth2API) IntrospectHandler(c echo.Context) error {
	tokenValue := c.FormValue("token")
	clientID, clientSecret := clientCredentials(c)

	if tokenValue == "" {
		return writeError(c, http.StatusBadRequest, errors.CodeInvalidRequest, "Missing token")
	}

	info, err := oa.issuer.Introspect(c.Request().Context(), tokenValue, clientID, clientSecret)
	if err != nil {
		return oauthError(c, err)
	}
	return c.JSON(http.StatusOK, info)
}

// RevokeHandler implements RFC 7009 revocation. Always 200 for an
// authenticated client, whatever the token was.
func (oa *OAuth2API) RevokeHandler(c echo.Context) error {
	tokenValue := c.FormValue("token")
	clientID, clientSecret := clientCredentials(c)

	if tokenValue == "" {
		return writeError(c, http.StatusBadRequest, errors.CodeInvalidRequest, "Missing token")
	}

	if err := oa.issuer.Revoke(c.Request().Context(), tokenValue, clientID, clientSecret); err != nil {
		return oauthError(c, err)
	}
	return c.NoContent(http.StatusOK)
}

// HealthHandler reports process and backing-store health.
func (oa *OAuth2API) HealthHandler(c echo.Context) error {
	if oa.health != nil {
		if err := oa.health(c); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}

// clientCredentials pulls client_id/client_secret from basic auth first,
// then the form body.
func clientCredentials(c echo.Context) (string, string) {
	if id, secret, ok := c.Request().BasicAuth(); ok {
		return id, secret
	}
	return c.FormValue("client_id"), c.FormValue("client_secret")
}

// bearerToken extracts the token from the Authorization header.
func bearerToken(c echo.Context) (string, bool) {
	const prefix = "Bearer "
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return "", false
	}
	return header[len(prefix):], true
}

// writeError renders the error envelope.
func writeError(c echo.Context, status int, code, message string) error {
	return c.JSON(status, NewErrorEnvelope(code, status, message))
}

// oauthError maps service sentinels to wire errors.
func oauthError(c echo.Context, err error) error {
	switch {
	case stderrors.Is(err, errors.ErrInvalidClient):
		return writeError(c, http.StatusUnauthorized, errors.CodeInvalidClient, "Invalid client credentials")
	case stderrors.Is(err, errors.ErrInvalidGrant):
		return writeError(c, http.StatusBadRequest, errors.CodeInvalidGrant, "Invalid or expired grant")
	case stderrors.Is(err, errors.ErrInvalidRedirect):
		return writeError(c, http.StatusBadRequest, errors.CodeInvalidRequest, "Invalid redirect URI")
	case stderrors.Is(err, errors.ErrScopeDenied):
		return writeError(c, http.StatusBadRequest, errors.CodeInvalidScope, "Requested scope not allowed")
	case stderrors.Is(err, errors.ErrAuthenticationFailed):
		return writeError(c, http.StatusUnauthorized, errors.CodeAccessDenied, "Invalid credentials")
	default:
		log.Error().Err(err).Msg("Unhandled service error")
		return writeError(c, http.StatusInternalServerError, errors.CodeServerError, "Internal server error")
	}
}
