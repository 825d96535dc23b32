package echoapi

import (
	stderrors "errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"go.nexauth.dev/idp/domain"
	"go.nexauth.dev/idp/errors"
)

// RegisterUserHandler handles POST /register.
func (oa *OAuth2API) RegisterUserHandler(c echo.Context) error {
	req := new(UserRegisterRequest)
	if err := c.Bind(req); err != nil {
		return writeError(c, http.StatusBadRequest, errors.CodeInvalidRequest, "Malformed request body")
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return writeError(c, http.StatusBadRequest, errors.CodeInvalidRequest,
			"username, email and password are required")
	}

	role := domain.UserRole(req.Role)
	if req.Role != "" && !role.Valid() {
		return writeError(c, http.StatusBadRequest, errors.CodeInvalidRequest, "Unknown role")
	}

	user, err := oa.authn.Register(c.Request().Context(), req.Username, req.Email, req.Password,
		req.FirstName, req.LastName, role)
	if err != nil {
		if stderrors.Is(err, errors.ErrDuplicateUser) {
			return writeError(c, http.StatusBadRequest, errors.CodeInvalidRequest,
				"Username or email already exists")
		}
		log.Error().Err(err).Msg("Failed to register user")
		return writeError(c, http.StatusInternalServerError, errors.CodeServerError, "Failed to register user")
	}

	return c.JSON(http.StatusCreated, newUserResponse(user))
}

// RegisterClientHandler handles POST /clients. The generated secret is
// returned in this response and nowhere else.
func (oa *OAuth2API) RegisterClientHandler(c echo.Context) error {
	req := new(ClientRegisterRequest)
	if err := c.Bind(req); err != nil {
		return writeError(c, http.StatusBadRequest, errors.CodeInvalidRequest, "Malformed request body")
	}
	if req.ClientName == "" || len(req.RedirectURIs) == 0 {
		return writeError(c, http.StatusBadRequest, errors.CodeInvalidRequest,
			"client_name and redirect_uris are required")
	}

	client, err := oa.clients.Register(c.Request().Context(), req.ClientName, req.RedirectURIs,
		req.AllowedScopes, domain.ClientType(req.ClientType))
	if err != nil {
		log.Error().Err(err).Msg("Failed to register client")
		return writeError(c, http.StatusInternalServerError, errors.CodeServerError, "Failed to register client")
	}

	return c.JSON(http.StatusCreated, &ClientRegisterResponse{
		ClientID:     client.ID,
		ClientSecret: client.Secret,
		ClientName:   client.Name,
		RedirectURIs: client.RedirectURIs,
	})
}
