package echoapi

import "go.nexauth.dev/idp/domain"

// ErrorMessage is one entry of the error envelope's messages list.
type ErrorMessage struct {
	Message string `json:"message"`
}

// ErrorEnvelope is the wire shape of every non-2xx response.
type ErrorEnvelope struct {
	Error      string         `json:"error"`
	StatusCode int            `json:"status_code"`
	Messages   []ErrorMessage `json:"messages"`
}

// NewErrorEnvelope builds an envelope with a single message.
func NewErrorEnvelope(code string, status int, message string) *ErrorEnvelope {
	return &ErrorEnvelope{
		Error:      code,
		StatusCode: status,
		Messages:   []ErrorMessage{{Message: message}},
	}
}

// UserRegisterRequest is the payload of POST /register.
type UserRegisterRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
}

// UserResponse is the public projection of a user record.
type UserResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Role      string `json:"role"`
	Status    string `json:"status"`
}

func newUserResponse(u *domain.User) *UserResponse {
	return &UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      string(u.Role),
		Status:    string(u.Status),
	}
}

// ClientRegisterRequest is the payload of POST /clients.
type ClientRegisterRequest struct {
	ClientName    string   `json:"client_name"`
	RedirectURIs  []string `json:"redirect_uris"`
	AllowedScopes []string `json:"allowed_scopes"`
	ClientType    string   `json:"client_type"`
}

// ClientRegisterResponse returns the generated credentials. The secret
// appears here exactly once and is never retrievable again.
type ClientRegisterResponse struct {
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	ClientName   string   `json:"client_name"`
	RedirectURIs []string `json:"redirect_uris"`
}

// UserInfoResponse is the GET /userinfo claim set.
type UserInfoResponse struct {
	Sub       string `json:"sub"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Role      string `json:"role"`
	Status    string `json:"status"`
}

// OpenIDConfiguration is the discovery document served at
// /.well-known/openid-configuration.
type OpenIDConfiguration struct {
	Issuer                           string   `json:"issuer"`
	AuthorizationEndpoint            string   `json:"authorization_endpoint"`
	TokenEndpoint                    string   `json:"token_endpoint"`
	UserInfoEndpoint                 string   `json:"userinfo_endpoint"`
	JWKSURI                          string   `json:"jwks_uri"`
	IntrospectionEndpoint            string   `json:"introspection_endpoint"`
	RevocationEndpoint               string   `json:"revocation_endpoint"`
	ResponseTypesSupported           []string `json:"response_types_supported"`
	GrantTypesSupported              []string `json:"grant_types_supported"`
	SubjectTypesSupported            []string `json:"subject_types_supported"`
	IDTokenSigningAlgValuesSupported []string `json:"id_token_signing_alg_values_supported"`
	ScopesSupported                  []string `json:"scopes_supported"`
	TokenEndpointAuthMethods         []string `json:"token_endpoint_auth_methods_supported"`
	ClaimsSupported                  []string `json:"claims_supported"`
}
