package errors

import (
	"errors"
	"fmt"
)

// Component-level sentinels. Services return these unchanged; the HTTP
// boundary maps them to transport status codes.
var (
	// ErrInvalidClient covers unknown, inactive, or wrongly authenticated
	// clients. No partial credit for a correct client_id with a bad secret.
	ErrInvalidClient = errors.New("invalid client credentials")
	// ErrInvalidRedirect means the redirect URI is not an exact member of
	// the client's registered set.
	ErrInvalidRedirect = errors.New("redirect uri not registered for client")
	// ErrInvalidGrant covers authorization codes and refresh tokens that
	// are missing, expired, or already used.
	ErrInvalidGrant = errors.New("invalid grant")
	// ErrCodeAlreadyUsed is the losing side of a concurrent code exchange.
	ErrCodeAlreadyUsed = fmt.Errorf("%w: authorization code already used", ErrInvalidGrant)
	// ErrCodeExpired marks a code past its expiry, used or not.
	ErrCodeExpired = fmt.Errorf("%w: authorization code expired", ErrInvalidGrant)
	// ErrCodeNotFound marks an unknown authorization code.
	ErrCodeNotFound = fmt.Errorf("%w: authorization code not found", ErrInvalidGrant)
	// ErrRefreshTokenNotFound marks an unknown or already rotated refresh token.
	ErrRefreshTokenNotFound = fmt.Errorf("%w: refresh token not found", ErrInvalidGrant)
	// ErrScopeDenied is returned in strict mode when a requested scope is
	// not granted to the client.
	ErrScopeDenied = errors.New("requested scope not allowed for client")
	// ErrAuthenticationFailed deliberately does not distinguish unknown
	// user, wrong password, and non-active account.
	ErrAuthenticationFailed = errors.New("authentication failed")
	// ErrKeyUnavailable means signing key material could not be loaded or
	// generated. Fatal at startup: the process must not serve traffic
	// without a signing key.
	ErrKeyUnavailable = errors.New("signing key unavailable")
	// ErrSigningKeyExists signals a lost first-boot generation race; the
	// caller should reload the persisted key.
	ErrSigningKeyExists = errors.New("signing key already persisted")

	// Validator-side outcomes. Distinct for logging and telemetry, all
	// rendered as a generic 401 to untrusted callers.
	ErrTokenExpired     = errors.New("token expired")
	ErrTokenMalformed   = errors.New("token malformed or signature invalid")
	ErrIssuerMismatch   = errors.New("token issuer mismatch")
	ErrAudienceMismatch = errors.New("token audience mismatch")

	// ErrUserNotFound is an internal lookup failure, not exposed verbatim.
	ErrUserNotFound = errors.New("user not found")
	// ErrDuplicateUser is returned when username or email is already taken.
	ErrDuplicateUser = errors.New("username or email already exists")
	// ErrClientNotFound is an internal lookup failure.
	ErrClientNotFound = errors.New("client not found")
)

// Standard OAuth2 wire error codes.
const (
	CodeInvalidRequest       = "invalid_request"
	CodeUnauthorizedClient   = "unauthorized_client"
	CodeAccessDenied         = "access_denied"
	CodeUnsupportedGrantType = "unsupported_grant_type"
	CodeInvalidScope         = "invalid_scope"
	CodeInvalidClient        = "invalid_client"
	CodeInvalidGrant         = "invalid_grant"
	CodeServerError          = "server_error"
)

// OAuth2Error is a standardized OAuth 2.0 error for wire serialization.
type OAuth2Error struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
	State       string `json:"state,omitempty"`
}

func (e *OAuth2Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

func NewInvalidRequest(description string) *OAuth2Error {
	return &OAuth2Error{Code: CodeInvalidRequest, Description: description}
}

func NewInvalidClient(description string) *OAuth2Error {
	return &OAuth2Error{Code: CodeInvalidClient, Description: description}
}

func NewInvalidGrant(description string) *OAuth2Error {
	return &OAuth2Error{Code: CodeInvalidGrant, Description: description}
}

func NewInvalidScope(description string) *OAuth2Error {
	return &OAuth2Error{Code: CodeInvalidScope, Description: description}
}

func NewUnsupportedGrantType() *OAuth2Error {
	return &OAuth2Error{
		Code:        CodeUnsupportedGrantType,
		Description: "the authorization grant type is not supported",
	}
}

func NewServerError(description string) *OAuth2Error {
	return &OAuth2Error{Code: CodeServerError, Description: description}
}
