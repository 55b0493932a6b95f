// Package idp defines the narrow contract against the external identity
// provider and its Keycloak implementation. All outcomes cross the boundary
// as api.Result values, never as raw transport errors.
package idp

import (
	"context"

	"github.com/jrsteele09/go-session-gateway/api"
)

// TokenPair is the credential set the IdP issues on login and refresh.
// SessionID carries the provider's session_state when one is reissued; an
// empty value means the caller's existing sessionId stays authoritative.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	SessionID    string
}

// RegisterRequest carries the fields forwarded to the IdP's user-creation
// endpoint. Registration has no local side effects.
type RegisterRequest struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// Gateway is the contract for every IdP operation the engine needs.
type Gateway interface {
	Login(ctx context.Context, username, password string) api.Result[TokenPair]
	Refresh(ctx context.Context, refreshToken string) api.Result[TokenPair]
	Logout(ctx context.Context, userID string) api.Result[api.Ack]
	Register(ctx context.Context, req RegisterRequest) api.Result[api.Ack]
}
