// Package security registers resolved principals with the surrounding
// request and carries them through the request context.
package security

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-session-gateway/auth"
)

var _ auth.Authenticator = (*Manager)(nil)

// Manager is the default auth.Authenticator: it gates malformed principals
// off the success path and records the authentication event.
type Manager struct {
	logger zerolog.Logger
}

func NewManager(logger zerolog.Logger) *Manager {
	return &Manager{logger: logger}
}

// Authenticate accepts a well-formed principal and rejects anything without
// an identity or credential. The engine treats a rejection as an internal
// failure, so a half-built principal never reaches downstream authorization.
func (m *Manager) Authenticate(_ context.Context, principal auth.Context) error {
	if principal.UserID == "" {
		return errors.New("[Manager.Authenticate] principal has no userId")
	}
	if principal.AccessToken == "" {
		return errors.New("[Manager.Authenticate] principal has no access token")
	}

	m.logger.Debug().
		Str("userId", principal.UserID).
		Int("authorities", len(principal.Authorities)).
		Msg("principal authenticated")
	return nil
}
