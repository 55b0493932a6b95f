// Package token reads claims out of opaque bearer credentials.
//
// Signature verification is the IdP's and the resource servers' job; this
// side of the boundary only needs expiry, identity and role claims, so the
// inspector parses without verifying.
package token

import (
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-session-gateway/internal/utils"
)

const (
	resourceAccessClaim = "resource_access"
	accountKey          = "account"
	rolesKey            = "roles"
	rolePrefix          = "ROLE_"
	subjectClaim        = "sub"
	sessionStateClaim   = "session_state"
)

// Claims carries the fields the resolution engine needs from a credential.
type Claims struct {
	Subject   string
	SessionID string
	ExpiresAt time.Time
}

// Inspector answers expiry and claim questions about bearer credentials.
// It holds no shared state and is safe for concurrent use.
type Inspector struct {
	nowFunc func() time.Time
}

// InspectorOption modifies an Inspector instance.
type InspectorOption func(*Inspector)

// WithNowFunc sets the now time function (primarily for testing)
func WithNowFunc(now func() time.Time) InspectorOption {
	return func(i *Inspector) {
		i.nowFunc = now
	}
}

// NewInspector creates an Inspector.
func NewInspector(options ...InspectorOption) *Inspector {
	inspector := &Inspector{nowFunc: time.Now}
	for _, opt := range options {
		opt(inspector)
	}
	return inspector
}

// IsExpired reports whether the credential's exp claim has passed. A
// malformed credential or one without an exp claim counts as expired: parse
// failures are logged, never raised.
func (i *Inspector) IsExpired(credential string) bool {
	claims, err := parse(credential)
	if err != nil {
		log.Error().Err(err).Msg("[Inspector.IsExpired] credential parse failed")
		return true
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return true
	}
	return !exp.Time.After(i.nowFunc())
}

// Claims extracts the subject, session state and expiry from the credential.
func (i *Inspector) Claims(credential string) (Claims, error) {
	claims, err := parse(credential)
	if err != nil {
		return Claims{}, errors.Wrap(err, "[Inspector.Claims] parse")
	}

	subject, _ := claims[subjectClaim].(string)
	sessionID, _ := claims[sessionStateClaim].(string)

	var expiresAt time.Time
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		expiresAt = exp.Time
	}

	return Claims{
		Subject:   subject,
		SessionID: sessionID,
		ExpiresAt: expiresAt,
	}, nil
}

// Authorities maps the account roles embedded in the credential to
// upper-cased, ROLE_-prefixed authority strings. A credential without a roles
// claim yields no authorities rather than an error.
func (i *Inspector) Authorities(credential string) ([]string, error) {
	claims, err := parse(credential)
	if err != nil {
		return nil, errors.Wrap(err, "[Inspector.Authorities] parse")
	}

	resourceAccess, ok := claims[resourceAccessClaim].(map[string]any)
	if !ok {
		return nil, nil
	}
	account, ok := resourceAccess[accountKey].(map[string]any)
	if !ok {
		return nil, nil
	}
	roles, ok := account[rolesKey].([]any)
	if !ok {
		return nil, nil
	}

	authorities := make([]string, 0, len(roles))
	for _, role := range utils.ToStringSlice(roles) {
		authorities = append(authorities, rolePrefix+strings.ToUpper(role))
	}
	return authorities, nil
}

func parse(credential string) (jwtlib.MapClaims, error) {
	parsed, _, err := jwtlib.NewParser().ParseUnverified(credential, jwtlib.MapClaims{})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, errors.New("error extracting claims")
	}
	return claims, nil
}
