package security

import (
	"context"

	"github.com/jrsteele09/go-session-gateway/auth"
)

type principalKey struct{}

// WithPrincipal returns a context carrying the resolved principal.
func WithPrincipal(ctx context.Context, principal *auth.Context) context.Context {
	return context.WithValue(ctx, principalKey{}, principal)
}

// PrincipalFrom extracts the resolved principal, if the request carried one.
func PrincipalFrom(ctx context.Context) (*auth.Context, bool) {
	principal, ok := ctx.Value(principalKey{}).(*auth.Context)
	return principal, ok && principal != nil
}
