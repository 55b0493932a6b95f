package auth

import (
	"context"

	"github.com/jrsteele09/go-session-gateway/sessions"
	"github.com/jrsteele09/go-session-gateway/token"
)

// SessionCache is the lookup accelerator in front of the durable store.
// Absent means "not currently cached", never "no such session": entries may
// be evicted at any time, so every caller needs a non-cache fallback path.
// Get, Put and Invalidate are atomic with respect to each other per key.
type SessionCache interface {
	Get(userID string) (sessions.Record, bool)
	Put(userID string, record sessions.Record)
	Invalidate(userID string)
}

// CredentialInspector answers expiry and claim questions about opaque bearer
// credentials. IsExpired is fail-closed: a malformed credential counts as
// expired.
type CredentialInspector interface {
	IsExpired(credential string) bool
	Claims(credential string) (token.Claims, error)
	Authorities(credential string) ([]string, error)
}

// Authenticator registers a resolved principal with the surrounding
// request's security subsystem. It is the final step of every successful
// login and refresh, never skipped on the success path.
type Authenticator interface {
	Authenticate(ctx context.Context, principal Context) error
}
