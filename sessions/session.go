// Package sessions holds the session record, the in-memory cache tier and
// the contract for the durable store behind it.
package sessions

// Record is one authenticated user's current session. Records are replaced
// wholesale on login and refresh, never mutated field by field; the cached
// copy for a userId is overwritten, last writer wins.
//
// Token expiry is never stored alongside the tokens - it is derived from the
// credentials on demand so a cached record cannot go stale against them.
type Record struct {
	UserID       string   // Stable identity key
	SessionID    string   // Opaque, changes per login generation
	AccessToken  string   // Bearer credential with embedded expiry
	RefreshToken string   // Bearer credential with embedded expiry
	Authorities  []string // Role strings, may be empty
}
