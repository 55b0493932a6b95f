package auth

// Context is the resolved output of a successful resolution: everything the
// downstream authorization layer needs about the caller. Built fresh per
// resolution, owned by the caller, never mutated afterwards.
type Context struct {
	UserID      string
	SessionID   string
	Authorities []string
	AccessToken string
}

// LoginResult is what a successful login returns to the transport layer.
type LoginResult struct {
	UserID    string
	SessionID string
}
