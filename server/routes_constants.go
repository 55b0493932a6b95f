package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	RouteHealth   = "/healthz"
	RouteLogin    = "/api/login"
	RouteLogout   = "/api/logout"
	RouteRegister = "/api/register"
	RouteMe       = "/api/me"
)

// Session claim headers set by the client on protected routes.
const (
	HeaderUserID    = "X-User-Id"
	HeaderSessionID = "X-Session-Id"
)
