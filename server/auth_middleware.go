package server

import (
	"net/http"

	"github.com/jrsteele09/go-session-gateway/auth"
	"github.com/jrsteele09/go-session-gateway/security"
)

// RequireSession resolves the caller's session from the identifying
// headers and rejects the request when no live session exists. Resolved
// principals are placed on the request context for downstream handlers.
func (s *Server) RequireSession() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			userID := r.Header.Get(HeaderUserID)
			sessionID := r.Header.Get(HeaderSessionID)
			if userID == "" || sessionID == "" {
				writeError(w, auth.ErrInvalidSession)
				return
			}

			principal, err := s.auth.Resolve(r.Context(), userID, sessionID)
			if err != nil {
				writeError(w, err)
				return
			}

			next(w, r.WithContext(security.WithPrincipal(r.Context(), principal)))
		}
	}
}
