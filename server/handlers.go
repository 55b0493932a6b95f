package server

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-session-gateway/auth"
	"github.com/jrsteele09/go-session-gateway/idp"
	"github.com/jrsteele09/go-session-gateway/security"
)

const contentTypeJSON = "application/json; charset=utf-8"

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
}

type logoutRequest struct {
	UserID    string `json:"userId" validate:"required"`
	SessionID string `json:"sessionId" validate:"required"`
}

type registerRequest struct {
	Username  string `json:"username" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type meResponse struct {
	UserID      string   `json:"userId"`
	SessionID   string   `json:"sessionId"`
	Authorities []string `json:"authorities"`
}

// HealthHandler reports process liveness.
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if !s.decodeAndValidate(w, r, &req) {
			return
		}

		result, err := s.auth.Login(r.Context(), req.Username, req.Password)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, loginResponse{UserID: result.UserID, SessionID: result.SessionID})
	}
}

func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req logoutRequest
		if !s.decodeAndValidate(w, r, &req) {
			return
		}

		if err := s.auth.Logout(r.Context(), req.UserID, req.SessionID); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (s *Server) RegisterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if !s.decodeAndValidate(w, r, &req) {
			return
		}

		err := s.auth.Register(r.Context(), idp.RegisterRequest{
			Username:  req.Username,
			Email:     req.Email,
			Password:  req.Password,
			FirstName: req.FirstName,
			LastName:  req.LastName,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"status": "registered"})
	}
}

// MeHandler echoes the resolved principal. It only runs behind
// RequireSession.
func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := security.PrincipalFrom(r.Context())
		if !ok {
			writeError(w, auth.ErrInvalidSession)
			return
		}
		authorities := principal.Authorities
		if authorities == nil {
			authorities = []string{}
		}
		writeJSON(w, http.StatusOK, meResponse{
			UserID:      principal.UserID,
			SessionID:   principal.SessionID,
			Authorities: authorities,
		})
	}
}

func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return false
	}
	if err := s.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("response encoding failed")
	}
}

// writeError maps engine failures to transport responses. The auth.Error
// message is already safe to expose: invalid-session failures carry a
// deliberately generic message.
func writeError(w http.ResponseWriter, err error) {
	var authErr *auth.Error
	if errors.As(err, &authErr) {
		writeJSON(w, authErr.Status, map[string]string{"error": authErr.Message, "code": authErr.Code})
		return
	}
	log.Error().Err(err).Msg("unhandled engine error")
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}
