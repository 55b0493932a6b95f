// Package auth holds the session resolution and refresh engine. Given a
// claimed (userId, sessionId) pair it decides whether the session is live,
// silently refreshable, or dead, using a two-tier lookup (in-memory cache,
// then durable store) with a credential-refresh fallback against the IdP.
// The engine owns no persistent state of its own; it orchestrates injected
// collaborators.
package auth

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-session-gateway/idp"
	"github.com/jrsteele09/go-session-gateway/internal/async"
	"github.com/jrsteele09/go-session-gateway/sessions"
)

// Collaborators holds every external dependency of the Service.
type Collaborators struct {
	Cache         SessionCache        // In-memory lookup tier
	Store         sessions.Store      // Durable tier
	IdP           idp.Gateway         // External identity provider
	Inspector     CredentialInspector // Credential expiry and claims
	Authenticator Authenticator       // Downstream principal registration
	Dispatcher    async.Dispatcher    // Fire-and-forget side effects
}

// Service is the session resolution engine.
type Service struct {
	cache         SessionCache
	store         sessions.Store
	idp           idp.Gateway
	inspector     CredentialInspector
	authenticator Authenticator
	dispatcher    async.Dispatcher
	logger        zerolog.Logger
}

// ServiceOption defines a function type to modify the Service instance.
type ServiceOption func(*Service)

// WithLogger sets the engine's logger (defaults to the global zerolog logger).
func WithLogger(logger zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService initializes a Service with required collaborators.
func NewService(c Collaborators, options ...ServiceOption) (*Service, error) {
	if c.Cache == nil {
		return nil, errors.New("[NewService] Cache is required")
	}
	if c.Store == nil {
		return nil, errors.New("[NewService] Store is required")
	}
	if c.IdP == nil {
		return nil, errors.New("[NewService] IdP gateway is required")
	}
	if c.Inspector == nil {
		return nil, errors.New("[NewService] Inspector is required")
	}
	if c.Authenticator == nil {
		return nil, errors.New("[NewService] Authenticator is required")
	}
	if c.Dispatcher == nil {
		return nil, errors.New("[NewService] Dispatcher is required")
	}

	service := &Service{
		cache:         c.Cache,
		store:         c.Store,
		idp:           c.IdP,
		inspector:     c.Inspector,
		authenticator: c.Authenticator,
		dispatcher:    c.Dispatcher,
		logger:        log.Logger,
	}

	for _, opt := range options {
		opt(service)
	}

	return service, nil
}

// Resolve answers whether the claimed session is live. An unexpired access
// token resolves without any upstream call; an expired one with a live
// refresh token triggers exactly one silent refresh. Anything else is
// ErrInvalidSession, or an upstream failure when the refresh itself is
// rejected.
func (s *Service) Resolve(ctx context.Context, userID, sessionID string) (*Context, error) {
	record, err := s.lookupOwnedRecord(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	if !s.inspector.IsExpired(record.AccessToken) {
		return contextFromRecord(record), nil
	}

	if s.inspector.IsExpired(record.RefreshToken) {
		s.logger.Info().Str("userId", userID).Msg("session fully expired")
		return nil, ErrInvalidSession
	}

	return s.refreshSession(ctx, record)
}

// Login authenticates against the IdP and, on success, caches the new
// session, persists it best-effort, and registers the principal downstream.
// The cache write completes before Login returns; the durable save does not.
func (s *Service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	result := s.idp.Login(ctx, username, password)
	if !result.OK() {
		if result.Err.StatusCode >= http.StatusInternalServerError {
			return nil, upstreamError(result.Err.StatusCode, result.Err.Message, result.Err.Cause)
		}
		return nil, invalidCredentials(result.Err.StatusCode, result.Err.Message)
	}

	record, err := s.recordFromTokenPair(result.Value, "", "")
	if err != nil {
		return nil, upstreamError(http.StatusInternalServerError, "login response processing failed", err)
	}

	s.cache.Put(record.UserID, record)
	s.persistAsync(record)

	if err := s.authenticator.Authenticate(ctx, *contextFromRecord(record)); err != nil {
		return nil, upstreamError(http.StatusInternalServerError, "principal authentication failed", err)
	}

	return &LoginResult{UserID: record.UserID, SessionID: record.SessionID}, nil
}

// Logout stops trusting the claimed session locally, then best-effort ends
// it at the IdP and the durable store. A session the caller does not own is
// handled exactly like an unknown one: logged, no side effects, and the same
// success reported, so an unauthenticated caller learns nothing. Logout is
// idempotent.
func (s *Service) Logout(ctx context.Context, userID, sessionID string) error {
	record, cached := s.cache.Get(userID)
	if !cached {
		result := s.store.Get(ctx, userID)
		if !result.OK() {
			s.logger.Warn().Str("userId", userID).Msg("logout for unknown session")
			return nil
		}
		record = result.Value
	}

	if !sessionOwned(record, sessionID) {
		s.logger.Warn().Str("userId", userID).Msg("logout session claim mismatch")
		return nil
	}

	// Removing the cache entry is the operation's whole point; everything
	// after it is best-effort.
	s.cache.Invalidate(userID)

	s.dispatcher.Dispatch("idp logout", func() error {
		if result := s.idp.Logout(context.Background(), userID); !result.OK() {
			return result.Err
		}
		return nil
	})
	s.dispatcher.Dispatch("store invalidate", func() error {
		if result := s.store.Invalidate(context.Background(), userID); !result.OK() {
			return result.Err
		}
		return nil
	})

	return nil
}

// Register delegates user creation to the IdP. No session or cache side
// effects.
func (s *Service) Register(ctx context.Context, req idp.RegisterRequest) error {
	if result := s.idp.Register(ctx, req); !result.OK() {
		return upstreamError(result.Err.StatusCode, result.Err.Message, result.Err.Cause)
	}
	return nil
}

// lookupOwnedRecord runs the two-tier lookup and the ownership check. A
// store hit is written back to the cache (read-through). Mismatched session
// claims produce the same failure value as a missing session.
func (s *Service) lookupOwnedRecord(ctx context.Context, userID, sessionID string) (sessions.Record, error) {
	record, cached := s.cache.Get(userID)
	if !cached {
		result := s.store.Get(ctx, userID)
		if !result.OK() {
			s.logger.Warn().Str("userId", userID).Int("status", result.Err.StatusCode).
				Msg("no durable session found")
			return sessions.Record{}, ErrInvalidSession
		}
		record = result.Value
		s.cache.Put(userID, record)
	}

	if !sessionOwned(record, sessionID) {
		// Deliberately the same log shape and failure as "not found": do not
		// reveal which part of the claim was wrong.
		s.logger.Warn().Str("userId", userID).Msg("session claim mismatch")
		return sessions.Record{}, ErrInvalidSession
	}

	return record, nil
}

func (s *Service) refreshSession(ctx context.Context, current sessions.Record) (*Context, error) {
	result := s.idp.Refresh(ctx, current.RefreshToken)
	if !result.OK() {
		// Upstream detail kept verbatim: unlike the forgery path, this one
		// aids operator diagnosis.
		return nil, upstreamError(result.Err.StatusCode, result.Err.Message, result.Err.Cause)
	}

	record, err := s.recordFromTokenPair(result.Value, current.UserID, current.SessionID)
	if err != nil {
		return nil, upstreamError(http.StatusInternalServerError, "refresh response processing failed", err)
	}

	s.cache.Put(record.UserID, record)
	s.persistAsync(record)

	authCtx := contextFromRecord(record)
	if err := s.authenticator.Authenticate(ctx, *authCtx); err != nil {
		return nil, upstreamError(http.StatusInternalServerError, "principal authentication failed", err)
	}

	return authCtx, nil
}

// recordFromTokenPair builds a fresh record from an IdP token pair. userID
// and sessionID carry the previous generation's values on refresh and are
// empty on login; an IdP-reissued sessionId always wins.
func (s *Service) recordFromTokenPair(pair idp.TokenPair, userID, sessionID string) (sessions.Record, error) {
	claims, err := s.inspector.Claims(pair.AccessToken)
	if err != nil {
		return sessions.Record{}, errors.Wrap(err, "[Service.recordFromTokenPair] inspector.Claims")
	}
	authorities, err := s.inspector.Authorities(pair.AccessToken)
	if err != nil {
		return sessions.Record{}, errors.Wrap(err, "[Service.recordFromTokenPair] inspector.Authorities")
	}

	if userID == "" {
		userID = claims.Subject
	}
	if userID == "" {
		return sessions.Record{}, errors.New("[Service.recordFromTokenPair] access token carries no subject")
	}

	switch {
	case pair.SessionID != "":
		sessionID = pair.SessionID
	case sessionID != "":
		// Keep the current generation's sessionId.
	case claims.SessionID != "":
		sessionID = claims.SessionID
	default:
		sessionID = uuid.New().String()
	}

	return sessions.Record{
		UserID:       userID,
		SessionID:    sessionID,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		Authorities:  authorities,
	}, nil
}

// persistAsync submits the durable save: at most one attempt, failure logged
// and dropped. A store outage must not fail the request that produced the
// record.
func (s *Service) persistAsync(record sessions.Record) {
	s.dispatcher.Dispatch("session save", func() error {
		if result := s.store.Save(context.Background(), record); !result.OK() {
			return result.Err
		}
		return nil
	})
}

func sessionOwned(record sessions.Record, sessionID string) bool {
	return sessionID != "" && record.SessionID == sessionID
}

func contextFromRecord(record sessions.Record) *Context {
	return &Context{
		UserID:      record.UserID,
		SessionID:   record.SessionID,
		Authorities: append([]string(nil), record.Authorities...),
		AccessToken: record.AccessToken,
	}
}
