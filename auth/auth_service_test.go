package auth_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-session-gateway/api"
	"github.com/jrsteele09/go-session-gateway/auth"
	"github.com/jrsteele09/go-session-gateway/backend/storefakes"
	"github.com/jrsteele09/go-session-gateway/idp"
	"github.com/jrsteele09/go-session-gateway/idp/idpfakes"
	"github.com/jrsteele09/go-session-gateway/internal/async"
	"github.com/jrsteele09/go-session-gateway/sessions"
	"github.com/jrsteele09/go-session-gateway/token"
)

const (
	testUserID    = "user-1"
	testSessionID = "session-1"
)

// recordingAuthenticator counts downstream principal registrations.
type recordingAuthenticator struct {
	Calls         int
	LastPrincipal auth.Context
	Fail          error
}

func (a *recordingAuthenticator) Authenticate(_ context.Context, principal auth.Context) error {
	a.Calls++
	a.LastPrincipal = principal
	return a.Fail
}

// testFixture holds all engine dependencies.
type testFixture struct {
	cache   *sessions.Cache
	store   *storefakes.FakeStore
	gateway *idpfakes.FakeGateway
	authn   *recordingAuthenticator
	service *auth.Service
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	f := &testFixture{
		cache:   sessions.NewCache(0, 0),
		store:   storefakes.NewFakeStore(),
		gateway: idpfakes.NewFakeGateway(),
		authn:   &recordingAuthenticator{},
	}

	service, err := auth.NewService(auth.Collaborators{
		Cache:         f.cache,
		Store:         f.store,
		IdP:           f.gateway,
		Inspector:     token.NewInspector(),
		Authenticator: f.authn,
		Dispatcher:    async.NewSyncDispatcher(zerolog.Nop()),
	}, auth.WithLogger(zerolog.Nop()))
	require.NoError(t, err)

	f.service = service
	return f
}

func signTestToken(t *testing.T, claims jwtlib.MapClaims) string {
	t.Helper()
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte("test-signing-key"))
	require.NoError(t, err)
	return signed
}

// accessToken builds a bearer credential for testUserID with the given
// expiry and roles.
func accessToken(t *testing.T, expiresAt time.Time, roles ...string) string {
	t.Helper()
	claims := jwtlib.MapClaims{
		"sub":           testUserID,
		"session_state": testSessionID,
		"exp":           expiresAt.Unix(),
	}
	if len(roles) > 0 {
		anyRoles := make([]any, 0, len(roles))
		for _, role := range roles {
			anyRoles = append(anyRoles, role)
		}
		claims["resource_access"] = map[string]any{"account": map[string]any{"roles": anyRoles}}
	}
	return signTestToken(t, claims)
}

func refreshTokenCred(t *testing.T, expiresAt time.Time) string {
	t.Helper()
	return signTestToken(t, jwtlib.MapClaims{"exp": expiresAt.Unix()})
}

func liveRecord(t *testing.T) sessions.Record {
	t.Helper()
	return sessions.Record{
		UserID:       testUserID,
		SessionID:    testSessionID,
		AccessToken:  accessToken(t, time.Now().Add(time.Hour), "viewer"),
		RefreshToken: refreshTokenCred(t, time.Now().Add(24*time.Hour)),
		Authorities:  []string{"ROLE_VIEWER"},
	}
}

func staleAccessRecord(t *testing.T) sessions.Record {
	t.Helper()
	record := liveRecord(t)
	record.AccessToken = accessToken(t, time.Now().Add(-time.Hour), "viewer")
	return record
}

func TestNewServiceRequiresCollaborators(t *testing.T) {
	_, err := auth.NewService(auth.Collaborators{})
	require.Error(t, err)
}

func TestResolveUnknownUserFailsInvalidSession(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.service.Resolve(context.Background(), "nobody", "any-session")
	require.ErrorIs(t, err, auth.ErrInvalidSession)
	require.Equal(t, 1, f.store.GetCalls)
}

func TestResolveSessionMismatchIsIndistinguishableFromNotFound(t *testing.T) {
	f := setupTestFixture(t)
	f.cache.Put(testUserID, liveRecord(t))

	_, mismatchErr := f.service.Resolve(context.Background(), testUserID, "forged-session")
	_, missingErr := f.service.Resolve(context.Background(), "nobody", "forged-session")

	require.ErrorIs(t, mismatchErr, auth.ErrInvalidSession)
	require.Equal(t, missingErr, mismatchErr)

	var typed *auth.Error
	require.ErrorAs(t, mismatchErr, &typed)
	require.Equal(t, http.StatusUnauthorized, typed.Status)
}

func TestResolveEmptySessionIDFails(t *testing.T) {
	f := setupTestFixture(t)
	f.cache.Put(testUserID, liveRecord(t))

	_, err := f.service.Resolve(context.Background(), testUserID, "")
	require.ErrorIs(t, err, auth.ErrInvalidSession)
}

func TestResolveFreshAccessTokenMakesNoUpstreamCalls(t *testing.T) {
	f := setupTestFixture(t)
	record := liveRecord(t)
	f.cache.Put(testUserID, record)

	authCtx, err := f.service.Resolve(context.Background(), testUserID, testSessionID)
	require.NoError(t, err)
	require.Equal(t, testUserID, authCtx.UserID)
	require.Equal(t, testSessionID, authCtx.SessionID)
	require.Equal(t, record.AccessToken, authCtx.AccessToken)
	require.Equal(t, []string{"ROLE_VIEWER"}, authCtx.Authorities)

	login, refresh, logout, register := f.gateway.Calls()
	require.Zero(t, login+refresh+logout+register)
	require.Zero(t, f.store.GetCalls)
}

func TestResolveFallsBackToStoreAndFillsCache(t *testing.T) {
	f := setupTestFixture(t)
	f.store.Seed(liveRecord(t))

	_, err := f.service.Resolve(context.Background(), testUserID, testSessionID)
	require.NoError(t, err)
	require.Equal(t, 1, f.store.GetCalls)

	// Second resolve is served from the cache.
	_, err = f.service.Resolve(context.Background(), testUserID, testSessionID)
	require.NoError(t, err)
	require.Equal(t, 1, f.store.GetCalls)
}

func TestResolveRefreshesExpiredAccessToken(t *testing.T) {
	f := setupTestFixture(t)
	stale := staleAccessRecord(t)
	f.store.Seed(stale)

	newAccess := accessToken(t, time.Now().Add(time.Hour), "manage-account")
	newRefresh := refreshTokenCred(t, time.Now().Add(24*time.Hour))
	f.gateway.RefreshResult = api.Success(idp.TokenPair{
		AccessToken:  newAccess,
		RefreshToken: newRefresh,
	})

	authCtx, err := f.service.Resolve(context.Background(), testUserID, testSessionID)
	require.NoError(t, err)
	require.Equal(t, newAccess, authCtx.AccessToken)
	require.Equal(t, testSessionID, authCtx.SessionID)
	require.Equal(t, []string{"ROLE_MANAGE-ACCOUNT"}, authCtx.Authorities)

	_, refresh, _, _ := f.gateway.Calls()
	require.Equal(t, 1, refresh)
	require.Equal(t, stale.RefreshToken, f.gateway.LastRefreshToken)

	// Cache reflects the new tokens.
	cached, found := f.cache.Get(testUserID)
	require.True(t, found)
	require.Equal(t, newAccess, cached.AccessToken)
	require.Equal(t, newRefresh, cached.RefreshToken)

	// The durable copy was persisted best-effort.
	persisted, ok := f.store.Record(testUserID)
	require.True(t, ok)
	require.Equal(t, newAccess, persisted.AccessToken)

	// The fresh principal went through downstream authentication.
	require.Equal(t, 1, f.authn.Calls)

	// A subsequent resolve succeeds off the cached fresh record with no
	// further upstream calls.
	_, err = f.service.Resolve(context.Background(), testUserID, testSessionID)
	require.NoError(t, err)
	_, refresh, _, _ = f.gateway.Calls()
	require.Equal(t, 1, refresh)
}

func TestResolveRefreshAdoptsReissuedSessionID(t *testing.T) {
	f := setupTestFixture(t)
	f.cache.Put(testUserID, staleAccessRecord(t))

	f.gateway.RefreshResult = api.Success(idp.TokenPair{
		AccessToken:  accessToken(t, time.Now().Add(time.Hour)),
		RefreshToken: refreshTokenCred(t, time.Now().Add(24*time.Hour)),
		SessionID:    "session-2",
	})

	authCtx, err := f.service.Resolve(context.Background(), testUserID, testSessionID)
	require.NoError(t, err)
	require.Equal(t, "session-2", authCtx.SessionID)

	cached, found := f.cache.Get(testUserID)
	require.True(t, found)
	require.Equal(t, "session-2", cached.SessionID)
}

func TestResolveFullyExpiredSessionMakesNoRefreshCall(t *testing.T) {
	f := setupTestFixture(t)
	record := staleAccessRecord(t)
	record.RefreshToken = refreshTokenCred(t, time.Now().Add(-time.Minute))
	f.cache.Put(testUserID, record)

	_, err := f.service.Resolve(context.Background(), testUserID, testSessionID)
	require.ErrorIs(t, err, auth.ErrInvalidSession)

	_, refresh, _, _ := f.gateway.Calls()
	require.Zero(t, refresh)
}

func TestResolveRefreshRejectionKeepsUpstreamDetail(t *testing.T) {
	f := setupTestFixture(t)
	f.cache.Put(testUserID, staleAccessRecord(t))
	f.gateway.RefreshResult = api.Failure[idp.TokenPair](http.StatusBadRequest, "Session not active", nil)

	_, err := f.service.Resolve(context.Background(), testUserID, testSessionID)
	require.ErrorIs(t, err, auth.ErrUpstream)

	var typed *auth.Error
	require.ErrorAs(t, err, &typed)
	require.Equal(t, http.StatusBadRequest, typed.Status)
	require.Contains(t, typed.Message, "Session not active")
}

func TestResolveRefreshSurvivesStoreOutage(t *testing.T) {
	f := setupTestFixture(t)
	f.cache.Put(testUserID, staleAccessRecord(t))
	f.store.FailSave = &api.Error{StatusCode: http.StatusServiceUnavailable, Message: "store down"}

	f.gateway.RefreshResult = api.Success(idp.TokenPair{
		AccessToken:  accessToken(t, time.Now().Add(time.Hour)),
		RefreshToken: refreshTokenCred(t, time.Now().Add(24*time.Hour)),
	})

	// The durable save is best-effort: its failure must not fail the resolve.
	_, err := f.service.Resolve(context.Background(), testUserID, testSessionID)
	require.NoError(t, err)
	require.Equal(t, 1, f.store.SaveCalls)
}

func TestLoginPopulatesCacheBeforeReturning(t *testing.T) {
	f := setupTestFixture(t)
	f.gateway.LoginResult = api.Success(idp.TokenPair{
		AccessToken:  accessToken(t, time.Now().Add(time.Hour), "viewer"),
		RefreshToken: refreshTokenCred(t, time.Now().Add(24*time.Hour)),
		SessionID:    testSessionID,
	})

	result, err := f.service.Login(context.Background(), "john", "password123")
	require.NoError(t, err)
	require.Equal(t, testUserID, result.UserID)
	require.Equal(t, testSessionID, result.SessionID)

	// The cache entry is visible before Login returns: an immediate resolve
	// needs no store round-trip.
	_, err = f.service.Resolve(context.Background(), testUserID, testSessionID)
	require.NoError(t, err)
	require.Zero(t, f.store.GetCalls)

	require.Equal(t, 1, f.store.SaveCalls)
	require.Equal(t, 1, f.authn.Calls)
	require.Equal(t, []string{"ROLE_VIEWER"}, f.authn.LastPrincipal.Authorities)
}

func TestLoginSucceedsDespiteStoreOutage(t *testing.T) {
	f := setupTestFixture(t)
	f.store.FailSave = &api.Error{StatusCode: http.StatusServiceUnavailable, Message: "store down"}
	f.gateway.LoginResult = api.Success(idp.TokenPair{
		AccessToken:  accessToken(t, time.Now().Add(time.Hour)),
		RefreshToken: refreshTokenCred(t, time.Now().Add(24*time.Hour)),
	})

	// The IdP login already succeeded and is authoritative.
	_, err := f.service.Login(context.Background(), "john", "password123")
	require.NoError(t, err)

	_, found := f.cache.Get(testUserID)
	require.True(t, found)
}

func TestLoginRejectedKeepsIdPStatus(t *testing.T) {
	f := setupTestFixture(t)
	f.gateway.LoginResult = api.Failure[idp.TokenPair](http.StatusUnauthorized, "Invalid user credentials", nil)

	_, err := f.service.Login(context.Background(), "john", "wrong")
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)

	var typed *auth.Error
	require.ErrorAs(t, err, &typed)
	require.Equal(t, http.StatusUnauthorized, typed.Status)
}

func TestLoginIdPOutageIsUpstreamFailure(t *testing.T) {
	f := setupTestFixture(t)
	f.gateway.LoginResult = api.Failure[idp.TokenPair](http.StatusServiceUnavailable, "identity provider unreachable", nil)

	_, err := f.service.Login(context.Background(), "john", "password123")
	require.ErrorIs(t, err, auth.ErrUpstream)
}

func TestLoginAuthenticatorRejectionFails(t *testing.T) {
	f := setupTestFixture(t)
	f.authn.Fail = context.DeadlineExceeded
	f.gateway.LoginResult = api.Success(idp.TokenPair{
		AccessToken:  accessToken(t, time.Now().Add(time.Hour)),
		RefreshToken: refreshTokenCred(t, time.Now().Add(24*time.Hour)),
	})

	_, err := f.service.Login(context.Background(), "john", "password123")
	require.ErrorIs(t, err, auth.ErrUpstream)
}

func TestLogoutRemovesCacheEntryEvenWhenUpstreamFails(t *testing.T) {
	f := setupTestFixture(t)
	f.cache.Put(testUserID, liveRecord(t))
	f.gateway.LogoutResult = api.Failure[api.Ack](http.StatusServiceUnavailable, "idp down", nil)
	f.store.FailInvalidate = &api.Error{StatusCode: http.StatusServiceUnavailable, Message: "store down"}

	require.NoError(t, f.service.Logout(context.Background(), testUserID, testSessionID))

	_, found := f.cache.Get(testUserID)
	require.False(t, found)

	_, _, logout, _ := f.gateway.Calls()
	require.Equal(t, 1, logout)
	require.Equal(t, 1, f.store.InvalidateCalls)
}

func TestLogoutMismatchTakesNoAction(t *testing.T) {
	f := setupTestFixture(t)
	f.cache.Put(testUserID, liveRecord(t))

	// Not-owned looks exactly like not-present: generic success, no side
	// effects.
	require.NoError(t, f.service.Logout(context.Background(), testUserID, "forged-session"))

	_, found := f.cache.Get(testUserID)
	require.True(t, found)

	_, _, logout, _ := f.gateway.Calls()
	require.Zero(t, logout)
	require.Zero(t, f.store.InvalidateCalls)
}

func TestLogoutIsIdempotent(t *testing.T) {
	f := setupTestFixture(t)
	f.cache.Put(testUserID, liveRecord(t))
	f.store.Seed(liveRecord(t))

	require.NoError(t, f.service.Logout(context.Background(), testUserID, testSessionID))
	require.NoError(t, f.service.Logout(context.Background(), testUserID, testSessionID))

	_, found := f.cache.Get(testUserID)
	require.False(t, found)

	// The second logout found nothing to own and dispatched nothing new.
	_, _, logout, _ := f.gateway.Calls()
	require.Equal(t, 1, logout)
}

func TestLogoutFallsBackToStoreForOwnership(t *testing.T) {
	f := setupTestFixture(t)
	f.store.Seed(liveRecord(t))

	require.NoError(t, f.service.Logout(context.Background(), testUserID, testSessionID))

	_, _, logout, _ := f.gateway.Calls()
	require.Equal(t, 1, logout)
	require.Equal(t, 1, f.store.InvalidateCalls)
}

// A refresh that was already in flight when a logout landed may re-populate
// the cache: invalidate is a final write that a racing put can still
// clobber. This is accepted best-effort behavior, not a guaranteed ordering.
func TestResolveRefreshCanOutraceLogout(t *testing.T) {
	f := setupTestFixture(t)
	f.cache.Put(testUserID, staleAccessRecord(t))

	newAccess := accessToken(t, time.Now().Add(time.Hour))
	f.gateway.RefreshResult = api.Success(idp.TokenPair{
		AccessToken:  newAccess,
		RefreshToken: refreshTokenCred(t, time.Now().Add(24*time.Hour)),
	})
	f.gateway.RefreshHook = func() {
		require.NoError(t, f.service.Logout(context.Background(), testUserID, testSessionID))
	}

	_, err := f.service.Resolve(context.Background(), testUserID, testSessionID)
	require.NoError(t, err)

	// The logout's invalidate lost the race: the refreshed record is back.
	cached, found := f.cache.Get(testUserID)
	require.True(t, found)
	require.Equal(t, newAccess, cached.AccessToken)
}

func TestRegisterDelegatesToIdP(t *testing.T) {
	f := setupTestFixture(t)

	req := idp.RegisterRequest{Username: "john", Email: "john.doe@example.com", Password: "password123"}
	require.NoError(t, f.service.Register(context.Background(), req))

	_, _, _, register := f.gateway.Calls()
	require.Equal(t, 1, register)
	require.Equal(t, req, f.gateway.LastRegister)

	// No session side effects.
	_, found := f.cache.Get(testUserID)
	require.False(t, found)
}

func TestRegisterTranslatesIdPError(t *testing.T) {
	f := setupTestFixture(t)
	f.gateway.RegisterResult = api.Failure[api.Ack](http.StatusConflict, "User exists with same username", nil)

	err := f.service.Register(context.Background(), idp.RegisterRequest{Username: "john"})
	require.ErrorIs(t, err, auth.ErrUpstream)

	var typed *auth.Error
	require.ErrorAs(t, err, &typed)
	require.Equal(t, http.StatusConflict, typed.Status)
}
