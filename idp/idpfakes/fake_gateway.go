package idpfakes

import (
	"context"
	"net/http"
	"sync"

	"github.com/jrsteele09/go-session-gateway/api"
	"github.com/jrsteele09/go-session-gateway/idp"
)

var _ idp.Gateway = (*FakeGateway)(nil)

// FakeGateway is a scripted idp.Gateway with call counters. Every operation
// fails until a result is scripted.
type FakeGateway struct {
	mu sync.Mutex

	LoginResult    api.Result[idp.TokenPair]
	RefreshResult  api.Result[idp.TokenPair]
	LogoutResult   api.Result[api.Ack]
	RegisterResult api.Result[api.Ack]

	LoginCalls    int
	RefreshCalls  int
	LogoutCalls   int
	RegisterCalls int

	LastLoginUsername string
	LastRefreshToken  string
	LastLogoutUserID  string
	LastRegister      idp.RegisterRequest

	// RefreshHook runs inside Refresh before the result is returned, letting
	// tests interleave concurrent operations mid-flight.
	RefreshHook func()
}

func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		LoginResult:    api.Failure[idp.TokenPair](http.StatusInternalServerError, "login not scripted", nil),
		RefreshResult:  api.Failure[idp.TokenPair](http.StatusInternalServerError, "refresh not scripted", nil),
		LogoutResult:   api.Success(api.Ack{}),
		RegisterResult: api.Success(api.Ack{}),
	}
}

func (g *FakeGateway) Login(_ context.Context, username, _ string) api.Result[idp.TokenPair] {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.LoginCalls++
	g.LastLoginUsername = username
	return g.LoginResult
}

func (g *FakeGateway) Refresh(_ context.Context, refreshToken string) api.Result[idp.TokenPair] {
	g.mu.Lock()
	g.RefreshCalls++
	g.LastRefreshToken = refreshToken
	hook := g.RefreshHook
	result := g.RefreshResult
	g.mu.Unlock()

	if hook != nil {
		hook()
	}
	return result
}

func (g *FakeGateway) Logout(_ context.Context, userID string) api.Result[api.Ack] {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.LogoutCalls++
	g.LastLogoutUserID = userID
	return g.LogoutResult
}

func (g *FakeGateway) Register(_ context.Context, req idp.RegisterRequest) api.Result[api.Ack] {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.RegisterCalls++
	g.LastRegister = req
	return g.RegisterResult
}

// Calls returns a snapshot of all call counters.
func (g *FakeGateway) Calls() (login, refresh, logout, register int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.LoginCalls, g.RefreshCalls, g.LogoutCalls, g.RegisterCalls
}
