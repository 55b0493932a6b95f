package idp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/jrsteele09/go-session-gateway/api"
	"github.com/jrsteele09/go-session-gateway/internal/utils"
)

var _ Gateway = (*KeycloakGateway)(nil)

// KeycloakConfig holds the connection settings for a Keycloak realm.
type KeycloakConfig struct {
	IssuerURL    string // e.g. https://idp.example.com/realms/main
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// KeycloakGateway implements Gateway against a Keycloak realm: resource-owner
// password and refresh-token grants on the token endpoint, user creation and
// session logout on the admin API using the client's service account.
type KeycloakGateway struct {
	cfg           KeycloakConfig
	httpClient    *http.Client
	oauth         *oauth2.Config
	adminTokens   oauth2.TokenSource
	tokenURL      string
	adminUsersURL string
}

// KeycloakOption modifies a KeycloakGateway instance.
type KeycloakOption func(*KeycloakGateway)

// WithHTTPClient overrides the tuned default HTTP client.
func WithHTTPClient(client *http.Client) KeycloakOption {
	return func(g *KeycloakGateway) {
		g.httpClient = client
	}
}

// WithEndpoints pins the token and admin endpoints, skipping OIDC discovery
// (primarily for testing against local fixtures).
func WithEndpoints(tokenURL, adminUsersURL string) KeycloakOption {
	return func(g *KeycloakGateway) {
		g.tokenURL = tokenURL
		g.adminUsersURL = adminUsersURL
	}
}

// NewKeycloakGateway discovers the realm's endpoints and prepares the grant
// configurations. The service account behind cfg.ClientID must hold the
// manage-users realm role for Register and Logout to work.
func NewKeycloakGateway(ctx context.Context, cfg KeycloakConfig, options ...KeycloakOption) (*KeycloakGateway, error) {
	if cfg.IssuerURL == "" {
		return nil, errors.New("[NewKeycloakGateway] issuer URL is required")
	}
	if cfg.ClientID == "" {
		return nil, errors.New("[NewKeycloakGateway] client ID is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	g := &KeycloakGateway{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range options {
		opt(g)
	}

	if g.tokenURL == "" {
		provider, err := oidc.NewProvider(oidc.ClientContext(ctx, g.httpClient), cfg.IssuerURL)
		if err != nil {
			return nil, errors.Wrap(err, "[NewKeycloakGateway] oidc.NewProvider")
		}
		g.tokenURL = provider.Endpoint().TokenURL
	}
	if g.adminUsersURL == "" {
		adminURL, err := adminUsersURLFromIssuer(cfg.IssuerURL)
		if err != nil {
			return nil, errors.Wrap(err, "[NewKeycloakGateway] admin URL")
		}
		g.adminUsersURL = adminURL
	}

	g.oauth = &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: g.tokenURL},
	}
	g.adminTokens = (&clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     g.tokenURL,
	}).TokenSource(g.clientContext(context.Background()))

	return g, nil
}

// Login performs a resource-owner password grant.
func (g *KeycloakGateway) Login(ctx context.Context, username, password string) api.Result[TokenPair] {
	tok, err := g.oauth.PasswordCredentialsToken(g.clientContext(ctx), username, password)
	if err != nil {
		return grantFailure[TokenPair]("login rejected by identity provider", err)
	}
	return api.Success(tokenPairFrom(tok))
}

// Refresh exchanges a refresh token for a fresh token pair.
func (g *KeycloakGateway) Refresh(ctx context.Context, refreshToken string) api.Result[TokenPair] {
	source := g.oauth.TokenSource(g.clientContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := source.Token()
	if err != nil {
		return grantFailure[TokenPair]("token refresh rejected by identity provider", err)
	}
	return api.Success(tokenPairFrom(tok))
}

// Logout ends every IdP-side session of the user via the admin API.
func (g *KeycloakGateway) Logout(ctx context.Context, userID string) api.Result[api.Ack] {
	endpoint := fmt.Sprintf("%s/%s/logout", g.adminUsersURL, url.PathEscape(userID))
	return g.adminPost(ctx, endpoint, nil)
}

// Register creates the user in the realm via the admin API.
func (g *KeycloakGateway) Register(ctx context.Context, req RegisterRequest) api.Result[api.Ack] {
	payload := keycloakUser{
		Username:  req.Username,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Enabled:   utils.Ptr(true),
		Credentials: []keycloakCredential{{
			Type:      "password",
			Value:     req.Password,
			Temporary: false,
		}},
	}
	return g.adminPost(ctx, g.adminUsersURL, payload)
}

type keycloakUser struct {
	Username    string               `json:"username"`
	Email       string               `json:"email"`
	FirstName   string               `json:"firstName,omitempty"`
	LastName    string               `json:"lastName,omitempty"`
	Enabled     *bool                `json:"enabled,omitempty"`
	Credentials []keycloakCredential `json:"credentials,omitempty"`
}

type keycloakCredential struct {
	Type      string `json:"type"`
	Value     string `json:"value"`
	Temporary bool   `json:"temporary"`
}

func (g *KeycloakGateway) adminPost(ctx context.Context, endpoint string, payload any) api.Result[api.Ack] {
	adminToken, err := g.adminTokens.Token()
	if err != nil {
		return grantFailure[api.Ack]("service account token unavailable", err)
	}

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return api.Failure[api.Ack](http.StatusInternalServerError, "request encoding failed", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return api.Failure[api.Ack](http.StatusInternalServerError, "request construction failed", err)
	}
	req.Header.Set("Authorization", "Bearer "+adminToken.AccessToken)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return api.Failure[api.Ack](http.StatusInternalServerError, "identity provider unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		message := upstreamMessage(resp.Body)
		log.Warn().Int("status", resp.StatusCode).Str("endpoint", endpoint).Msg("keycloak admin call failed")
		return api.Failure[api.Ack](resp.StatusCode, message, nil)
	}
	return api.Success(api.Ack{})
}

func (g *KeycloakGateway) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, g.httpClient)
}

// grantFailure normalizes oauth2 grant errors: an upstream error response
// keeps its status and description, anything else counts as internal.
func grantFailure[T any](message string, err error) api.Result[T] {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		detail := retrieveErr.ErrorDescription
		if detail == "" {
			detail = strings.TrimSpace(string(retrieveErr.Body))
		}
		if detail != "" {
			message = fmt.Sprintf("%s: %s", message, detail)
		}
		status := http.StatusInternalServerError
		if retrieveErr.Response != nil {
			status = retrieveErr.Response.StatusCode
		}
		return api.Failure[T](status, message, err)
	}
	return api.Failure[T](http.StatusInternalServerError, message, err)
}

func tokenPairFrom(tok *oauth2.Token) TokenPair {
	sessionID, _ := tok.Extra("session_state").(string)
	return TokenPair{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		SessionID:    sessionID,
	}
}

func upstreamMessage(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 2048))
	if err != nil || len(raw) == 0 {
		return "identity provider error"
	}
	return strings.TrimSpace(string(raw))
}

// adminUsersURLFromIssuer maps https://host/realms/{realm} to
// https://host/admin/realms/{realm}/users.
func adminUsersURLFromIssuer(issuerURL string) (string, error) {
	parsed, err := url.Parse(issuerURL)
	if err != nil {
		return "", err
	}
	const marker = "/realms/"
	idx := strings.Index(parsed.Path, marker)
	if idx < 0 {
		return "", errors.Errorf("issuer path %q has no realm segment", parsed.Path)
	}
	realm := strings.Trim(parsed.Path[idx+len(marker):], "/")
	if realm == "" {
		return "", errors.Errorf("issuer path %q has no realm segment", parsed.Path)
	}
	parsed.Path = parsed.Path[:idx] + "/admin/realms/" + realm + "/users"
	return parsed.String(), nil
}
