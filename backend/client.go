// Package backend is the HTTP client for the durable session store. The
// store owns the persisted copy of each session record; this client only
// shuttles records over its JSON API and normalizes outcomes into api.Result.
package backend

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

	"github.com/jrsteele09/go-session-gateway/api"
	"github.com/jrsteele09/go-session-gateway/sessions"
)

var _ sessions.Store = (*Client)(nil)

// Client implements sessions.Store against the backend's user-session API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// ClientOption modifies a Client instance.
type ClientOption func(*Client)

// WithHTTPClient overrides the tuned default HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// NewClient creates a store client rooted at baseURL.
func NewClient(baseURL string, options ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// sessionPayload is the wire shape of a session record.
type sessionPayload struct {
	UserID       string   `json:"userId"`
	SessionID    string   `json:"sessionId"`
	AccessToken  string   `json:"accessToken"`
	RefreshToken string   `json:"refreshToken"`
	Authorities  []string `json:"authorities,omitempty"`
}

// Get fetches the durable record for userID. A 404 is reported as a failure
// with that status; callers decide whether absence is an error.
func (c *Client) Get(ctx context.Context, userID string) api.Result[sessions.Record] {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.sessionURL(userID), nil)
	if err != nil {
		return api.Failure[sessions.Record](http.StatusInternalServerError, "request construction failed", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return api.Failure[sessions.Record](http.StatusInternalServerError, "session store unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return api.Failure[sessions.Record](http.StatusNotFound, "session not found", nil)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return api.Failure[sessions.Record](resp.StatusCode, readErrorBody(resp.Body), nil)
	}

	var payload sessionPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return api.Failure[sessions.Record](http.StatusInternalServerError, "session store response decoding failed", err)
	}
	return api.Success(sessions.Record{
		UserID:       payload.UserID,
		SessionID:    payload.SessionID,
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
		Authorities:  payload.Authorities,
	})
}

// Save persists record, overwriting any previous durable copy for the user.
func (c *Client) Save(ctx context.Context, record sessions.Record) api.Result[api.Ack] {
	encoded, err := json.Marshal(sessionPayload{
		UserID:       record.UserID,
		SessionID:    record.SessionID,
		AccessToken:  record.AccessToken,
		RefreshToken: record.RefreshToken,
		Authorities:  record.Authorities,
	})
	if err != nil {
		return api.Failure[api.Ack](http.StatusInternalServerError, "request encoding failed", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.sessionURL(record.UserID), bytes.NewReader(encoded))
	if err != nil {
		return api.Failure[api.Ack](http.StatusInternalServerError, "request construction failed", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.ackFromResponse(req)
}

// Invalidate removes the durable record for userID.
func (c *Client) Invalidate(ctx context.Context, userID string) api.Result[api.Ack] {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.sessionURL(userID), nil)
	if err != nil {
		return api.Failure[api.Ack](http.StatusInternalServerError, "request construction failed", err)
	}
	return c.ackFromResponse(req)
}

func (c *Client) ackFromResponse(req *http.Request) api.Result[api.Ack] {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return api.Failure[api.Ack](http.StatusInternalServerError, "session store unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return api.Failure[api.Ack](resp.StatusCode, readErrorBody(resp.Body), nil)
	}
	return api.Success(api.Ack{})
}

func (c *Client) sessionURL(userID string) string {
	return fmt.Sprintf("%s/users/%s/session", c.baseURL, url.PathEscape(userID))
}

func readErrorBody(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 2048))
	if err != nil || len(raw) == 0 {
		return "session store error"
	}
	return strings.TrimSpace(string(raw))
}
