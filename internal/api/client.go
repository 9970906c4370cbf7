// Package api is the typed client for the Jarvis backend: chat, model
// selection, calendar CRUD, document search and diagnostics over HTTP, plus
// one streaming chat channel over a WebSocket.
//
// A Client is constructed explicitly and passed to its consumers. It holds
// the chat session identifier, the only mutable state it owns.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/ws"

	appLog "jarviscal/internal/log"
)

const (
	DefaultBaseURL = "http://localhost:8000/api"
	defaultTimeout = 30 * time.Second
)

// Doer is the subset of *http.Client the client needs. Tests substitute a
// fake transport through WithHTTPClient.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to one backend. It is safe for concurrent use.
type Client struct {
	baseURL   string
	http      Doer
	dialer    ws.Dialer
	userAgent string

	// turnMu serializes chat turns so that every turn observes the session
	// minted by the previous one.
	turnMu sync.Mutex

	mu        sync.RWMutex
	sessionID string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP transport.
func WithHTTPClient(d Doer) Option {
	return func(c *Client) {
		if d != nil {
			c.http = d
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client and
// the WebSocket dial timeout. It has no effect on a client supplied through
// WithHTTPClient.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d <= 0 {
			return
		}
		if hc, ok := c.http.(*http.Client); ok {
			hc.Timeout = d
		}
		c.dialer.Timeout = d
	}
}

// WithDialer replaces the WebSocket dialer used by ConnectStream.
func WithDialer(d ws.Dialer) Option {
	return func(c *Client) {
		c.dialer = d
	}
}

// WithUserAgent sets the User-Agent header of every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// New creates a Client for baseURL, which includes the API path segment
// (e.g. "http://localhost:8000/api"). An empty baseURL selects
// DefaultBaseURL.
func New(baseURL string, opts ...Option) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultTimeout},
		dialer:  ws.Dialer{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SessionID returns the current chat session, or "" when none exists yet.
func (c *Client) SessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID
}

// SetSessionID resumes an existing server session.
func (c *Client) SetSessionID(id string) {
	c.mu.Lock()
	c.sessionID = id
	c.mu.Unlock()
}

// ClearSession forgets the session; the next Chat starts a new one.
func (c *Client) ClearSession() {
	c.SetSessionID("")
}

func (c *Client) endpoint(path string, q url.Values) string {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

// do performs one JSON round trip. body and out may be nil.
func (c *Client) do(ctx context.Context, op, method, rawURL string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		rdr = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, rdr)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	appLog.Debug("api request", "op", op, "method", method, "path", req.URL.Path)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a bounded amount so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return &RequestError{Op: op, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}
