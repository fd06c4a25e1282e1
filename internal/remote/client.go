// Package remote is the REST client for the marketplace chat API. Every
// response is wrapped in a {code, message, data} envelope and every request
// carries the session cookie obtained at sign in.
package remote

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

	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "http://localhost:8080"
	DefaultTimeout = 10 * time.Second
)

// Endpoints holds the REST paths relative to the base URL.
type Endpoints struct {
	SignIn   string
	Rooms    string
	Messages string
	Send     string
}

// DefaultEndpoints returns the paths served by the marketplace backend.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		SignIn:   "/sign/in",
		Rooms:    "/chat/rooms",
		Messages: "/chat/messages",
		Send:     "/chat/send",
	}
}

// Client talks to the chat API.
type Client struct {
	baseURL    string
	endpoints  Endpoints
	httpClient *http.Client
	jar        *sessionJar
	logger     *zap.Logger
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = timeout }
}

// WithHTTPClient replaces the underlying client. Its Jar is overwritten by
// the session jar.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithEndpoints overrides individual paths; empty fields keep the default.
func WithEndpoints(e Endpoints) Option {
	return func(c *Client) {
		if e.SignIn != "" {
			c.endpoints.SignIn = e.SignIn
		}
		if e.Rooms != "" {
			c.endpoints.Rooms = e.Rooms
		}
		if e.Messages != "" {
			c.endpoints.Messages = e.Messages
		}
		if e.Send != "" {
			c.endpoints.Send = e.Send
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client with an empty cookie jar.
func NewClient(opts ...Option) (*Client, error) {
	jar, err := newSessionJar()
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	c := &Client{
		baseURL:    DefaultBaseURL,
		endpoints:  DefaultEndpoints(),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		jar:        jar,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.httpClient.Jar = c.jar
	return c, nil
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Cookies returns the session cookies held for the API host.
func (c *Client) Cookies() []*http.Cookie {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil
	}
	return c.jar.Cookies(u)
}

// SetCookies installs previously saved session cookies.
func (c *Client) SetCookies(cookies []*http.Cookie) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return
	}
	c.jar.SetCookies(u, cookies)
}

// ResetCookies drops every cookie, ending the server-side session locally.
func (c *Client) ResetCookies() {
	c.jar.reset()
}

// envelope is the response wrapper of every endpoint.
type envelope struct {
	Code    *int            `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any, query url.Values) (json.RawMessage, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", path, err)
	}
	c.logger.Debug("api request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)),
	)

	var env envelope
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			if resp.StatusCode/100 != 2 {
				return nil, &APIError{Status: resp.StatusCode, Code: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
			}
			return nil, fmt.Errorf("decode %s envelope: %w", path, err)
		}
	}

	code := resp.StatusCode
	if env.Code != nil {
		code = *env.Code
	}
	if resp.StatusCode/100 != 2 || code != http.StatusOK {
		msg := env.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &APIError{Status: resp.StatusCode, Code: code, Message: msg}
	}
	return env.Data, nil
}

func decodeData[T any](data json.RawMessage) (T, error) {
	var result T
	if len(data) == 0 || string(data) == "null" {
		return result, nil
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return result, fmt.Errorf("decode response data: %w", err)
	}
	return result, nil
}
