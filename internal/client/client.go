package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/CaioWing/harbor-console/internal/domain"
)

// SessionCookie is the cookie name the backend reads the access token from.
const SessionCookie = "session_id"

// Client talks to the fleet backend's REST surface. No timeout is imposed on
// calls beyond what the caller's context or the injected http.Client set.
type Client struct {
	base *url.URL
	http *http.Client
	log  *slog.Logger

	mu    sync.RWMutex
	token string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func WithLogger(log *slog.Logger) Option {
	return func(c *Client) { c.log = log }
}

func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("backend url %q: %w", baseURL, domain.ErrInvalidInput)
	}

	c := &Client{
		base: u,
		http: &http.Client{},
		log:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) BaseURL() string { return c.base.String() }

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// URL resolves an endpoint path against the backend base.
func (c *Client) URL(path string) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	return u.String()
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.URL(path), body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range c.AuthHeader() {
		req.Header[k] = v
	}
	return req, nil
}

// AuthHeader carries the session token the way the backend expects it on
// both plain requests and socket upgrades.
func (c *Client) AuthHeader() http.Header {
	h := http.Header{}
	if tok := c.Token(); tok != "" {
		h.Set("Authorization", "Bearer "+tok)
		h.Set("Cookie", (&http.Cookie{Name: SessionCookie, Value: tok}).String())
	}
	return h
}

// do sends req and decodes a 2xx JSON body into out (when non-nil).
func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w: %w", req.Method, req.URL.Path, domain.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := decodeError(resp)
		if !apiErr.HasDetail {
			c.log.Warn("backend error without detail",
				"method", req.Method, "path", req.URL.Path, "status", resp.StatusCode)
		}
		return apiErr
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return nil
}

type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

func decodeError(resp *http.Response) *APIError {
	apiErr := &APIError{Status: resp.StatusCode}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil || len(raw) == 0 {
		return apiErr
	}
	var body errorBody
	if err := json.Unmarshal(raw, &body); err != nil || len(body.Detail) == 0 || string(body.Detail) == "null" {
		return apiErr
	}

	var s string
	if err := json.Unmarshal(body.Detail, &s); err == nil {
		apiErr.Detail = s
	} else {
		// Validation errors carry a structured detail; show it as-is.
		apiErr.Detail = string(body.Detail)
	}
	apiErr.HasDetail = apiErr.Detail != ""
	return apiErr
}

// Mutate sends a JSON body with the given method and expects a 2xx answer.
func (c *Client) Mutate(ctx context.Context, method, path string, body interface{}) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", path, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := c.newRequest(ctx, method, path, reader)
	if err != nil {
		return err
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, nil)
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Login exchanges operator credentials for an access token and keeps it for
// subsequent calls.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	req, err := c.newRequest(ctx, http.MethodPost, "/login", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var out loginResponse
	if err := c.do(req, &out); err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("login: empty access token: %w", domain.ErrUnauthorized)
	}

	c.SetToken(out.AccessToken)
	return out.AccessToken, nil
}

// DownloadURL is the direct link to a software artifact.
func (c *Client) DownloadURL(softwareID string) string {
	return c.URL("/ui/bff/download/" + url.PathEscape(softwareID))
}
