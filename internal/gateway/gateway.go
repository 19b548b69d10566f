// Package gateway wraps calls to the protected REST API: every request
// carries the session's bearer token, and a 401 triggers exactly one
// refresh followed by exactly one replay.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"userconsole/pkg/logging"
	"userconsole/pkg/oauth"
)

// DefaultTimeout bounds every API call.
const DefaultTimeout = 30 * time.Second

// RequestIDHeader correlates the original request and its replay in server logs.
const RequestIDHeader = "X-Request-ID"

// Session is the part of the session manager the gateway needs.
type Session interface {
	AccessToken() string
	Refresh(ctx context.Context) (string, error)
	Logout(ctx context.Context) (string, error)
}

// Gateway performs authenticated API calls.
type Gateway struct {
	sess       Session
	httpClient *http.Client
	baseURL    string
	userAgent  string
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(g *Gateway) {
		g.httpClient = httpClient
	}
}

// WithBaseURL sets the URL that relative paths are resolved against.
func WithBaseURL(baseURL string) Option {
	return func(g *Gateway) {
		g.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithTimeout sets the timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.httpClient = &http.Client{Timeout: d}
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(g *Gateway) {
		g.userAgent = ua
	}
}

// New creates a Gateway for sess.
func New(sess Session, opts ...Option) *Gateway {
	g := &Gateway{
		sess:       sess,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Get fetches path and decodes the JSON response into out.
func (g *Gateway) Get(ctx context.Context, path string, out interface{}) error {
	return g.Do(ctx, http.MethodGet, path, nil, out)
}

// Post sends body to path and decodes the JSON response into out.
func (g *Gateway) Post(ctx context.Context, path string, body Body, out interface{}) error {
	return g.Do(ctx, http.MethodPost, path, body, out)
}

// Put sends body to path and decodes the JSON response into out.
func (g *Gateway) Put(ctx context.Context, path string, body Body, out interface{}) error {
	return g.Do(ctx, http.MethodPut, path, body, out)
}

// Delete deletes path and decodes the JSON response, if any, into out.
func (g *Gateway) Delete(ctx context.Context, path string, out interface{}) error {
	return g.Do(ctx, http.MethodDelete, path, nil, out)
}

// Download fetches path and returns the raw response body.
func (g *Gateway) Download(ctx context.Context, path string) ([]byte, error) {
	return g.send(ctx, http.MethodGet, path, nil, "*/*")
}

// Do performs an authenticated call. body may be nil. When out is non-nil
// a JSON response is decoded into it; an empty body is tolerated.
func (g *Gateway) Do(ctx context.Context, method, path string, body Body, out interface{}) error {
	data, err := g.send(ctx, method, path, body, "application/json")
	if err != nil {
		return err
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response from %s %s: %w", method, path, err)
	}
	return nil
}

func (g *Gateway) send(ctx context.Context, method, path string, body Body, accept string) ([]byte, error) {
	var (
		payload     []byte
		contentType string
	)
	if body != nil {
		var err error
		payload, contentType, err = body.encode()
		if err != nil {
			return nil, err
		}
	}

	target := g.resolve(path)
	requestID := uuid.NewString()

	resp, data, err := g.attempt(ctx, method, target, payload, contentType, accept, g.sess.AccessToken(), requestID)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		if challenge := oauth.ParseWWWAuthenticateFromResponse(resp); challenge.IsBearer() && challenge.Error != "" {
			logging.Debug("Gateway", "%s %s unauthorized (%s), refreshing token", method, target, challenge.Error)
		} else {
			logging.Debug("Gateway", "%s %s unauthorized, refreshing token", method, target)
		}

		token, err := g.sess.Refresh(ctx)
		if err != nil {
			return nil, err
		}
		if token == "" {
			authURL, lerr := g.sess.Logout(ctx)
			if lerr != nil {
				logging.Error("Gateway", lerr, "Logout after failed refresh did not complete")
			}
			return nil, &SessionExpiredError{AuthURL: authURL}
		}

		resp, data, err = g.attempt(ctx, method, target, payload, contentType, accept, token, requestID)
		if err != nil {
			return nil, err
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{
			Method:     method,
			URL:        target,
			StatusCode: resp.StatusCode,
			Body:       string(data),
		}
	}

	return data, nil
}

// attempt performs one HTTP exchange and reads the whole response body.
func (g *Gateway) attempt(ctx context.Context, method, target string, payload []byte, contentType, accept, token, requestID string) (*http.Response, []byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set(RequestIDHeader, requestID)
	req.Header.Set("Accept", accept)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if g.userAgent != "" {
		req.Header.Set("User-Agent", g.userAgent)
	}

	start := time.Now()
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response from %s %s: %w", method, target, err)
	}

	logging.Debug("Gateway", "%s %s -> %d (%s, request %s)", method, target, resp.StatusCode, time.Since(start).Round(time.Millisecond), requestID)
	return resp, data, nil
}

func (g *Gateway) resolve(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") || g.baseURL == "" {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return g.baseURL + path
}
