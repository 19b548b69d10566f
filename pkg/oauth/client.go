package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// DefaultHTTPTimeout is the default timeout for token endpoint requests.
const DefaultHTTPTimeout = 30 * time.Second

// ProtocolError is returned when the token endpoint answers without an
// access token. Code and Description carry the provider's error fields when
// present.
type ProtocolError struct {
	Status      int
	Code        string
	Description string
}

func (e *ProtocolError) Error() string {
	switch {
	case e.Code != "" && e.Description != "":
		return fmt.Sprintf("token endpoint returned %s: %s", e.Code, e.Description)
	case e.Code != "":
		return fmt.Sprintf("token endpoint returned %s", e.Code)
	case e.Description != "":
		return fmt.Sprintf("token endpoint error: %s", e.Description)
	}
	return fmt.Sprintf("token endpoint returned status %d without an access token", e.Status)
}

// Client performs the token endpoint and revocation endpoint calls of a
// public OAuth client.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// ClientOption configures the OAuth client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new OAuth client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultHTTPTimeout},
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// ExchangeCode exchanges an authorization code and its PKCE verifier for tokens.
func (c *Client) ExchangeCode(ctx context.Context, tokenEndpoint, code, redirectURI, clientID, codeVerifier string) (*Token, error) {
	data := url.Values{
		"grant_type":    {GrantTypeAuthorizationCode},
		"code":          {code},
		"redirect_uri":  {redirectURI},
		"client_id":     {clientID},
		"code_verifier": {codeVerifier},
	}

	return c.doTokenRequest(ctx, tokenEndpoint, data)
}

// RefreshToken obtains a new access token using a refresh token.
func (c *Client) RefreshToken(ctx context.Context, tokenEndpoint, refreshToken, clientID string) (*Token, error) {
	data := url.Values{
		"grant_type":    {GrantTypeRefreshToken},
		"refresh_token": {refreshToken},
		"client_id":     {clientID},
	}

	return c.doTokenRequest(ctx, tokenEndpoint, data)
}

// Revoke asks the provider to invalidate a token (RFC 7009). hint is one of
// TokenTypeHintAccessToken or TokenTypeHintRefreshToken.
func (c *Client) Revoke(ctx context.Context, revokeEndpoint, token, hint, clientID string) error {
	data := url.Values{
		"token":           {token},
		"token_type_hint": {hint},
		"client_id":       {clientID},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, revokeEndpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create revocation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("revocation request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("revocation of %s failed with status %d", hint, resp.StatusCode)
	}

	return nil
}

// doTokenRequest performs a token endpoint request. The body is decoded
// regardless of status; the response counts as a success only when it
// carries an access token.
func (c *Client) doTokenRequest(ctx context.Context, tokenEndpoint string, data url.Values) (*Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenEndpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	var token Token
	if err := json.Unmarshal(body, &token); err != nil {
		c.logger.Debug("Token response is not JSON",
			"status", resp.StatusCode,
			"grant_type", data.Get("grant_type"))
		return nil, &ProtocolError{Status: resp.StatusCode, Description: http.StatusText(resp.StatusCode)}
	}

	if token.AccessToken == "" {
		c.logger.Debug("Token request returned no access token",
			"status", resp.StatusCode,
			"grant_type", data.Get("grant_type"),
			"error", token.Error)
		return nil, &ProtocolError{
			Status:      resp.StatusCode,
			Code:        token.Error,
			Description: token.ErrorDescription,
		}
	}

	token.SetExpiresAtFromExpiresIn()

	return &token, nil
}

// AuthorizationRequest describes an authorization code request with PKCE.
type AuthorizationRequest struct {
	Endpoints   Endpoints
	ClientID    string
	RedirectURI string
	Scopes      []string
	Challenge   string

	// Extra holds additional query parameters such as prompt=login.
	Extra map[string]string
}

// BuildAuthorizationURL constructs the authorize URL carrying client_id,
// redirect_uri, response_type=code, scope, code_challenge and
// code_challenge_method=S256, plus any extra parameters.
func BuildAuthorizationURL(r AuthorizationRequest) (string, error) {
	if _, err := url.Parse(r.Endpoints.AuthorizeURL); err != nil {
		return "", fmt.Errorf("invalid authorization endpoint: %w", err)
	}

	conf := oauth2.Config{
		ClientID:    r.ClientID,
		RedirectURL: r.RedirectURI,
		Scopes:      r.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  r.Endpoints.AuthorizeURL,
			TokenURL: r.Endpoints.TokenURL,
		},
	}

	opts := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("code_challenge", r.Challenge),
		oauth2.SetAuthURLParam("code_challenge_method", ChallengeMethodS256),
	}
	for k, v := range r.Extra {
		opts = append(opts, oauth2.SetAuthURLParam(k, v))
	}

	// An empty state makes AuthCodeURL omit the parameter.
	return conf.AuthCodeURL("", opts...), nil
}
