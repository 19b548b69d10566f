package oauth

import (
	"strings"
	"time"
)

// Grant types and token type hints used on the wire.
const (
	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypeRefreshToken      = "refresh_token"

	TokenTypeHintAccessToken  = "access_token"
	TokenTypeHintRefreshToken = "refresh_token"
)

// Endpoints groups the identity provider URLs the session talks to.
type Endpoints struct {
	// AuthorizeURL is where the browser is sent to log in.
	AuthorizeURL string

	// TokenURL serves the authorization_code and refresh_token grants.
	TokenURL string

	// RevokeURL is the RFC 7009 revocation endpoint. Optional.
	RevokeURL string
}

// IDTokenClaims holds the identity claims shown by `auth whoami`.
type IDTokenClaims struct {
	Subject           string `json:"sub"`
	Email             string `json:"email,omitempty"`
	Name              string `json:"name,omitempty"`
	PreferredUsername string `json:"preferred_username,omitempty"`
	Issuer            string `json:"iss,omitempty"`
	ExpiresAt         int64  `json:"exp,omitempty"`
}

// Expiry returns the exp claim as a time, or the zero time when absent.
func (c *IDTokenClaims) Expiry() time.Time {
	if c.ExpiresAt == 0 {
		return time.Time{}
	}
	return time.Unix(c.ExpiresAt, 0)
}

// Token is a token endpoint response. Error and ErrorDescription are filled
// when the provider rejects the grant (RFC 6749 section 5.2).
type Token struct {
	AccessToken  string `json:"access_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
	Scope        string `json:"scope,omitempty"`

	Error            string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`

	// ExpiresAt is computed from ExpiresIn when the response is received.
	ExpiresAt time.Time `json:"-"`
}

// SetExpiresAtFromExpiresIn calculates and sets ExpiresAt from ExpiresIn.
func (t *Token) SetExpiresAtFromExpiresIn() {
	if t.ExpiresIn > 0 && t.ExpiresAt.IsZero() {
		t.ExpiresAt = time.Now().Add(time.Duration(t.ExpiresIn) * time.Second)
	}
}

// Scopes returns the granted scope as a slice.
func (t *Token) Scopes() []string {
	if t.Scope == "" {
		return nil
	}
	return strings.Fields(t.Scope)
}

// AuthChallenge represents parsed information from a WWW-Authenticate header
// on a 401 response from the protected API.
type AuthChallenge struct {
	// Scheme is the authentication scheme, normally "Bearer".
	Scheme string

	// Realm is the protection realm.
	Realm string

	// Scope is the space-separated list of required scopes.
	Scope string

	// Error is the RFC 6750 error code, e.g. "invalid_token".
	Error string

	// ErrorDescription is a human-readable error description.
	ErrorDescription string
}

// IsBearer reports whether the challenge uses the Bearer scheme.
func (c *AuthChallenge) IsBearer() bool {
	return c != nil && strings.EqualFold(c.Scheme, "Bearer")
}
