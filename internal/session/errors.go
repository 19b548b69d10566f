package session

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingVerifier is returned by ExchangeCode when no PKCE verifier is
	// stored, e.g. when a callback is replayed after the verifier was consumed.
	// The user must start a new login.
	ErrMissingVerifier = errors.New("no PKCE verifier stored for this login; start a new login")

	// ErrInvalidVerifier is returned by ExchangeCode when the stored verifier
	// is not a legal RFC 7636 verifier. It is discarded.
	ErrInvalidVerifier = errors.New("stored PKCE verifier is malformed; start a new login")

	// ErrNotAuthenticated is returned by operations that need an ID or access token.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrSessionReset is returned when a token response arrives after the
	// session was logged out. The response is discarded.
	ErrSessionReset = errors.New("session was logged out while the request was in flight")
)

// TokenExchangeError is returned when the provider does not issue tokens for
// an authorization code.
type TokenExchangeError struct {
	// Status is the HTTP status of the token response, 0 on network failure.
	Status int

	// Code is the provider's error code, e.g. "invalid_grant".
	Code string

	// Description is the provider's error_description.
	Description string

	Err error
}

func (e *TokenExchangeError) Error() string {
	switch {
	case e.Description != "":
		return fmt.Sprintf("login failed: %s", e.Description)
	case e.Code != "":
		return fmt.Sprintf("login failed: %s", e.Code)
	case e.Err != nil:
		return fmt.Sprintf("login failed: %v", e.Err)
	}
	return "login failed: token endpoint returned no access token"
}

func (e *TokenExchangeError) Unwrap() error {
	return e.Err
}

// RefreshError describes a failed refresh grant. It is logged and triggers a
// forced logout; it is never returned to callers of Refresh.
type RefreshError struct {
	Err error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("token refresh failed: %v", e.Err)
}

func (e *RefreshError) Unwrap() error {
	return e.Err
}
