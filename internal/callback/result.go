package callback

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrMissingCode is returned when the provider redirect carries neither a
// code nor an error. It is terminal for that navigation.
var ErrMissingCode = errors.New("callback did not include an authorization code")

// ProviderError is an error reported by the identity provider in the
// redirect, e.g. access_denied.
type ProviderError struct {
	Code        string
	Description string
}

func (e *ProviderError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("identity provider returned %s: %s", e.Code, e.Description)
	}
	return fmt.Sprintf("identity provider returned %s", e.Code)
}

// Result is the query of the provider's redirect to the callback route.
type Result struct {
	// Code is the authorization code.
	Code string

	// Error is the error code if the authorization failed.
	Error string

	// ErrorDescription is a human-readable error description.
	ErrorDescription string
}

// IsError returns true if the provider reported an error.
func (r *Result) IsError() bool {
	return r.Error != ""
}

// Err returns the terminal error of the callback, or nil when it carries a code.
func (r *Result) Err() error {
	switch {
	case r.IsError():
		return &ProviderError{Code: r.Error, Description: r.ErrorDescription}
	case r.Code == "":
		return ErrMissingCode
	}
	return nil
}

func resultFromQuery(q url.Values) *Result {
	return &Result{
		Code:             q.Get("code"),
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
	}
}

// ParseRedirect extracts the callback result from the URL the browser was
// redirected to, as pasted by the user. A bare query string is accepted too.
func ParseRedirect(rawURL string) (*Result, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, ErrMissingCode
	}

	var query string
	if u, err := url.Parse(rawURL); err == nil && (u.RawQuery != "" || u.Scheme != "") {
		query = u.RawQuery
	} else {
		query = strings.TrimPrefix(rawURL, "?")
	}

	q, err := url.ParseQuery(query)
	if err != nil {
		return nil, fmt.Errorf("invalid callback URL: %w", err)
	}

	result := resultFromQuery(q)
	return result, result.Err()
}
