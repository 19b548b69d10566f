package config

import (
	"fmt"
	"net/url"
	"strings"

	"userconsole/pkg/oauth"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return "invalid configuration: " + ve[0].Error()
	}

	messages := make([]string, 0, len(ve))
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("invalid configuration: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string, value ...interface{}) {
	var val interface{}
	if len(value) > 0 {
		val = value[0]
	}
	*ve = append(*ve, ValidationError{Field: field, Value: val, Message: message})
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	var errs ValidationErrors

	if strings.TrimSpace(c.OIDC.ClientID) == "" {
		errs.Add("oidc.client_id", "is required (set USERCONSOLE_OIDC_CLIENT_ID)")
	}
	// Without an issuer there is no discovery to fall back on.
	if c.OIDC.Issuer == "" {
		if c.OIDC.AuthorizeEndpoint == "" {
			errs.Add("oidc.authorize_endpoint", "is required when oidc.issuer is not set")
		}
		if c.OIDC.TokenEndpoint == "" {
			errs.Add("oidc.token_endpoint", "is required when oidc.issuer is not set")
		}
	}
	checkURL(&errs, "oidc.issuer", c.OIDC.Issuer, false)
	checkURL(&errs, "oidc.authorize_endpoint", c.OIDC.AuthorizeEndpoint, false)
	checkURL(&errs, "oidc.token_endpoint", c.OIDC.TokenEndpoint, false)
	checkURL(&errs, "oidc.revoke_endpoint", c.OIDC.RevokeEndpoint, false)
	checkURL(&errs, "oidc.redirect_uri", c.OIDC.RedirectURI, true)
	checkURL(&errs, "oidc.post_logout_redirect_uri", c.OIDC.PostLogoutRedirectURI, false)
	if len(c.OIDC.ScopeList()) == 0 {
		errs.Add("oidc.scopes", "must request at least one scope")
	}

	checkURL(&errs, "api.base_url", c.API.BaseURL, true)
	if c.API.Timeout < 0 {
		errs.Add("api.timeout", "must not be negative", c.API.Timeout)
	}

	if c.Session.RefreshInterval < 0 {
		errs.Add("session.refresh_interval", "must not be negative (0 disables proactive refresh)", c.Session.RefreshInterval)
	}
	if n := c.Session.VerifierLength; n != 0 && (n < oauth.MinVerifierLength || n > oauth.MaxVerifierLength) {
		errs.Add("session.verifier_length", fmt.Sprintf("must be between %d and %d", oauth.MinVerifierLength, oauth.MaxVerifierLength), n)
	}

	switch strings.ToLower(c.Store.Backend) {
	case "", "file", "sqlite", "memory":
	default:
		errs.Add("store.backend", "must be one of: file, sqlite, memory", c.Store.Backend)
	}

	if r := c.Update.Repository; r != "" {
		if owner, name, ok := strings.Cut(r, "/"); !ok || owner == "" || name == "" || strings.Contains(name, "/") {
			errs.Add("update.repository", "must be of the form owner/name", r)
		}
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func checkURL(errs *ValidationErrors, field, raw string, required bool) {
	if raw == "" {
		if required {
			errs.Add(field, "is required")
		}
		return
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs.Add(field, "must be an absolute http(s) URL", raw)
	}
}
