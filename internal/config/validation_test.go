package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := Default()
	cfg.OIDC.ClientID = "console"
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing client id", func(c *Config) { c.OIDC.ClientID = " " }, "oidc.client_id"},
		{"no endpoints without issuer", func(c *Config) { c.OIDC.TokenEndpoint = "" }, "oidc.token_endpoint"},
		{"issuer allows discovery", func(c *Config) {
			c.OIDC.Issuer = "https://idp.example.com"
			c.OIDC.AuthorizeEndpoint = ""
			c.OIDC.TokenEndpoint = ""
		}, ""},
		{"relative redirect", func(c *Config) { c.OIDC.RedirectURI = "/auth/callback" }, "oidc.redirect_uri"},
		{"no scopes", func(c *Config) { c.OIDC.Scopes = "  " }, "oidc.scopes"},
		{"missing api", func(c *Config) { c.API.BaseURL = "" }, "api.base_url"},
		{"negative refresh", func(c *Config) { c.Session.RefreshInterval = -time.Second }, "session.refresh_interval"},
		{"zero refresh disables", func(c *Config) { c.Session.RefreshInterval = 0 }, ""},
		{"short verifier", func(c *Config) { c.Session.VerifierLength = 42 }, "session.verifier_length"},
		{"long verifier", func(c *Config) { c.Session.VerifierLength = 129 }, "session.verifier_length"},
		{"unknown backend", func(c *Config) { c.Store.Backend = "redis" }, "store.backend"},
		{"backend case", func(c *Config) { c.Store.Backend = "SQLite" }, ""},
		{"bad repository", func(c *Config) { c.Update.Repository = "userconsole" }, "update.repository"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var verrs ValidationErrors
			require.True(t, errors.As(err, &verrs), "got %v", err)
			fields := make([]string, 0, len(verrs))
			for _, e := range verrs {
				fields = append(fields, e.Field)
			}
			assert.Contains(t, fields, tt.field)
		})
	}
}

func TestValidationErrors_Error(t *testing.T) {
	var errs ValidationErrors
	assert.Equal(t, "no validation errors", errs.Error())

	errs.Add("a", "is bad")
	assert.Equal(t, "invalid configuration: field 'a': is bad", errs.Error())

	errs.Add("b", "is worse", 3)
	assert.Equal(t, "invalid configuration: field 'a': is bad; field 'b': is worse", errs.Error())
	assert.Equal(t, 3, errs[1].Value)
}
