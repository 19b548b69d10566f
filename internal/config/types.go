package config

import (
	"strings"
	"time"
)

// Config is the top-level configuration of userconsole. It is loaded once
// at startup and never modified afterwards.
type Config struct {
	OIDC    OIDCConfig    `yaml:"oidc" envconfig:"OIDC"`
	API     APIConfig     `yaml:"api" envconfig:"API"`
	Session SessionConfig `yaml:"session" envconfig:"SESSION"`
	Store   StoreConfig   `yaml:"store" envconfig:"STORE"`
	Update  UpdateConfig  `yaml:"update" envconfig:"UPDATE"`
}

// OIDCConfig describes the identity provider and this client's registration.
type OIDCConfig struct {
	// Issuer enables discovery and ID token verification. Optional when
	// the endpoints are configured explicitly.
	Issuer                string `yaml:"issuer,omitempty" envconfig:"ISSUER"`
	ClientID              string `yaml:"client_id" envconfig:"CLIENT_ID"`
	AuthorizeEndpoint     string `yaml:"authorize_endpoint,omitempty" envconfig:"AUTHORIZE_ENDPOINT"`
	TokenEndpoint         string `yaml:"token_endpoint,omitempty" envconfig:"TOKEN_ENDPOINT"`
	RevokeEndpoint        string `yaml:"revoke_endpoint,omitempty" envconfig:"REVOKE_ENDPOINT"`
	RedirectURI           string `yaml:"redirect_uri" envconfig:"REDIRECT_URI"`
	Scopes                string `yaml:"scopes" envconfig:"SCOPES"` // space separated
	PostLogoutRedirectURI string `yaml:"post_logout_redirect_uri,omitempty" envconfig:"POST_LOGOUT_REDIRECT_URI"`
}

// ScopeList splits Scopes on whitespace.
func (c OIDCConfig) ScopeList() []string {
	return strings.Fields(c.Scopes)
}

// APIConfig points at the user management backend.
type APIConfig struct {
	BaseURL string        `yaml:"base_url" envconfig:"BASE_URL"`
	Timeout time.Duration `yaml:"timeout,omitempty" envconfig:"TIMEOUT"`
}

// SessionConfig tunes the session manager.
type SessionConfig struct {
	// RefreshInterval is the proactive refresh period; 0 disables it.
	RefreshInterval time.Duration `yaml:"refresh_interval" envconfig:"REFRESH_INTERVAL"`
	VerifierLength  int           `yaml:"verifier_length,omitempty" envconfig:"VERIFIER_LENGTH"`
}

// StoreConfig selects where tokens are persisted.
type StoreConfig struct {
	Backend string `yaml:"backend" envconfig:"BACKEND"`
	Dir     string `yaml:"dir,omitempty" envconfig:"DIR"`
}

// UpdateConfig configures self-update.
type UpdateConfig struct {
	// Repository is the GitHub "owner/name" releases are fetched from.
	Repository string `yaml:"repository,omitempty" envconfig:"REPOSITORY"`
}
