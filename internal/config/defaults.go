package config

import (
	"time"

	"userconsole/internal/tokenstore"
)

const (
	// DefaultAuthorizeEndpoint is the authorize endpoint of a local WSO2 Identity Server.
	DefaultAuthorizeEndpoint = "https://localhost:9443/oauth2/authorize"
	// DefaultTokenEndpoint is the token endpoint of a local WSO2 Identity Server.
	DefaultTokenEndpoint = "https://localhost:9443/oauth2/token"
	// DefaultRevokeEndpoint is the revocation endpoint of a local WSO2 Identity Server.
	DefaultRevokeEndpoint = "https://localhost:9443/oauth2/revoke"

	DefaultRedirectURI           = "http://localhost:5173/auth/callback"
	DefaultPostLogoutRedirectURI = "http://localhost:5173/login"
	DefaultScopes                = "openid profile email offline_access address"
	DefaultAPIBaseURL            = "http://localhost:8081"
	DefaultAPITimeout            = 30 * time.Second
	DefaultRefreshInterval       = 4 * time.Minute
)

// Default returns the configuration used when nothing else is provided.
func Default() Config {
	return Config{
		OIDC: OIDCConfig{
			AuthorizeEndpoint:     DefaultAuthorizeEndpoint,
			TokenEndpoint:         DefaultTokenEndpoint,
			RevokeEndpoint:        DefaultRevokeEndpoint,
			RedirectURI:           DefaultRedirectURI,
			Scopes:                DefaultScopes,
			PostLogoutRedirectURI: DefaultPostLogoutRedirectURI,
		},
		API: APIConfig{
			BaseURL: DefaultAPIBaseURL,
			Timeout: DefaultAPITimeout,
		},
		Session: SessionConfig{
			RefreshInterval: DefaultRefreshInterval,
		},
		Store: StoreConfig{
			Backend: string(tokenstore.BackendFile),
		},
	}
}
