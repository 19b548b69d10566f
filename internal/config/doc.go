// Package config loads the userconsole configuration.
//
// Values are layered, later sources winning:
//
//  1. built-in defaults (a local WSO2 Identity Server and API on localhost)
//  2. ~/.config/userconsole/config.yaml, or the file passed with --config
//  3. a .env file in the working directory
//  4. USERCONSOLE_* environment variables
//
// Environment variable names follow the YAML structure:
//
//	USERCONSOLE_OIDC_CLIENT_ID
//	USERCONSOLE_OIDC_ISSUER
//	USERCONSOLE_OIDC_AUTHORIZE_ENDPOINT
//	USERCONSOLE_OIDC_TOKEN_ENDPOINT
//	USERCONSOLE_OIDC_REVOKE_ENDPOINT
//	USERCONSOLE_OIDC_REDIRECT_URI
//	USERCONSOLE_OIDC_SCOPES
//	USERCONSOLE_API_BASE_URL
//	USERCONSOLE_API_TIMEOUT
//	USERCONSOLE_SESSION_REFRESH_INTERVAL
//	USERCONSOLE_STORE_BACKEND
//	USERCONSOLE_STORE_DIR
//	USERCONSOLE_UPDATE_REPOSITORY
//
// The VITE_WSO2_* names of the browser build are accepted as aliases for the
// matching OIDC settings.
//
// Example config.yaml:
//
//	oidc:
//	  client_id: my-console
//	  issuer: https://localhost:9443/oauth2/token
//	  redirect_uri: http://localhost:5173/auth/callback
//	api:
//	  base_url: http://localhost:8081
//	session:
//	  refresh_interval: 4m
//	store:
//	  backend: sqlite
package config
