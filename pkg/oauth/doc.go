// Package oauth provides the OAuth 2.0 protocol pieces used by the userconsole
// session: PKCE generation, authorization URL construction, and the token and
// revocation endpoint calls of a public client.
//
// # Core Components
//
//   - PKCE: verifier generation and S256 challenge derivation (RFC 7636)
//   - Token: token endpoint response, including provider error fields
//   - Client: authorization_code and refresh_token grants, token revocation
//   - AuthChallenge: parsed WWW-Authenticate header from the protected API
//
// # Usage
//
//	pkce, err := oauth.GeneratePKCE(oauth.DefaultVerifierLength)
//	authURL, err := oauth.BuildAuthorizationURL(oauth.AuthorizationRequest{
//		Endpoints:   endpoints,
//		ClientID:    clientID,
//		RedirectURI: redirectURI,
//		Scopes:      []string{"openid", "offline_access"},
//		Challenge:   pkce.CodeChallenge,
//		Extra:       map[string]string{"prompt": "login"},
//	})
//
//	client := oauth.NewClient(oauth.WithHTTPClient(httpClient))
//	token, err := client.ExchangeCode(ctx, endpoints.TokenURL, code, redirectURI, clientID, pkce.CodeVerifier)
//
// The package holds no state; storage and the session state machine live in
// internal/tokenstore and internal/session.
package oauth
