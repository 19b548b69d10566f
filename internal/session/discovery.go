package session

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"

	"userconsole/pkg/logging"
	"userconsole/pkg/oauth"
)

// discovery caches the provider metadata fetched from the issuer.
type discovery struct {
	provider  *oidc.Provider
	endpoints oauth.Endpoints
}

// idTokenAlgorithms are accepted when an ID token is decoded without an issuer.
var idTokenAlgorithms = []jose.SignatureAlgorithm{
	jose.RS256, jose.RS384, jose.RS512,
	jose.PS256, jose.PS384, jose.PS512,
	jose.ES256, jose.ES384, jose.ES512,
	jose.EdDSA, jose.HS256,
}

// endpoints returns the configured endpoints, filling blanks from OIDC
// discovery when an issuer is configured.
func (m *Manager) endpoints(ctx context.Context) (oauth.Endpoints, error) {
	ep := m.cfg.Endpoints
	if m.cfg.Issuer == "" || (ep.AuthorizeURL != "" && ep.TokenURL != "" && ep.RevokeURL != "") {
		return ep, nil
	}

	d, err := m.discover(ctx)
	if err != nil {
		if ep.AuthorizeURL != "" && ep.TokenURL != "" {
			logging.Warn("Session", "OIDC discovery failed, continuing with configured endpoints: %v", err)
			return ep, nil
		}
		return oauth.Endpoints{}, err
	}

	if ep.AuthorizeURL == "" {
		ep.AuthorizeURL = d.endpoints.AuthorizeURL
	}
	if ep.TokenURL == "" {
		ep.TokenURL = d.endpoints.TokenURL
	}
	if ep.RevokeURL == "" {
		ep.RevokeURL = d.endpoints.RevokeURL
	}
	return ep, nil
}

func (m *Manager) discover(ctx context.Context) (*discovery, error) {
	m.discoveryMu.Lock()
	defer m.discoveryMu.Unlock()

	if m.discovery != nil {
		return m.discovery, nil
	}

	provider, err := oidc.NewProvider(oidc.ClientContext(ctx, m.httpClient), m.cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("discover OIDC provider %s: %w", m.cfg.Issuer, err)
	}

	var providerClaims struct {
		RevocationEndpoint string `json:"revocation_endpoint"`
	}
	if err := provider.Claims(&providerClaims); err != nil {
		logging.Warn("Session", "Could not extract provider claims: %v", err)
	}

	endpoint := provider.Endpoint()
	m.discovery = &discovery{
		provider: provider,
		endpoints: oauth.Endpoints{
			AuthorizeURL: endpoint.AuthURL,
			TokenURL:     endpoint.TokenURL,
			RevokeURL:    providerClaims.RevocationEndpoint,
		},
	}

	logging.Info("Session", "OIDC provider discovered: %s", m.cfg.Issuer)
	return m.discovery, nil
}

// Endpoints returns the effective provider endpoints.
func (m *Manager) Endpoints(ctx context.Context) (oauth.Endpoints, error) {
	return m.endpoints(ctx)
}

// Claims returns the identity claims of the stored ID token. With an issuer
// configured the token signature, issuer and audience are verified; expiry
// is not checked because the ID token is not renewed by every refresh.
// Without an issuer the claims are decoded unverified.
func (m *Manager) Claims(ctx context.Context) (*oauth.IDTokenClaims, error) {
	raw := m.IDToken()
	if raw == "" {
		return nil, ErrNotAuthenticated
	}

	var claims oauth.IDTokenClaims

	if m.cfg.Issuer == "" {
		tok, err := jwt.ParseSigned(raw, idTokenAlgorithms)
		if err != nil {
			return nil, fmt.Errorf("failed to parse id token: %w", err)
		}
		if err := tok.UnsafeClaimsWithoutVerification(&claims); err != nil {
			return nil, fmt.Errorf("failed to decode id token claims: %w", err)
		}
		return &claims, nil
	}

	d, err := m.discover(ctx)
	if err != nil {
		return nil, err
	}

	verifier := d.provider.Verifier(&oidc.Config{
		ClientID:        m.cfg.ClientID,
		SkipExpiryCheck: true,
	})
	idToken, err := verifier.Verify(oidc.ClientContext(ctx, m.httpClient), raw)
	if err != nil {
		return nil, fmt.Errorf("failed to verify id token: %w", err)
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to decode id token claims: %w", err)
	}
	return &claims, nil
}
