// Package session owns the OIDC session lifecycle: the authorization code
// login with PKCE, the code exchange, silent refresh, logout with token
// revocation, and the proactive refresh timer.
//
// A Manager is the single owner of session state. Every collaborator that
// needs authentication receives the same *Manager.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"userconsole/internal/tokenstore"
	"userconsole/pkg/logging"
	"userconsole/pkg/oauth"
)

// DefaultRefreshInterval is the period of the proactive refresh timer.
const DefaultRefreshInterval = 4 * time.Minute

// Config is the identity provider configuration of the session.
type Config struct {
	// Issuer enables OIDC discovery and ID token verification. Optional.
	Issuer string

	ClientID    string
	RedirectURI string
	Scopes      []string

	// Endpoints may be left blank when Issuer is set; discovery fills them.
	Endpoints oauth.Endpoints
}

// Validate checks that the configuration can drive a login.
func (c Config) Validate() error {
	if c.ClientID == "" {
		return errors.New("oidc client id is required")
	}
	if c.RedirectURI == "" {
		return errors.New("oidc redirect uri is required")
	}
	if c.Issuer == "" && (c.Endpoints.AuthorizeURL == "" || c.Endpoints.TokenURL == "") {
		return errors.New("oidc authorize and token endpoints are required when no issuer is configured")
	}
	return nil
}

// Manager is the session state machine.
type Manager struct {
	cfg        Config
	store      tokenstore.Store
	client     *oauth.Client
	httpClient *http.Client
	navigator  Navigator

	refreshInterval time.Duration
	verifierLength  int
	onStateChange   func(from, to State)

	mu    sync.Mutex
	state State

	// epoch is bumped by Logout. Token responses started under an older
	// epoch are discarded.
	epoch uint64

	// pendingAuthURL is the authorize URL issued by the last Logout and
	// pendingVerifier the verifier its challenge was derived from. The URL
	// is reused only while that verifier is still the stored one.
	pendingAuthURL  string
	pendingVerifier string

	refreshGroup singleflight.Group
	refresher    *refresher

	discoveryMu sync.Mutex
	discovery   *discovery
}

// Option configures a Manager.
type Option func(*Manager)

// WithHTTPClient sets the HTTP client used for the token, revocation and
// discovery endpoints.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(m *Manager) {
		m.httpClient = httpClient
	}
}

// WithNavigator sets how the user is sent to the authorize URL.
func WithNavigator(n Navigator) Option {
	return func(m *Manager) {
		m.navigator = n
	}
}

// WithRefreshInterval sets the proactive refresh period. Zero disables the timer.
func WithRefreshInterval(d time.Duration) Option {
	return func(m *Manager) {
		m.refreshInterval = d
	}
}

// WithVerifierLength sets the PKCE verifier length, clamped to [43,128].
func WithVerifierLength(n int) Option {
	return func(m *Manager) {
		m.verifierLength = n
	}
}

// WithStateListener registers a callback run after every state transition.
// It runs with no locks held.
func WithStateListener(fn func(from, to State)) Option {
	return func(m *Manager) {
		m.onStateChange = fn
	}
}

// NewManager creates a Manager whose initial state is derived from the store.
func NewManager(cfg Config, store tokenstore.Store, opts ...Option) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, errors.New("token store is required")
	}

	m := &Manager{
		cfg:             cfg,
		store:           store,
		httpClient:      &http.Client{Timeout: oauth.DefaultHTTPTimeout},
		navigator:       BrowserNavigator{},
		refreshInterval: DefaultRefreshInterval,
		verifierLength:  oauth.DefaultVerifierLength,
	}
	for _, opt := range opts {
		opt(m)
	}

	m.client = oauth.NewClient(oauth.WithHTTPClient(m.httpClient), oauth.WithLogger(logging.Logger("OAuth")))
	m.refresher = newRefresher(m.refreshInterval, m.proactiveRefresh)

	m.mu.Lock()
	m.state = m.derivedStateLocked()
	if m.state == StateAuthenticated {
		m.refresher.arm()
	}
	m.mu.Unlock()

	logging.Debug("Session", "Session initialized in state %s", m.State())
	return m, nil
}

// Login starts a new authorization attempt: a fresh verifier overwrites any
// stale one, the challenge is derived from it, and the navigator is sent to
// the authorize URL, which is also returned. A session that still holds an
// access token stays Authenticated until the new login completes.
func (m *Manager) Login(ctx context.Context) (string, error) {
	authURL, _, err := m.startLogin(ctx)
	return authURL, err
}

// startLogin implements Login and also returns the verifier it stored.
func (m *Manager) startLogin(ctx context.Context) (string, string, error) {
	endpoints, err := m.endpoints(ctx)
	if err != nil {
		return "", "", err
	}

	pkce, err := oauth.GeneratePKCE(m.verifierLength)
	if err != nil {
		logging.Error("Session", err, "Failed to generate PKCE verifier")
		return "", "", err
	}

	authURL, err := oauth.BuildAuthorizationURL(oauth.AuthorizationRequest{
		Endpoints:   endpoints,
		ClientID:    m.cfg.ClientID,
		RedirectURI: m.cfg.RedirectURI,
		Scopes:      m.cfg.Scopes,
		Challenge:   pkce.CodeChallenge,
		Extra:       map[string]string{"prompt": "login"},
	})
	if err != nil {
		return "", "", err
	}

	if err := m.store.Set(tokenstore.SlotPKCEVerifier, pkce.CodeVerifier); err != nil {
		return "", "", fmt.Errorf("failed to persist PKCE verifier: %w", err)
	}

	m.mu.Lock()
	notify := func() {}
	if !m.hasLocked(tokenstore.SlotAccessToken) {
		notify = m.setStateLocked(StateAuthenticating)
	}
	m.mu.Unlock()
	notify()

	logging.Info("Session", "Redirecting to identity provider for login")
	if err := m.navigator.Navigate(authURL); err != nil {
		logging.Warn("Session", "Navigation to authorize URL failed: %v", err)
	}

	return authURL, pkce.CodeVerifier, nil
}

// ExchangeCode trades the authorization code and the stored verifier for
// tokens. On success the session is Authenticated and the verifier erased.
// On a response without an access token the session is Anonymous, a
// *TokenExchangeError is returned, and the verifier is left in place.
func (m *Manager) ExchangeCode(ctx context.Context, code string) error {
	verifier, ok := m.store.Get(tokenstore.SlotPKCEVerifier)
	if !ok || verifier == "" {
		logging.Warn("Session", "Authorization code received without a stored PKCE verifier")
		return ErrMissingVerifier
	}
	if !oauth.IsValidVerifier(verifier) {
		logging.Warn("Session", "Stored PKCE verifier is malformed, discarding it")
		if err := m.store.Remove(tokenstore.SlotPKCEVerifier); err != nil {
			logging.Warn("Session", "Failed to erase malformed PKCE verifier: %v", err)
		}
		return ErrInvalidVerifier
	}

	endpoints, err := m.endpoints(ctx)
	if err != nil {
		return err
	}

	epoch := m.currentEpoch()

	token, err := m.client.ExchangeCode(ctx, endpoints.TokenURL, code, m.cfg.RedirectURI, m.cfg.ClientID, verifier)
	if err != nil {
		exErr := &TokenExchangeError{Err: err}
		var perr *oauth.ProtocolError
		if errors.As(err, &perr) {
			exErr.Status = perr.Status
			exErr.Code = perr.Code
			exErr.Description = perr.Description
		}
		logging.Error("Session", exErr, "Authorization code exchange failed")

		// A forced login that fails leaves a still valid session alone.
		notify := func() {}
		m.mu.Lock()
		if m.epoch == epoch && !m.hasLocked(tokenstore.SlotAccessToken) {
			notify = m.setStateLocked(StateAnonymous)
		}
		m.mu.Unlock()
		notify()
		return exErr
	}

	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		logging.Warn("Session", "Discarding token response that arrived after logout")
		return ErrSessionReset
	}
	if err := m.storeTokensLocked(token); err != nil {
		m.mu.Unlock()
		return err
	}
	if err := m.store.Remove(tokenstore.SlotPKCEVerifier); err != nil {
		logging.Warn("Session", "Failed to erase consumed PKCE verifier: %v", err)
	}
	m.pendingAuthURL, m.pendingVerifier = "", ""
	notify := m.setStateLocked(StateAuthenticated)
	m.mu.Unlock()
	notify()

	logging.Audit("Session", "login_succeeded",
		"granted_scopes", strings.Join(token.Scopes(), ","),
		"has_refresh_token", token.RefreshToken != "",
		"has_id_token", token.IDToken != "")
	return nil
}

// Refresh replaces the access token using the stored refresh token and
// returns the new access token. Without a refresh token it returns "" and
// leaves the state alone. A failed refresh forces a logout and also returns
// "". Concurrent calls share one token request. An error is returned only
// when the refresh could not be attempted or was cancelled via ctx.
func (m *Manager) Refresh(ctx context.Context) (string, error) {
	refreshToken, ok := m.store.Get(tokenstore.SlotRefreshToken)
	if !ok || refreshToken == "" {
		logging.Debug("Session", "No refresh token stored, skipping refresh")
		return "", nil
	}

	v, err, shared := m.refreshGroup.Do("refresh", func() (interface{}, error) {
		return m.doRefresh(ctx, refreshToken)
	})
	if shared {
		logging.Debug("Session", "Joined an in-flight token refresh")
	}
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (m *Manager) doRefresh(ctx context.Context, refreshToken string) (string, error) {
	endpoints, err := m.endpoints(ctx)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	epoch := m.epoch
	prev := m.state
	notify := m.setStateLocked(StateRefreshing)
	m.mu.Unlock()
	notify()

	token, err := m.client.RefreshToken(ctx, endpoints.TokenURL, refreshToken, m.cfg.ClientID)
	if err != nil {
		if ctx.Err() != nil {
			// Cancelled by the caller or by Close; the session itself is fine.
			m.restoreState(epoch, prev)
			return "", ctx.Err()
		}

		rerr := &RefreshError{Err: err}
		logging.Error("Session", rerr, "Forcing logout after failed refresh")

		if m.currentEpoch() == epoch {
			if _, lerr := m.Logout(context.WithoutCancel(ctx)); lerr != nil {
				logging.Error("Session", lerr, "Forced logout did not complete")
			}
		}
		return "", nil
	}

	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		logging.Warn("Session", "Discarding refreshed tokens that arrived after logout")
		return "", nil
	}
	if err := m.storeTokensLocked(token); err != nil {
		m.mu.Unlock()
		m.restoreState(epoch, prev)
		return "", err
	}
	notify = m.setStateLocked(StateAuthenticated)
	m.mu.Unlock()
	notify()

	logging.Audit("Session", "token_refreshed", "rotated", token.RefreshToken != "")
	return token.AccessToken, nil
}

// Logout revokes the access and refresh tokens at the provider, clears the
// store, and starts a fresh login. Revocation failures are logged and never
// block local cleanup. When the session is already logged out and the
// login it started is still pending, that login's authorize URL is returned
// instead of issuing another redirect.
func (m *Manager) Logout(ctx context.Context) (string, error) {
	m.mu.Lock()
	if pending := m.pendingAuthURL; pending != "" && m.pendingLoginLocked() {
		m.mu.Unlock()
		logging.Debug("Session", "Logout requested while a logout login is pending, reusing it")
		return pending, nil
	}
	m.pendingAuthURL, m.pendingVerifier = "", ""
	m.epoch++
	m.refresher.disarm()
	m.mu.Unlock()

	m.revokeAll(ctx)

	if err := m.store.Clear(); err != nil {
		logging.Error("Session", err, "Failed to clear token store during logout")
	}
	m.transition(StateAnonymous)
	logging.Audit("Session", "logged_out")

	authURL, verifier, err := m.startLogin(ctx)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	m.pendingAuthURL, m.pendingVerifier = authURL, verifier
	m.mu.Unlock()
	return authURL, nil
}

// pendingLoginLocked reports whether the login started by the last Logout
// can still complete: nothing signed in since, and its verifier not
// replaced by a later Login. Caller holds m.mu.
func (m *Manager) pendingLoginLocked() bool {
	if m.state != StateAuthenticating || m.hasLocked(tokenstore.SlotAccessToken) || m.hasLocked(tokenstore.SlotRefreshToken) {
		return false
	}
	verifier, ok := m.store.Get(tokenstore.SlotPKCEVerifier)
	return ok && verifier != "" && verifier == m.pendingVerifier
}

// revokeAll revokes both tokens concurrently. Each revocation records its
// own outcome; neither cancels the other.
func (m *Manager) revokeAll(ctx context.Context) {
	endpoints, err := m.endpoints(ctx)
	if err != nil || endpoints.RevokeURL == "" {
		logging.Debug("Session", "No revocation endpoint configured, skipping revocation")
		return
	}

	type revocation struct {
		slot tokenstore.Slot
		hint string
	}
	revocations := []revocation{
		{tokenstore.SlotAccessToken, oauth.TokenTypeHintAccessToken},
		{tokenstore.SlotRefreshToken, oauth.TokenTypeHintRefreshToken},
	}

	var g errgroup.Group
	for _, r := range revocations {
		token, ok := m.store.Get(r.slot)
		if !ok || token == "" {
			continue
		}
		g.Go(func() error {
			if err := m.client.Revoke(ctx, endpoints.RevokeURL, token, r.hint, m.cfg.ClientID); err != nil {
				logging.Warn("Session", "Revocation of %s failed: %v", r.hint, err)
				return nil
			}
			logging.Audit("Session", "token_revoked", "token_type_hint", r.hint)
			return nil
		})
	}
	_ = g.Wait()
}

// storeTokensLocked persists a token response. Refresh and ID tokens are
// only overwritten when present. Caller holds m.mu.
func (m *Manager) storeTokensLocked(token *oauth.Token) error {
	if err := m.store.Set(tokenstore.SlotAccessToken, token.AccessToken); err != nil {
		return fmt.Errorf("failed to persist access token: %w", err)
	}
	if token.RefreshToken != "" {
		if err := m.store.Set(tokenstore.SlotRefreshToken, token.RefreshToken); err != nil {
			return fmt.Errorf("failed to persist refresh token: %w", err)
		}
	}
	if token.IDToken != "" {
		if err := m.store.Set(tokenstore.SlotIDToken, token.IDToken); err != nil {
			return fmt.Errorf("failed to persist id token: %w", err)
		}
	}
	return nil
}

// transition moves the session to next and notifies the state listener.
func (m *Manager) transition(next State) {
	m.mu.Lock()
	notify := m.setStateLocked(next)
	m.mu.Unlock()
	notify()
}

// setStateLocked moves the session to next, arming or disarming the
// proactive refresh timer. The returned func notifies the state listener
// and must be called after m.mu is released.
func (m *Manager) setStateLocked(next State) func() {
	prev := m.state
	m.state = next
	switch next {
	case StateAuthenticated:
		m.refresher.arm()
	case StateAnonymous, StateAuthenticating:
		m.refresher.disarm()
	}
	listener := m.onStateChange

	return func() {
		if prev == next {
			return
		}
		logging.Debug("Session", "State %s -> %s", prev, next)
		if listener != nil {
			listener(prev, next)
		}
	}
}

// restoreState puts back the state held before a refresh unless a logout
// happened in between.
func (m *Manager) restoreState(epoch uint64, prev State) {
	notify := func() {}
	m.mu.Lock()
	if m.epoch == epoch {
		notify = m.setStateLocked(prev)
	}
	m.mu.Unlock()
	notify()
}

func (m *Manager) proactiveRefresh(ctx context.Context) {
	if _, err := m.Refresh(ctx); err != nil {
		logging.Warn("Session", "Proactive refresh failed: %v", err)
	}
}

func (m *Manager) currentEpoch() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.epoch
}

func (m *Manager) hasLocked(slot tokenstore.Slot) bool {
	v, ok := m.store.Get(slot)
	return ok && v != ""
}

// derivedStateLocked computes the state implied by the stored slots.
func (m *Manager) derivedStateLocked() State {
	switch {
	case m.hasLocked(tokenstore.SlotAccessToken):
		return StateAuthenticated
	case m.hasLocked(tokenstore.SlotPKCEVerifier):
		return StateAuthenticating
	default:
		return StateAnonymous
	}
}

// Reload re-derives the state from the store after another process changed
// it, e.g. a logout in a second terminal.
func (m *Manager) Reload() {
	if r, ok := m.store.(tokenstore.Reloader); ok {
		if _, err := r.Reload(); err != nil {
			logging.Warn("Session", "Failed to reload token store: %v", err)
			return
		}
	}

	m.mu.Lock()
	next := m.derivedStateLocked()
	if next != StateAuthenticated && m.state == StateAuthenticated {
		// Tokens were cleared elsewhere; in-flight responses must not
		// repopulate the store.
		m.epoch++
	}
	m.mu.Unlock()

	m.transition(next)
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// AccessToken returns the stored access token, or "".
func (m *Manager) AccessToken() string {
	v, _ := m.store.Get(tokenstore.SlotAccessToken)
	return v
}

// IDToken returns the stored ID token, or "".
func (m *Manager) IDToken() string {
	v, _ := m.store.Get(tokenstore.SlotIDToken)
	return v
}

// HasRefreshToken reports whether a refresh token is stored.
func (m *Manager) HasRefreshToken() bool {
	v, ok := m.store.Get(tokenstore.SlotRefreshToken)
	return ok && v != ""
}

// Snapshot returns a read-only view of the session.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		State:           m.state,
		HasAccessToken:  m.hasLocked(tokenstore.SlotAccessToken),
		HasRefreshToken: m.hasLocked(tokenstore.SlotRefreshToken),
		HasIDToken:      m.hasLocked(tokenstore.SlotIDToken),
		LoginPending:    m.hasLocked(tokenstore.SlotPKCEVerifier),
		Issuer:          m.cfg.Issuer,
		ClientID:        m.cfg.ClientID,
	}
}

// Scopes returns the requested scopes as a space-separated string.
func (m *Manager) Scopes() string {
	return strings.Join(m.cfg.Scopes, " ")
}

// Close stops the proactive refresh timer.
func (m *Manager) Close() error {
	m.mu.Lock()
	r := m.refresher
	m.mu.Unlock()
	r.stop()
	return nil
}
