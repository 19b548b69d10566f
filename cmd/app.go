package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/spf13/cobra"

	"userconsole/internal/config"
	"userconsole/internal/gateway"
	"userconsole/internal/session"
	"userconsole/internal/tokenstore"
	"userconsole/internal/users"
	"userconsole/pkg/logging"
	"userconsole/pkg/oauth"
)

// sessionAnnotation marks commands that keep the process alive, so the
// session arms its proactive refresh timer.
const (
	sessionAnnotation  = "session"
	sessionInteractive = "interactive"
)

// app holds the collaborators shared by every command of one process. They
// are created on the first command that needs them and reused by the
// console for every line it runs.
type app struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	// Replaced in tests.
	loadConfig func(opts config.LoadOptions) (config.Config, error)
	openStore  func(opts tokenstore.Options) (tokenstore.Store, error)
	browser    session.Navigator
	httpClient *http.Client

	cfg     config.Config
	store   tokenstore.Store
	manager *session.Manager
	gateway *gateway.Gateway
	users   *users.Client

	// interactive is set when the process was started as a console.
	interactive    bool
	consoleRunning bool
	loggingUp      bool

	mu        sync.Mutex
	noBrowser bool
	notify    func(msg string)

	identityToken string
	identity      string
}

func newApp(in io.Reader, out, errOut io.Writer) *app {
	return &app{
		in:         in,
		out:        out,
		errOut:     errOut,
		loadConfig: config.Load,
		openStore:  tokenstore.Open,
		browser:    session.BrowserNavigator{Out: errOut},
	}
}

// setup initializes logging, configuration, the token store, the session
// and the API clients. It is a no-op once the session exists.
func (a *app) setup(cmd *cobra.Command, opts *globalOptions) error {
	if a.manager != nil {
		return nil
	}

	if err := a.initLogging(opts); err != nil {
		return err
	}

	cfg, err := a.loadConfig(config.LoadOptions{ConfigFile: opts.configFile, EnvFile: opts.envFile})
	if err != nil {
		return err
	}
	a.cfg = cfg

	store, err := a.openStore(tokenstore.Options{
		Backend: tokenstore.Backend(cfg.Store.Backend),
		Dir:     cfg.Store.Dir,
	})
	if err != nil {
		return fmt.Errorf("failed to open token store: %w", err)
	}

	a.interactive = cmd.Annotations[sessionAnnotation] == sessionInteractive

	manager, err := session.NewManager(sessionConfig(cfg), store, a.sessionOptions()...)
	if err != nil {
		_ = store.Close()
		return err
	}
	a.store = store
	a.manager = manager

	gatewayOpts := []gateway.Option{
		gateway.WithBaseURL(cfg.API.BaseURL),
		gateway.WithUserAgent("userconsole/" + appVersion),
	}
	if cfg.API.Timeout > 0 {
		gatewayOpts = append(gatewayOpts, gateway.WithTimeout(cfg.API.Timeout))
	}
	if a.httpClient != nil {
		gatewayOpts = append(gatewayOpts, gateway.WithHTTPClient(a.httpClient))
	}
	a.gateway = gateway.New(manager, gatewayOpts...)
	a.users = users.NewClient(a.gateway)

	logging.Debug("App", "Initialized session in state %s (store backend %s)", manager.State(), cfg.Store.Backend)
	return nil
}

func (a *app) initLogging(opts *globalOptions) error {
	if a.loggingUp {
		return nil
	}
	level, err := logging.ParseLevel(opts.logLevel)
	if err != nil {
		return err
	}
	if opts.logFile != "" {
		if err := logging.InitWithFile(level, logging.FileConfig{Path: opts.logFile}); err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
	} else {
		logging.InitForCLI(level, a.errOut)
	}
	a.loggingUp = true
	return nil
}

func (a *app) sessionOptions() []session.Option {
	opts := []session.Option{
		session.WithNavigator(appNavigator{a: a}),
		session.WithStateListener(a.onStateChange),
	}
	// One-shot commands exit long before a timer would fire.
	if a.interactive {
		opts = append(opts, session.WithRefreshInterval(a.cfg.Session.RefreshInterval))
	} else {
		opts = append(opts, session.WithRefreshInterval(0))
	}
	if n := a.cfg.Session.VerifierLength; n > 0 {
		opts = append(opts, session.WithVerifierLength(n))
	}
	if a.httpClient != nil {
		opts = append(opts, session.WithHTTPClient(a.httpClient))
	}
	return opts
}

func sessionConfig(cfg config.Config) session.Config {
	return session.Config{
		Issuer:      cfg.OIDC.Issuer,
		ClientID:    cfg.OIDC.ClientID,
		RedirectURI: cfg.OIDC.RedirectURI,
		Scopes:      cfg.OIDC.ScopeList(),
		Endpoints: oauth.Endpoints{
			AuthorizeURL: cfg.OIDC.AuthorizeEndpoint,
			TokenURL:     cfg.OIDC.TokenEndpoint,
			RevokeURL:    cfg.OIDC.RevokeEndpoint,
		},
	}
}

// onStateChange reports session changes the user did not ask for while the
// console is running.
func (a *app) onStateChange(from, to session.State) {
	a.mu.Lock()
	notify := a.notify
	a.mu.Unlock()
	if notify == nil {
		return
	}

	switch {
	case to == session.StateAnonymous && (from == session.StateAuthenticated || from == session.StateRefreshing):
		notify("Session ended. Run 'auth login' to sign in again.")
	case to == session.StateAuthenticated && from == session.StateAnonymous:
		notify("Signed in.")
	}
}

func (a *app) setNotifier(fn func(msg string)) {
	a.mu.Lock()
	a.notify = fn
	a.mu.Unlock()
}

func (a *app) setNoBrowser(v bool) {
	a.mu.Lock()
	a.noBrowser = v
	a.mu.Unlock()
}

// displayName returns a short name for the signed-in user taken from the
// ID token, or "" when none is available.
func (a *app) displayName(ctx context.Context) string {
	token := a.manager.IDToken()
	if token == "" {
		return ""
	}

	a.mu.Lock()
	if token == a.identityToken {
		name := a.identity
		a.mu.Unlock()
		return name
	}
	a.mu.Unlock()

	claims, err := a.manager.Claims(ctx)
	if err != nil {
		logging.Debug("App", "Could not read ID token claims: %v", err)
		return ""
	}
	name := claims.PreferredUsername
	if name == "" {
		name = claims.Email
	}
	if name == "" {
		name = claims.Name
	}
	if name == "" {
		name = claims.Subject
	}

	a.mu.Lock()
	a.identityToken, a.identity = token, name
	a.mu.Unlock()
	return name
}

// Close releases the session, the store and the log file.
func (a *app) Close() {
	var errs []error
	if a.manager != nil {
		errs = append(errs, a.manager.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if err := errors.Join(errs...); err != nil {
		logging.Warn("App", "Error during shutdown: %v", err)
	}
	if a.loggingUp {
		_ = logging.Close()
	}
}

// appNavigator opens the browser unless --no-browser was given.
type appNavigator struct {
	a *app
}

func (n appNavigator) Navigate(url string) error {
	n.a.mu.Lock()
	noBrowser := n.a.noBrowser
	n.a.mu.Unlock()

	if noBrowser || n.a.browser == nil {
		return session.PrintNavigator{Out: n.a.errOut}.Navigate(url)
	}
	return n.a.browser.Navigate(url)
}
