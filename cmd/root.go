package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"userconsole/internal/callback"
	"userconsole/internal/cli"
	"userconsole/internal/gateway"
	"userconsole/internal/guard"
	"userconsole/internal/session"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeAuthRequired indicates that no session is held or that it expired.
	ExitCodeAuthRequired = 2
	// ExitCodeAuthFailed indicates that a login was rejected.
	ExitCodeAuthFailed = 3
)

const versionTemplate = `{{printf "userconsole version %s\n" .Version}}`

// setupAnnotation marks commands that run without loading the configuration
// or opening the session, e.g. version.
const (
	setupAnnotation = "setup"
	setupNone       = "none"
)

// appVersion is injected by main at build time.
var appVersion = "dev"

// SetVersion sets the version reported by the CLI.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	appVersion = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return appVersion
}

// globalOptions are the persistent flags of one command tree.
type globalOptions struct {
	configFile string
	envFile    string
	logLevel   string
	logFile    string
}

// newRootCmd builds the command tree. The console builds a fresh tree for
// every line it executes, all sharing a.
func newRootCmd(a *app) *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "userconsole",
		Short: "Manage users behind an OpenID Connect login",
		Long: `userconsole signs you in to an OpenID Connect identity provider using the
authorization code flow with PKCE and manages the users of the user API
with the resulting session.

Sign in once with "userconsole auth login"; the session is kept in
~/.config/userconsole and renewed automatically when the API rejects an
expired access token. Run "userconsole console" for an interactive shell
that keeps the session fresh in the background.`,
		Version: appVersion,
		// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
		SilenceUsage: true,
		// Errors are translated and printed by Execute and the console.
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if skipSetup(cmd) {
				return nil
			}
			if err := a.setup(cmd, opts); err != nil {
				return err
			}
			return guard.Apply(cmd, a.manager, a.home)
		},
	}
	root.SetVersionTemplate(versionTemplate)
	root.SetIn(a.in)
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configFile, "config", "", "config file (default is $HOME/.config/userconsole/config.yaml)")
	pf.StringVar(&opts.envFile, "env-file", "", "env file to load (default is .env in the working directory)")
	pf.StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	pf.StringVar(&opts.logFile, "log-file", "", "write logs to this file instead of stderr")

	root.AddCommand(
		newAuthCmd(a),
		newUsersCmd(a),
		newRolesCmd(a),
		newCSVCmd(a),
		newConsoleCmd(a),
		newVersionCmd(),
		newSelfUpdateCmd(a),
	)
	return root
}

// skipSetup reports whether cmd runs without a session.
func skipSetup(cmd *cobra.Command) bool {
	switch cmd.Name() {
	case "help", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
		return true
	}
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[setupAnnotation] == setupNone {
			return true
		}
		if c.Name() == "completion" && c.Parent() != nil && !c.Parent().HasParent() {
			return true
		}
	}
	// The bare root only prints help.
	return !cmd.HasParent()
}

// Execute is the main entry point for the CLI application.
// This function is called by main.main().
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	a := newApp(os.Stdin, os.Stdout, os.Stderr)
	err := a.execute(ctx, os.Args[1:])
	a.Close()
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, cli.FormatError(err))
		os.Exit(getExitCode(err))
	}
}

// execute runs one command line against a and returns the translated error.
func (a *app) execute(ctx context.Context, args []string) error {
	root := newRootCmd(a)
	root.SetArgs(args)
	return translateError(root.ExecuteContext(ctx))
}

// translateError maps session and transport failures to the CLI error
// types that carry guidance and exit codes.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var (
		expired  *gateway.SessionExpiredError
		exchange *session.TokenExchangeError
		provider *callback.ProviderError
		apiErr   *gateway.APIError
		connErr  *cli.ConnectionError
	)
	switch {
	case errors.As(err, &expired):
		return &cli.AuthExpiredError{AuthURL: expired.AuthURL}
	case errors.As(err, &exchange),
		errors.As(err, &provider),
		errors.Is(err, session.ErrMissingVerifier),
		errors.Is(err, session.ErrInvalidVerifier),
		errors.Is(err, session.ErrSessionReset),
		errors.Is(err, callback.ErrMissingCode):
		return &cli.AuthFailedError{Reason: err}
	case errors.As(err, &apiErr), errors.As(err, &connErr):
		return err
	}

	if cli.IsConnectionFailure(err) {
		endpoint := "server"
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			endpoint = urlErr.URL
		}
		return cli.ClassifyConnectionError(err, endpoint)
	}
	return err
}

// getExitCode determines the appropriate exit code based on the error type.
// This provides semantic exit codes for scripting and automation.
func getExitCode(err error) int {
	var authRequired *cli.AuthRequiredError
	if errors.As(err, &authRequired) {
		return ExitCodeAuthRequired
	}

	var authExpired *cli.AuthExpiredError
	if errors.As(err, &authExpired) {
		return ExitCodeAuthRequired
	}

	var authFailed *cli.AuthFailedError
	if errors.As(err, &authFailed) {
		return ExitCodeAuthFailed
	}

	return ExitCodeError
}
