package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"userconsole/internal/callback"
	"userconsole/internal/cli"
	"userconsole/internal/guard"
	"userconsole/pkg/logging"
)

// manualCallbackHint is printed when the redirect cannot be received locally.
const manualCallbackHint = `After signing in, copy the address your browser was redirected to and run:
  userconsole auth callback --url '<redirect-url>'`

func newAuthCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the login session",
		Long: `Sign in to the identity provider, inspect the session, and sign out.

The login uses the OAuth 2.0 authorization code flow with PKCE. The browser is
sent to the provider and the redirect is received by a short-lived listener
on the loopback redirect URI.

Examples:
  userconsole auth login               # Sign in
  userconsole auth login --no-browser  # Print the login URL instead of opening it
  userconsole auth status              # Show the session
  userconsole auth logout              # Revoke tokens and sign in again`,
	}

	cmd.AddCommand(
		newAuthLoginCmd(a),
		newAuthCallbackCmd(a),
		newAuthLogoutCmd(a),
		newAuthRefreshCmd(a),
		newAuthStatusCmd(a),
		newAuthWhoamiCmd(a),
	)
	return cmd
}

func newAuthLoginCmd(a *app) *cobra.Command {
	var (
		force     bool
		noBrowser bool
		quiet     bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the identity provider",
		Long: `Start a new login. A fresh PKCE verifier is generated, your browser is
opened at the provider's login page, and the redirect is received on the
configured loopback redirect URI.

When you are already signed in, the current identity is shown instead. Use
--force to sign in again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.setNoBrowser(noBrowser)
			return a.runLogin(cmd, quiet)
		},
	}
	cmd.Flags().BoolVar(&force, guard.ForceFlag, false, "Sign in again even when a session exists")
	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "Print the login URL instead of opening a browser")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress the progress indicator")
	return guard.MarkPublic(cmd)
}

func (a *app) runLogin(cmd *cobra.Command, quiet bool) error {
	ctx := cmd.Context()

	srv := a.startCallbackServer(ctx)
	if srv != nil {
		defer srv.Stop()
	}

	if _, err := a.manager.Login(ctx); err != nil {
		return err
	}
	if srv == nil {
		fmt.Fprintln(a.errOut, manualCallbackHint)
		return nil
	}
	return a.awaitCallback(cmd, srv, quiet)
}

// startCallbackServer listens on the redirect URI. It returns nil when the
// redirect cannot be received locally: a non-loopback redirect URI or a port
// held by another program. The user then completes the login manually.
func (a *app) startCallbackServer(ctx context.Context) *callback.Server {
	srv, err := callback.NewServer(a.cfg.OIDC.RedirectURI)
	if err != nil {
		logging.Debug("Auth", "Not listening for the redirect: %v", err)
		return nil
	}
	if err := srv.Start(ctx); err != nil {
		logging.Warn("Auth", "Cannot receive the redirect locally: %v", err)
		return nil
	}
	return srv
}

// awaitCallback waits for the provider redirect and exchanges its code.
func (a *app) awaitCallback(cmd *cobra.Command, srv *callback.Server, quiet bool) error {
	ctx := cmd.Context()
	progress := cli.StartProgress(a.errOut, "Waiting for the login to complete in your browser...", quiet)

	res, err := srv.WaitForCallback(ctx)
	if err != nil {
		progress.Fail("Login was not completed")
		if errors.Is(err, context.DeadlineExceeded) {
			fmt.Fprintln(a.errOut, manualCallbackHint)
		}
		return err
	}
	if err := res.Err(); err != nil {
		progress.Fail("Login was rejected")
		return err
	}

	if err := a.manager.ExchangeCode(ctx, res.Code); err != nil {
		progress.Fail("Login failed")
		return err
	}
	progress.Succeed("Signed in")
	return a.printIdentity(cmd)
}

// home is where public commands go when a session already exists.
func (a *app) home(cmd *cobra.Command) error {
	fmt.Fprintln(a.out, cli.FormatWarning("Already signed in. Use --force to sign in again."))
	return a.printIdentity(cmd)
}

func (a *app) printIdentity(cmd *cobra.Command) error {
	if name := a.displayName(cmd.Context()); name != "" {
		fmt.Fprintf(a.out, "Signed in as %s\n", name)
		return nil
	}
	fmt.Fprintln(a.out, "Signed in")
	return nil
}

func newAuthCallbackCmd(a *app) *cobra.Command {
	var (
		rawURL string
		code   string
	)

	cmd := &cobra.Command{
		Use:   "callback",
		Short: "Complete a login with the provider's redirect",
		Long: `Complete a pending login when the redirect could not be received locally.

Pass either the full address the browser was redirected to, or just the
authorization code. The code is exchanged together with the PKCE verifier
stored when the login started.

Examples:
  userconsole auth callback --url 'http://localhost:5173/auth/callback?code=...'
  userconsole auth callback --code 8f1c...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (rawURL == "") == (code == "") {
				return errors.New("exactly one of --url or --code is required")
			}
			if rawURL != "" {
				res, err := callback.ParseRedirect(rawURL)
				if err != nil {
					return err
				}
				if err := res.Err(); err != nil {
					return err
				}
				code = res.Code
			}
			if err := a.manager.ExchangeCode(cmd.Context(), code); err != nil {
				return err
			}
			fmt.Fprintln(a.out, cli.FormatSuccess("Login completed"))
			return a.printIdentity(cmd)
		},
	}
	cmd.Flags().StringVar(&rawURL, "url", "", "Redirect URL including the code query parameter")
	cmd.Flags().StringVar(&code, "code", "", "Authorization code")
	return cmd
}

func newAuthLogoutCmd(a *app) *cobra.Command {
	var (
		noWait    bool
		noBrowser bool
		quiet     bool
	)

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Revoke the session and sign in again",
		Long: `Revoke the access and refresh tokens at the provider, erase every stored
token, and start a fresh login with a forced credential prompt.

Revocation failures are logged and never keep the local session alive.
Unless --no-wait is given, the command waits for the new login to complete.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.setNoBrowser(noBrowser)
			ctx := cmd.Context()

			var srv *callback.Server
			if !noWait {
				srv = a.startCallbackServer(ctx)
				if srv != nil {
					defer srv.Stop()
				}
			}

			if _, err := a.manager.Logout(ctx); err != nil {
				return err
			}
			fmt.Fprintln(a.out, cli.FormatSuccess("Signed out"))

			if srv == nil {
				fmt.Fprintln(a.errOut, manualCallbackHint)
				return nil
			}
			return a.awaitCallback(cmd, srv, quiet)
		},
	}
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "Do not wait for the new login")
	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "Print the login URL instead of opening a browser")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress the progress indicator")
	return cmd
}

func newAuthRefreshCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Renew the access token",
		Long: `Exchange the refresh token for a new access token.

If the provider rejects the refresh token, the session is ended and a new
login is started.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.manager.HasRefreshToken() {
				return errors.New("no refresh token is stored; sign in again with 'userconsole auth login --force'")
			}
			token, err := a.manager.Refresh(cmd.Context())
			if err != nil {
				return err
			}
			if token == "" {
				return &cli.AuthExpiredError{}
			}
			fmt.Fprintln(a.out, cli.FormatSuccess("Access token renewed"))
			return nil
		},
	}
	return guard.Protect(cmd)
}
