package cmd

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"userconsole/internal/cli"
	"userconsole/internal/guard"
	"userconsole/pkg/logging"
	"userconsole/pkg/oauth"
)

// statusView is the session status as printed by `auth status`. It never
// carries token values.
type statusView struct {
	State           string `json:"state" yaml:"state"`
	SignedIn        bool   `json:"signedIn" yaml:"signedIn"`
	User            string `json:"user,omitempty" yaml:"user,omitempty"`
	HasAccessToken  bool   `json:"hasAccessToken" yaml:"hasAccessToken"`
	HasRefreshToken bool   `json:"hasRefreshToken" yaml:"hasRefreshToken"`
	HasIDToken      bool   `json:"hasIdToken" yaml:"hasIdToken"`
	LoginPending    bool   `json:"loginPending" yaml:"loginPending"`

	Issuer                string `json:"issuer,omitempty" yaml:"issuer,omitempty"`
	ClientID              string `json:"clientId" yaml:"clientId"`
	Scopes                string `json:"scopes" yaml:"scopes"`
	AuthorizeEndpoint     string `json:"authorizeEndpoint" yaml:"authorizeEndpoint"`
	TokenEndpoint         string `json:"tokenEndpoint" yaml:"tokenEndpoint"`
	RevokeEndpoint        string `json:"revokeEndpoint,omitempty" yaml:"revokeEndpoint,omitempty"`
	RedirectURI           string `json:"redirectUri" yaml:"redirectUri"`
	PostLogoutRedirectURI string `json:"postLogoutRedirectUri,omitempty" yaml:"postLogoutRedirectUri,omitempty"`
	APIBaseURL            string `json:"apiBaseUrl" yaml:"apiBaseUrl"`
	StoreBackend          string `json:"storeBackend" yaml:"storeBackend"`
}

func newAuthStatusCmd(a *app) *cobra.Command {
	flags := &cli.CommandFlags{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the session status",
		Long: `Show whether you are signed in, which tokens are held, and the identity
provider settings in use. Token values are never printed.

Examples:
  userconsole auth status
  userconsole auth status -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			printer, err := flags.Printer(a.out)
			if err != nil {
				return err
			}

			view := a.statusView(cmd)
			return printer.Print(view, func(t *cli.Table) {
				t.SetHeaders("Property", "Value")
				t.AppendRow("state", view.State)
				t.AppendRow("user", view.User)
				t.AppendRow("access_token", presence(view.HasAccessToken))
				t.AppendRow("refresh_token", presence(view.HasRefreshToken))
				t.AppendRow("id_token", presence(view.HasIDToken))
				t.AppendRow("login_pending", strconv.FormatBool(view.LoginPending))
				if printer.Wide() {
					t.AppendRow("issuer", view.Issuer)
					t.AppendRow("client_id", view.ClientID)
					t.AppendRow("scopes", view.Scopes)
					t.AppendRow("authorize_endpoint", view.AuthorizeEndpoint)
					t.AppendRow("token_endpoint", view.TokenEndpoint)
					t.AppendRow("revoke_endpoint", view.RevokeEndpoint)
					t.AppendRow("redirect_uri", view.RedirectURI)
					t.AppendRow("post_logout_redirect_uri", view.PostLogoutRedirectURI)
					t.AppendRow("api_base_url", view.APIBaseURL)
					t.AppendRow("store_backend", view.StoreBackend)
				}
			})
		},
	}
	cli.RegisterCommonFlags(cmd, flags)
	return cmd
}

func (a *app) statusView(cmd *cobra.Command) statusView {
	snap := a.manager.Snapshot()

	endpoints, err := a.manager.Endpoints(cmd.Context())
	if err != nil {
		logging.Warn("Auth", "Could not resolve provider endpoints: %v", err)
		endpoints = oauth.Endpoints{
			AuthorizeURL: a.cfg.OIDC.AuthorizeEndpoint,
			TokenURL:     a.cfg.OIDC.TokenEndpoint,
			RevokeURL:    a.cfg.OIDC.RevokeEndpoint,
		}
	}

	return statusView{
		State:                 snap.State.String(),
		SignedIn:              snap.HasAccessToken,
		User:                  a.displayName(cmd.Context()),
		HasAccessToken:        snap.HasAccessToken,
		HasRefreshToken:       snap.HasRefreshToken,
		HasIDToken:            snap.HasIDToken,
		LoginPending:          snap.LoginPending,
		Issuer:                snap.Issuer,
		ClientID:              snap.ClientID,
		Scopes:                a.manager.Scopes(),
		AuthorizeEndpoint:     endpoints.AuthorizeURL,
		TokenEndpoint:         endpoints.TokenURL,
		RevokeEndpoint:        endpoints.RevokeURL,
		RedirectURI:           a.cfg.OIDC.RedirectURI,
		PostLogoutRedirectURI: a.cfg.OIDC.PostLogoutRedirectURI,
		APIBaseURL:            a.cfg.API.BaseURL,
		StoreBackend:          a.cfg.Store.Backend,
	}
}

func presence(ok bool) string {
	if ok {
		return "present"
	}
	return "absent"
}

func newAuthWhoamiCmd(a *app) *cobra.Command {
	flags := &cli.CommandFlags{}

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in identity",
		Long: `Show the identity claims of the ID token issued at login.

When an issuer is configured the ID token signature is verified against the
provider's published keys.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			printer, err := flags.Printer(a.out)
			if err != nil {
				return err
			}
			claims, err := a.manager.Claims(cmd.Context())
			if err != nil {
				return err
			}
			return printer.Print(claims, func(t *cli.Table) {
				t.SetHeaders("Subject", "Username", "Name", "Email", "Expires")
				expires := ""
				if exp := claims.Expiry(); !exp.IsZero() {
					expires = exp.Local().Format(time.RFC3339)
				}
				t.AppendRow(claims.Subject, claims.PreferredUsername, claims.Name, claims.Email, expires)
			})
		},
	}
	cli.RegisterCommonFlags(cmd, flags)
	return guard.Protect(cmd)
}
