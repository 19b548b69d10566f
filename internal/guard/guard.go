// Package guard decides which commands may run in the current session state.
//
// Protected commands (everything that talks to the user API) require an
// access token. Public commands (auth login) only make sense without one;
// when a session already exists they are redirected to a "home" handler
// instead of starting a second sign-in.
package guard

import (
	"errors"

	"github.com/spf13/cobra"

	"userconsole/internal/cli"
	"userconsole/internal/session"
)

// AnnotationKey is the cobra annotation holding a command's access level.
const AnnotationKey = "guard"

// Access levels.
const (
	Protected = "protected"
	Public    = "public"
)

// ForceFlag bypasses the public guard when set on the command.
const ForceFlag = "force"

// ErrAlreadyAuthenticated is returned by RequireAnonymous when a session
// already exists.
var ErrAlreadyAuthenticated = errors.New("already authenticated")

// StateReader is the read-only session view the guard needs.
type StateReader interface {
	Snapshot() session.Snapshot
}

// RequireAuthenticated fails with a *cli.AuthRequiredError unless an access
// token is held.
func RequireAuthenticated(s StateReader) error {
	snap := s.Snapshot()
	if snap.HasAccessToken {
		return nil
	}
	return &cli.AuthRequiredError{Issuer: snap.Issuer}
}

// RequireAnonymous fails with ErrAlreadyAuthenticated when an access token
// is held.
func RequireAnonymous(s StateReader) error {
	if s.Snapshot().HasAccessToken {
		return ErrAlreadyAuthenticated
	}
	return nil
}

// Protect marks cmd and its subcommands as requiring a session.
func Protect(cmd *cobra.Command) *cobra.Command {
	return annotate(cmd, Protected)
}

// MarkPublic marks cmd as a sign-in entry point.
func MarkPublic(cmd *cobra.Command) *cobra.Command {
	return annotate(cmd, Public)
}

func annotate(cmd *cobra.Command, level string) *cobra.Command {
	if cmd.Annotations == nil {
		cmd.Annotations = map[string]string{}
	}
	cmd.Annotations[AnnotationKey] = level
	return cmd
}

// LevelOf returns the access level of cmd, inherited from the nearest
// annotated ancestor. Unannotated commands return "".
func LevelOf(cmd *cobra.Command) string {
	for c := cmd; c != nil; c = c.Parent() {
		if level, ok := c.Annotations[AnnotationKey]; ok {
			return level
		}
	}
	return ""
}

// Check enforces the access level of cmd.
func Check(cmd *cobra.Command, s StateReader) error {
	switch LevelOf(cmd) {
	case Protected:
		return RequireAuthenticated(s)
	case Public:
		if f := cmd.Flags().Lookup(ForceFlag); f != nil && f.Value.String() == "true" {
			return nil
		}
		return RequireAnonymous(s)
	default:
		return nil
	}
}

// Apply runs Check and, when a public command is reached with a session
// already held, replaces its action with home.
func Apply(cmd *cobra.Command, s StateReader, home func(cmd *cobra.Command) error) error {
	err := Check(cmd, s)
	if errors.Is(err, ErrAlreadyAuthenticated) && home != nil {
		cmd.Run = nil
		cmd.RunE = func(cmd *cobra.Command, _ []string) error {
			return home(cmd)
		}
		return nil
	}
	return err
}
