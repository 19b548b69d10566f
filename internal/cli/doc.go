// Package cli holds the terminal-facing pieces shared by the userconsole
// commands.
//
// # Errors
//
// AuthRequiredError, AuthExpiredError and AuthFailedError carry actionable
// guidance and are mapped to process exit codes by the command layer.
// ClassifyConnectionError turns transport failures into a ConnectionError
// naming the unreachable endpoint.
//
// # Output
//
// Printer renders results as kubectl-style tables (go-pretty), JSON or YAML,
// selected with the --output flag registered by RegisterCommonFlags.
// StartProgress shows a spinner while waiting on the browser or the API.
//
// # Console
//
// Console is a readline loop that executes command lines against the same
// command tree as the one-shot CLI. It shows the session state in the prompt
// and prints asynchronous notices (for example a session change made by
// another process) without corrupting the line being edited.
package cli
