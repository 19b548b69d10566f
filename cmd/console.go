package cmd

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"

	"userconsole/internal/cli"
	"userconsole/internal/tokenstore"
	"userconsole/pkg/logging"
)

func newConsoleCmd(a *app) *cobra.Command {
	var historyFile string

	cmd := &cobra.Command{
		Use:   "console",
		Short: "Start an interactive console",
		Long: `Start an interactive console that runs userconsole commands without the
"userconsole" prefix.

The session stays alive for the lifetime of the console: the access token is
renewed in the background every refresh interval, and a logout in another
terminal is noticed immediately.

Examples:
  userconsole console
  users » users list --search ada
  users » auth status`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{sessionAnnotation: sessionInteractive},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runConsole(cmd, historyFile)
		},
	}
	cmd.Flags().StringVar(&historyFile, "history-file", "", "Command history file (default is in the user cache directory)")
	return cmd
}

func (a *app) runConsole(cmd *cobra.Command, historyFile string) error {
	if a.consoleRunning {
		return errors.New("the console is already running")
	}
	ctx := cmd.Context()

	console, err := cli.NewConsole(cli.ConsoleConfig{
		Execute:     a.consoleExecute,
		State:       a.promptState,
		Completions: completionTree(cmd.Root()),
		HistoryFile: historyFile,
		Stdin:       stdinCloser(a.in),
		Stdout:      a.out,
	})
	if err != nil {
		return err
	}

	a.setNotifier(console.Notify)
	defer a.setNotifier(nil)

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if fs, ok := a.store.(*tokenstore.FileStore); ok {
		if err := fs.Watch(watchCtx, a.manager.Reload); err != nil {
			logging.Warn("Console", "Changes made by other processes will not be noticed: %v", err)
		}
	}

	a.consoleRunning = true
	defer func() { a.consoleRunning = false }()

	return console.Run(ctx)
}

// consoleExecute runs one console line on a fresh command tree.
func (a *app) consoleExecute(ctx context.Context, args []string) error {
	return a.execute(ctx, args)
}

func (a *app) promptState() cli.PromptState {
	snap := a.manager.Snapshot()
	st := cli.PromptState{
		SignedIn:     snap.HasAccessToken,
		LoginPending: snap.LoginPending && !snap.HasAccessToken,
	}
	if st.SignedIn {
		st.User = a.displayName(context.Background())
	}
	return st
}

// completionTree maps each visible top-level command to its subcommands.
func completionTree(root *cobra.Command) map[string][]string {
	tree := make(map[string][]string)
	for _, c := range root.Commands() {
		if c.Hidden || c.Name() == "console" || c.Name() == "completion" || c.Name() == "help" {
			continue
		}
		subs := []string{}
		for _, sub := range c.Commands() {
			if !sub.Hidden {
				subs = append(subs, sub.Name())
			}
		}
		tree[c.Name()] = subs
	}
	return tree
}

func stdinCloser(r io.Reader) io.ReadCloser {
	if rc, ok := r.(io.ReadCloser); ok {
		return rc
	}
	if r == nil {
		return os.Stdin
	}
	return io.NopCloser(r)
}
