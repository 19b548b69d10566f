package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/chzyer/readline"
	"github.com/jedib0t/go-pretty/v6/text"
)

const (
	promptPrefix = "users"
	// StateLoginPending is shown in the prompt while the browser sign-in
	// has not completed yet.
	StateLoginPending = "[LOGIN PENDING]"
	// StateSignedOut is shown in the prompt when no session exists.
	StateSignedOut = "[SIGNED OUT]"
)

// commandExecutionTimeout bounds a single console command.
const commandExecutionTimeout = 5 * time.Minute

// ErrExit is returned by an executed command to leave the console.
var ErrExit = errors.New("exit")

// PromptState is the session information rendered in the console prompt.
type PromptState struct {
	User         string
	SignedIn     bool
	LoginPending bool
}

// ConsoleConfig configures an interactive Console.
type ConsoleConfig struct {
	// Execute runs one parsed command line.
	Execute func(ctx context.Context, args []string) error
	// State returns what the prompt should show. Optional.
	State func() PromptState
	// Completions maps top-level commands to their subcommands.
	Completions map[string][]string
	// HistoryFile defaults to a file under the user cache directory.
	HistoryFile string
	Stdin       io.ReadCloser
	Stdout      io.Writer
}

// Console is the interactive read-eval-print loop. It keeps a single process
// alive so the session's background refresh keeps running between commands.
type Console struct {
	cfg ConsoleConfig

	mu sync.Mutex
	rl *readline.Instance
}

// NewConsole creates a console. Execute must be set.
func NewConsole(cfg ConsoleConfig) (*Console, error) {
	if cfg.Execute == nil {
		return nil, errors.New("console requires an Execute function")
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}
	if cfg.HistoryFile == "" {
		cfg.HistoryFile = defaultHistoryFile()
	}
	return &Console{cfg: cfg}, nil
}

func defaultHistoryFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "userconsole", "history")
}

// Prompt builds the prompt for the current session state.
//
//	users ada »
//	users [SIGNED OUT] »
//	users [LOGIN PENDING] »
func (c *Console) Prompt() string {
	parts := []string{text.Bold.Sprint(promptPrefix)}
	if c.cfg.State != nil {
		st := c.cfg.State()
		switch {
		case st.LoginPending:
			parts = append(parts, text.FgYellow.Sprint(StateLoginPending))
		case !st.SignedIn:
			parts = append(parts, text.FgRed.Sprint(StateSignedOut))
		case st.User != "":
			parts = append(parts, st.User)
		}
	}
	parts = append(parts, "»")
	return strings.Join(parts, " ") + " "
}

// Notify prints an asynchronous message without corrupting the line being
// edited.
func (c *Console) Notify(msg string) {
	c.mu.Lock()
	rl := c.rl
	c.mu.Unlock()

	if rl == nil {
		fmt.Fprintln(c.cfg.Stdout, msg)
		return
	}
	_, _ = rl.Stdout().Write([]byte("\r\033[K" + msg + "\n"))
	rl.SetPrompt(c.Prompt())
	rl.Refresh()
}

// Run reads commands until EOF, "exit", or ctx is cancelled.
func (c *Console) Run(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(c.cfg.HistoryFile), 0o700); err != nil {
		c.cfg.HistoryFile = ""
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:              c.Prompt(),
		HistoryFile:         c.cfg.HistoryFile,
		AutoComplete:        NewCompleter(c.cfg.Completions),
		InterruptPrompt:     "^C",
		EOFPrompt:           "exit",
		HistorySearchFold:   true,
		FuncFilterInputRune: filterInput,
		Stdin:               c.cfg.Stdin,
		Stdout:              c.cfg.Stdout,
	})
	if err != nil {
		return fmt.Errorf("failed to create readline instance: %w", err)
	}
	defer rl.Close()

	c.mu.Lock()
	c.rl = rl
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.rl = nil
		c.mu.Unlock()
	}()

	fmt.Fprintln(c.cfg.Stdout, "Type 'help' for available commands, 'exit' to quit. Use TAB for completion.")

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		rl.SetPrompt(c.Prompt())
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		} else if errors.Is(err, io.EOF) {
			return nil
		} else if err != nil {
			return fmt.Errorf("readline error: %w", err)
		}

		if err := c.ExecuteLine(ctx, line); err != nil {
			if errors.Is(err, ErrExit) {
				return nil
			}
			fmt.Fprintln(c.cfg.Stdout, FormatError(err))
		}
	}
}

// ExecuteLine parses and runs one input line.
func (c *Console) ExecuteLine(ctx context.Context, line string) error {
	args, err := SplitArgs(line)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return nil
	}
	switch strings.ToLower(args[0]) {
	case "exit", "quit":
		return ErrExit
	case "?":
		args[0] = "help"
	}

	cmdCtx, cancel := context.WithTimeout(ctx, commandExecutionTimeout)
	defer cancel()
	return c.cfg.Execute(cmdCtx, args)
}

// SplitArgs splits a command line into arguments honouring single quotes,
// double quotes and backslash escapes.
func SplitArgs(line string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		inArg   bool
		quote   rune
		escaped bool
	)
	for _, r := range line {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\' && quote != '\'':
			escaped = true
			inArg = true
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote = r
			inArg = true
		case r == ' ' || r == '\t':
			if inArg {
				args = append(args, cur.String())
				cur.Reset()
				inArg = false
			}
		default:
			cur.WriteRune(r)
			inArg = true
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated %c quote", quote)
	}
	if escaped {
		return nil, errors.New("trailing backslash")
	}
	if inArg {
		args = append(args, cur.String())
	}
	return args, nil
}

// NewCompleter builds a prefix completer from a command tree.
func NewCompleter(tree map[string][]string) *readline.PrefixCompleter {
	names := make([]string, 0, len(tree)+2)
	for name := range tree {
		names = append(names, name)
	}
	names = append(names, "exit", "help")
	sort.Strings(names)

	items := make([]readline.PrefixCompleterInterface, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		subs := append([]string(nil), tree[name]...)
		sort.Strings(subs)
		children := make([]readline.PrefixCompleterInterface, 0, len(subs))
		for _, sub := range subs {
			children = append(children, readline.PcItem(sub))
		}
		items = append(items, readline.PcItem(name, children...))
	}
	return readline.NewPrefixCompleter(items...)
}

func filterInput(r rune) (rune, bool) {
	switch r {
	// block CtrlZ feature
	case readline.CharCtrlZ:
		return r, false
	}
	return r, true
}
