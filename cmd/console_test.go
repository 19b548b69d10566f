package cmd

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"userconsole/internal/session"
	"userconsole/internal/tokenstore"
)

func TestConsoleExecute_SharesOneSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.app.consoleExecute(ctx, []string{"auth", "login"}))
	manager := h.app.manager
	require.NotNil(t, manager)

	require.NoError(t, h.app.consoleExecute(ctx, []string{"auth", "callback", "--code", "c1"}))
	assert.Same(t, manager, h.app.manager, "every line reuses the session")
	assert.Equal(t, session.StateAuthenticated, manager.State())

	h.out.Reset()
	require.NoError(t, h.app.consoleExecute(ctx, []string{"auth", "whoami"}))
	assert.Contains(t, h.out.String(), "ada")
}

func TestConsole_RefusesNesting(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run("auth", "status"))

	h.app.consoleRunning = true
	defer func() { h.app.consoleRunning = false }()

	err := h.app.consoleExecute(context.Background(), []string{"console"})
	assert.EqualError(t, err, "the console is already running")
}

func TestConsole_DeleteNeedsFlag(t *testing.T) {
	h := newHarness(t)
	h.signIn()
	h.app.consoleRunning = true
	defer func() { h.app.consoleRunning = false }()

	err := h.run("users", "delete", "3")
	assert.EqualError(t, err, "confirm the deletion with --yes")
	assert.Empty(t, h.apiRequests())
}

func TestPromptState(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run("auth", "status"))

	st := h.app.promptState()
	assert.False(t, st.SignedIn)
	assert.False(t, st.LoginPending)

	require.NoError(t, h.store.Set(tokenstore.SlotPKCEVerifier, "v"))
	st = h.app.promptState()
	assert.True(t, st.LoginPending)

	h.signIn()
	st = h.app.promptState()
	assert.True(t, st.SignedIn)
	assert.False(t, st.LoginPending, "a held session is not shown as pending")
	assert.Equal(t, "ada", st.User)
}

func TestOnStateChange_Notifies(t *testing.T) {
	h := newHarness(t)

	var (
		mu   sync.Mutex
		msgs []string
	)
	h.app.setNotifier(func(msg string) {
		mu.Lock()
		msgs = append(msgs, msg)
		mu.Unlock()
	})

	h.app.onStateChange(session.StateAuthenticated, session.StateRefreshing)
	h.app.onStateChange(session.StateRefreshing, session.StateAuthenticated)
	h.app.onStateChange(session.StateRefreshing, session.StateAnonymous)
	h.app.onStateChange(session.StateAnonymous, session.StateAuthenticated)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0], "Session ended")
	assert.Equal(t, "Signed in.", msgs[1])
}

func TestCompletionTree(t *testing.T) {
	h := newHarness(t)
	tree := completionTree(newRootCmd(h.app))

	assert.ElementsMatch(t, []string{"login", "callback", "logout", "refresh", "status", "whoami"}, tree["auth"])
	assert.ElementsMatch(t, []string{"list", "search", "get", "create", "update", "delete"}, tree["users"])
	assert.ElementsMatch(t, []string{"import", "export"}, tree["csv"])
	assert.Contains(t, tree, "version")
	assert.NotContains(t, tree, "console")
}
