package session

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/pkg/browser"

	"userconsole/pkg/logging"
)

// Navigator sends the user to a URL. It stands in for the browser
// navigation a web client performs on login.
type Navigator interface {
	Navigate(url string) error
}

// BrowserNavigator opens the system browser and prints the URL when no
// browser can be launched.
type BrowserNavigator struct {
	// Out receives the fallback instructions. Defaults to os.Stderr.
	Out io.Writer
}

func (n BrowserNavigator) Navigate(url string) error {
	out := n.Out
	if out == nil {
		out = os.Stderr
	}

	// Keep the launcher's own output off the terminal.
	browser.Stdout = io.Discard
	browser.Stderr = io.Discard

	if err := browser.OpenURL(url); err != nil {
		logging.Warn("Session", "Failed to open browser automatically: %v", err)
		return PrintNavigator{Out: out}.Navigate(url)
	}

	fmt.Fprintf(out, "Opened your browser to log in. If it did not open, visit:\n  %s\n", url)
	return nil
}

// PrintNavigator writes the URL for the user to open manually.
type PrintNavigator struct {
	Out io.Writer
}

func (n PrintNavigator) Navigate(url string) error {
	out := n.Out
	if out == nil {
		out = os.Stderr
	}
	_, err := fmt.Fprintf(out, "Visit the following URL to log in:\n  %s\n", url)
	return err
}

// RecordingNavigator remembers every URL it was sent to.
type RecordingNavigator struct {
	mu   sync.Mutex
	urls []string
}

func (n *RecordingNavigator) Navigate(url string) error {
	n.mu.Lock()
	n.urls = append(n.urls, url)
	n.mu.Unlock()
	return nil
}

// URLs returns the recorded URLs in order.
func (n *RecordingNavigator) URLs() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.urls...)
}

// Last returns the most recent URL, or "" if none.
func (n *RecordingNavigator) Last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.urls) == 0 {
		return ""
	}
	return n.urls[len(n.urls)-1]
}
