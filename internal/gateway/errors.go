package gateway

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// maxErrorBody bounds the response text quoted in an APIError message.
const maxErrorBody = 512

// SessionExpiredError is returned when a 401 could not be recovered by a
// refresh. The session has been logged out and a new login started; the
// caller must not retry.
type SessionExpiredError struct {
	// AuthURL is the authorize URL of the new login, if one was started.
	AuthURL string
}

func (e *SessionExpiredError) Error() string {
	if e.AuthURL != "" {
		return "session expired, please log in again at: " + e.AuthURL
	}
	return "session expired, please log in again"
}

// APIError is any non-2xx response that was not recovered by the single
// refresh-and-replay.
type APIError struct {
	Method     string
	URL        string
	StatusCode int

	// Body is the response body, kept as diagnostic text.
	Body string
}

func (e *APIError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > maxErrorBody {
		cut := maxErrorBody
		for cut > 0 && !utf8.RuneStart(body[cut]) {
			cut--
		}
		body = body[:cut] + "..."
	}
	if body == "" {
		return fmt.Sprintf("%s %s failed with status %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s failed with status %d: %s", e.Method, e.URL, e.StatusCode, body)
}
