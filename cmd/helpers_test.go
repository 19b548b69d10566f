package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/stretchr/testify/require"

	"userconsole/internal/config"
	"userconsole/internal/session"
	"userconsole/internal/tokenstore"
)

// request is one request received by the mock API.
type request struct {
	Method string
	Path   string
	Query  url.Values
	CType  string
	Body   []byte
}

// harness runs commands against a mock identity provider and user API.
type harness struct {
	t *testing.T

	app    *app
	cfg    config.Config
	store  *tokenstore.MemoryStore
	nav    *session.RecordingNavigator
	stdin  *strings.Reader
	out    bytes.Buffer
	errOut bytes.Buffer

	idp *httptest.Server
	api *httptest.Server

	tokenCalls  atomic.Int32
	revokeCalls atomic.Int32

	mu       sync.Mutex
	tokenFn  http.HandlerFunc
	apiFn    http.HandlerFunc
	forms    []url.Values
	requests []request
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		t:     t,
		store: tokenstore.NewMemoryStore(),
		nav:   &session.RecordingNavigator{},
		stdin: strings.NewReader(""),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		h.tokenCalls.Add(1)
		_ = r.ParseForm()
		h.mu.Lock()
		h.forms = append(h.forms, r.PostForm)
		fn := h.tokenFn
		h.mu.Unlock()
		if fn == nil {
			writeJSON(w, http.StatusOK, map[string]string{
				"access_token":  "A1",
				"refresh_token": "R1",
				"id_token":      idToken(t, "ada"),
			})
			return
		}
		fn(w, r)
	})
	mux.HandleFunc("/oauth2/revoke", func(w http.ResponseWriter, r *http.Request) {
		h.revokeCalls.Add(1)
		w.WriteHeader(http.StatusOK)
	})
	h.idp = httptest.NewServer(mux)
	t.Cleanup(h.idp.Close)

	h.api = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		// Handlers read the body again.
		r.Body = io.NopCloser(bytes.NewReader(body))
		h.mu.Lock()
		h.requests = append(h.requests, request{r.Method, r.URL.Path, r.URL.Query(), r.Header.Get("Content-Type"), body})
		fn := h.apiFn
		h.mu.Unlock()
		if fn == nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fn(w, r)
	}))
	t.Cleanup(h.api.Close)

	cfg := config.Default()
	cfg.OIDC.ClientID = "console"
	cfg.OIDC.AuthorizeEndpoint = h.idp.URL + "/oauth2/authorize"
	cfg.OIDC.TokenEndpoint = h.idp.URL + "/oauth2/token"
	cfg.OIDC.RevokeEndpoint = h.idp.URL + "/oauth2/revoke"
	// Not loopback, so no listener is started unless a test asks for one.
	cfg.OIDC.RedirectURI = "https://console.example.com/auth/callback"
	cfg.API.BaseURL = h.api.URL
	cfg.API.Timeout = 5 * time.Second
	cfg.Store.Backend = string(tokenstore.BackendMemory)
	h.cfg = cfg

	h.app = newApp(h.stdin, &h.out, &h.errOut)
	h.app.loadConfig = func(config.LoadOptions) (config.Config, error) { return h.cfg, nil }
	h.app.openStore = func(tokenstore.Options) (tokenstore.Store, error) { return h.store, nil }
	h.app.browser = h.nav
	t.Cleanup(h.app.Close)
	return h
}

// run executes one command line with fresh output buffers.
func (h *harness) run(args ...string) error {
	h.t.Helper()
	h.out.Reset()
	h.errOut.Reset()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return h.app.execute(ctx, args)
}

func (h *harness) setStdin(s string) {
	h.stdin.Reset(s)
}

// signIn seeds a complete session.
func (h *harness) signIn() {
	h.t.Helper()
	require.NoError(h.t, h.store.Set(tokenstore.SlotAccessToken, "A0"))
	require.NoError(h.t, h.store.Set(tokenstore.SlotRefreshToken, "R0"))
	require.NoError(h.t, h.store.Set(tokenstore.SlotIDToken, idToken(h.t, "ada")))
}

func (h *harness) slot(s tokenstore.Slot) string {
	v, _ := h.store.Get(s)
	return v
}

func (h *harness) setToken(fn http.HandlerFunc) {
	h.mu.Lock()
	h.tokenFn = fn
	h.mu.Unlock()
}

func (h *harness) setAPI(fn http.HandlerFunc) {
	h.mu.Lock()
	h.apiFn = fn
	h.mu.Unlock()
}

func (h *harness) lastForm() url.Values {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.forms) == 0 {
		return nil
	}
	return h.forms[len(h.forms)-1]
}

func (h *harness) apiRequests() []request {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]request(nil), h.requests...)
}

// useLoopbackRedirect points the redirect URI at a free local port.
func (h *harness) useLoopbackRedirect() string {
	h.t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(h.t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(h.t, l.Close())

	h.cfg.OIDC.RedirectURI = "http://127.0.0.1:" + strconv.Itoa(port) + "/auth/callback"
	return h.cfg.OIDC.RedirectURI
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func idToken(t *testing.T, username string) string {
	t.Helper()
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.HS256, Key: []byte("0123456789abcdef0123456789abcdef")}, nil)
	require.NoError(t, err)
	raw, err := jwt.Signed(signer).Claims(map[string]interface{}{
		"sub":                "user-1",
		"email":              username + "@example.com",
		"name":               "Ada Lovelace",
		"preferred_username": username,
		"exp":                time.Now().Add(time.Hour).Unix(),
	}).Serialize()
	require.NoError(t, err)
	return raw
}

// redirectingNavigator plays the browser: it follows the authorize URL by
// calling the redirect URI with query.
type redirectingNavigator struct {
	redirectURI string
	query       url.Values

	mu   sync.Mutex
	urls []string
}

func (n *redirectingNavigator) Navigate(authURL string) error {
	n.mu.Lock()
	n.urls = append(n.urls, authURL)
	n.mu.Unlock()

	target := n.redirectURI + "?" + n.query.Encode()
	go func() {
		resp, err := http.Get(target)
		if err == nil {
			_ = resp.Body.Close()
		}
	}()
	return nil
}

func (n *redirectingNavigator) last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.urls) == 0 {
		return ""
	}
	return n.urls[len(n.urls)-1]
}
