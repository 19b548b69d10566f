package oauth

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_ExchangeCode(t *testing.T) {
	var form url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"A1","refresh_token":"R1","id_token":"I1","token_type":"Bearer","expires_in":300,"scope":"openid email"}`))
	}))
	defer server.Close()

	client := NewClient(WithHTTPClient(server.Client()))
	token, err := client.ExchangeCode(context.Background(), server.URL, "abc", "http://localhost:5173/auth/callback", "cid", "verifier")
	require.NoError(t, err)

	assert.Equal(t, "authorization_code", form.Get("grant_type"))
	assert.Equal(t, "abc", form.Get("code"))
	assert.Equal(t, "verifier", form.Get("code_verifier"))
	assert.Equal(t, "cid", form.Get("client_id"))
	assert.Equal(t, "http://localhost:5173/auth/callback", form.Get("redirect_uri"))

	assert.Equal(t, "A1", token.AccessToken)
	assert.Equal(t, "R1", token.RefreshToken)
	assert.Equal(t, "I1", token.IDToken)
	assert.Equal(t, []string{"openid", "email"}, token.Scopes())
	assert.WithinDuration(t, time.Now().Add(300*time.Second), token.ExpiresAt, 5*time.Second)
}

func TestClient_RefreshToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "R1", r.PostForm.Get("refresh_token"))
		_, _ = w.Write([]byte(`{"access_token":"A2"}`))
	}))
	defer server.Close()

	token, err := NewClient().RefreshToken(context.Background(), server.URL, "R1", "cid")
	require.NoError(t, err)
	assert.Equal(t, "A2", token.AccessToken)
	assert.Empty(t, token.RefreshToken)
}

func TestClient_TokenRequestWithoutAccessToken(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode string
		wantDesc string
	}{
		{"provider error", http.StatusBadRequest, `{"error":"invalid_grant","error_description":"code expired"}`, "invalid_grant", "code expired"},
		{"ok without token", http.StatusOK, `{"token_type":"Bearer"}`, "", ""},
		{"not json", http.StatusBadGateway, `<html>bad gateway</html>`, "", "Bad Gateway"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewClient().ExchangeCode(context.Background(), server.URL, "c", "r", "id", "v")
			var perr *ProtocolError
			require.True(t, errors.As(err, &perr), "got %v", err)
			assert.Equal(t, tt.status, perr.Status)
			assert.Equal(t, tt.wantCode, perr.Code)
			assert.Equal(t, tt.wantDesc, perr.Description)
			assert.NotEmpty(t, perr.Error())
		})
	}
}

func TestClient_LogsRejectedGrantWithoutSecrets(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer server.Close()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	client := NewClient(WithHTTPClient(server.Client()), WithLogger(logger))

	_, err := client.RefreshToken(context.Background(), server.URL, "secret-refresh", "cid")
	require.Error(t, err)

	out := buf.String()
	assert.Contains(t, out, "error=invalid_grant")
	assert.Contains(t, out, "grant_type=refresh_token")
	assert.NotContains(t, out, "secret-refresh")
}

func TestClient_Revoke(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "tok", r.PostForm.Get("token"))
		assert.Equal(t, TokenTypeHintRefreshToken, r.PostForm.Get("token_type_hint"))
		assert.Equal(t, "cid", r.PostForm.Get("client_id"))
		if r.URL.Path == "/fail" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient()
	require.NoError(t, client.Revoke(context.Background(), server.URL+"/ok", "tok", TokenTypeHintRefreshToken, "cid"))

	err := client.Revoke(context.Background(), server.URL+"/fail", "tok", TokenTypeHintRefreshToken, "cid")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestBuildAuthorizationURL(t *testing.T) {
	raw, err := BuildAuthorizationURL(AuthorizationRequest{
		Endpoints:   Endpoints{AuthorizeURL: "https://idp.example.com/oauth2/authorize"},
		ClientID:    "cid",
		RedirectURI: "http://localhost:5173/auth/callback",
		Scopes:      []string{"openid", "profile", "offline_access"},
		Challenge:   "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM",
		Extra:       map[string]string{"prompt": "login"},
	})
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "idp.example.com", u.Host)
	assert.Equal(t, "/oauth2/authorize", u.Path)

	q := u.Query()
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "cid", q.Get("client_id"))
	assert.Equal(t, "http://localhost:5173/auth/callback", q.Get("redirect_uri"))
	assert.Equal(t, "openid profile offline_access", q.Get("scope"))
	assert.Equal(t, "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM", q.Get("code_challenge"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.Equal(t, "login", q.Get("prompt"))
	assert.False(t, q.Has("state"))
	assert.False(t, strings.Contains(raw, "code_verifier"))
}
