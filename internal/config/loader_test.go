package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withHome points the user config directory at a temporary home.
func withHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	original := osUserHomeDir
	osUserHomeDir = func() (string, error) { return home, nil }
	t.Cleanup(func() { osUserHomeDir = original })
	return home
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// clearEnv unsets keys for the duration of the test.
func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestLoad_DefaultsNeedClientID(t *testing.T) {
	withHome(t)
	clearEnv(t, "USERCONSOLE_OIDC_CLIENT_ID", "VITE_WSO2_CLIENT_ID")

	_, err := Load(LoadOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oidc.client_id")
}

func TestLoad_Defaults(t *testing.T) {
	withHome(t)
	t.Setenv("USERCONSOLE_OIDC_CLIENT_ID", "console")

	cfg, err := Load(LoadOptions{})
	require.NoError(t, err)

	assert.Equal(t, "console", cfg.OIDC.ClientID)
	assert.Equal(t, DefaultAuthorizeEndpoint, cfg.OIDC.AuthorizeEndpoint)
	assert.Equal(t, DefaultTokenEndpoint, cfg.OIDC.TokenEndpoint)
	assert.Equal(t, DefaultRevokeEndpoint, cfg.OIDC.RevokeEndpoint)
	assert.Equal(t, DefaultRedirectURI, cfg.OIDC.RedirectURI)
	assert.Equal(t, []string{"openid", "profile", "email", "offline_access", "address"}, cfg.OIDC.ScopeList())
	assert.Equal(t, DefaultAPIBaseURL, cfg.API.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.Equal(t, 4*time.Minute, cfg.Session.RefreshInterval)
	assert.Equal(t, "file", cfg.Store.Backend)
}

func TestLoad_UserConfigFile(t *testing.T) {
	home := withHome(t)
	writeFile(t, filepath.Join(home, ".config", "userconsole", "config.yaml"), `
oidc:
  client_id: from-file
  scopes: openid email
api:
  base_url: https://users.example.com
  timeout: 5s
session:
  refresh_interval: 90s
store:
  backend: sqlite
update:
  repository: example/userconsole
`)

	cfg, err := Load(LoadOptions{})
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.OIDC.ClientID)
	assert.Equal(t, []string{"openid", "email"}, cfg.OIDC.ScopeList())
	assert.Equal(t, DefaultTokenEndpoint, cfg.OIDC.TokenEndpoint, "unset keys keep defaults")
	assert.Equal(t, "https://users.example.com", cfg.API.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.API.Timeout)
	assert.Equal(t, 90*time.Second, cfg.Session.RefreshInterval)
	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, "example/userconsole", cfg.Update.Repository)
}

func TestLoad_ExplicitConfigMustExist(t *testing.T) {
	withHome(t)
	_, err := Load(LoadOptions{ConfigFile: filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)
}

func TestLoad_MalformedYAML(t *testing.T) {
	withHome(t)
	path := writeFile(t, filepath.Join(t.TempDir(), "bad.yaml"), "oidc: [unterminated")
	_, err := Load(LoadOptions{ConfigFile: path})
	assert.Error(t, err)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	withHome(t)
	path := writeFile(t, filepath.Join(t.TempDir(), "config.yaml"), `
oidc:
  client_id: from-file
session:
  refresh_interval: 1m
`)
	t.Setenv("USERCONSOLE_OIDC_CLIENT_ID", "from-env")
	t.Setenv("USERCONSOLE_SESSION_REFRESH_INTERVAL", "0s")
	t.Setenv("USERCONSOLE_STORE_BACKEND", "memory")

	cfg, err := Load(LoadOptions{ConfigFile: path})
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.OIDC.ClientID)
	assert.Equal(t, time.Duration(0), cfg.Session.RefreshInterval)
	assert.Equal(t, "memory", cfg.Store.Backend)
}

func TestLoad_DotEnvAndLegacyNames(t *testing.T) {
	withHome(t)
	envFile := writeFile(t, filepath.Join(t.TempDir(), ".env"), `
VITE_WSO2_CLIENT_ID=legacy-client
VITE_WSO2_REDIRECT_URI=http://127.0.0.1:8765/cb
USERCONSOLE_API_BASE_URL=http://api.internal:8081
`)
	// godotenv exports into the process; clearEnv restores it afterwards.
	clearEnv(t, "VITE_WSO2_CLIENT_ID", "VITE_WSO2_REDIRECT_URI", "USERCONSOLE_API_BASE_URL",
		"USERCONSOLE_OIDC_CLIENT_ID", "USERCONSOLE_OIDC_REDIRECT_URI")

	cfg, err := Load(LoadOptions{EnvFile: envFile})
	require.NoError(t, err)
	assert.Equal(t, "legacy-client", cfg.OIDC.ClientID)
	assert.Equal(t, "http://127.0.0.1:8765/cb", cfg.OIDC.RedirectURI)
	assert.Equal(t, "http://api.internal:8081", cfg.API.BaseURL)
}

func TestLoad_ProcessEnvBeatsDotEnv(t *testing.T) {
	withHome(t)
	envFile := writeFile(t, filepath.Join(t.TempDir(), ".env"), "USERCONSOLE_OIDC_CLIENT_ID=from-dotenv\n")
	t.Setenv("USERCONSOLE_OIDC_CLIENT_ID", "from-process")

	cfg, err := Load(LoadOptions{EnvFile: envFile})
	require.NoError(t, err)
	assert.Equal(t, "from-process", cfg.OIDC.ClientID)
}

func TestLoad_ExplicitEnvFileMustExist(t *testing.T) {
	withHome(t)
	t.Setenv("USERCONSOLE_OIDC_CLIENT_ID", "console")
	_, err := Load(LoadOptions{EnvFile: filepath.Join(t.TempDir(), "absent.env")})
	assert.Error(t, err)
}

func TestDefaultConfigPath(t *testing.T) {
	home := withHome(t)
	p, err := DefaultConfigPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "userconsole", "config.yaml"), p)
}

func TestLoad_SkipValidation(t *testing.T) {
	withHome(t)
	clearEnv(t, "USERCONSOLE_OIDC_CLIENT_ID", "VITE_WSO2_CLIENT_ID")
	t.Setenv("USERCONSOLE_UPDATE_REPOSITORY", "example/userconsole")

	cfg, err := Load(LoadOptions{SkipValidation: true})
	require.NoError(t, err)
	assert.Empty(t, cfg.OIDC.ClientID)
	assert.Equal(t, "example/userconsole", cfg.Update.Repository)
}
