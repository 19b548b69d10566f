package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"userconsole/pkg/logging"
)

const (
	userConfigDir  = ".config/userconsole"
	configFileName = "config.yaml"

	// EnvPrefix prefixes every environment variable, e.g. USERCONSOLE_OIDC_CLIENT_ID.
	EnvPrefix = "USERCONSOLE"

	// DefaultEnvFile is read from the working directory when present.
	DefaultEnvFile = ".env"
)

// osUserHomeDir is replaced in tests.
var osUserHomeDir = os.UserHomeDir

// DefaultConfigPath returns ~/.config/userconsole/config.yaml.
func DefaultConfigPath() (string, error) {
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user config directory: %w", err)
	}
	return filepath.Join(homeDir, userConfigDir, configFileName), nil
}

// LoadOptions selects the files Load reads. Empty fields use the defaults.
type LoadOptions struct {
	ConfigFile string
	EnvFile    string

	// SkipValidation returns the merged configuration even when it is not
	// usable for signing in, e.g. for self-update.
	SkipValidation bool
}

// legacyEnv maps variable names used by the browser build of the console to
// their USERCONSOLE equivalents so an existing .env keeps working.
var legacyEnv = map[string]string{
	"VITE_WSO2_CLIENT_ID":    EnvPrefix + "_OIDC_CLIENT_ID",
	"VITE_WSO2_AUTH_URL":     EnvPrefix + "_OIDC_AUTHORIZE_ENDPOINT",
	"VITE_WSO2_TOKEN_URL":    EnvPrefix + "_OIDC_TOKEN_ENDPOINT",
	"VITE_WSO2_REDIRECT_URI": EnvPrefix + "_OIDC_REDIRECT_URI",
}

// Load builds the configuration in layers: defaults, the YAML config file,
// the .env file, then USERCONSOLE_* environment variables. The result is
// validated.
func Load(opts LoadOptions) (Config, error) {
	cfg := Default()

	explicit := opts.ConfigFile != ""
	path := opts.ConfigFile
	if !explicit {
		p, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = p
	}
	if err := loadFile(path, explicit, &cfg); err != nil {
		return Config{}, err
	}

	envFile := opts.EnvFile
	if envFile == "" {
		envFile = DefaultEnvFile
	}
	if err := loadEnvFile(envFile, opts.EnvFile != ""); err != nil {
		return Config{}, err
	}
	applyLegacyEnv()

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("error reading configuration from environment: %w", err)
	}

	if opts.SkipValidation {
		return cfg, nil
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, required bool, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			logging.Debug("ConfigLoader", "No config.yaml found at %s, using defaults", path)
			return nil
		}
		return fmt.Errorf("error reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("error loading config from %s: %w", path, err)
	}
	logging.Debug("ConfigLoader", "Loaded configuration from %s", path)
	return nil
}

// loadEnvFile exports the variables of an env file. Variables already set in
// the process environment win.
func loadEnvFile(path string, required bool) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("error reading env file %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("error loading env file %s: %w", path, err)
	}
	logging.Debug("ConfigLoader", "Loaded environment from %s", path)
	return nil
}

func applyLegacyEnv() {
	for legacy, current := range legacyEnv {
		v, ok := os.LookupEnv(legacy)
		if !ok {
			continue
		}
		if _, set := os.LookupEnv(current); set {
			continue
		}
		_ = os.Setenv(current, v)
	}
}
