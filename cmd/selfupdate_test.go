package cmd

import (
	"bytes"
	"errors"
	"testing"

	"github.com/spf13/cobra"

	"userconsole/internal/config"
)

func TestNewSelfUpdateCmd(t *testing.T) {
	selfUpdateCmd := newSelfUpdateCmd(newApp(nil, &bytes.Buffer{}, &bytes.Buffer{}))

	if selfUpdateCmd.Use != "self-update" {
		t.Errorf("Expected Use to be 'self-update', got %s", selfUpdateCmd.Use)
	}
	if selfUpdateCmd.Long == "" {
		t.Error("Expected Long description to be set")
	}
	if selfUpdateCmd.Flags().Lookup("repository") == nil {
		t.Error("Expected --repository flag")
	}
}

func TestRunSelfUpdateWithDevVersion(t *testing.T) {
	original := GetVersion()
	defer SetVersion(original)

	for _, v := range []string{"dev", ""} {
		SetVersion(v)
		err := runSelfUpdate(&cobra.Command{}, defaultRepoSlug)
		if !errors.Is(err, errDevVersion) {
			t.Errorf("version %q: expected errDevVersion, got %v", v, err)
		}
	}
}

func TestUpdateRepository(t *testing.T) {
	a := newApp(nil, &bytes.Buffer{}, &bytes.Buffer{})

	var got config.LoadOptions
	a.loadConfig = func(opts config.LoadOptions) (config.Config, error) {
		got = opts
		cfg := config.Default()
		cfg.Update.Repository = "example/userconsole"
		return cfg, nil
	}
	if repo := a.updateRepository("custom.yaml"); repo != "example/userconsole" {
		t.Errorf("Expected configured repository, got %s", repo)
	}
	if !got.SkipValidation || got.ConfigFile != "custom.yaml" {
		t.Errorf("Unexpected load options %+v", got)
	}

	a.loadConfig = func(config.LoadOptions) (config.Config, error) {
		return config.Config{}, errors.New("unreadable")
	}
	if repo := a.updateRepository(""); repo != defaultRepoSlug {
		t.Errorf("Expected default repository, got %s", repo)
	}
}
