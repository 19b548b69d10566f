package cmd

import (
	"errors"
	"fmt"

	"github.com/creativeprojects/go-selfupdate"
	"github.com/spf13/cobra"

	"userconsole/internal/config"
)

// defaultRepoSlug is the GitHub repository (owner/repo) checked for releases
// when update.repository is not configured.
const defaultRepoSlug = "userconsole/userconsole"

// errDevVersion is returned when the running binary is not a release.
var errDevVersion = errors.New("cannot self-update a development version")

// newSelfUpdateCmd creates the Cobra command for the self-update functionality.
// This allows the application to update itself to the latest version from GitHub.
func newSelfUpdateCmd(a *app) *cobra.Command {
	var repo string

	cmd := &cobra.Command{
		Use:   "self-update",
		Short: "Update userconsole to the latest version",
		Long: `Checks for the latest release of userconsole on GitHub and
updates the current binary if a newer version is found.

The repository is taken from --repository, update.repository in the
configuration, or USERCONSOLE_UPDATE_REPOSITORY.`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{setupAnnotation: setupNone},
		RunE: func(cmd *cobra.Command, args []string) error {
			if repo == "" {
				configFile, _ := cmd.Flags().GetString("config")
				repo = a.updateRepository(configFile)
			}
			return runSelfUpdate(cmd, repo)
		},
	}
	cmd.Flags().StringVar(&repo, "repository", "", "GitHub repository (owner/name) to update from")
	return cmd
}

// updateRepository reads update.repository without requiring a usable
// login configuration.
func (a *app) updateRepository(configFile string) string {
	cfg, err := a.loadConfig(config.LoadOptions{ConfigFile: configFile, SkipValidation: true})
	if err != nil || cfg.Update.Repository == "" {
		return defaultRepoSlug
	}
	return cfg.Update.Repository
}

// runSelfUpdate checks the current version against the latest GitHub release
// and replaces the running binary if a newer one exists.
func runSelfUpdate(cmd *cobra.Command, slug string) error {
	currentVersion := appVersion
	// Development builds do not follow semantic versioning.
	if currentVersion == "" || currentVersion == "dev" {
		return errDevVersion
	}

	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	fmt.Fprintf(out, "Current version: %s\n", currentVersion)
	fmt.Fprintf(out, "Checking %s for updates...\n", slug)

	updater, err := selfupdate.NewUpdater(selfupdate.Config{})
	if err != nil {
		return fmt.Errorf("failed to create updater: %w", err)
	}

	latest, found, err := updater.DetectLatest(ctx, selfupdate.ParseSlug(slug))
	if err != nil {
		return fmt.Errorf("error detecting latest version: %w", err)
	}
	if !found {
		return fmt.Errorf("latest release for %s could not be found", slug)
	}

	if !latest.GreaterThan(currentVersion) {
		fmt.Fprintln(out, "Current version is the latest.")
		return nil
	}

	fmt.Fprintf(out, "Found newer version: %s (published at %s)\n", latest.Version(), latest.PublishedAt)
	fmt.Fprintf(out, "Release notes:\n%s\n", latest.ReleaseNotes)

	exe, err := selfupdate.ExecutablePath()
	if err != nil {
		return fmt.Errorf("could not locate executable path: %w", err)
	}

	fmt.Fprintf(out, "Updating %s to version %s...\n", exe, latest.Version())
	if err := updater.UpdateTo(ctx, latest, exe); err != nil {
		return fmt.Errorf("update failed: %w", err)
	}

	fmt.Fprintf(out, "Successfully updated to version %s\n", latest.Version())
	return nil
}
