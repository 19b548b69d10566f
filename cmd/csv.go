package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"userconsole/internal/cli"
	"userconsole/internal/guard"
)

const defaultExportFile = "users.csv"

func newCSVCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "csv",
		Short: "Import and export users as CSV",
		Long: `Bulk import and export of users. The CSV content is passed to and from the
user API unchanged.

Examples:
  userconsole csv import new-hires.csv
  userconsole csv export -o all-users.csv
  userconsole csv export -o - | head`,
	}
	cmd.AddCommand(newCSVImportCmd(a), newCSVExportCmd(a))
	return guard.Protect(cmd)
}

func newCSVImportCmd(a *app) *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Upload a CSV file of users",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}

			progress := cli.StartProgress(a.errOut, fmt.Sprintf("Uploading %s...", filepath.Base(path)), quiet)
			res, err := a.users.Import(cmd.Context(), path, data)
			if err != nil {
				progress.Fail("Import failed")
				return err
			}
			progress.Stop()
			fmt.Fprintln(a.out, cli.FormatSuccess(res.Message))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress the progress indicator")
	return cmd
}

func newCSVExportCmd(a *app) *cobra.Command {
	var (
		output string
		quiet  bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Download all users as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			progress := cli.StartProgress(a.errOut, "Exporting users...", quiet || output == "-")
			data, err := a.users.Export(cmd.Context())
			if err != nil {
				progress.Fail("Export failed")
				return err
			}
			progress.Stop()

			if output == "-" {
				_, err := a.out.Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			fmt.Fprintln(a.out, cli.FormatSuccess(fmt.Sprintf("Exported %d bytes to %s", len(data), output)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", defaultExportFile, "Destination file (- for stdout)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress the progress indicator")
	return cmd
}
