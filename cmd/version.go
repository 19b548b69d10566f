package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newVersionCmd creates the Cobra command for displaying the application version.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print the version number of userconsole",
		Long:        `All software has versions. This is userconsole's.`,
		Annotations: map[string]string{setupAnnotation: setupNone},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "userconsole version %s\n", appVersion)
		},
	}
}
