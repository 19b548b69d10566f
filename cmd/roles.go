package cmd

import (
	"github.com/spf13/cobra"

	"userconsole/internal/cli"
	"userconsole/internal/guard"
)

func newRolesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roles",
		Short: "Inspect the roles users can be assigned",
	}

	flags := &cli.CommandFlags{}
	list := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List roles",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			printer, err := flags.Printer(a.out)
			if err != nil {
				return err
			}
			roles, err := a.users.Roles(cmd.Context())
			if err != nil {
				return err
			}
			return printer.Print(roles, func(t *cli.Table) {
				t.SetHeaders("ID", "Role")
				for _, r := range roles {
					t.AppendRow(string(r.ID), r.RoleName)
				}
			})
		},
	}
	cli.RegisterCommonFlags(list, flags)

	cmd.AddCommand(list)
	return guard.Protect(cmd)
}
