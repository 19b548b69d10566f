package cmd

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"userconsole/internal/cli"
	"userconsole/internal/guard"
	"userconsole/internal/users"
)

// userListView is the structured output of `users list`.
type userListView struct {
	Users      []users.User `json:"users" yaml:"users"`
	Page       int          `json:"page" yaml:"page"`
	TotalPages int          `json:"totalPages" yaml:"totalPages"`
	Count      int          `json:"count" yaml:"count"`
}

func newUsersCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "users",
		Aliases: []string{"user"},
		Short:   "Manage user profiles",
		Long: `List, inspect, create, update and delete the user profiles of the user API.

Every request carries the session's access token. An expired token is renewed
once and the request replayed; if renewal fails the session ends and a new
login is started.

Examples:
  userconsole users list
  userconsole users list --search ada --page 2
  userconsole users get 42 -o yaml
  userconsole users create -f ada.yaml
  userconsole users delete 42 --yes`,
	}

	cmd.AddCommand(
		newUsersListCmd(a),
		newUsersSearchCmd(a),
		newUsersGetCmd(a),
		newUsersCreateCmd(a),
		newUsersUpdateCmd(a),
		newUsersDeleteCmd(a),
	)
	return guard.Protect(cmd)
}

func newUsersListCmd(a *app) *cobra.Command {
	flags := &cli.CommandFlags{}
	var (
		search  string
		page    int
		perPage int
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List users, one page at a time",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			printer, err := flags.Printer(a.out)
			if err != nil {
				return err
			}
			all, err := a.users.List(cmd.Context(), search)
			if err != nil {
				return err
			}
			p := users.Paginate(all, page, perPage)

			view := userListView{Users: p.Items, Page: p.Number, TotalPages: p.Total, Count: p.Count}
			if err := printer.Print(view, func(t *cli.Table) { userRows(t, p.Items, printer.Wide()) }); err != nil {
				return err
			}
			if !printer.Structured() && !flags.Quiet {
				fmt.Fprintln(a.errOut, pageFooter(p))
			}
			return nil
		},
	}
	cli.RegisterCommonFlags(cmd, flags)
	cmd.Flags().StringVar(&search, "search", "", "Only list users matching this term")
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&perPage, "per-page", users.DefaultPerPage, "Users per page")
	return cmd
}

func pageFooter(p users.Page) string {
	noun := "users"
	if p.Count == 1 {
		noun = "user"
	}
	footer := fmt.Sprintf("Page %d of %d (%d %s)", p.Number, p.Total, p.Count, noun)
	if p.HasNext() {
		footer += fmt.Sprintf(", next: --page %d", p.Number+1)
	}
	return footer
}

func newUsersSearchCmd(a *app) *cobra.Command {
	flags := &cli.CommandFlags{}

	cmd := &cobra.Command{
		Use:   "search <term>",
		Short: "Find users matching a term",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			printer, err := flags.Printer(a.out)
			if err != nil {
				return err
			}
			found, err := a.users.List(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(found) == 0 && !printer.Structured() {
				fmt.Fprintf(a.errOut, "No users match %q\n", args[0])
				return nil
			}
			return printer.Print(found, func(t *cli.Table) { userRows(t, found, printer.Wide()) })
		},
	}
	cli.RegisterCommonFlags(cmd, flags)
	return cmd
}

func userRows(t *cli.Table, list []users.User, wide bool) {
	if wide {
		t.SetHeaders("ID", "Name", "Email", "Mobile", "Role", "Gender", "Date of Birth", "Created")
	} else {
		t.SetHeaders("ID", "Name", "Email", "Mobile", "Role")
	}
	for _, u := range list {
		if wide {
			t.AppendRow(string(u.ID), u.FullName(), u.Email, u.MobileNumber, u.Role, u.Gender, u.DateOfBirth, u.CreatedAt)
			continue
		}
		t.AppendRow(string(u.ID), cli.Truncate(u.FullName(), 40), u.Email, u.MobileNumber, u.Role)
	}
}

func newUsersGetCmd(a *app) *cobra.Command {
	flags := &cli.CommandFlags{}

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			printer, err := flags.Printer(a.out)
			if err != nil {
				return err
			}
			u, err := a.users.Get(cmd.Context(), users.ID(args[0]))
			if err != nil {
				return err
			}
			if printer.Structured() {
				return printer.Print(u, nil)
			}
			return printUserDetail(a.out, u, flags.NoHeaders)
		},
	}
	cli.RegisterCommonFlags(cmd, flags)
	return cmd
}

func printUserDetail(out io.Writer, u *users.User, noHeaders bool) error {
	profile := cli.NewTable(out)
	profile.SetNoHeaders(noHeaders)
	profile.SetHeaders("Field", "Value")
	profile.AppendRow("id", string(u.ID))
	profile.AppendRow("name", u.FullName())
	profile.AppendRow("father's name", u.FathersName)
	profile.AppendRow("mother's name", u.MothersName)
	profile.AppendRow("email", u.Email)
	profile.AppendRow("mobile", u.MobileNumber)
	profile.AppendRow("gender", u.Gender)
	profile.AppendRow("date of birth", u.DateOfBirth)
	profile.AppendRow("address", u.Address)
	profile.AppendRow("role", u.Role)
	profile.AppendRow("created", u.CreatedAt)
	profile.AppendRow("modified", u.ModifiedAt)
	profile.Render()

	if len(u.Education) > 0 {
		fmt.Fprintln(out, "\nEducation:")
		t := cli.NewTable(out)
		t.SetNoHeaders(noHeaders)
		t.SetHeaders("College", "Location", "Start", "End")
		for _, e := range u.Education {
			t.AppendRow(e.CollegeName, e.Location, e.StartDate, e.EndDate)
		}
		t.Render()
	}

	if len(u.Experience) > 0 {
		fmt.Fprintln(out, "\nExperience:")
		t := cli.NewTable(out)
		t.SetNoHeaders(noHeaders)
		t.SetHeaders("Company", "Role", "Location", "Start", "End")
		for _, e := range u.Experience {
			t.AppendRow(e.CompanyName, e.Role, e.Location, e.StartDate, e.EndDate)
		}
		t.Render()
	}
	return nil
}

func newUsersCreateCmd(a *app) *cobra.Command {
	flags := &cli.CommandFlags{}
	var file string

	cmd := &cobra.Command{
		Use:   "create -f <file>",
		Short: "Create a user from a YAML or JSON file",
		Long: `Create a user from a YAML or JSON file, or from standard input with -f -.

The record is validated before it is sent: names are required and limited to
50 characters, dates use YYYY-MM-DD, and every education and experience entry
must end after it starts.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			printer, err := flags.Printer(a.out)
			if err != nil {
				return err
			}
			u, err := readUserFile(a.in, file)
			if err != nil {
				return err
			}
			created, err := a.users.Create(cmd.Context(), u)
			if err != nil {
				return err
			}
			if printer.Structured() {
				return printer.Print(created, nil)
			}
			fmt.Fprintln(a.out, cli.FormatSuccess(fmt.Sprintf("Created user %s", describeUser(created))))
			return nil
		},
	}
	cli.RegisterCommonFlags(cmd, flags)
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML or JSON file with the user record (- for stdin)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newUsersUpdateCmd(a *app) *cobra.Command {
	flags := &cli.CommandFlags{}
	var file string

	cmd := &cobra.Command{
		Use:   "update <id> -f <file>",
		Short: "Replace a user with the record in a YAML or JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			printer, err := flags.Printer(a.out)
			if err != nil {
				return err
			}
			u, err := readUserFile(a.in, file)
			if err != nil {
				return err
			}
			updated, err := a.users.Update(cmd.Context(), users.ID(args[0]), u)
			if err != nil {
				return err
			}
			if printer.Structured() {
				return printer.Print(updated, nil)
			}
			fmt.Fprintln(a.out, cli.FormatSuccess(fmt.Sprintf("Updated user %s", describeUser(updated))))
			return nil
		},
	}
	cli.RegisterCommonFlags(cmd, flags)
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML or JSON file with the user record (- for stdin)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newUsersDeleteCmd(a *app) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a user",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := users.ID(args[0])
			if !yes {
				if a.consoleRunning {
					return errors.New("confirm the deletion with --yes")
				}
				ok, err := confirm(a.in, a.errOut, fmt.Sprintf("Delete user %s?", id))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(a.errOut, "Aborted")
					return nil
				}
			}
			if err := a.users.Delete(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintln(a.out, cli.FormatSuccess(fmt.Sprintf("Deleted user %s", id)))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

// readUserFile decodes a user record. Files ending in .json are decoded as
// JSON, everything else as YAML.
func readUserFile(stdin io.Reader, path string) (*users.User, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read user file: %w", err)
	}

	u := &users.User{}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, u)
	} else {
		err = yaml.Unmarshal(data, u)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse user file %s: %w", path, err)
	}
	return u, nil
}

func describeUser(u *users.User) string {
	if u.ID == "" {
		return u.FullName()
	}
	return fmt.Sprintf("%s (%s)", u.ID, u.FullName())
}

// confirm asks a yes/no question on out and reads the answer from in.
func confirm(in io.Reader, out io.Writer, question string) (bool, error) {
	fmt.Fprintf(out, "%s [y/N]: ", question)
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}
