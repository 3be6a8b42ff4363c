package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"protonmc/internal/auth"
)

var userLevel int

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage panel accounts",
}

var usersAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Create an account",
	Args:  cobra.ExactArgs(1),
	RunE:  runUsersAdd,
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts and their permission levels",
	Args:  cobra.NoArgs,
	RunE:  runUsersList,
}

var usersDeleteCmd = &cobra.Command{
	Use:   "delete <username>",
	Short: "Delete an account",
	Args:  cobra.ExactArgs(1),
	RunE:  runUsersDelete,
}

var usersPasswdCmd = &cobra.Command{
	Use:   "passwd <username>",
	Short: "Change an account's password",
	Args:  cobra.ExactArgs(1),
	RunE:  runUsersPasswd,
}

var usersLevelCmd = &cobra.Command{
	Use:   "level <username>",
	Short: "Change an account's permission level",
	Args:  cobra.ExactArgs(1),
	RunE:  runUsersLevel,
}

func init() {
	usersAddCmd.Flags().IntVarP(&userLevel, "level", "l", 1, fmt.Sprintf("permission level (0-%d)", auth.MaxLevel))
	usersLevelCmd.Flags().IntVarP(&userLevel, "level", "l", 1, fmt.Sprintf("permission level (0-%d)", auth.MaxLevel))
	usersCmd.AddCommand(usersAddCmd, usersListCmd, usersDeleteCmd, usersPasswdCmd, usersLevelCmd)
	rootCmd.AddCommand(usersCmd)
}

func withBackend(cmd *cobra.Command, fn func(ctx context.Context, b *backend) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	b, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer b.Close()
	return fn(ctx, b)
}

func runUsersAdd(cmd *cobra.Command, args []string) error {
	return withBackend(cmd, func(ctx context.Context, b *backend) error {
		password, err := promptPassword(args[0])
		if err != nil {
			return err
		}
		u, err := b.Auth.CreateUser(ctx, args[0], password, userLevel)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created user %q with level %d\n", u.Username, u.Permissions)
		return nil
	})
}

func runUsersList(cmd *cobra.Command, args []string) error {
	return withBackend(cmd, func(ctx context.Context, b *backend) error {
		users, err := b.Auth.ListUsers(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "USERNAME\tLEVEL\tPERMISSIONS")
		for _, u := range users {
			fmt.Fprintf(w, "%s\t%d\t%s\n", u.Username, u.Permissions, strings.Join(auth.Granted(u.Permissions), ","))
		}
		return w.Flush()
	})
}

func runUsersDelete(cmd *cobra.Command, args []string) error {
	return withBackend(cmd, func(ctx context.Context, b *backend) error {
		if err := b.Auth.DeleteUser(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted user %q\n", args[0])
		return nil
	})
}

func runUsersPasswd(cmd *cobra.Command, args []string) error {
	return withBackend(cmd, func(ctx context.Context, b *backend) error {
		password, err := promptPassword(args[0])
		if err != nil {
			return err
		}
		if err := b.Auth.SetPassword(ctx, args[0], password); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Password updated for %q\n", args[0])
		return nil
	})
}

func runUsersLevel(cmd *cobra.Command, args []string) error {
	return withBackend(cmd, func(ctx context.Context, b *backend) error {
		if err := b.Auth.SetPermissions(ctx, args[0], userLevel); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "User %q now has level %d\n", args[0], userLevel)
		return nil
	})
}
