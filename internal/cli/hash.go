package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"protonmc/internal/auth"
)

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password [password]",
	Short: "Print the argon2id hash of a password",
	Long: `Prints the encoded argon2id hash the panel stores for a password.
Without an argument the password is read from the terminal.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHashPassword,
}

func init() {
	rootCmd.AddCommand(hashPasswordCmd)
}

var readPassword = auth.PromptPassword

func runHashPassword(cmd *cobra.Command, args []string) error {
	var password string
	if len(args) == 1 {
		password = args[0]
	} else {
		p, err := readPassword("Password: ")
		if err != nil {
			return err
		}
		password = p
	}
	if password == "" {
		return auth.ErrEmptyPassword
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), hash)
	return nil
}
