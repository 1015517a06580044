package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sshcollectorpro/clisession/internal/credential"
)

var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Manage passwords stored in the system keyring",
}

var secretSetCmd = &cobra.Command{
	Use:   "set KEY",
	Short: "Store a password and print its keyring reference",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		value, err := readPassword(fmt.Sprintf("value for %s: ", args[0]))
		if err != nil {
			return err
		}
		ref, err := credential.NewResolver(appConfig.Credentials.KeyringService).Store(args[0], value)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ref)
		return nil
	},
}

var secretDeleteCmd = &cobra.Command{
	Use:   "delete KEY",
	Short: "Remove a stored password",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return credential.NewResolver(appConfig.Credentials.KeyringService).Delete(args[0])
	},
}

func init() {
	secretCmd.AddCommand(secretSetCmd, secretDeleteCmd)
}
