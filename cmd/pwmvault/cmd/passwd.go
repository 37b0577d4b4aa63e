package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var passwdCmd = &cobra.Command{
	Use:   "passwd",
	Short: "Change the master passphrase",
	Long: `Re-encrypt the vault under a new master passphrase.

The current passphrase is asked first. The biometric shortcut is turned off
and must be enabled again. Non-interactive use reads PWMVAULT_PASSPHRASE and
PWMVAULT_NEW_PASSPHRASE.`,
	Args: cobra.NoArgs,
	RunE: runPasswd,
}

func init() {
	rootCmd.AddCommand(passwdCmd)
}

func runPasswd(cmd *cobra.Command, _ []string) error {
	return withVault(cmd, nil, func(ctx context.Context, s *session) error {
		if err := s.registry.ChangePassphrase(ctx, s.identity, s.app); err != nil {
			return fmt.Errorf("failed to change passphrase: %w", err)
		}
		if structured() {
			return printStructured(cmd.OutOrStdout(), map[string]bool{"couldChange": true})
		}
		Success(cmd.OutOrStdout(), "Master passphrase changed")
		return nil
	})
}
