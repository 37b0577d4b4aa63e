package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var destroyForce bool

var destroyCmd = &cobra.Command{
	Use:   "destroy",
	Short: "Delete the whole vault of the identity",
	Long: `Delete the vault file, settings and biometric shortcut of the identity.
Every record of every application is lost. This cannot be undone.`,
	Args: cobra.NoArgs,
	RunE: runDestroy,
}

func init() {
	rootCmd.AddCommand(destroyCmd)
	destroyCmd.Flags().BoolVarP(&destroyForce, "yes", "y", false, "Skip confirmation prompt")
}

func runDestroy(cmd *cobra.Command, _ []string) error {
	if callerApp != "" {
		return fmt.Errorf("only the password manager can destroy a vault; drop --app")
	}

	return withVault(cmd, nil, func(ctx context.Context, s *session) error {
		exists, err := s.registry.VaultExists(s.identity)
		if err != nil {
			return err
		}
		if !exists {
			Warning(cmd.OutOrStdout(), "No vault for %s", s.identity)
			return nil
		}

		if !destroyForce {
			msg := fmt.Sprintf("Delete every record of %s?", Bold("%s", s.identity))
			if !PromptConfirm(cmd.InOrStdin(), cmd.ErrOrStderr(), msg) {
				Info(cmd.ErrOrStderr(), "Canceled")
				return nil
			}
		}

		if err := s.registry.DeleteVault(ctx, s.identity); err != nil {
			return fmt.Errorf("failed to delete vault: %w", err)
		}
		Success(cmd.OutOrStdout(), "Vault of %s deleted", s.identity)
		return nil
	})
}
