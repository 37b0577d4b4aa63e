package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/vault"
)

var (
	deleteForce     bool
	deleteTargetApp string
)

var deleteCmd = &cobra.Command{
	Use:   "delete <key>",
	Short: "Delete a record",
	Long: `Delete a record from the vault.

By default, you will be prompted to confirm the deletion.
Use --yes or -y to skip the confirmation prompt.`,
	Aliases: []string{"rm", "remove"},
	Args:    cobra.ExactArgs(1),
	RunE:    runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
	deleteCmd.Flags().BoolVarP(&deleteForce, "yes", "y", false, "Skip confirmation prompt")
	deleteCmd.Flags().StringVar(&deleteTargetApp, "target-app", "", "delete from the bucket of another application (manager only)")
}

func runDelete(cmd *cobra.Command, args []string) error {
	key := args[0]

	if !deleteForce {
		if !PromptConfirm(cmd.InOrStdin(), cmd.ErrOrStderr(), fmt.Sprintf("Delete record '%s'?", key)) {
			Info(cmd.ErrOrStderr(), "Canceled")
			return nil
		}
	}

	return withVault(cmd, nil, func(ctx context.Context, s *session) error {
		err := s.registry.DeleteRecord(ctx, s.identity, s.app, key, deleteTargetApp)
		deleted := err == nil
		if errors.Is(err, vault.ErrRecordNotFound) {
			err = nil
		}
		if err != nil {
			return fmt.Errorf("failed to delete record: %w", err)
		}

		if structured() {
			return printStructured(cmd.OutOrStdout(), map[string]bool{"couldDelete": deleted})
		}
		if !deleted {
			Warning(cmd.OutOrStdout(), "No record '%s'", key)
			return nil
		}
		Success(cmd.OutOrStdout(), "Record '%s' deleted", key)
		return nil
	})
}
