package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/store"
)

var policyCmd = &cobra.Command{
	Use:   "policy [for-a-while|every-time]",
	Short: "Show or set the unlock policy",
	Long: `Show or set how long a vault stays unlocked.

  for-a-while  the session lasts until it expires or is locked
  every-time   the passphrase is asked for every operation

Setting the policy requires unlocking the vault.`,
	ValidArgs: []string{store.UnlockForAWhile.String(), store.UnlockEveryTime.String()},
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	RunE:      runPolicy,
}

func init() {
	rootCmd.AddCommand(policyCmd)
}

func runPolicy(cmd *cobra.Command, args []string) error {
	return withVault(cmd, nil, func(ctx context.Context, s *session) error {
		w := cmd.OutOrStdout()
		if len(args) == 0 {
			policy, err := s.registry.UnlockPolicy(s.identity)
			if err != nil {
				return err
			}
			if structured() {
				return printStructured(w, map[string]string{"policy": policy.String()})
			}
			PrintKeyValue(w, "policy", policy.String())
			return nil
		}

		policy, err := store.ParseUnlockPolicy(args[0])
		if err != nil {
			return err
		}
		if err := s.registry.SetUnlockPolicy(ctx, s.identity, s.app, policy); err != nil {
			return fmt.Errorf("failed to set policy: %w", err)
		}
		Success(w, "Unlock policy set to %s", policy)
		return nil
	})
}
