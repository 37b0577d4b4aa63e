package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/vault"
)

var (
	getNoPrompt    bool
	getForcePrompt bool
	getTargetApp   string
)

var getCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Show a record",
	Long: `Show the record stored under key.

Records go to stdout and messages to stderr, making this command
pipe-friendly.

Examples:
  pwmvault get home
  pwmvault get home --json
  pwmvault get forum --target-app forum.app`,
	Aliases: []string{"g"},
	Args:    cobra.ExactArgs(1),
	RunE:    runGet,
}

func init() {
	rootCmd.AddCommand(getCmd)
	getCmd.Flags().BoolVar(&getNoPrompt, "no-prompt", false, "fail instead of asking for the passphrase")
	getCmd.Flags().BoolVar(&getForcePrompt, "force-prompt", false, "ask for the passphrase even if unlocked")
	getCmd.Flags().StringVar(&getTargetApp, "target-app", "", "read the bucket of another application (manager only)")
}

func runGet(cmd *cobra.Command, args []string) error {
	key := args[0]
	return withVault(cmd, nil, func(ctx context.Context, s *session) error {
		rec, err := s.registry.GetRecord(ctx, s.identity, s.app, key, vault.GetOptions{
			PromptIfLocked: !getNoPrompt,
			ForcePrompt:    getForcePrompt,
			TargetApp:      getTargetApp,
		})
		if errors.Is(err, vault.ErrRecordNotFound) {
			if structured() {
				return printStructured(cmd.OutOrStdout(), map[string]any{"passwordInfo": nil})
			}
			return fmt.Errorf("no record %q", key)
		}
		if err != nil {
			return fmt.Errorf("failed to get record: %w", err)
		}

		owner := s.app
		if getTargetApp != "" {
			owner = getTargetApp
		}
		return printRecord(cmd.OutOrStdout(), owner, rec)
	})
}
