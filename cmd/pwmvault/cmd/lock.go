package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var lockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Lock the identity in the running daemon",
	Long: `Drop the unlocked session the daemon keeps for the identity. The next
access asks for the master passphrase again.

CLI commands never keep a session; each one unlocks for itself.`,
	Args: cobra.NoArgs,
	RunE: runLock,
}

func init() {
	rootCmd.AddCommand(lockCmd)
}

func runLock(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	client := NewDaemonClient(cfg.ServerAddr(), callerApp, cfg.Server.ManagerToken, cmd.ErrOrStderr())
	if _, err := client.Health(cmd.Context()); err != nil {
		Info(cmd.OutOrStdout(), "No daemon at %s; CLI sessions end with each command", cfg.ServerAddr())
		return nil
	}
	if err := client.Lock(cmd.Context(), cfg.Vault.Identity); err != nil {
		return fmt.Errorf("failed to lock: %w", err)
	}
	Success(cmd.OutOrStdout(), "Locked %s", cfg.Vault.Identity)
	return nil
}
