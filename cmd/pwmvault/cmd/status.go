package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show vault status",
	Long:  `Show whether the identity has a vault, its unlock policy, the identities on disk and whether a daemon is running.`,
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

// StatusInfo is the output of the status command.
type StatusInfo struct {
	VaultDir         string   `json:"vaultDir" yaml:"vaultDir"`
	Identity         string   `json:"identity" yaml:"identity"`
	Exists           bool     `json:"exists" yaml:"exists"`
	UnlockPolicy     string   `json:"unlockPolicy" yaml:"unlockPolicy"`
	BiometricEnabled bool     `json:"biometricEnabled" yaml:"biometricEnabled"`
	Identities       []string `json:"identities" yaml:"identities"`
	Daemon           string   `json:"daemon" yaml:"daemon"`
	DaemonRunning    bool     `json:"daemonRunning" yaml:"daemonRunning"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
	return withVault(cmd, nil, func(ctx context.Context, s *session) error {
		info := StatusInfo{
			VaultDir: s.cfg.Vault.Dir,
			Identity: s.identity,
			Daemon:   s.cfg.ServerAddr(),
		}

		var err error
		if info.Exists, err = s.registry.VaultExists(s.identity); err != nil {
			return err
		}
		policy, err := s.registry.UnlockPolicy(s.identity)
		if err != nil {
			return err
		}
		info.UnlockPolicy = policy.String()
		if info.BiometricEnabled, err = s.registry.BiometricEnabled(s.identity); err != nil {
			return err
		}
		if info.Identities, err = s.files.List(); err != nil {
			return fmt.Errorf("list vaults: %w", err)
		}

		client := NewDaemonClient(s.cfg.ServerAddr(), "", "", cmd.ErrOrStderr())
		if _, err := client.Health(ctx); err == nil {
			info.DaemonRunning = true
		}

		w := cmd.OutOrStdout()
		if structured() {
			return printStructured(w, info)
		}

		PrintKeyValue(w, "Vault directory", info.VaultDir)
		PrintKeyValue(w, "Identity", info.Identity)
		if info.Exists {
			PrintKeyValue(w, "Vault", successColor.Sprint("present"))
		} else {
			PrintKeyValue(w, "Vault", warningColor.Sprint("not created yet"))
		}
		PrintKeyValue(w, "Unlock policy", info.UnlockPolicy)
		PrintKeyValue(w, "Biometric", fmt.Sprint(info.BiometricEnabled))
		if len(info.Identities) > 0 {
			PrintKeyValue(w, "Identities", strings.Join(info.Identities, ", "))
		}
		if info.DaemonRunning {
			PrintKeyValue(w, "Daemon", successColor.Sprintf("running at %s", info.Daemon))
		} else {
			PrintKeyValue(w, "Daemon", Dim("not running"))
		}
		return nil
	})
}
