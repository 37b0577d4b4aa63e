package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/biometric"
	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/config"
	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/logging"
	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/store"
	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/vault"
)

// loadConfig reads the configuration with the global flags on top.
func loadConfig() (*config.Config, error) {
	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	}
	flags := rootCmd.PersistentFlags()
	if err := v.BindPFlag("vault.dir", flags.Lookup("vault")); err != nil {
		return nil, err
	}
	if err := v.BindPFlag("vault.identity", flags.Lookup("identity")); err != nil {
		return nil, err
	}

	cfg, err := config.Load(v)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// cliLogger logs warnings to w in text form, or everything with --verbose.
func cliLogger(w io.Writer) *slog.Logger {
	level := "warn"
	if isVerbose() {
		level = "debug"
	}
	logger, err := logging.New(level, "text", w)
	if err != nil {
		return logging.Discard()
	}
	return logger
}

// session bundles what one CLI command works with.
type session struct {
	cfg      *config.Config
	registry *vault.Registry
	files    *store.FileStore
	identity string
	app      string
}

// withVault opens the vault directory, runs fn and closes it again. The
// session ends with the command, so every command unlocks anew.
func withVault(cmd *cobra.Command, prompter vault.Prompter, fn func(ctx context.Context, s *session) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if prompter == nil {
		prompter = newTerminalPrompter(cmd.InOrStdin() == os.Stdin)
	}

	reg, files, err := vault.Open(cfg.Vault, prompter, biometric.Disabled{}, cliLogger(cmd.ErrOrStderr()))
	if err != nil {
		return fmt.Errorf("open vault at %s: %w", cfg.Vault.Dir, err)
	}
	defer reg.Close()

	return fn(cmd.Context(), &session{
		cfg:      cfg,
		registry: reg,
		files:    files,
		identity: cfg.Vault.Identity,
		app:      callerApp,
	})
}
