// Package cmd provides the CLI commands for pwmvault.
package cmd

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/vault"
)

// Version is reported by --version and the MCP server.
var Version = "dev"

var (
	cfgFile    string
	vaultDir   string
	identityID string
	callerApp  string
	jsonOutput bool
	yamlOutput bool
	verbose    bool
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "pwmvault",
	Short: "pwmvault - per-identity encrypted password vault",
	Long: `pwmvault keeps passwords, Wi-Fi credentials, bank cards, bank accounts and
service logins in one encrypted vault per identity. Every record belongs to
the application that stored it; without --app you act as the password
manager and can see everything.

Get started:
  pwmvault set wifi home --ssid HomeNet --password s3cret
  pwmvault get home
  pwmvault list
  pwmvault serve

Set PWMVAULT_PASSPHRASE to run without a terminal.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	rootCmd.Version = Version
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		reportError(rootCmd.ErrOrStderr(), err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default <vault>/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&vaultDir, "vault", "", "vault directory (default ~/.pwmvault)")
	rootCmd.PersistentFlags().StringVarP(&identityID, "identity", "i", "", "identity whose vault to use")
	rootCmd.PersistentFlags().StringVar(&callerApp, "app", "", "act as this application instead of the password manager")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&yamlOutput, "yaml", false, "output in YAML format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.MarkFlagsMutuallyExclusive("json", "yaml")
}

// reportError prints err with a hint matching its kind.
func reportError(w io.Writer, err error) {
	switch {
	case errors.Is(err, vault.ErrCancelled):
		Warning(w, "Cancelled: %v", err)
	case errors.Is(err, vault.ErrWrongPassphrase):
		Error(w, "Wrong master passphrase")
	case errors.Is(err, vault.ErrUnauthorized):
		Error(w, "Not allowed: %v", err)
	default:
		Error(w, "%v", err)
	}
}

// isVerbose returns whether verbose mode is enabled.
func isVerbose() bool {
	return verbose || os.Getenv("PWMVAULT_VERBOSE") != ""
}
