package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/crypto"
)

var generateLength int

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Print a random password",
	Long: `Print a random password from the same generator used by set --generate.
The vault is not opened and nothing is stored.`,
	Aliases: []string{"gen"},
	Args:    cobra.NoArgs,
	RunE:    runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().IntVarP(&generateLength, "length", "l", crypto.DefaultSecretLength, "password length")
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	if generateLength <= 0 {
		return fmt.Errorf("--length must be positive")
	}
	secret, err := crypto.GenerateRandomSecret(generateLength)
	if err != nil {
		return fmt.Errorf("failed to generate: %w", err)
	}
	if structured() {
		return printStructured(cmd.OutOrStdout(), map[string]string{"generatedPassword": secret})
	}
	fmt.Fprintln(cmd.OutOrStdout(), secret)
	return nil
}
