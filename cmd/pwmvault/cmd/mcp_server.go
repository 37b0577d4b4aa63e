package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/biometric"
	pwmmcp "github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/mcp"
	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/vault"
)

var mcpServerCmd = &cobra.Command{
	Use:   "mcp-server",
	Short: "Start pwmvault as an MCP server (stdio)",
	Long: `Start pwmvault as a Model Context Protocol server for AI agent integration.
Communicates over stdin/stdout using JSON-RPC, so the master passphrase is
read from PWMVAULT_PASSPHRASE only.

The server acts as the application named by mcp.app_id (or --app) and sees
only that application's records. Access is narrowed further by
<vault>/mcp-policy.yaml or mcp.policy_file.

Configure in .claude/settings.local.json:
  {
    "mcpServers": {
      "pwmvault": {
        "command": "pwmvault",
        "args": ["mcp-server"],
        "env": {"PWMVAULT_PASSPHRASE": "..."}
      }
    }
  }`,
	Hidden: true,
	Args:   cobra.NoArgs,
	RunE:   runMCPServer,
}

func init() {
	rootCmd.AddCommand(mcpServerCmd)
}

func runMCPServer(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	policyPath := cfg.MCP.PolicyFile
	if policyPath == "" {
		policyPath = filepath.Join(cfg.Vault.Dir, "mcp-policy.yaml")
	}
	policy, err := pwmmcp.LoadPolicy(policyPath)
	if err != nil {
		return err
	}
	if policy == nil {
		policy = pwmmcp.DefaultPolicy()
	}

	appID := cfg.MCP.AppID
	if callerApp != "" {
		appID = callerApp
	}

	reg, _, err := vault.Open(cfg.Vault, newTerminalPrompter(false), biometric.Disabled{}, cliLogger(cmd.ErrOrStderr()))
	if err != nil {
		return fmt.Errorf("open vault at %s: %w", cfg.Vault.Dir, err)
	}
	defer reg.Close()

	srv, err := pwmmcp.NewVaultMCPServer(reg, pwmmcp.Options{
		AppID:    appID,
		Identity: cfg.Vault.Identity,
		Policy:   policy,
		Version:  Version,
	})
	if err != nil {
		return err
	}
	return srv.Run(cmd.Context())
}
