package cmd

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	auditLimit int
	auditAll   bool
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show the audit log",
	Long: `Show recent vault operations, newest first. Entries name the action,
caller application, key and result, never a secret value.`,
	Args: cobra.NoArgs,
	RunE: runAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.Flags().IntVarP(&auditLimit, "limit", "n", 50, "number of entries to show (0 for all)")
	auditCmd.Flags().BoolVar(&auditAll, "all", false, "show every identity")
}

func runAudit(cmd *cobra.Command, _ []string) error {
	if callerApp != "" {
		return fmt.Errorf("only the password manager can read the audit log; drop --app")
	}
	if auditLimit < 0 {
		return fmt.Errorf("--limit cannot be negative")
	}

	return withVault(cmd, nil, func(_ context.Context, s *session) error {
		identity := s.identity
		if auditAll {
			identity = ""
		}
		entries, err := s.registry.AuditLog(identity, auditLimit)
		if err != nil {
			return fmt.Errorf("failed to read audit log: %w", err)
		}

		w := cmd.OutOrStdout()
		if structured() {
			return printStructured(w, entries)
		}
		if len(entries) == 0 {
			Info(w, "No audit entries")
			return nil
		}

		rows := make([][]string, 0, len(entries))
		for _, e := range entries {
			rows = append(rows, []string{humanize.Time(e.Timestamp), e.Identity, e.Action, e.App, e.Key, e.Result})
		}
		return printTable(w, []string{"When", "Identity", "Action", "App", "Key", "Result"}, rows)
	})
}
