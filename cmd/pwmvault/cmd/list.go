package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List every record with its owner",
	Long: `List every record of the vault, grouped by owning application.

Only the password manager may list; do not combine with --app. Values are
not shown, use get for that.`,
	Aliases: []string{"ls"},
	Args:    cobra.NoArgs,
	RunE:    runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

type listedRecord struct {
	App         string `json:"app" yaml:"app"`
	Key         string `json:"key" yaml:"key"`
	Type        string `json:"type" yaml:"type"`
	DisplayName string `json:"displayName,omitempty" yaml:"displayName,omitempty"`
}

func runList(cmd *cobra.Command, _ []string) error {
	return withVault(cmd, nil, func(ctx context.Context, s *session) error {
		entries, err := s.registry.GetAllRecords(ctx, s.identity, s.app)
		if err != nil {
			return fmt.Errorf("failed to list records: %w", err)
		}

		out := make([]listedRecord, 0, len(entries))
		for _, e := range entries {
			fields, err := recordFields(e.Record)
			if err != nil {
				return err
			}
			name, _ := fields["displayName"].(string)
			out = append(out, listedRecord{
				App:         e.App,
				Key:         e.Record.RecordKey(),
				Type:        e.Record.RecordType().String(),
				DisplayName: name,
			})
		}

		w := cmd.OutOrStdout()
		if structured() {
			return printStructured(w, out)
		}
		if len(out) == 0 {
			Info(w, "The vault of %s is empty", s.identity)
			return nil
		}
		rows := make([][]string, 0, len(out))
		for _, r := range out {
			app := r.App
			if app == "" {
				app = "(manager)"
			}
			rows = append(rows, []string{app, r.Key, r.Type, r.DisplayName})
		}
		return printTable(w, []string{"App", "Key", "Type", "Name"}, rows)
	})
}
