package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"go.yaml.in/yaml/v3"

	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/record"
)

var (
	// Color definitions.
	successColor = color.New(color.FgGreen)
	errorColor   = color.New(color.FgRed)
	warningColor = color.New(color.FgYellow)
	infoColor    = color.New(color.FgCyan)
	boldColor    = color.New(color.Bold)
	dimColor     = color.New(color.Faint)
)

// Success prints a success message in green.
func Success(w io.Writer, format string, a ...any) {
	successColor.Fprintf(w, "✓ "+format+"\n", a...)
}

// Error prints an error message in red.
func Error(w io.Writer, format string, a ...any) {
	errorColor.Fprintf(w, "✗ "+format+"\n", a...)
}

// Warning prints a warning message in yellow.
func Warning(w io.Writer, format string, a ...any) {
	warningColor.Fprintf(w, "⚠ "+format+"\n", a...)
}

// Info prints an info message in cyan.
func Info(w io.Writer, format string, a ...any) {
	infoColor.Fprintf(w, "ℹ "+format+"\n", a...)
}

// Bold formats text in bold.
func Bold(format string, a ...any) string {
	return boldColor.Sprintf(format, a...)
}

// Dim formats text in dim/faint style.
func Dim(format string, a ...any) string {
	return dimColor.Sprintf(format, a...)
}

// PromptConfirm asks for user confirmation and returns true if confirmed.
func PromptConfirm(in io.Reader, out io.Writer, message string) bool {
	fmt.Fprintf(out, "%s [y/N]: ", message)

	var response string
	if _, err := fmt.Fscanln(in, &response); err != nil {
		return false
	}
	switch strings.ToLower(response) {
	case "y", "yes":
		return true
	}
	return false
}

// PrintKeyValue prints a key-value pair with the key highlighted.
func PrintKeyValue(w io.Writer, key, value string) {
	fmt.Fprintf(w, "%s: %s\n", boldColor.Sprint(key), value)
}

// printTable renders rows under a header.
func printTable(w io.Writer, header []string, rows [][]string) error {
	table := tablewriter.NewWriter(w)
	cols := make([]any, len(header))
	for i, h := range header {
		cols[i] = h
	}
	table.Header(cols...)
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}

// structured reports whether --json or --yaml was given.
func structured() bool {
	return jsonOutput || yamlOutput
}

// printStructured writes v as JSON or YAML, per the output flags.
func printStructured(w io.Writer, v any) error {
	if yamlOutput {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// recordFields returns the tagged attributes of rec. The type tag is
// replaced by the variant name.
func recordFields(rec record.Record) (map[string]any, error) {
	data, err := record.Serialize(rec)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	fields["type"] = rec.RecordType().String()
	return fields, nil
}

// printRecord writes one record, structured or as key: value lines.
func printRecord(w io.Writer, app string, rec record.Record) error {
	fields, err := recordFields(rec)
	if err != nil {
		return err
	}
	if structured() {
		return printStructured(w, map[string]any{"app": app, "record": fields})
	}

	if app != "" {
		PrintKeyValue(w, "app", app)
	}
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		value := fields[name]
		if name == "custom" {
			raw, _ := json.Marshal(value)
			value = string(raw)
		}
		PrintKeyValue(w, name, fmt.Sprint(value))
	}
	return nil
}
