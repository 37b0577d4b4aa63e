package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/crypto"
	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/record"
)

// recordFlags holds the attributes of every variant; set uses the ones
// that apply to the chosen type.
type recordFlags struct {
	displayName string
	custom      string

	name     string
	login    string
	password string
	notes    string

	ssid         string
	securityType string

	cardNumber string
	expiration string
	cvv        string
	owner      string
	bank       string

	accountNumber string
	iban          string
	swift         string

	service  string
	generate bool
}

var setFlags recordFlags

var setCmd = &cobra.Command{
	Use:   "set <type> <key>",
	Short: "Create or replace a record",
	Long: `Create or replace a record in the vault.

Types: generic, wifi, bank_card, bank_account, account.

When a password is required but not given, it is read from stdin if stdin
is piped, or generated with --generate.

Examples:
  pwmvault set wifi home --ssid HomeNet --password s3cret
  pwmvault set account mail --service mail.example.com --login alice --generate
  echo "s3cret" | pwmvault set generic forum --app forum.app`,
	Args: cobra.ExactArgs(2),
	RunE: runSet,
}

func init() {
	rootCmd.AddCommand(setCmd)

	f := setCmd.Flags()
	f.StringVar(&setFlags.displayName, "display-name", "", "name shown to the user")
	f.StringVar(&setFlags.custom, "custom", "", "caller-defined JSON object")
	f.StringVar(&setFlags.name, "name", "", "generic: entry name")
	f.StringVar(&setFlags.login, "login", "", "generic, account: login")
	f.StringVar(&setFlags.password, "password", "", "generic, wifi, account: password")
	f.StringVar(&setFlags.notes, "notes", "", "generic: free text")
	f.StringVar(&setFlags.ssid, "ssid", "", "wifi: network name")
	f.StringVar(&setFlags.securityType, "security-type", "", "wifi: e.g. WPA2")
	f.StringVar(&setFlags.cardNumber, "card-number", "", "bank_card: card number")
	f.StringVar(&setFlags.expiration, "expiration", "", "bank_card: expiration date")
	f.StringVar(&setFlags.cvv, "cvv", "", "bank_card: security code")
	f.StringVar(&setFlags.owner, "owner", "", "bank_card, bank_account: owner name")
	f.StringVar(&setFlags.bank, "bank", "", "bank_card, bank_account: bank name")
	f.StringVar(&setFlags.accountNumber, "account-number", "", "bank_account: account number")
	f.StringVar(&setFlags.iban, "iban", "", "bank_account: IBAN")
	f.StringVar(&setFlags.swift, "swift", "", "bank_account: SWIFT/BIC")
	f.StringVar(&setFlags.service, "service", "", "account: service name")
	f.BoolVar(&setFlags.generate, "generate", false, "generate the password")
}

// needsPassword reports whether variant t requires a password attribute.
func needsPassword(t record.Type) bool {
	switch t {
	case record.TypeGeneric, record.TypeWiFi, record.TypeAccount:
		return true
	}
	return false
}

// buildRecord assembles a record of type t from flags and validates it.
func buildRecord(t record.Type, key string, f recordFlags) (record.Record, error) {
	common := record.Common{Key: key, DisplayName: f.displayName}
	if f.custom != "" {
		if !json.Valid([]byte(f.custom)) {
			return nil, fmt.Errorf("%w: --custom is not valid JSON", record.ErrMalformedRecord)
		}
		common.Custom = json.RawMessage(f.custom)
	}

	var rec record.Record
	switch t {
	case record.TypeGeneric:
		rec = &record.Generic{Common: common, Name: f.name, Login: f.login, Password: f.password, Notes: f.notes}
	case record.TypeWiFi:
		rec = &record.WiFi{Common: common, SSID: f.ssid, Password: f.password, SecurityType: f.securityType}
	case record.TypeBankCard:
		rec = &record.BankCard{Common: common, CardNumber: f.cardNumber, ExpirationDate: f.expiration, CVV: f.cvv, OwnerName: f.owner, BankName: f.bank}
	case record.TypeBankAccount:
		rec = &record.BankAccount{Common: common, BankName: f.bank, AccountNumber: f.accountNumber, OwnerName: f.owner, IBAN: f.iban, SWIFT: f.swift}
	case record.TypeAccount:
		rec = &record.Account{Common: common, ServiceName: f.service, Login: f.login, Password: f.password}
	default:
		return nil, fmt.Errorf("%w: %d", record.ErrUnknownTypeTag, int(t))
	}

	// Round trip through the stored form so Custom is compacted.
	data, err := record.Serialize(rec)
	if err != nil {
		return nil, err
	}
	return record.Parse(data)
}

// readPiped returns stdin when it is not a terminal.
func readPiped(in io.Reader) (string, bool, error) {
	if f, ok := in.(*os.File); ok {
		stat, err := f.Stat()
		if err != nil || stat.Mode()&os.ModeCharDevice != 0 {
			return "", false, nil
		}
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", false, fmt.Errorf("failed to read stdin: %w", err)
	}
	return strings.TrimRight(string(data), "\r\n"), true, nil
}

func runSet(cmd *cobra.Command, args []string) error {
	t, err := record.ParseType(args[0])
	if err != nil {
		return err
	}
	f := setFlags
	generated := false

	if needsPassword(t) && f.password == "" {
		switch {
		case f.generate:
			if f.password, err = crypto.GenerateRandomSecret(crypto.DefaultSecretLength); err != nil {
				return err
			}
			generated = true
		default:
			value, piped, err := readPiped(cmd.InOrStdin())
			if err != nil {
				return err
			}
			if piped {
				f.password = value
			}
		}
	}

	rec, err := buildRecord(t, args[1], f)
	if err != nil {
		return err
	}

	return withVault(cmd, nil, func(ctx context.Context, s *session) error {
		if err := s.registry.SetRecord(ctx, s.identity, s.app, rec); err != nil {
			return fmt.Errorf("failed to set record: %w", err)
		}
		if structured() {
			out := map[string]any{"couldSet": true, "key": rec.RecordKey()}
			if generated {
				out["generatedPassword"] = f.password
			}
			return printStructured(cmd.OutOrStdout(), out)
		}
		Success(cmd.OutOrStdout(), "Record '%s' saved", rec.RecordKey())
		if generated {
			PrintKeyValue(cmd.OutOrStdout(), "generated password", f.password)
		}
		return nil
	})
}
