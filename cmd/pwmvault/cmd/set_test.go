package cmd

import (
	"errors"
	"strings"
	"testing"

	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/record"
)

func TestBuildRecord(t *testing.T) {
	tests := []struct {
		name    string
		typ     record.Type
		flags   recordFlags
		check   func(t *testing.T, r record.Record)
		wantErr error
	}{
		{
			name:  "wifi",
			typ:   record.TypeWiFi,
			flags: recordFlags{ssid: "HomeNet", password: "p", securityType: "WPA2"},
			check: func(t *testing.T, r record.Record) {
				w, ok := r.(*record.WiFi)
				if !ok || w.SSID != "HomeNet" || w.SecurityType != "WPA2" {
					t.Errorf("record = %#v", r)
				}
			},
		},
		{
			name:  "bank card shares owner and bank",
			typ:   record.TypeBankCard,
			flags: recordFlags{cardNumber: "4111", owner: "Alice", bank: "First"},
			check: func(t *testing.T, r record.Record) {
				c, ok := r.(*record.BankCard)
				if !ok || c.OwnerName != "Alice" || c.BankName != "First" {
					t.Errorf("record = %#v", r)
				}
			},
		},
		{
			name:  "custom is compacted",
			typ:   record.TypeAccount,
			flags: recordFlags{login: "l", password: "p", custom: `{ "a" : 1 }`},
			check: func(t *testing.T, r record.Record) {
				a := r.(*record.Account)
				if string(a.Custom) != `{"a":1}` {
					t.Errorf("Custom = %s", a.Custom)
				}
			},
		},
		{
			name:    "bad custom",
			typ:     record.TypeGeneric,
			flags:   recordFlags{password: "p", custom: `{nope`},
			wantErr: record.ErrMalformedRecord,
		},
		{
			name:    "missing required attribute",
			typ:     record.TypeBankAccount,
			flags:   recordFlags{iban: "FR76"},
			wantErr: record.ErrMalformedRecord,
		},
		{
			name:    "unknown type",
			typ:     record.Type(9),
			wantErr: record.ErrUnknownTypeTag,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := buildRecord(tt.typ, "k", tt.flags)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("buildRecord() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("buildRecord() error = %v", err)
			}
			if r.RecordKey() != "k" || r.RecordType() != tt.typ {
				t.Errorf("buildRecord() = %s/%s", r.RecordType(), r.RecordKey())
			}
			tt.check(t, r)
		})
	}
}

func TestNeedsPassword(t *testing.T) {
	want := map[record.Type]bool{
		record.TypeGeneric:     true,
		record.TypeWiFi:        true,
		record.TypeBankCard:    false,
		record.TypeBankAccount: false,
		record.TypeAccount:     true,
	}
	for typ, w := range want {
		if got := needsPassword(typ); got != w {
			t.Errorf("needsPassword(%s) = %v, want %v", typ, got, w)
		}
	}
}

func TestReadPiped(t *testing.T) {
	got, piped, err := readPiped(strings.NewReader("s3cret\n"))
	if err != nil {
		t.Fatalf("readPiped() error = %v", err)
	}
	if !piped || got != "s3cret" {
		t.Errorf("readPiped() = %q, %v", got, piped)
	}
}
