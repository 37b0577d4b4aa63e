package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/biometric"
	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/config"
	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/crypto"
	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/logging"
	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/record"
	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/vault"
)

const testPassphrase = "test-passphrase"

// staticPrompter always answers with the same passphrase.
type staticPrompter struct{}

func (staticPrompter) PromptPassphrase(context.Context, string, vault.PromptOptions) (vault.PromptResult, error) {
	return vault.PromptResult{Passphrase: testPassphrase}, nil
}

func (staticPrompter) PromptNewPassphrase(context.Context, string, vault.NewPassphraseReason) (string, error) {
	return testPassphrase, nil
}

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	if p.AccessMode != ModeReadWrite {
		t.Errorf("AccessMode = %q, want %q", p.AccessMode, ModeReadWrite)
	}
	if p.RedactOutput {
		t.Error("RedactOutput should be false by default")
	}
	if p.MaxReadsPerSession != 50 {
		t.Errorf("MaxReadsPerSession = %d, want 50", p.MaxReadsPerSession)
	}
	if !p.CanWrite() {
		t.Error("read-write mode should allow writes")
	}
	if err := p.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestPolicyCanAccessKey_AllowDeny(t *testing.T) {
	tests := []struct {
		name     string
		policy   AccessPolicy
		key      string
		expected bool
	}{
		{
			name:     "allow all",
			policy:   AccessPolicy{KeysAllow: []string{"*"}},
			key:      "wifi1",
			expected: true,
		},
		{
			name:     "deny pattern",
			policy:   AccessPolicy{KeysAllow: []string{"*"}, KeysDeny: []string{"card-*"}},
			key:      "card-visa",
			expected: false,
		},
		{
			name:     "deny takes precedence over allow",
			policy:   AccessPolicy{KeysAllow: []string{"card-*"}, KeysDeny: []string{"card-*"}},
			key:      "card-visa",
			expected: false,
		},
		{
			name:     "not in allow list",
			policy:   AccessPolicy{KeysAllow: []string{"wifi*"}},
			key:      "mail",
			expected: false,
		},
		{
			name:     "empty allow list allows all",
			policy:   AccessPolicy{},
			key:      "anything",
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.CanAccessKey(tt.key); got != tt.expected {
				t.Errorf("CanAccessKey(%q) = %v, want %v", tt.key, got, tt.expected)
			}
		})
	}
}

func TestPolicyCanAccessIdentity(t *testing.T) {
	p := AccessPolicy{IdentitiesAllow: []string{"did:elastos:*"}, IdentitiesDeny: []string{"did:elastos:admin"}}
	if !p.CanAccessIdentity("did:elastos:alice") {
		t.Error("CanAccessIdentity(alice) = false")
	}
	if p.CanAccessIdentity("did:elastos:admin") {
		t.Error("CanAccessIdentity(admin) = true")
	}
	if p.CanAccessIdentity("bob") {
		t.Error("CanAccessIdentity(bob) = true")
	}
}

func TestLoadPolicy(t *testing.T) {
	dir := t.TempDir()

	p, err := LoadPolicy(filepath.Join(dir, "missing.yaml"))
	if err != nil || p != nil {
		t.Fatalf("LoadPolicy(missing) = %v, %v; want nil, nil", p, err)
	}

	path := filepath.Join(dir, "policy.yaml")
	data := "keys_allow: [\"wifi*\"]\nkeys_deny: [\"wifi-office\"]\nredact_output: true\nmax_reads_per_session: 3\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	p, err = LoadPolicy(path)
	if err != nil {
		t.Fatalf("LoadPolicy() error = %v", err)
	}
	if p.AccessMode != ModeReadOnly {
		t.Errorf("AccessMode = %q, want read-only when unset", p.AccessMode)
	}
	if !p.RedactOutput || p.MaxReadsPerSession != 3 || !p.CanAccessKey("wifi1") || p.CanAccessKey("wifi-office") {
		t.Errorf("policy = %+v", p)
	}

	for name, bad := range map[string]string{
		"mode":    "access_mode: everything\n",
		"pattern": "keys_allow: [\"[\"]\n",
		"yaml":    "keys_allow: [unterminated\n",
	} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".yaml")
			if err := os.WriteFile(path, []byte(bad), 0o600); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadPolicy(path); err == nil {
				t.Error("LoadPolicy() error = nil")
			}
		})
	}
}

func TestRecordFields_Redaction(t *testing.T) {
	card := &record.BankCard{Common: record.Common{Key: "card1"}, CardNumber: "4111111111111111", CVV: "123", OwnerName: "Alice"}

	fields, err := recordFields(card, false)
	if err != nil {
		t.Fatalf("recordFields() error = %v", err)
	}
	if fields["cardNumber"] != "4111111111111111" || fields["type"] != float64(record.TypeBankCard) {
		t.Errorf("fields = %v", fields)
	}

	fields, err = recordFields(card, true)
	if err != nil {
		t.Fatalf("recordFields() error = %v", err)
	}
	if fields["cardNumber"] != "[REDACTED:cardNumber]" || fields["cvv"] != "[REDACTED:cvv]" {
		t.Errorf("sensitive fields not redacted: %v", fields)
	}
	if fields["ownerName"] != "Alice" {
		t.Errorf("ownerName = %v, want it kept", fields["ownerName"])
	}
}

func TestNewVaultMCPServer_RejectsManager(t *testing.T) {
	if _, err := NewVaultMCPServer(nil, Options{AppID: "", Identity: "alice"}); err == nil {
		t.Error("expected error when acting as the manager")
	}
	if _, err := NewVaultMCPServer(nil, Options{AppID: "mcp", Identity: "../x"}); err == nil {
		t.Error("expected error for an invalid default identity")
	}
}

func openRegistry(t *testing.T) *vault.Registry {
	t.Helper()
	reg, _, err := vault.Open(config.VaultConfig{
		Dir:           t.TempDir(),
		KDFIterations: crypto.MinIterations,
		SessionTTL:    time.Hour,
	}, staticPrompter{}, biometric.Disabled{}, logging.Discard())
	if err != nil {
		t.Fatalf("vault.Open() error = %v", err)
	}
	t.Cleanup(reg.Close)
	return reg
}

func connect(t *testing.T, reg *vault.Registry, policy *AccessPolicy) *sdkmcp.ClientSession {
	t.Helper()
	srv, err := NewVaultMCPServer(reg, Options{AppID: "mcp", Identity: "alice", Policy: policy})
	if err != nil {
		t.Fatalf("NewVaultMCPServer() error = %v", err)
	}

	ctx := context.Background()
	t1, t2 := sdkmcp.NewInMemoryTransports()
	if _, err := srv.server.Connect(ctx, t1, nil); err != nil {
		t.Fatalf("server connect: %v", err)
	}
	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(ctx, t2, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { cs.Close() })
	return cs
}

// call invokes a tool and decodes its structured output into out.
func call(t *testing.T, cs *sdkmcp.ClientSession, name string, args map[string]any, out any) *sdkmcp.CallToolResult {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &sdkmcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("call %s: %v", name, err)
	}
	if out != nil && !res.IsError {
		text := res.Content[0].(*sdkmcp.TextContent).Text
		if err := json.Unmarshal([]byte(text), out); err != nil {
			t.Fatalf("unmarshal %s: %v", name, err)
		}
	}
	return res
}

// TestMCPServerIntegration tests tool registration and calls via in-memory transport.
func TestMCPServerIntegration(t *testing.T) {
	reg := openRegistry(t)
	ctx := context.Background()

	// A record owned by another app must stay invisible.
	other := &record.Account{Common: record.Common{Key: "mail"}, Login: "alice", Password: "hunter2"}
	if err := reg.SetRecord(ctx, "alice", "wallet", other); err != nil {
		t.Fatalf("SetRecord(wallet): %v", err)
	}

	cs := connect(t, reg, DefaultPolicy())

	t.Run("list_tools", func(t *testing.T) {
		toolNames := make(map[string]bool)
		for tool, err := range cs.Tools(ctx, nil) {
			if err != nil {
				t.Fatalf("list tools: %v", err)
			}
			toolNames[tool.Name] = true
		}
		for _, name := range []string{
			"pwm_list_keys",
			"pwm_get_record",
			"pwm_set_record",
			"pwm_delete_record",
			"pwm_generate_secret",
			"pwm_lock",
		} {
			if !toolNames[name] {
				t.Errorf("missing tool: %s", name)
			}
		}
	})

	t.Run("pwm_set_record", func(t *testing.T) {
		var out setRecordOutput
		res := call(t, cs, "pwm_set_record", map[string]any{
			"record": map[string]any{"type": 1, "key": "wifi1", "ssid": "HomeNet", "password": "wpa-pass"},
		}, &out)
		if res.IsError {
			t.Fatalf("tool returned error: %v", res.Content)
		}
		if !out.CouldSet || out.Key != "wifi1" {
			t.Errorf("out = %+v", out)
		}

		rec, err := reg.GetRecord(ctx, "alice", "mcp", "wifi1", vault.GetOptions{})
		if err != nil {
			t.Fatalf("verify set: %v", err)
		}
		if rec.(*record.WiFi).SSID != "HomeNet" {
			t.Errorf("stored SSID = %q", rec.(*record.WiFi).SSID)
		}
	})

	t.Run("pwm_set_record_malformed", func(t *testing.T) {
		res := call(t, cs, "pwm_set_record", map[string]any{
			"record": map[string]any{"key": "nokind", "password": "p"},
		}, nil)
		if !res.IsError {
			t.Error("expected error for a record without type")
		}
	})

	t.Run("pwm_list_keys", func(t *testing.T) {
		var out listKeysOutput
		call(t, cs, "pwm_list_keys", nil, &out)
		if len(out.Keys) != 1 || out.Keys[0] != "wifi1" {
			t.Errorf("keys = %v, want [wifi1]", out.Keys)
		}
		if out.Identity != "alice" {
			t.Errorf("identity = %q", out.Identity)
		}
	})

	t.Run("pwm_get_record", func(t *testing.T) {
		var out getRecordOutput
		call(t, cs, "pwm_get_record", map[string]any{"key": "wifi1"}, &out)
		if !out.Found || out.Record["password"] != "wpa-pass" {
			t.Errorf("out = %+v", out)
		}
		if out.Warning == "" {
			t.Error("expected warning about AI context exposure")
		}
	})

	t.Run("pwm_get_record_other_owner", func(t *testing.T) {
		res := call(t, cs, "pwm_get_record", map[string]any{"key": "mail"}, nil)
		if !res.IsError {
			t.Error("expected error reading another app's record")
		}
	})

	t.Run("pwm_get_record_missing", func(t *testing.T) {
		var out getRecordOutput
		call(t, cs, "pwm_get_record", map[string]any{"key": "nothing"}, &out)
		if out.Found {
			t.Errorf("out = %+v, want not found", out)
		}
	})

	t.Run("pwm_generate_secret", func(t *testing.T) {
		var out generateSecretOutput
		call(t, cs, "pwm_generate_secret", nil, &out)
		if len(out.GeneratedPassword) != crypto.DefaultSecretLength {
			t.Errorf("generatedPassword = %q", out.GeneratedPassword)
		}
	})

	t.Run("pwm_lock", func(t *testing.T) {
		var out lockOutput
		call(t, cs, "pwm_lock", nil, &out)
		if !out.Locked || reg.IsUnlocked("alice") {
			t.Error("vault still unlocked")
		}
	})

	t.Run("pwm_delete_record", func(t *testing.T) {
		for _, want := range []bool{true, false} {
			var out deleteRecordOutput
			call(t, cs, "pwm_delete_record", map[string]any{"key": "wifi1"}, &out)
			if out.CouldDelete != want {
				t.Errorf("couldDelete = %v, want %v", out.CouldDelete, want)
			}
		}
	})
}

func TestMCPServer_PolicyEnforcement(t *testing.T) {
	reg := openRegistry(t)
	ctx := context.Background()
	for _, key := range []string{"wifi1", "card-visa"} {
		if err := reg.SetRecord(ctx, "alice", "mcp", &record.Generic{Common: record.Common{Key: key}, Password: "secret-" + key}); err != nil {
			t.Fatalf("SetRecord(%s): %v", key, err)
		}
	}

	cs := connect(t, reg, &AccessPolicy{
		AccessMode:         ModeReadOnly,
		IdentitiesAllow:    []string{"alice"},
		KeysDeny:           []string{"card-*"},
		MaxReadsPerSession: 2,
		RedactOutput:       true,
	})

	t.Run("read_only_blocks_writes", func(t *testing.T) {
		res := call(t, cs, "pwm_set_record", map[string]any{
			"record": map[string]any{"type": 0, "key": "new", "password": "nope"},
		}, nil)
		if !res.IsError {
			t.Error("expected error for write in read-only mode")
		}
		if res := call(t, cs, "pwm_delete_record", map[string]any{"key": "wifi1"}, nil); !res.IsError {
			t.Error("expected error for delete in read-only mode")
		}
	})

	t.Run("denied_keys_hidden", func(t *testing.T) {
		var out listKeysOutput
		call(t, cs, "pwm_list_keys", nil, &out)
		if len(out.Keys) != 1 || out.Keys[0] != "wifi1" {
			t.Errorf("keys = %v, want [wifi1]", out.Keys)
		}
		if res := call(t, cs, "pwm_get_record", map[string]any{"key": "card-visa"}, nil); !res.IsError {
			t.Error("expected error reading a denied key")
		}
	})

	t.Run("identity_not_allowed", func(t *testing.T) {
		if res := call(t, cs, "pwm_list_keys", map[string]any{"identity": "bob"}, nil); !res.IsError {
			t.Error("expected error for an identity outside the policy")
		}
	})

	t.Run("redaction_and_read_limit", func(t *testing.T) {
		var out getRecordOutput
		call(t, cs, "pwm_get_record", map[string]any{"key": "wifi1"}, &out)
		if !out.Redacted || out.Record["password"] != "[REDACTED:password]" {
			t.Errorf("out = %+v, want redacted password", out)
		}
		// The denied read above did not count; this is the second read.
		call(t, cs, "pwm_get_record", map[string]any{"key": "wifi1"}, nil)
		if res := call(t, cs, "pwm_get_record", map[string]any{"key": "wifi1"}, nil); !res.IsError {
			t.Error("expected error after the read limit")
		}
	})
}
