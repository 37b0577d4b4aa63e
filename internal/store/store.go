package store

import (
	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/record"
)

// VaultStore persists one encrypted document per identity.
type VaultStore interface {
	// Exists reports whether a vault file is present for identity.
	Exists(identity string) (bool, error)
	// Load reads and decrypts the vault of identity.
	Load(identity string, passphrase []byte) (*record.Document, error)
	// CreateEmpty returns a fresh document without touching disk.
	CreateEmpty(identity string) *record.Document
	// Save encrypts doc and atomically replaces the vault file.
	Save(identity string, doc *record.Document, passphrase []byte) error
	// Delete removes the vault file of identity.
	Delete(identity string) error
}

// SettingsStore persists per-identity settings and the audit log. Settings
// live outside the encrypted vault so they can be read while it is locked.
type SettingsStore interface {
	// Settings
	GetSettings(identity string) (*Settings, error)
	PutSettings(identity string, settings *Settings) error
	DeleteSettings(identity string) error

	// Audit
	AppendAudit(entry *AuditEntry) error
	ListAudit(identity string, limit int) ([]*AuditEntry, error)

	// Lifecycle
	Close() error
}
