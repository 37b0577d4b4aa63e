package vault

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/config"
	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/crypto"
	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/store"
)

// Open wires a registry over the vault directory of cfg: envelope files
// under data/pwm and the settings database. The registry's Close also
// closes the settings database.
func Open(cfg config.VaultConfig, prompter Prompter, biometric BiometricVault, logger *slog.Logger) (*Registry, *store.FileStore, error) {
	if err := os.MkdirAll(cfg.Dir, 0o700); err != nil {
		return nil, nil, fmt.Errorf("create vault directory: %w", err)
	}

	codec, err := crypto.NewCodec(cfg.KDFIterations)
	if err != nil {
		return nil, nil, err
	}
	files := store.NewFileStore(cfg.Dir, codec)

	settings, err := store.NewBoltStore(filepath.Join(cfg.Dir, "settings.db"))
	if err != nil {
		return nil, nil, fmt.Errorf("open settings: %w", err)
	}

	reg, err := New(Dependencies{
		Store:         files,
		Settings:      settings,
		Prompter:      prompter,
		Biometric:     biometric,
		SessionTTL:    cfg.SessionTTL,
		RetryInterval: cfg.RetryInterval,
		Logger:        logger,
	})
	if err != nil {
		settings.Close()
		return nil, nil, err
	}
	reg.onClose = settings.Close
	return reg, files, nil
}

// AuditLog returns the most recent audit entries of identity.
func (r *Registry) AuditLog(identity string, limit int) ([]*store.AuditEntry, error) {
	return r.settings.ListAudit(identity, limit)
}
