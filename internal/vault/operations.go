package vault

import (
	"context"
	"fmt"

	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/crypto"
	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/metrics"
	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/record"
	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/store"
	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/validation"
)

// GetOptions controls GetRecord.
type GetOptions struct {
	// PromptIfLocked allows an unlock prompt. Without it a locked vault
	// yields ErrCancelled.
	PromptIfLocked bool
	// ForcePrompt asks for the passphrase even when the vault is unlocked.
	ForcePrompt bool
	// TargetApp names another owner; manager only.
	TargetApp string
}

func validateCaller(identity, callerApp string) error {
	if err := validation.Identity(identity); err != nil {
		return err
	}
	return validation.AppID(callerApp)
}

// finish records the outcome of an operation in metrics and the audit log.
func (r *Registry) finish(ctx context.Context, action, identity, app, key string, err error) {
	result := resultLabel(err)
	metrics.RecordOperations.WithLabelValues(action, result).Inc()
	if aerr := r.settings.AppendAudit(&store.AuditEntry{
		Action:    action,
		Identity:  identity,
		App:       app,
		Key:       key,
		Result:    result,
		Timestamp: r.now().UTC(),
	}); aerr != nil {
		r.log(ctx).Warn("failed to append audit entry", "action", action, "error", aerr)
	}
	if err != nil && result == "error" {
		r.log(ctx).Error("vault operation failed", "action", action, "identity", identity, "error", err)
	}
}

// SetRecord stores rec in the bucket of callerApp, replacing any record with
// the same key.
func (r *Registry) SetRecord(ctx context.Context, identity, callerApp string, rec record.Record) (err error) {
	if err := validateCaller(identity, callerApp); err != nil {
		return err
	}
	stored, err := record.Canonical(rec)
	if err != nil {
		return err
	}
	if err := validation.RecordKey(stored.RecordKey()); err != nil {
		return err
	}
	defer func() { r.finish(ctx, "set", identity, callerApp, stored.RecordKey(), err) }()

	return r.withSession(ctx, identity, sessionOptions{prompt: true}, func(s *session) error {
		s.doc.Put(callerApp, stored)
		return r.persist(identity, s)
	})
}

// GetRecord returns the record stored under key for callerApp, or for
// opts.TargetApp when the caller is the manager.
func (r *Registry) GetRecord(ctx context.Context, identity, callerApp, key string, opts GetOptions) (rec record.Record, err error) {
	if err := validateCaller(identity, callerApp); err != nil {
		return nil, err
	}
	owner, err := resolveTarget(callerApp, opts.TargetApp)
	if err != nil {
		return nil, err
	}
	defer func() { r.finish(ctx, "get", identity, callerApp, key, err) }()

	sopts := sessionOptions{prompt: opts.PromptIfLocked || opts.ForcePrompt, force: opts.ForcePrompt}
	err = r.withSession(ctx, identity, sopts, func(s *session) error {
		found, err := lookup(s.doc, callerApp, owner, key)
		rec = found
		return err
	})
	return rec, err
}

// GetAllRecords returns every record with its owner, ordered by owner then
// key. Manager only.
func (r *Registry) GetAllRecords(ctx context.Context, identity, callerApp string) (entries []record.Entry, err error) {
	if err := validateCaller(identity, callerApp); err != nil {
		return nil, err
	}
	if err := requireManager(callerApp); err != nil {
		return nil, err
	}
	defer func() { r.finish(ctx, "get_all", identity, callerApp, "", err) }()

	err = r.withSession(ctx, identity, sessionOptions{prompt: true}, func(s *session) error {
		entries = s.doc.All()
		return nil
	})
	return entries, err
}

// ListKeys returns the record keys owned by callerApp, sorted. Only keys
// leave the vault; record values stay inside the session.
func (r *Registry) ListKeys(ctx context.Context, identity, callerApp string) (keys []string, err error) {
	if err := validateCaller(identity, callerApp); err != nil {
		return nil, err
	}
	defer func() { r.finish(ctx, "list", identity, callerApp, "", err) }()

	err = r.withSession(ctx, identity, sessionOptions{prompt: true}, func(s *session) error {
		keys = s.doc.Keys(callerApp)
		return nil
	})
	return keys, err
}

// DeleteRecord removes key from the bucket of callerApp, or of targetApp
// when the caller is the manager.
func (r *Registry) DeleteRecord(ctx context.Context, identity, callerApp, key, targetApp string) (err error) {
	if err := validateCaller(identity, callerApp); err != nil {
		return err
	}
	owner, err := resolveTarget(callerApp, targetApp)
	if err != nil {
		return err
	}
	defer func() { r.finish(ctx, "delete", identity, callerApp, key, err) }()

	return r.withSession(ctx, identity, sessionOptions{prompt: true}, func(s *session) error {
		if _, err := lookup(s.doc, callerApp, owner, key); err != nil {
			return err
		}
		s.doc.Delete(owner, key)
		return r.persist(identity, s)
	})
}

// ChangePassphrase re-encrypts the vault under a new master passphrase.
// The cached biometric credential is forgotten. Manager only.
func (r *Registry) ChangePassphrase(ctx context.Context, identity, callerApp string) (err error) {
	if err := validateCaller(identity, callerApp); err != nil {
		return err
	}
	if err := requireManager(callerApp); err != nil {
		return err
	}
	defer func() { r.finish(ctx, "change_passphrase", identity, callerApp, "", err) }()

	exists, err := r.store.Exists(identity)
	if err != nil {
		return err
	}
	if !exists {
		return ErrVaultNotFound
	}

	return r.withSession(ctx, identity, sessionOptions{prompt: true}, func(s *session) error {
		pctx, done := r.beginPrompt(ctx)
		pass, err := r.prompter.PromptNewPassphrase(pctx, identity, ReasonChange)
		done()
		if err != nil {
			return promptError(ctx, pctx, err)
		}
		if pass == "" {
			return ErrEmptyPassphrase
		}

		next := []byte(pass)
		metrics.EncryptionOperations.WithLabelValues("encrypt").Inc()
		if err := r.store.Save(identity, s.doc, next); err != nil {
			// The previous file is untouched; keep the session as it was.
			crypto.ZeroBytes(next)
			return fmt.Errorf("re-encrypt vault: %w", err)
		}
		s.replacePassphrase(next)

		r.resetBiometric(ctx, identity)
		r.log(ctx).Info("master passphrase changed", "identity", identity)
		return nil
	})
}

// resetBiometric disables the shortcut and drops the cached credential.
func (r *Registry) resetBiometric(ctx context.Context, identity string) {
	settings, err := r.loadSettings(identity)
	if err == nil && settings.BiometricEnabled {
		settings.BiometricEnabled = false
		err = r.saveSettings(identity, settings)
	}
	if err != nil {
		r.log(ctx).Warn("failed to reset biometric flag", "identity", identity, "error", err)
	}
	if r.biometric != nil {
		if err := r.biometric.Forget(ctx, BiometricKeyName(identity)); err != nil {
			r.log(ctx).Debug("failed to forget biometric credential", "identity", identity, "error", err)
		}
	}
}

// Lock discards the session of identity. Locking a locked vault is a no-op.
func (r *Registry) Lock(identity string) {
	l := r.identityLock(identity)
	l.Lock()
	defer l.Unlock()
	if r.dropSession(identity) {
		r.finish(context.Background(), "lock", identity, "", "", nil)
	}
}

// DeleteVault locks identity and irreversibly removes its vault file. The
// biometric shortcut is reset.
func (r *Registry) DeleteVault(ctx context.Context, identity string) (err error) {
	if err := validation.Identity(identity); err != nil {
		return err
	}
	defer func() { r.finish(ctx, "delete_vault", identity, "", "", err) }()

	l := r.identityLock(identity)
	l.Lock()
	defer l.Unlock()

	r.dropSession(identity)
	if err := r.store.Delete(identity); err != nil {
		return err
	}
	r.resetBiometric(ctx, identity)
	r.log(ctx).Info("vault deleted", "identity", identity)
	return nil
}

// SetUnlockPolicy changes how long identity stays unlocked. Switching to
// UnlockEveryTime locks the vault. Manager only.
func (r *Registry) SetUnlockPolicy(ctx context.Context, identity, callerApp string, policy store.UnlockPolicy) (err error) {
	if err := validateCaller(identity, callerApp); err != nil {
		return err
	}
	if err := requireManager(callerApp); err != nil {
		return err
	}
	if policy != store.UnlockForAWhile && policy != store.UnlockEveryTime {
		return fmt.Errorf("invalid unlock policy %d", int(policy))
	}
	defer func() { r.finish(ctx, "set_unlock_policy", identity, callerApp, policy.String(), err) }()

	l := r.identityLock(identity)
	l.Lock()
	defer l.Unlock()

	settings, err := r.loadSettings(identity)
	if err != nil {
		return err
	}
	previous := settings.UnlockPolicy
	settings.UnlockPolicy = policy
	if err := r.saveSettings(identity, settings); err != nil {
		return err
	}
	if policy == store.UnlockEveryTime && previous != store.UnlockEveryTime {
		r.dropSession(identity)
	}
	return nil
}

// GenerateRandomSecret returns a random password suggestion.
func (r *Registry) GenerateRandomSecret() (string, error) {
	return crypto.GenerateRandomSecret(crypto.DefaultSecretLength)
}

// IsUnlocked reports whether identity has a live session.
func (r *Registry) IsUnlocked(identity string) bool {
	s := r.session(identity)
	if s == nil {
		return false
	}
	settings, err := r.loadSettings(identity)
	if err != nil {
		return false
	}
	return !r.expired(s, settings.UnlockPolicy)
}

// UnlockPolicy returns the unlock policy of identity.
func (r *Registry) UnlockPolicy(identity string) (store.UnlockPolicy, error) {
	settings, err := r.loadSettings(identity)
	if err != nil {
		return 0, err
	}
	return settings.UnlockPolicy, nil
}

// BiometricEnabled reports whether the biometric shortcut is on for identity.
func (r *Registry) BiometricEnabled(identity string) (bool, error) {
	settings, err := r.loadSettings(identity)
	if err != nil {
		return false, err
	}
	return settings.BiometricEnabled, nil
}

// VaultExists reports whether identity has a vault file.
func (r *Registry) VaultExists(identity string) (bool, error) {
	if err := validation.Identity(identity); err != nil {
		return false, err
	}
	return r.store.Exists(identity)
}
