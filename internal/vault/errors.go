package vault

import (
	"errors"

	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/crypto"
	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/record"
	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/store"
	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/validation"
)

var (
	// ErrUnauthorized is returned when a caller acts outside its scope.
	ErrUnauthorized = errors.New("caller is not authorized for this operation")

	// ErrCancelled is returned when the user dismisses a prompt, a newer
	// prompt supersedes it, or a locked vault may not be prompted for.
	ErrCancelled = errors.New("operation cancelled")

	// ErrRecordNotFound is returned when no record exists under a key.
	ErrRecordNotFound = errors.New("record not found")

	// ErrBiometricFallback is returned by a biometric vault when the user
	// could not be authenticated and a text prompt should be used instead.
	ErrBiometricFallback = errors.New("biometric authentication unavailable")

	// ErrBiometricInvalidated is returned by a biometric vault when the
	// stored credential can no longer be used.
	ErrBiometricInvalidated = errors.New("biometric credential invalidated")
)

// Errors from the lower layers, re-exported so callers need one import.
var (
	ErrWrongPassphrase = crypto.ErrWrongPassphrase
	ErrCorruptEnvelope = crypto.ErrCorruptEnvelope
	ErrEmptyPassphrase = crypto.ErrEmptyPassphrase
	ErrCorruptDocument = store.ErrCorruptDocument
	ErrVaultNotFound   = store.ErrVaultNotFound
	ErrMissingTypeTag  = record.ErrMissingTypeTag
	ErrUnknownTypeTag  = record.ErrUnknownTypeTag
	ErrMalformedRecord = record.ErrMalformedRecord
	ErrInvalidIdentity = validation.ErrInvalidIdentity
	ErrInvalidAppID    = validation.ErrInvalidAppID
	ErrInvalidKey      = validation.ErrInvalidRecordKey
)

// resultLabel names the outcome of an operation for metrics and audit.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrCancelled):
		return "cancelled"
	case errors.Is(err, ErrWrongPassphrase):
		return "wrong_passphrase"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrRecordNotFound), errors.Is(err, ErrVaultNotFound):
		return "not_found"
	case errors.Is(err, ErrCorruptEnvelope), errors.Is(err, ErrCorruptDocument):
		return "corrupt"
	default:
		return "error"
	}
}
