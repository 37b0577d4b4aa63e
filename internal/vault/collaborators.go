package vault

import "context"

// PromptOptions tells the prompter how to present a passphrase request.
type PromptOptions struct {
	// IsRetryAfterWrongPassphrase is set when the previous attempt failed.
	IsRetryAfterWrongPassphrase bool
	// ForceRecreateUI asks for a fresh dialog, e.g. after the biometric
	// credential was invalidated.
	ForceRecreateUI bool
}

// PromptResult is what the user entered.
type PromptResult struct {
	Passphrase string
	// WantsBiometric is set when the user opted in to the biometric shortcut.
	WantsBiometric bool
}

// NewPassphraseReason tells the prompter why a new passphrase is needed.
type NewPassphraseReason int

const (
	// ReasonCreate is used when the identity has no vault yet.
	ReasonCreate NewPassphraseReason = iota
	// ReasonChange is used when the master passphrase is being replaced.
	ReasonChange
)

func (r NewPassphraseReason) String() string {
	if r == ReasonChange {
		return "change"
	}
	return "create"
}

// Prompter asks the user for the master passphrase. Implementations return
// ErrCancelled (possibly wrapped) when the user dismisses the request and
// must give up when ctx is done.
type Prompter interface {
	PromptPassphrase(ctx context.Context, identity string, opts PromptOptions) (PromptResult, error)
	// PromptNewPassphrase asks for a new passphrase and its confirmation.
	PromptNewPassphrase(ctx context.Context, identity string, reason NewPassphraseReason) (string, error)
}

// BiometricVault caches the master passphrase behind a platform
// confirmation. Failures wrap ErrBiometricFallback or ErrBiometricInvalidated.
type BiometricVault interface {
	AuthenticateAndRetrieve(ctx context.Context, keyName string) (string, error)
	Store(ctx context.Context, keyName, passphrase string) error
	Forget(ctx context.Context, keyName string) error
}

// BiometricKeyName returns the key under which the passphrase of identity
// is cached.
func BiometricKeyName(identity string) string {
	return "pwm-master-" + identity
}
