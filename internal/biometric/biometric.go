// Package biometric provides in-process implementations of the vault's
// biometric credential cache.
package biometric

import (
	"context"
	"fmt"
	"sync"

	"github.com/awnumar/memguard"

	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/vault"
)

// Gate is the platform confirmation step, e.g. a fingerprint check. A nil
// error means the user was recognized.
type Gate interface {
	Confirm(ctx context.Context, keyName string) error
}

// GateFunc adapts a function to Gate.
type GateFunc func(ctx context.Context, keyName string) error

// Confirm calls f.
func (f GateFunc) Confirm(ctx context.Context, keyName string) error { return f(ctx, keyName) }

// EnclaveVault keeps cached passphrases sealed in memguard enclaves and
// releases them only after the gate confirms.
type EnclaveVault struct {
	gate Gate

	mu       sync.Mutex
	enclaves map[string]*memguard.Enclave
}

// NewEnclaveVault returns an empty vault guarded by gate.
func NewEnclaveVault(gate Gate) *EnclaveVault {
	return &EnclaveVault{
		gate:     gate,
		enclaves: make(map[string]*memguard.Enclave),
	}
}

// AuthenticateAndRetrieve confirms the user through the gate and returns the
// cached passphrase.
func (v *EnclaveVault) AuthenticateAndRetrieve(ctx context.Context, keyName string) (string, error) {
	v.mu.Lock()
	enclave, ok := v.enclaves[keyName]
	v.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("no credential for %s: %w", keyName, vault.ErrBiometricInvalidated)
	}

	if err := v.gate.Confirm(ctx, keyName); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: %w", vault.ErrCancelled, ctx.Err())
		}
		return "", fmt.Errorf("%w: %v", vault.ErrBiometricFallback, err)
	}

	buf, err := enclave.Open()
	if err != nil {
		return "", fmt.Errorf("open enclave: %w", vault.ErrBiometricInvalidated)
	}
	defer buf.Destroy()
	return buf.String(), nil
}

// Store seals passphrase under keyName, replacing any previous credential.
func (v *EnclaveVault) Store(_ context.Context, keyName, passphrase string) error {
	data := []byte(passphrase)
	enclave := memguard.NewEnclave(data) // wipes data
	if enclave == nil {
		return fmt.Errorf("empty passphrase: %w", vault.ErrBiometricFallback)
	}

	v.mu.Lock()
	v.enclaves[keyName] = enclave
	v.mu.Unlock()
	return nil
}

// Forget drops the credential stored under keyName.
func (v *EnclaveVault) Forget(_ context.Context, keyName string) error {
	v.mu.Lock()
	delete(v.enclaves, keyName)
	v.mu.Unlock()
	return nil
}

// Invalidate drops every credential, as a platform does when biometric
// enrollment changes.
func (v *EnclaveVault) Invalidate() {
	v.mu.Lock()
	v.enclaves = make(map[string]*memguard.Enclave)
	v.mu.Unlock()
}

// Disabled is a biometric vault with no platform support: retrieval always
// falls back to the text prompt and nothing is ever stored.
type Disabled struct{}

// AuthenticateAndRetrieve always falls back.
func (Disabled) AuthenticateAndRetrieve(context.Context, string) (string, error) {
	return "", vault.ErrBiometricFallback
}

// Store always fails, so the shortcut is never enabled.
func (Disabled) Store(context.Context, string, string) error {
	return vault.ErrBiometricFallback
}

// Forget is a no-op.
func (Disabled) Forget(context.Context, string) error { return nil }

var (
	_ vault.BiometricVault = (*EnclaveVault)(nil)
	_ vault.BiometricVault = Disabled{}
)
