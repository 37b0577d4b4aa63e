package vault

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/crypto"
	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/metrics"
	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/record"
	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/store"
)

// unlockState is a step of the unlock flow.
type unlockState int

const (
	stateAwaitingPassphrase unlockState = iota
	stateDecrypting
	stateAwaitingBiometricConfirm
	stateDone
)

func (s unlockState) String() string {
	switch s {
	case stateAwaitingPassphrase:
		return "awaiting_passphrase"
	case stateDecrypting:
		return "decrypting"
	case stateAwaitingBiometricConfirm:
		return "awaiting_biometric_confirm"
	case stateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// unlockFlow opens an existing vault file.
type unlockFlow struct {
	r        *Registry
	identity string
	settings *store.Settings

	state        unlockState
	opts         PromptOptions
	tryBiometric bool
	retry        *rate.Limiter

	candidate      []byte
	fromBiometric  bool
	wantsBiometric bool
	doc            *record.Document
}

// unlock establishes a new session for identity, creating the vault when it
// does not exist yet. Nothing is written if the flow is cancelled.
func (r *Registry) unlock(ctx context.Context, identity string, settings *store.Settings, force bool) (*session, error) {
	exists, err := r.store.Exists(identity)
	if err != nil {
		return nil, err
	}
	if !exists {
		return r.create(ctx, identity)
	}

	f := &unlockFlow{
		r:            r,
		identity:     identity,
		settings:     settings,
		state:        stateAwaitingPassphrase,
		tryBiometric: settings.BiometricEnabled && !force && r.biometric != nil,
		retry:        r.newRetryLimiter(),
	}
	for f.state != stateDone {
		prev := f.state
		if err := f.step(ctx); err != nil {
			crypto.ZeroBytes(f.candidate)
			metrics.UnlockAttempts.WithLabelValues(resultLabel(err)).Inc()
			return nil, err
		}
		r.log(ctx).Debug("unlock transition", "identity", identity, "from", prev, "to", f.state)
	}

	metrics.UnlockAttempts.WithLabelValues("success").Inc()
	return newSession(identity, f.doc, f.candidate, r.now()), nil
}

func (f *unlockFlow) step(ctx context.Context) error {
	switch f.state {
	case stateAwaitingPassphrase:
		return f.awaitPassphrase(ctx)
	case stateDecrypting:
		return f.decrypt(ctx)
	case stateAwaitingBiometricConfirm:
		f.confirmBiometric(ctx)
		return nil
	}
	return fmt.Errorf("unlock: unexpected state %s", f.state)
}

func (f *unlockFlow) awaitPassphrase(ctx context.Context) error {
	r := f.r

	if f.tryBiometric {
		f.tryBiometric = false
		pass, err := f.retrieveBiometric(ctx)
		switch {
		case err == nil:
			f.candidate = []byte(pass)
			f.fromBiometric = true
			f.state = stateDecrypting
			return nil
		case errors.Is(err, ErrCancelled):
			return err
		case errors.Is(err, ErrBiometricInvalidated):
			r.log(ctx).Warn("biometric credential invalidated", "identity", f.identity)
			f.invalidateBiometric(ctx)
		default:
			r.log(ctx).Warn("biometric unlock failed, falling back to passphrase", "identity", f.identity, "error", err)
		}
	}

	if f.opts.IsRetryAfterWrongPassphrase && f.retry != nil {
		if err := f.retry.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %w", ErrCancelled, err)
		}
	}

	pctx, done := r.beginPrompt(ctx)
	res, err := r.prompter.PromptPassphrase(pctx, f.identity, f.opts)
	done()
	if err != nil {
		return promptError(ctx, pctx, err)
	}
	if res.Passphrase == "" {
		return ErrEmptyPassphrase
	}

	f.candidate = []byte(res.Passphrase)
	f.fromBiometric = false
	f.wantsBiometric = res.WantsBiometric
	f.opts.ForceRecreateUI = false
	f.state = stateDecrypting
	return nil
}

func (f *unlockFlow) retrieveBiometric(ctx context.Context) (string, error) {
	pctx, done := f.r.beginPrompt(ctx)
	defer done()
	pass, err := f.r.biometric.AuthenticateAndRetrieve(pctx, BiometricKeyName(f.identity))
	if err != nil && pctx.Err() != nil {
		return "", promptError(ctx, pctx, err)
	}
	return pass, err
}

func (f *unlockFlow) decrypt(ctx context.Context) error {
	metrics.EncryptionOperations.WithLabelValues("decrypt").Inc()
	doc, err := f.r.store.Load(f.identity, f.candidate)
	switch {
	case err == nil:
		f.doc = doc
		if !f.fromBiometric && f.wantsBiometric && !f.settings.BiometricEnabled && f.r.biometric != nil {
			f.state = stateAwaitingBiometricConfirm
		} else {
			f.state = stateDone
		}
		return nil

	case errors.Is(err, ErrWrongPassphrase):
		crypto.ZeroBytes(f.candidate)
		f.candidate = nil
		if f.fromBiometric {
			// The cached passphrase is stale.
			f.r.log(ctx).Warn("biometric passphrase no longer opens the vault", "identity", f.identity)
			f.invalidateBiometric(ctx)
		} else {
			metrics.UnlockAttempts.WithLabelValues("wrong_passphrase").Inc()
			f.r.log(ctx).Warn("wrong master passphrase", "identity", f.identity)
			f.opts.IsRetryAfterWrongPassphrase = true
		}
		f.state = stateAwaitingPassphrase
		return nil

	default:
		return err
	}
}

// invalidateBiometric turns the shortcut off and asks for a fresh dialog.
func (f *unlockFlow) invalidateBiometric(ctx context.Context) {
	f.opts.ForceRecreateUI = true
	if f.settings.BiometricEnabled {
		f.settings.BiometricEnabled = false
		if err := f.r.saveSettings(f.identity, f.settings); err != nil {
			f.r.log(ctx).Warn("failed to disable biometric shortcut", "identity", f.identity, "error", err)
		}
	}
	if err := f.r.biometric.Forget(ctx, BiometricKeyName(f.identity)); err != nil {
		f.r.log(ctx).Debug("failed to forget biometric credential", "identity", f.identity, "error", err)
	}
}

func (f *unlockFlow) confirmBiometric(ctx context.Context) {
	f.state = stateDone
	if err := f.r.biometric.Store(ctx, BiometricKeyName(f.identity), string(f.candidate)); err != nil {
		f.r.log(ctx).Warn("failed to enable biometric shortcut", "identity", f.identity, "error", err)
		return
	}
	f.settings.BiometricEnabled = true
	if err := f.r.saveSettings(f.identity, f.settings); err != nil {
		f.r.log(ctx).Warn("failed to save biometric flag", "identity", f.identity, "error", err)
	}
}

// create sets up a vault for an identity that has none.
func (r *Registry) create(ctx context.Context, identity string) (*session, error) {
	pctx, done := r.beginPrompt(ctx)
	pass, err := r.prompter.PromptNewPassphrase(pctx, identity, ReasonCreate)
	done()
	if err != nil {
		err = promptError(ctx, pctx, err)
		metrics.UnlockAttempts.WithLabelValues(resultLabel(err)).Inc()
		return nil, err
	}
	if pass == "" {
		return nil, ErrEmptyPassphrase
	}

	passphrase := []byte(pass)
	doc := r.store.CreateEmpty(identity)
	metrics.EncryptionOperations.WithLabelValues("encrypt").Inc()
	if err := r.store.Save(identity, doc, passphrase); err != nil {
		crypto.ZeroBytes(passphrase)
		return nil, fmt.Errorf("create vault: %w", err)
	}

	metrics.UnlockAttempts.WithLabelValues("created").Inc()
	r.log(ctx).Info("vault created", "identity", identity)
	return newSession(identity, doc, passphrase, r.now()), nil
}
