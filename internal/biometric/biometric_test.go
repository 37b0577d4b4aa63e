package biometric

import (
	"context"
	"errors"
	"testing"

	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/vault"
)

func allow() Gate {
	return GateFunc(func(context.Context, string) error { return nil })
}

func deny() Gate {
	return GateFunc(func(context.Context, string) error { return errors.New("not recognized") })
}

func TestEnclaveVault_StoreRetrieve(t *testing.T) {
	v := NewEnclaveVault(allow())
	ctx := context.Background()

	if err := v.Store(ctx, "pwm-master-alice", "s3cret"); err != nil {
		t.Fatalf("Store: %v", err)
	}
	got, err := v.AuthenticateAndRetrieve(ctx, "pwm-master-alice")
	if err != nil {
		t.Fatalf("AuthenticateAndRetrieve: %v", err)
	}
	if got != "s3cret" {
		t.Errorf("got %q, want s3cret", got)
	}

	// Retrieval does not consume the credential.
	if _, err := v.AuthenticateAndRetrieve(ctx, "pwm-master-alice"); err != nil {
		t.Errorf("second retrieval: %v", err)
	}
}

func TestEnclaveVault_Errors(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		setup   func() *EnclaveVault
		wantErr error
	}{
		{
			name:    "missing credential",
			setup:   func() *EnclaveVault { return NewEnclaveVault(allow()) },
			wantErr: vault.ErrBiometricInvalidated,
		},
		{
			name: "gate denies",
			setup: func() *EnclaveVault {
				v := NewEnclaveVault(deny())
				_ = v.Store(ctx, "k", "p")
				return v
			},
			wantErr: vault.ErrBiometricFallback,
		},
		{
			name: "invalidated",
			setup: func() *EnclaveVault {
				v := NewEnclaveVault(allow())
				_ = v.Store(ctx, "k", "p")
				v.Invalidate()
				return v
			},
			wantErr: vault.ErrBiometricInvalidated,
		},
		{
			name: "forgotten",
			setup: func() *EnclaveVault {
				v := NewEnclaveVault(allow())
				_ = v.Store(ctx, "k", "p")
				_ = v.Forget(ctx, "k")
				return v
			},
			wantErr: vault.ErrBiometricInvalidated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.setup().AuthenticateAndRetrieve(ctx, "k")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestEnclaveVault_CancelledGate(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	v := NewEnclaveVault(GateFunc(func(ctx context.Context, _ string) error {
		cancel()
		return ctx.Err()
	}))
	_ = v.Store(context.Background(), "k", "p")

	if _, err := v.AuthenticateAndRetrieve(ctx, "k"); !errors.Is(err, vault.ErrCancelled) {
		t.Errorf("expected ErrCancelled, got %v", err)
	}
}

func TestDisabled(t *testing.T) {
	var d Disabled
	ctx := context.Background()
	if _, err := d.AuthenticateAndRetrieve(ctx, "k"); !errors.Is(err, vault.ErrBiometricFallback) {
		t.Errorf("AuthenticateAndRetrieve: %v", err)
	}
	if err := d.Store(ctx, "k", "p"); err == nil {
		t.Error("Store should fail")
	}
	if err := d.Forget(ctx, "k"); err != nil {
		t.Errorf("Forget: %v", err)
	}
}
