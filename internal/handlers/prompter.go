package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/vault"
)

// Credential headers.
const (
	PassphraseHeader       = "X-Master-Passphrase"
	NewPassphraseHeader    = "X-New-Master-Passphrase"
	EnableBiometricHeader  = "X-Enable-Biometric"
	BiometricConfirmHeader = "X-Biometric-Confirm"
)

type credentialsKey struct{}

// credentials is what the client sent along with one request.
type credentials struct {
	passphrase       string
	newPassphrase    string
	enableBiometric  bool
	biometricConfirm bool
}

// Credentials returns middleware that moves the credential headers into the
// request context and strips them from the request.
func Credentials() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c := credentials{
				passphrase:       r.Header.Get(PassphraseHeader),
				newPassphrase:    r.Header.Get(NewPassphraseHeader),
				enableBiometric:  headerBool(r, EnableBiometricHeader),
				biometricConfirm: headerBool(r, BiometricConfirmHeader),
			}
			for _, h := range []string{PassphraseHeader, NewPassphraseHeader} {
				r.Header.Del(h)
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), credentialsKey{}, c)))
		})
	}
}

func headerBool(r *http.Request, name string) bool {
	v, err := strconv.ParseBool(r.Header.Get(name))
	return err == nil && v
}

func credentialsFrom(ctx context.Context) credentials {
	c, _ := ctx.Value(credentialsKey{}).(credentials)
	return c
}

// RequestPrompter answers passphrase prompts from the credentials of the
// request that triggered them. It never blocks: there is nobody to ask.
type RequestPrompter struct{}

// PromptPassphrase implements vault.Prompter.
func (RequestPrompter) PromptPassphrase(ctx context.Context, identity string, opts vault.PromptOptions) (vault.PromptResult, error) {
	if opts.IsRetryAfterWrongPassphrase {
		// The request carried a single candidate and it was rejected.
		return vault.PromptResult{}, vault.ErrWrongPassphrase
	}
	c := credentialsFrom(ctx)
	if c.passphrase == "" {
		return vault.PromptResult{}, fmt.Errorf("%w: %s header required to unlock %s", vault.ErrCancelled, PassphraseHeader, identity)
	}
	return vault.PromptResult{Passphrase: c.passphrase, WantsBiometric: c.enableBiometric}, nil
}

// PromptNewPassphrase implements vault.Prompter. A new vault takes its
// passphrase from X-Master-Passphrase; a change reads X-New-Master-Passphrase.
func (RequestPrompter) PromptNewPassphrase(ctx context.Context, identity string, reason vault.NewPassphraseReason) (string, error) {
	c := credentialsFrom(ctx)
	header, pass := PassphraseHeader, c.passphrase
	if reason == vault.ReasonChange {
		header, pass = NewPassphraseHeader, c.newPassphrase
	}
	if pass == "" {
		return "", fmt.Errorf("%w: %s header required to %s the vault of %s", vault.ErrCancelled, header, reason, identity)
	}
	return pass, nil
}

// RequestGate confirms a biometric unlock when the request carries
// X-Biometric-Confirm: true. It satisfies biometric.Gate.
type RequestGate struct{}

// Confirm reports whether the client confirmed.
func (RequestGate) Confirm(ctx context.Context, keyName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !credentialsFrom(ctx).biometricConfirm {
		return fmt.Errorf("%s not confirmed", keyName)
	}
	return nil
}
