package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/vault"
)

// Environment variables for non-interactive use.
const (
	EnvPassphrase    = "PWMVAULT_PASSPHRASE"
	EnvNewPassphrase = "PWMVAULT_NEW_PASSPHRASE"
)

// TerminalPrompter asks for the master passphrase on the controlling
// terminal, or takes it from the environment.
type TerminalPrompter struct {
	Out io.Writer
	// ReadPassword reads one line without echo.
	ReadPassword func(ctx context.Context) (string, error)
	Getenv       func(string) string
	// Interactive is false when there is no terminal to ask.
	Interactive bool
}

// newTerminalPrompter prompts on stderr and reads from stdin. With
// interactive false only the environment is consulted.
func newTerminalPrompter(interactive bool) *TerminalPrompter {
	fd := int(os.Stdin.Fd())
	return &TerminalPrompter{
		Out:          os.Stderr,
		ReadPassword: func(ctx context.Context) (string, error) { return readTerminal(ctx, fd) },
		Getenv:       os.Getenv,
		Interactive:  interactive && term.IsTerminal(fd),
	}
}

// readTerminal reads a password from fd. A cancelled ctx restores the
// terminal and returns at once.
func readTerminal(ctx context.Context, fd int) (string, error) {
	state, err := term.GetState(fd)
	if err != nil {
		return "", err
	}

	type result struct {
		line string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		b, err := term.ReadPassword(fd)
		done <- result{string(b), err}
	}()

	select {
	case r := <-done:
		return r.line, r.err
	case <-ctx.Done():
		term.Restore(fd, state)
		return "", ctx.Err()
	}
}

func (p *TerminalPrompter) read(ctx context.Context, prompt string) (string, error) {
	fmt.Fprint(p.Out, prompt)
	line, err := p.ReadPassword(ctx)
	fmt.Fprintln(p.Out)
	if err != nil {
		return "", fmt.Errorf("%w: %v", vault.ErrCancelled, err)
	}
	if line == "" {
		return "", fmt.Errorf("%w: empty input", vault.ErrCancelled)
	}
	return line, nil
}

// PromptPassphrase implements vault.Prompter.
func (p *TerminalPrompter) PromptPassphrase(ctx context.Context, identity string, opts vault.PromptOptions) (vault.PromptResult, error) {
	if err := ctx.Err(); err != nil {
		return vault.PromptResult{}, fmt.Errorf("%w: %w", vault.ErrCancelled, err)
	}

	if env := p.Getenv(EnvPassphrase); env != "" {
		if opts.IsRetryAfterWrongPassphrase {
			return vault.PromptResult{}, fmt.Errorf("%s: %w", EnvPassphrase, vault.ErrWrongPassphrase)
		}
		return vault.PromptResult{Passphrase: env}, nil
	}
	if !p.Interactive {
		return vault.PromptResult{}, fmt.Errorf("%w: no terminal, set %s", vault.ErrCancelled, EnvPassphrase)
	}

	if opts.ForceRecreateUI {
		Warning(p.Out, "Biometric credential is no longer valid; enter the master passphrase")
	}
	if opts.IsRetryAfterWrongPassphrase {
		Error(p.Out, "Wrong master passphrase, try again (empty line to cancel)")
	}
	pass, err := p.read(ctx, fmt.Sprintf("Master passphrase for %s: ", identity))
	if err != nil {
		return vault.PromptResult{}, err
	}
	return vault.PromptResult{Passphrase: pass}, nil
}

// PromptNewPassphrase implements vault.Prompter. The passphrase is asked
// twice.
func (p *TerminalPrompter) PromptNewPassphrase(ctx context.Context, identity string, reason vault.NewPassphraseReason) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", vault.ErrCancelled, err)
	}

	envName := EnvPassphrase
	if reason == vault.ReasonChange {
		envName = EnvNewPassphrase
	}
	if env := p.Getenv(envName); env != "" {
		return env, nil
	}
	if !p.Interactive {
		return "", fmt.Errorf("%w: no terminal, set %s", vault.ErrCancelled, envName)
	}

	if reason == vault.ReasonCreate {
		Info(p.Out, "No vault for %s yet; choose a master passphrase", identity)
	}
	pass, err := p.read(ctx, "New master passphrase: ")
	if err != nil {
		return "", err
	}
	confirm, err := p.read(ctx, "Confirm master passphrase: ")
	if err != nil {
		return "", err
	}
	if pass != confirm {
		return "", fmt.Errorf("%w: passphrases do not match", vault.ErrCancelled)
	}
	return pass, nil
}
