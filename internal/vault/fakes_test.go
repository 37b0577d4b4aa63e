package vault

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/crypto"
	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/logging"
	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/store"
)

const testPassphrase = "test-passphrase-123"

// fakePrompter answers from scripted queues. An empty queue is a cancel.
type fakePrompter struct {
	mu          sync.Mutex
	answers     []PromptResult
	newAnswers  []string
	calls       []PromptOptions
	newReasons  []NewPassphraseReason
	blockFor    string        // identity whose prompt waits for ctx
	entered     chan struct{} // closed when the blocking prompt starts
	enteredOnce sync.Once
}

func (p *fakePrompter) PromptPassphrase(ctx context.Context, identity string, opts PromptOptions) (PromptResult, error) {
	p.mu.Lock()
	p.calls = append(p.calls, opts)
	block := p.blockFor != "" && identity == p.blockFor
	p.mu.Unlock()

	if block {
		p.enteredOnce.Do(func() { close(p.entered) })
		<-ctx.Done()
		return PromptResult{}, ctx.Err()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.answers) == 0 {
		return PromptResult{}, ErrCancelled
	}
	res := p.answers[0]
	p.answers = p.answers[1:]
	return res, nil
}

func (p *fakePrompter) PromptNewPassphrase(_ context.Context, _ string, reason NewPassphraseReason) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.newReasons = append(p.newReasons, reason)
	if len(p.newAnswers) == 0 {
		return "", ErrCancelled
	}
	pass := p.newAnswers[0]
	p.newAnswers = p.newAnswers[1:]
	return pass, nil
}

func (p *fakePrompter) answer(results ...PromptResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.answers = append(p.answers, results...)
}

func (p *fakePrompter) answerNew(passphrases ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.newAnswers = append(p.newAnswers, passphrases...)
}

func (p *fakePrompter) promptCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func (p *fakePrompter) lastOptions() PromptOptions {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[len(p.calls)-1]
}

// fakeBiometric keeps credentials in a map. When err is set, retrieval
// fails with it.
type fakeBiometric struct {
	mu        sync.Mutex
	stored    map[string]string
	err       error
	retrieved int
	forgotten []string
}

func newFakeBiometric() *fakeBiometric {
	return &fakeBiometric{stored: make(map[string]string)}
}

func (b *fakeBiometric) AuthenticateAndRetrieve(_ context.Context, keyName string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.retrieved++
	if b.err != nil {
		return "", b.err
	}
	pass, ok := b.stored[keyName]
	if !ok {
		return "", ErrBiometricInvalidated
	}
	return pass, nil
}

func (b *fakeBiometric) Store(_ context.Context, keyName, passphrase string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stored[keyName] = passphrase
	return nil
}

func (b *fakeBiometric) Forget(_ context.Context, keyName string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.stored, keyName)
	b.forgotten = append(b.forgotten, keyName)
	return nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	reg      *Registry
	prompter *fakePrompter
	bio      *fakeBiometric
	clock    *fakeClock
	files    *store.FileStore
	settings *store.BoltStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	codec, err := crypto.NewCodec(crypto.MinIterations)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	settings, err := store.NewBoltStore(filepath.Join(dir, "settings.db"))
	if err != nil {
		t.Fatalf("NewBoltStore: %v", err)
	}
	t.Cleanup(func() { settings.Close() })

	env := &testEnv{
		prompter: &fakePrompter{entered: make(chan struct{})},
		bio:      newFakeBiometric(),
		clock:    &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		files:    store.NewFileStore(dir, codec),
		settings: settings,
	}
	env.reg, err = New(Dependencies{
		Store:     env.files,
		Settings:  settings,
		Prompter:  env.prompter,
		Biometric: env.bio,
		Now:       env.clock.Now,
		Logger:    logging.Discard(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(env.reg.Close)
	return env
}

// createVault creates the vault of identity with testPassphrase.
func (e *testEnv) createVault(t *testing.T, identity string) {
	t.Helper()
	if err := e.files.Save(identity, e.files.CreateEmpty(identity), []byte(testPassphrase)); err != nil {
		t.Fatalf("Save: %v", err)
	}
}
