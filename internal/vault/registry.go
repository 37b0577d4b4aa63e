// Package vault is the password vault engine: it owns the unlock state of
// every identity, enforces access scoping between applications and persists
// documents through the store.
package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/logging"
	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/metrics"
	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/store"
)

// DefaultSessionTTL is how long a ForAWhile session stays unlocked.
const DefaultSessionTTL = time.Hour

// errSuperseded is the cancel cause of a prompt replaced by a newer one.
var errSuperseded = errors.New("superseded by a newer prompt")

// Dependencies holds the collaborators of a Registry.
type Dependencies struct {
	Store     store.VaultStore
	Settings  store.SettingsStore
	Prompter  Prompter
	Biometric BiometricVault // optional

	// SessionTTL defaults to DefaultSessionTTL.
	SessionTTL time.Duration
	// RetryInterval spaces passphrase retries. Zero disables throttling.
	RetryInterval time.Duration

	Now    func() time.Time
	Logger *slog.Logger
}

// Registry serializes all operations on an identity and tracks which
// identities are unlocked.
type Registry struct {
	store     store.VaultStore
	settings  store.SettingsStore
	prompter  Prompter
	biometric BiometricVault

	ttl           time.Duration
	retryInterval time.Duration
	now           func() time.Time
	logger        *slog.Logger

	mu       sync.Mutex // guards locks and sessions
	locks    map[string]*sync.Mutex
	sessions map[string]*session

	promptMu     sync.Mutex
	promptSeq    uint64
	cancelPrompt context.CancelCauseFunc

	onClose func() error
}

// New builds a registry. Store, Settings and Prompter are required.
func New(deps Dependencies) (*Registry, error) {
	if deps.Store == nil || deps.Settings == nil || deps.Prompter == nil {
		return nil, errors.New("vault: store, settings and prompter are required")
	}
	r := &Registry{
		store:         deps.Store,
		settings:      deps.Settings,
		prompter:      deps.Prompter,
		biometric:     deps.Biometric,
		ttl:           deps.SessionTTL,
		retryInterval: deps.RetryInterval,
		now:           deps.Now,
		logger:        deps.Logger,
		locks:         make(map[string]*sync.Mutex),
		sessions:      make(map[string]*session),
	}
	if r.ttl <= 0 {
		r.ttl = DefaultSessionTTL
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r, nil
}

func (r *Registry) log(ctx context.Context) *slog.Logger {
	return logging.From(ctx, r.logger)
}

// identityLock returns the mutex serializing operations on identity.
func (r *Registry) identityLock(identity string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[identity]
	if !ok {
		l = &sync.Mutex{}
		r.locks[identity] = l
	}
	return l
}

func (r *Registry) session(identity string) *session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[identity]
}

func (r *Registry) putSession(s *session) {
	r.mu.Lock()
	if old, ok := r.sessions[s.identity]; ok && old != s {
		old.destroy()
	}
	r.sessions[s.identity] = s
	n := len(r.sessions)
	r.mu.Unlock()
	metrics.ActiveSessions.Set(float64(n))
}

// dropSession locks identity. The caller holds the identity mutex.
func (r *Registry) dropSession(identity string) bool {
	r.mu.Lock()
	s, ok := r.sessions[identity]
	delete(r.sessions, identity)
	n := len(r.sessions)
	r.mu.Unlock()
	if !ok {
		return false
	}
	s.destroy()
	metrics.ActiveSessions.Set(float64(n))
	r.logger.Debug("vault locked", "identity", identity)
	return true
}

func (r *Registry) expired(s *session, policy store.UnlockPolicy) bool {
	if policy == store.UnlockEveryTime {
		return true
	}
	return r.now().After(s.unlockedAt.Add(r.ttl))
}

// loadSettings returns the stored settings of identity, or the defaults.
func (r *Registry) loadSettings(identity string) (*store.Settings, error) {
	s, err := r.settings.GetSettings(identity)
	if errors.Is(err, store.ErrNotFound) {
		return store.DefaultSettings(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	return s, nil
}

func (r *Registry) saveSettings(identity string, s *store.Settings) error {
	s.UpdatedAt = r.now().UTC()
	if err := r.settings.PutSettings(identity, s); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// sessionOptions controls how a session is obtained.
type sessionOptions struct {
	prompt bool // prompt when locked; otherwise return ErrCancelled
	force  bool // prompt even when a valid session exists
}

// acquire returns a live session for identity, unlocking it if needed. The
// caller holds the identity mutex.
func (r *Registry) acquire(ctx context.Context, identity string, opts sessionOptions) (*session, error) {
	settings, err := r.loadSettings(identity)
	if err != nil {
		return nil, err
	}

	s := r.session(identity)
	if s != nil && r.expired(s, settings.UnlockPolicy) {
		r.dropSession(identity)
		s = nil
	}
	if s != nil && !opts.force {
		return s, nil
	}
	if !opts.prompt {
		return nil, ErrCancelled
	}

	s, err = r.unlock(ctx, identity, settings, opts.force)
	if err != nil {
		return nil, err
	}
	r.putSession(s)
	return s, nil
}

// release applies the unlock policy once an operation is done with its
// session. The caller holds the identity mutex.
func (r *Registry) release(identity string) {
	settings, err := r.loadSettings(identity)
	if err != nil || settings.UnlockPolicy == store.UnlockEveryTime {
		r.dropSession(identity)
	}
}

// withSession runs fn with the identity mutex held and a live session.
func (r *Registry) withSession(ctx context.Context, identity string, opts sessionOptions, fn func(*session) error) error {
	l := r.identityLock(identity)
	l.Lock()
	defer l.Unlock()

	s, err := r.acquire(ctx, identity, opts)
	if err != nil {
		return err
	}
	defer r.release(identity)
	return fn(s)
}

// persist saves the session document. On failure the session is dropped so
// the next operation reloads what is on disk.
func (r *Registry) persist(identity string, s *session) error {
	metrics.EncryptionOperations.WithLabelValues("encrypt").Inc()
	if err := r.store.Save(identity, s.doc, s.passphrase.Bytes()); err != nil {
		r.dropSession(identity)
		return fmt.Errorf("save vault: %w", err)
	}
	return nil
}

// beginPrompt cancels any outstanding prompt and registers a new one. The
// returned func must be called once the prompt is answered.
func (r *Registry) beginPrompt(ctx context.Context) (context.Context, func()) {
	pctx, cancel := context.WithCancelCause(ctx)

	r.promptMu.Lock()
	if r.cancelPrompt != nil {
		r.cancelPrompt(errSuperseded)
	}
	r.promptSeq++
	seq := r.promptSeq
	r.cancelPrompt = cancel
	r.promptMu.Unlock()

	return pctx, func() {
		r.promptMu.Lock()
		if r.promptSeq == seq {
			r.cancelPrompt = nil
		}
		r.promptMu.Unlock()
		cancel(nil)
	}
}

// promptError maps a failed prompt to the error surfaced to the caller.
func promptError(ctx, pctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
	}
	if errors.Is(context.Cause(pctx), errSuperseded) {
		return fmt.Errorf("%w: %w", ErrCancelled, errSuperseded)
	}
	if errors.Is(err, ErrCancelled) {
		return err
	}
	return fmt.Errorf("prompt: %w", err)
}

// newRetryLimiter returns a limiter whose first Wait already blocks, or nil
// when retries are not throttled.
func (r *Registry) newRetryLimiter() *rate.Limiter {
	if r.retryInterval <= 0 {
		return nil
	}
	l := rate.NewLimiter(rate.Every(r.retryInterval), 1)
	l.Allow()
	return l
}

// SweepExpired locks every session that has outlived its policy and returns
// how many were locked. Identities busy with an operation are skipped.
func (r *Registry) SweepExpired() int {
	r.mu.Lock()
	identities := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		identities = append(identities, id)
	}
	r.mu.Unlock()

	n := 0
	for _, id := range identities {
		l := r.identityLock(id)
		if !l.TryLock() {
			continue
		}
		s := r.session(id)
		settings, err := r.loadSettings(id)
		if s != nil && (err != nil || r.expired(s, settings.UnlockPolicy)) {
			if r.dropSession(id) {
				n++
			}
		}
		l.Unlock()
	}
	return n
}

// Close locks every identity and releases what Open acquired.
func (r *Registry) Close() {
	r.mu.Lock()
	identities := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		identities = append(identities, id)
	}
	r.mu.Unlock()

	for _, id := range identities {
		l := r.identityLock(id)
		l.Lock()
		r.dropSession(id)
		l.Unlock()
	}

	if r.onClose != nil {
		if err := r.onClose(); err != nil {
			r.logger.Warn("failed to close settings store", "error", err)
		}
		r.onClose = nil
	}
}
