package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/brightpane/assistant-client/internal/backend"
	"github.com/brightpane/assistant-client/internal/domain"
	"github.com/brightpane/assistant-client/internal/security"
	"github.com/brightpane/assistant-client/internal/storage"
)

var validate = validator.New()

// authFailedFallback is shown when the backend gives no usable detail
const authFailedFallback = "Authentication failed"

// AuthError is a failed login/register flow. Its message is safe to
// show to the user; session state is left unchanged when it is returned.
type AuthError struct {
	Message string
	Err     error
}

func (e *AuthError) Error() string { return e.Message }
func (e *AuthError) Unwrap() error { return e.Err }

// Manager owns the bearer credential and the identity resolved from it.
// Whenever the credential changes the identity is re-resolved against
// the backend; a failed resolution forces a logout. Every resolution
// attempt carries an epoch so that a result arriving after a logout, a
// newer login, or Close is discarded instead of applied.
type Manager struct {
	backend domain.Backend
	kv      domain.KV
	enc     *security.Encryptor
	now     func() time.Time

	mu        sync.Mutex
	token     string
	identity  *domain.Identity
	resolving bool
	epoch     uint64
	closed    bool
	onChange  []func(identity *domain.Identity)
}

// NewManager creates a session manager. It reports resolving until
// Start has run the initial resolution.
func NewManager(be domain.Backend, kv domain.KV, enc *security.Encryptor) *Manager {
	return &Manager{
		backend:   be,
		kv:        kv,
		enc:       enc,
		now:       time.Now,
		resolving: true,
	}
}

// OnIdentityChange registers a callback invoked after every completed
// resolution and after every logout. The callback receives the new
// identity, nil when unauthenticated.
func (m *Manager) OnIdentityChange(fn func(identity *domain.Identity)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = append(m.onChange, fn)
}

// Start loads the persisted credential and resolves it. An unreadable
// stored value is discarded so a corrupt entry cannot wedge startup.
func (m *Manager) Start(ctx context.Context) {
	token := ""
	stored, err := m.kv.Get(ctx, storage.TokenKey)
	switch {
	case err == nil:
		token, err = m.enc.DecryptString(stored)
		if err != nil {
			log.Warn().Err(err).Msg("stored credential unreadable, discarding")
			if delErr := m.kv.Delete(ctx, storage.TokenKey); delErr != nil {
				log.Warn().Err(delErr).Msg("failed to remove stored credential")
			}
			token = ""
		}
	case !errors.Is(err, domain.ErrNotFound):
		log.Warn().Err(err).Msg("failed to read stored credential")
	}

	m.mu.Lock()
	m.token = token
	m.mu.Unlock()

	m.resolve(ctx)
}

// Login exchanges credentials for a bearer token, persists it and
// resolves the identity. On failure the session is left unchanged and
// the returned error carries a displayable message.
func (m *Manager) Login(ctx context.Context, creds domain.Credentials) error {
	if err := validate.Struct(creds); err != nil {
		return &AuthError{Message: validationMessage(err), Err: err}
	}

	token, err := m.backend.Login(ctx, creds)
	if err != nil {
		return &AuthError{Message: backend.Displayable(err, authFailedFallback), Err: err}
	}

	ciphertext, err := m.enc.EncryptString(token)
	if err != nil {
		return fmt.Errorf("failed to protect credential: %w", err)
	}
	if err := m.kv.Set(ctx, storage.TokenKey, ciphertext); err != nil {
		return fmt.Errorf("failed to persist credential: %w", err)
	}

	m.mu.Lock()
	m.token = token
	m.mu.Unlock()

	m.resolve(ctx)
	return nil
}

// Register creates an account and then logs in with the same
// credentials, mirroring the registration flow of the backend.
func (m *Manager) Register(ctx context.Context, creds domain.Credentials) error {
	if err := validate.Struct(creds); err != nil {
		return &AuthError{Message: validationMessage(err), Err: err}
	}
	if err := m.backend.Register(ctx, creds); err != nil {
		return &AuthError{Message: backend.Displayable(err, authFailedFallback), Err: err}
	}
	return m.Login(ctx, creds)
}

// Logout removes the persisted credential and clears the session.
// Conversation data of other identities is deliberately left in place
// so a later login can recover it.
func (m *Manager) Logout(ctx context.Context) {
	if err := m.kv.Delete(ctx, storage.TokenKey); err != nil {
		log.Warn().Err(err).Msg("failed to remove stored credential")
	}

	m.mu.Lock()
	m.token = ""
	m.identity = nil
	m.resolving = false
	m.epoch++ // discard any in-flight resolution
	subs := slices.Clone(m.onChange)
	closed := m.closed
	m.mu.Unlock()

	if closed {
		return
	}
	for _, fn := range subs {
		fn(nil)
	}
}

// Close tears the manager down; any in-flight resolution result is
// discarded and no further callbacks fire.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.epoch++
}

// Token returns the current bearer credential, "" when logged out
func (m *Manager) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

// Identity returns the resolved identity, nil while unresolved
func (m *Manager) Identity() *domain.Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.identity == nil {
		return nil
	}
	id := *m.identity
	return &id
}

// IsAuthenticated reports whether a credential is set. The identity may
// still be resolving.
func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token != ""
}

// Resolving reports whether an identity resolution is in progress
func (m *Manager) Resolving() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resolving
}

// ScopeKey returns the key conversation data is partitioned under:
// the identity's email, or the guest sentinel while unresolved
func (m *Manager) ScopeKey() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.identity == nil {
		return storage.GuestScope
	}
	return m.identity.Email
}

// resolve re-derives the identity from the current credential. A
// resolution failure of any kind is recovered by forcing a logout; it
// is never surfaced to callers.
func (m *Manager) resolve(ctx context.Context) {
	m.mu.Lock()
	m.epoch++
	epoch := m.epoch
	token := m.token
	m.resolving = true
	m.mu.Unlock()

	if token == "" {
		m.apply(epoch, nil)
		return
	}

	if security.TokenExpired(token, m.now()) {
		log.Info().Msg("stored credential expired locally, logging out")
		m.Logout(ctx)
		return
	}

	identity, err := m.backend.Me(ctx)

	m.mu.Lock()
	stale := m.closed || epoch != m.epoch
	m.mu.Unlock()
	if stale {
		return
	}

	if err != nil {
		log.Warn().Err(err).Msg("identity resolution failed, forcing logout")
		m.Logout(ctx)
		return
	}

	log.Debug().Str("email", identity.Email).Str("role", string(identity.Role)).Msg("identity resolved")
	m.apply(epoch, identity)
}

// apply commits a resolution result unless it has gone stale
func (m *Manager) apply(epoch uint64, identity *domain.Identity) {
	m.mu.Lock()
	if m.closed || epoch != m.epoch {
		m.mu.Unlock()
		return
	}
	m.identity = identity
	m.resolving = false
	subs := slices.Clone(m.onChange)
	m.mu.Unlock()

	for _, fn := range subs {
		fn(identity)
	}
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		e := verrs[0]
		switch e.Tag() {
		case "required":
			return "Please fill all fields"
		case "email":
			return "Invalid email address"
		case "min":
			return "Password must be at least " + e.Param() + " characters"
		case "max":
			return "Value must be at most " + e.Param() + " characters"
		}
	}
	return authFailedFallback
}
