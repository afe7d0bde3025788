// Package client assembles the session manager, the conversation store
// and the chat controller into one embeddable assistant client.
package client

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/brightpane/assistant-client/internal/backend"
	"github.com/brightpane/assistant-client/internal/chat"
	"github.com/brightpane/assistant-client/internal/config"
	"github.com/brightpane/assistant-client/internal/domain"
	"github.com/brightpane/assistant-client/internal/logging"
	"github.com/brightpane/assistant-client/internal/security"
	"github.com/brightpane/assistant-client/internal/session"
	"github.com/brightpane/assistant-client/internal/storage"
)

// Client is the embeddable assistant client. It owns the local store,
// the authenticated backend connection and the per-identity
// conversation state. Create it with New, then call Start once.
type Client struct {
	kv         domain.KV
	backend    *backend.Client
	session    *session.Manager
	store      *chat.Store
	controller *chat.Controller
}

// New wires a client from configuration. It opens local storage but
// performs no network calls; those start with Start.
func New(cfg *config.Config) (*Client, error) {
	if err := logging.Setup(cfg.Logging); err != nil {
		return nil, err
	}

	var kv domain.KV
	if cfg.Storage.InMemory {
		kv = storage.NewMemoryKV()
	} else {
		sqlKV, err := storage.OpenSQLite(context.Background(), cfg.Storage.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open local storage: %w", err)
		}
		kv = sqlKV
	}

	enc, err := security.NewEncryptorFromPassphrase(cfg.Security.Passphrase)
	if err != nil {
		kv.Close()
		return nil, fmt.Errorf("failed to derive storage key: %w", err)
	}

	c := &Client{kv: kv}
	c.backend = backend.New(cfg.Backend.BaseURL, cfg.Backend.Timeout, func() string {
		return c.session.Token()
	})
	c.session = session.NewManager(c.backend, kv, enc)
	c.store = chat.NewStore(kv)
	c.controller = chat.NewController(c.store, c.backend)

	// Conversation state follows the identity: every resolution or
	// logout swaps the store to the matching scope, and a signed-in
	// identity always has a conversation to type into.
	c.session.OnIdentityChange(func(id *domain.Identity) {
		ctx := context.Background()
		scope := storage.GuestScope
		if id != nil {
			scope = id.Email
		}
		c.store.LoadForScope(ctx, scope)
		if id != nil {
			c.store.EnsureNonEmpty(ctx)
		}
	})

	return c, nil
}

// Start restores the persisted session, if any, and loads the
// conversations of the resulting identity. Blocks until the initial
// identity resolution has completed.
func (c *Client) Start(ctx context.Context) {
	c.session.Start(ctx)

	// With no persisted credential no identity change fires, so bring
	// the store to the guest scope explicitly.
	if c.session.Identity() == nil && c.store.Scope() != storage.GuestScope {
		c.store.LoadForScope(ctx, storage.GuestScope)
	}
}

// Session exposes authentication state and the login/register/logout
// operations.
func (c *Client) Session() *session.Manager {
	return c.session
}

// Conversations exposes the conversation store of the current identity
func (c *Client) Conversations() *chat.Store {
	return c.store
}

// Ask sends a question on the selected conversation. See
// chat.Controller.Ask for the failure behavior.
func (c *Client) Ask(ctx context.Context, question string) {
	c.controller.Ask(ctx, question)
}

// Upload pushes a knowledge document to the backend. Only resolved
// admin identities may upload; everyone else gets a typed error before
// any network traffic happens.
func (c *Client) Upload(ctx context.Context, filename string, file io.Reader) error {
	identity := c.session.Identity()
	if identity == nil {
		return domain.ErrNotAuthenticated
	}
	if !identity.IsAdmin() {
		return domain.ErrAdminRequired
	}

	if err := c.backend.Upload(ctx, filename, file); err != nil {
		return fmt.Errorf("upload of %q failed: %w", filename, err)
	}
	log.Info().Str("filename", filename).Msg("document uploaded")
	return nil
}

// Close tears the client down and releases local storage. In-flight
// operations are discarded, not awaited.
func (c *Client) Close() error {
	c.session.Close()
	return c.kv.Close()
}
