package chat

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/brightpane/assistant-client/internal/domain"
)

// FallbackAnswer is inserted when the inference call fails, so a
// conversation is never left with a question pending indefinitely
const FallbackAnswer = "⚠️ Backend error. Please try again."

// Controller mediates the question/answer exchange for the selected
// conversation: it appends the question immediately, asks the backend,
// and appends either the answer or FallbackAnswer. Both appends
// re-resolve the conversation by ID at append time, so a deletion or
// identity switch concurrent with the request cannot touch an unrelated
// conversation.
type Controller struct {
	store   *Store
	backend domain.Backend
}

// NewController creates a chat controller over the given store
func NewController(store *Store, be domain.Backend) *Controller {
	return &Controller{store: store, backend: be}
}

// Ask runs one message exchange on the selected conversation. With no
// selection it is a no-op. Failures are recovered locally and never
// propagated; no automatic retry is performed.
func (c *Controller) Ask(ctx context.Context, question string) {
	epoch, convID, ok := c.store.Target()
	if !ok {
		log.Debug().Msg("ask ignored: no conversation selected")
		return
	}

	if !c.store.Append(ctx, epoch, convID, domain.Message{Role: domain.RoleUser, Content: question}) {
		return
	}

	answer, err := c.backend.Ask(ctx, question)
	if err != nil {
		log.Warn().Err(err).Str("conversation_id", convID).Msg("inference call failed, inserting fallback answer")
		answer = FallbackAnswer
	}

	if !c.store.Append(ctx, epoch, convID, domain.Message{Role: domain.RoleAssistant, Content: answer}) {
		log.Debug().Str("conversation_id", convID).Msg("dropping reply for a conversation that no longer exists")
	}
}
