package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/brightpane/assistant-client/internal/domain"
	"github.com/brightpane/assistant-client/internal/storage"
)

func TestController_Ask(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(storage.NewMemoryKV())
	be := new(MockBackend)
	c := NewController(s, be)

	s.LoadForScope(ctx, scopeA)
	id := s.CreateConversation(ctx)

	be.On("Ask", ctx, "hello there, how are refunds handled today").Return("via the billing page", nil)

	c.Ask(ctx, "hello there, how are refunds handled today")

	conv, ok := s.Get(id)
	require.True(t, ok)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, domain.Message{Role: domain.RoleUser, Content: "hello there, how are refunds handled today"}, conv.Messages[0])
	assert.Equal(t, domain.Message{Role: domain.RoleAssistant, Content: "via the billing page"}, conv.Messages[1])
	assert.Equal(t, "hello there, how are refunds handled…", conv.Title)
	be.AssertExpectations(t)
}

func TestController_AskFailureInsertsFallback(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(storage.NewMemoryKV())
	be := new(MockBackend)
	c := NewController(s, be)

	s.LoadForScope(ctx, scopeA)
	id := s.CreateConversation(ctx)

	be.On("Ask", ctx, "q").Return("", errors.New("dial tcp: connection refused"))

	c.Ask(ctx, "q")

	conv, _ := s.Get(id)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, domain.RoleUser, conv.Messages[0].Role)
	assert.Equal(t, domain.Message{Role: domain.RoleAssistant, Content: FallbackAnswer}, conv.Messages[1])
}

func TestController_AskWithoutSelectionIsNoop(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(storage.NewMemoryKV())
	be := new(MockBackend)
	c := NewController(s, be)

	s.LoadForScope(ctx, scopeA)

	c.Ask(ctx, "q")

	assert.Empty(t, s.Sorted())
	be.AssertNotCalled(t, "Ask", mock.Anything, mock.Anything)
}

func TestController_DeletionMidFlightDropsReply(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(storage.NewMemoryKV())
	be := new(MockBackend)
	c := NewController(s, be)

	s.LoadForScope(ctx, scopeA)
	other := s.CreateConversation(ctx)
	target := s.CreateConversation(ctx)

	// the user deletes the conversation while the request is in flight
	be.On("Ask", ctx, "q").Run(func(mock.Arguments) {
		s.DeleteConversation(ctx, target)
	}).Return("answer", nil)

	c.Ask(ctx, "q")

	_, found := s.Get(target)
	assert.False(t, found)

	// the reply must not leak into the surviving conversation
	conv, _ := s.Get(other)
	assert.Empty(t, conv.Messages)
}

func TestController_ScopeSwitchMidFlightDropsReply(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	s := newTestStore(kv)
	be := new(MockBackend)
	c := NewController(s, be)

	s.LoadForScope(ctx, scopeA)
	id := s.CreateConversation(ctx)

	// the identity changes while the request is in flight
	be.On("Ask", ctx, "q").Run(func(mock.Arguments) {
		s.LoadForScope(ctx, scopeB)
	}).Return("answer", nil)

	c.Ask(ctx, "q")

	assert.Equal(t, scopeB, s.Scope())
	assert.Empty(t, s.Sorted())

	// scope A keeps the optimistic user message but never sees the
	// late reply
	s.LoadForScope(ctx, scopeA)
	conv, ok := s.Get(id)
	require.True(t, ok)
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, domain.RoleUser, conv.Messages[0].Role)
}
