package chat

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/brightpane/assistant-client/internal/domain"
	"github.com/brightpane/assistant-client/internal/storage"
)

// Store owns the conversation mapping of the active identity scope and
// keeps it persisted. Loading a scope fully replaces in-memory state;
// conversations of one identity are never visible while another scope
// is active. Each load bumps an epoch so that asynchronous work issued
// against an earlier scope can detect it has gone stale.
type Store struct {
	kv  domain.KV
	now func() time.Time

	mu       sync.Mutex
	scope    string
	epoch    uint64
	convs    domain.ConversationMapping
	selected string
}

// NewStore creates a store on the guest scope with an empty mapping
func NewStore(kv domain.KV) *Store {
	return &Store{
		kv:    kv,
		now:   time.Now,
		scope: storage.GuestScope,
		convs: make(domain.ConversationMapping),
	}
}

// LoadForScope replaces all in-memory state with the mapping persisted
// for scope. An empty scope falls back to the guest sentinel. A stored
// selection that does not resolve against the loaded mapping is treated
// as unset; EnsureNonEmpty repairs it.
func (s *Store) LoadForScope(ctx context.Context, scope string) {
	if scope == "" {
		scope = storage.GuestScope
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.epoch++
	s.scope = scope
	s.convs = make(domain.ConversationMapping)
	s.selected = ""

	raw, err := s.kv.Get(ctx, storage.ConversationsKey(scope))
	switch {
	case err == nil:
		if err := json.Unmarshal([]byte(raw), &s.convs); err != nil {
			log.Warn().Err(err).Str("scope", scope).Msg("stored conversations unreadable, starting empty")
			s.convs = make(domain.ConversationMapping)
		}
	case !errors.Is(err, domain.ErrNotFound):
		log.Warn().Err(err).Str("scope", scope).Msg("failed to load conversations")
	}

	if id, err := s.kv.Get(ctx, storage.CurrentChatKey(scope)); err == nil {
		if _, ok := s.convs[id]; ok {
			s.selected = id
		}
	}

	log.Debug().Str("scope", scope).Int("conversations", len(s.convs)).Msg("scope loaded")
}

// EnsureNonEmpty repairs the selection invariant once identity
// resolution has completed: an empty mapping gets a first conversation,
// a non-empty mapping with a stale selection gets an arbitrary one.
func (s *Store) EnsureNonEmpty(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.selected != "" {
		if _, ok := s.convs[s.selected]; ok {
			return
		}
		s.selected = ""
	}

	if len(s.convs) == 0 {
		s.createLocked(ctx)
		return
	}
	for id := range s.convs {
		s.selected = id
		break
	}
	s.persistLocked(ctx)
}

// CreateConversation inserts a fresh conversation, selects it and
// returns its ID
func (s *Store) CreateConversation(ctx context.Context) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked(ctx)
}

func (s *Store) createLocked(ctx context.Context) string {
	ts := s.now()
	id := domain.NewConversationID(ts)
	for {
		if _, exists := s.convs[id]; !exists {
			break
		}
		// two creations within the same millisecond
		ts = ts.Add(time.Millisecond)
		id = domain.NewConversationID(ts)
	}

	s.convs[id] = &domain.Conversation{
		ID:        id,
		Title:     domain.DefaultTitle,
		Messages:  []domain.Message{},
		CreatedAt: ts.UnixMilli(),
	}
	s.selected = id
	s.persistLocked(ctx)
	return id
}

// SelectConversation makes id the target of new messages. Selecting an
// ID not present in the mapping is a no-op.
func (s *Store) SelectConversation(ctx context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.convs[id]; !ok {
		return
	}
	s.selected = id
	s.persistLocked(ctx)
}

// DeleteConversation removes id from the mapping. If it was selected,
// an arbitrary remaining conversation takes over the selection, or the
// selection clears when none remain.
func (s *Store) DeleteConversation(ctx context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.convs[id]; !ok {
		return
	}
	delete(s.convs, id)
	if s.selected == id {
		s.selected = ""
		for remaining := range s.convs {
			s.selected = remaining
			break
		}
	}
	s.persistLocked(ctx)
}

// Append adds a message to the conversation identified by id, provided
// the scope epoch still matches and the conversation still exists. A
// stale epoch or a deleted conversation drops the append and returns
// false. The first user message also sets the conversation title.
func (s *Store) Append(ctx context.Context, epoch uint64, id string, msg domain.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if epoch != s.epoch {
		return false
	}
	conv, ok := s.convs[id]
	if !ok {
		return false
	}

	conv.Messages = append(conv.Messages, msg)
	if msg.Role == domain.RoleUser && len(conv.Messages) == 1 {
		conv.Title = domain.DeriveTitle(msg.Content)
	}
	s.persistLocked(ctx)
	return true
}

// Target snapshots the current scope epoch and selection for an
// asynchronous exchange. ok is false when nothing is selected.
func (s *Store) Target() (epoch uint64, id string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == "" {
		return 0, "", false
	}
	return s.epoch, s.selected, true
}

// Scope returns the active scope key
func (s *Store) Scope() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scope
}

// SelectedID returns the selected conversation ID, "" when unset
func (s *Store) SelectedID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// Selected returns a copy of the selected conversation
func (s *Store) Selected() (*domain.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.convs[s.selected]
	if !ok {
		return nil, false
	}
	return conv.Clone(), true
}

// Get returns a copy of the conversation with the given ID
func (s *Store) Get(id string) (*domain.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.convs[id]
	if !ok {
		return nil, false
	}
	return conv.Clone(), true
}

// Sorted returns copies of all conversations, newest first
func (s *Store) Sorted() []*domain.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*domain.Conversation, 0, len(s.convs))
	for _, conv := range s.convs {
		out = append(out, conv.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// persistLocked writes the mapping and selection for the active scope.
// Guest state is in-memory only: nothing is persisted until an identity
// is resolved.
func (s *Store) persistLocked(ctx context.Context) {
	if s.scope == storage.GuestScope {
		return
	}

	data, err := json.Marshal(s.convs)
	if err != nil {
		log.Error().Err(err).Str("scope", s.scope).Msg("failed to encode conversations")
		return
	}
	if err := s.kv.Set(ctx, storage.ConversationsKey(s.scope), string(data)); err != nil {
		log.Error().Err(err).Str("scope", s.scope).Msg("failed to persist conversations")
	}

	if s.selected == "" {
		if err := s.kv.Delete(ctx, storage.CurrentChatKey(s.scope)); err != nil {
			log.Error().Err(err).Str("scope", s.scope).Msg("failed to clear selection")
		}
		return
	}
	if err := s.kv.Set(ctx, storage.CurrentChatKey(s.scope), s.selected); err != nil {
		log.Error().Err(err).Str("scope", s.scope).Msg("failed to persist selection")
	}
}
