package store

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"RagChat/internal/session"
)

// ConversationStore owns the set of conversations and the active-conversation
// pointer. All mutations go through it; readers only ever receive copies.
type ConversationStore struct {
	mu       sync.RWMutex
	backend  Backend
	activeID string
	logger   *slog.Logger
}

// Option configures a ConversationStore
type Option func(*storeOptions)

type storeOptions struct {
	seed     []*session.Conversation
	activeID string
	logger   *slog.Logger
}

// WithSeed loads an initial set of conversations. The first element ends up
// at the front of the display order and becomes active.
func WithSeed(convs []*session.Conversation) Option {
	return func(o *storeOptions) {
		o.seed = convs
	}
}

// WithActive overrides which seeded conversation starts active
func WithActive(id string) Option {
	return func(o *storeOptions) {
		o.activeID = id
	}
}

// WithLogger sets the logger used for backend failures
func WithLogger(logger *slog.Logger) Option {
	return func(o *storeOptions) {
		o.logger = logger
	}
}

// NewConversationStore creates a store on top of backend. A nil backend
// means an in-memory one.
func NewConversationStore(backend Backend, opts ...Option) (*ConversationStore, error) {
	var o storeOptions
	for _, opt := range opts {
		opt(&o)
	}
	if backend == nil {
		backend = NewMemoryBackend()
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	s := &ConversationStore{
		backend: backend,
		logger:  o.logger.With("component", "store"),
	}

	for i := len(o.seed) - 1; i >= 0; i-- {
		if err := backend.Insert(o.seed[i]); err != nil {
			return nil, fmt.Errorf("failed to seed conversation %s: %w", o.seed[i].ID, err)
		}
	}
	if len(o.seed) > 0 {
		s.activeID = o.seed[0].ID
	}
	if o.activeID != "" {
		if _, err := backend.Get(o.activeID); err == nil {
			s.activeID = o.activeID
		}
	}

	return s, nil
}

// Create inserts a new empty conversation at the front and makes it active
func (s *ConversationStore) Create(scope session.Scope, title string) (*session.Conversation, error) {
	conv := session.NewConversation(scope, title)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.backend.Insert(conv); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	s.activeID = conv.ID

	s.logger.Info("created conversation", "conversation_id", conv.ID, "scope", conv.Scope.String())
	return conv.Clone(), nil
}

// Select makes id the active conversation. Unknown ids are ignored.
func (s *ConversationStore) Select(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.backend.Get(id); err != nil {
		return false
	}
	s.activeID = id
	return true
}

// Delete removes a conversation. If it was active, the first remaining
// conversation in display order becomes active, or none if the store is empty.
func (s *ConversationStore) Delete(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.Delete(id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to delete conversation: %w", err)
	}

	if s.activeID == id {
		s.activeID = ""
		remaining, err := s.backend.List()
		if err != nil {
			return true, fmt.Errorf("failed to reselect conversation: %w", err)
		}
		if len(remaining) > 0 {
			s.activeID = remaining[0].ID
		}
	}

	s.logger.Info("deleted conversation", "conversation_id", id, "active_id", s.activeID)
	return true, nil
}

// Rename sets a new title. Titles that are blank after trimming are ignored.
func (s *ConversationStore) Rename(id, title string) (bool, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv, err := s.backend.Get(id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load conversation: %w", err)
	}
	conv.Title = title
	conv.Renamed = true
	if err := s.backend.UpdateHeader(conv); err != nil {
		return false, fmt.Errorf("failed to rename conversation: %w", err)
	}
	return true, nil
}

// AppendMessage adds msg to a conversation and refreshes its preview and
// activity time. A missing conversation is a no-op.
func (s *ConversationStore) AppendMessage(id string, msg session.Message) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, err := s.backend.Get(id)
	if errors.Is(err, ErrNotFound) {
		s.logger.Debug("dropping message for missing conversation", "conversation_id", id, "role", msg.Role)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load conversation: %w", err)
	}

	conv.Append(msg)
	if err := s.backend.AppendMessage(id, msg); err != nil {
		return false, fmt.Errorf("failed to append message: %w", err)
	}
	if err := s.backend.UpdateHeader(conv); err != nil {
		return false, fmt.Errorf("failed to update conversation: %w", err)
	}
	return true, nil
}

// Get returns a copy of the conversation, if present
func (s *ConversationStore) Get(id string) (*session.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, err := s.backend.Get(id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Error("failed to load conversation", "conversation_id", id, "error", err)
		}
		return nil, false
	}
	return conv, true
}

// Exists reports whether id names a stored conversation
func (s *ConversationStore) Exists(id string) bool {
	_, ok := s.Get(id)
	return ok
}

// List returns all conversations in display order
func (s *ConversationStore) List() []*session.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	convs, err := s.backend.List()
	if err != nil {
		s.logger.Error("failed to list conversations", "error", err)
		return nil
	}
	return convs
}

// ActiveID returns the active conversation id, or "" when none is active
func (s *ConversationStore) ActiveID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID
}

// Active returns the active conversation, if any
func (s *ConversationStore) Active() (*session.Conversation, bool) {
	id := s.ActiveID()
	if id == "" {
		return nil, false
	}
	return s.Get(id)
}

// Close releases the backend
func (s *ConversationStore) Close() error {
	return s.backend.Close()
}
