package store

import (
	"errors"

	"RagChat/internal/session"
)

// ErrNotFound is returned by backends for unknown conversation ids
var ErrNotFound = errors.New("conversation not found")

// Backend is the row store behind a ConversationStore. Backends keep
// conversations in display order (most recently inserted first) and never
// enforce session rules themselves; ConversationStore does that.
type Backend interface {
	// Insert places conv at the front of the display order, messages included
	Insert(conv *session.Conversation) error

	// Get returns a copy of the conversation with its full history
	Get(id string) (*session.Conversation, error)

	// List returns copies of all conversations in display order
	List() ([]*session.Conversation, error)

	// Delete removes the conversation and its messages
	Delete(id string) error

	// UpdateHeader stores title, preview and activity time of conv
	UpdateHeader(conv *session.Conversation) error

	// AppendMessage adds msg to the end of the conversation's history
	AppendMessage(id string, msg session.Message) error

	Close() error
}
