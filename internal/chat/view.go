package chat

import (
	"time"

	"RagChat/internal/session"
)

// ConversationSummary is one row of the conversation list
type ConversationSummary struct {
	ID           string
	Title        string
	LastMessage  string
	Timestamp    time.Time
	Scope        session.Scope
	MessageCount int
	Active       bool
}

// Snapshot is the read model handed to the presentation layer
type Snapshot struct {
	Conversations []ConversationSummary
	ActiveID      string
	Active        *session.Conversation
	Busy          bool
}

// Snapshot returns a copy of the current session state
func (c *Controller) Snapshot() Snapshot {
	convs := c.store.List()
	activeID := c.store.ActiveID()

	snap := Snapshot{
		Conversations: make([]ConversationSummary, 0, len(convs)),
		ActiveID:      activeID,
		Busy:          c.Busy(),
	}
	for _, conv := range convs {
		snap.Conversations = append(snap.Conversations, ConversationSummary{
			ID:           conv.ID,
			Title:        conv.Title,
			LastMessage:  conv.LastMessage,
			Timestamp:    conv.Timestamp,
			Scope:        conv.Scope,
			MessageCount: len(conv.Messages),
			Active:       conv.ID == activeID,
		})
		if conv.ID == activeID {
			snap.Active = conv
		}
	}
	return snap
}

// Conversation returns a copy of one conversation
func (c *Controller) Conversation(id string) (*session.Conversation, bool) {
	return c.store.Get(id)
}
