package session

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	// DefaultTitle is used for conversations created without a first message
	DefaultTitle = "New Chat"

	// PreviewLength is the rune limit for derived titles and message previews
	PreviewLength = 50
)

// Role identifies who authored a message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Kind separates regular replies from failure notices
type Kind string

const (
	KindText  Kind = "text"
	KindError Kind = "error"
)

// Message represents a single chat message
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Kind      Kind      `json:"kind"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation represents a titled thread of messages
type Conversation struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Scope       Scope     `json:"-"`
	Messages    []Message `json:"messages"`
	LastMessage string    `json:"last_message,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	CreatedAt   time.Time `json:"created_at"`

	// Renamed is set once a title was chosen explicitly, either at creation
	// or through a rename.
	Renamed bool `json:"renamed"`
}

// NewID returns a creation-order sortable identifier
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// NewMessage builds a text message stamped with a fresh id and the current time
func NewMessage(role Role, content string) Message {
	return Message{
		ID:        NewID(),
		Role:      role,
		Kind:      KindText,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewErrorMessage builds an assistant message describing a failed reply
func NewErrorMessage(content string) Message {
	msg := NewMessage(RoleAssistant, content)
	msg.Kind = KindError
	return msg
}

// NewConversation creates an empty conversation. A blank title falls back to DefaultTitle.
func NewConversation(scope Scope, title string) *Conversation {
	if scope == nil {
		scope = Bare{}
	}
	now := time.Now()
	conv := &Conversation{
		ID:        NewID(),
		Title:     strings.TrimSpace(title),
		Scope:     scope,
		Messages:  []Message{},
		Timestamp: now,
		CreatedAt: now,
	}
	if conv.Title == "" {
		conv.Title = DefaultTitle
	} else {
		conv.Renamed = true
	}
	return conv
}

// Append adds msg to the history and refreshes the derived fields.
// An untitled conversation adopts the first user message as its title.
func (c *Conversation) Append(msg Message) {
	if !c.Renamed && msg.Role == RoleUser && !c.hasUserMessage() {
		c.Title = DeriveTitle(msg.Content)
	}
	c.Messages = append(c.Messages, msg)
	c.LastMessage = Preview(msg)
	c.Timestamp = msg.Timestamp
}

func (c *Conversation) hasUserMessage() bool {
	for _, m := range c.Messages {
		if m.Role == RoleUser {
			return true
		}
	}
	return false
}

// Clone returns a deep copy safe to hand to readers
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	out := *c
	out.Messages = append([]Message(nil), c.Messages...)
	return &out
}

// DeriveTitle turns a first message into a conversation title
func DeriveTitle(text string) string {
	return truncate(strings.TrimSpace(text), PreviewLength)
}

// Preview is the list-display form of a message: user text verbatim,
// assistant text truncated.
func Preview(msg Message) string {
	if msg.Role == RoleAssistant {
		return truncate(msg.Content, PreviewLength)
	}
	return msg.Content
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + "..."
}
