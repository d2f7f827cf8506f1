package chat

import "errors"

// Validation rejections. State is unchanged whenever one of these is returned.
var (
	ErrEmptyMessage         = errors.New("message is empty")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrNoActiveConversation = errors.New("no active conversation")
	ErrMissingTenant        = errors.New("tenant is required")
	ErrMissingEntity        = errors.New("entity is required")
)

// ErrConversationDeleted resolves a reply whose conversation went away while
// the responder was still working.
var ErrConversationDeleted = errors.New("conversation was deleted before the reply arrived")

// ErrShutdown resolves replies abandoned by Close
var ErrShutdown = errors.New("controller is shutting down")
