// Package responder defines the contract between the chat controller and
// whatever produces assistant replies, plus the in-process implementations
// and decorators that sit around the remote ones.
package responder

import (
	"context"

	"RagChat/internal/session"
)

// Request is one reply request for a conversation
type Request struct {
	ConversationID string
	Text           string
	Scope          session.Scope

	// History is the conversation up to and including the user message in Text
	History []session.Message
}

// Responder produces a single assistant reply for a request. Implementations
// must return when ctx is done.
type Responder interface {
	GenerateReply(ctx context.Context, req Request) (string, error)
}

// Func adapts a plain function to the Responder interface
type Func func(ctx context.Context, req Request) (string, error)

func (f Func) GenerateReply(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Messages returns the request history, or just the user text when no
// history was attached.
func (r Request) Messages() []session.Message {
	if len(r.History) > 0 {
		return r.History
	}
	return []session.Message{{Role: session.RoleUser, Kind: session.KindText, Content: r.Text}}
}
