package chat

import (
	"context"

	"RagChat/internal/session"
)

// Reply is the pending assistant answer to one SendMessage call. It resolves
// exactly once.
type Reply struct {
	ConversationID string
	UserMessage    session.Message

	done      chan struct{}
	message   session.Message
	delivered bool
	err       error
}

func newReply(convID string, user session.Message) *Reply {
	return &Reply{
		ConversationID: convID,
		UserMessage:    user,
		done:           make(chan struct{}),
	}
}

// Done is closed once the reply has resolved
func (r *Reply) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the reply resolves or ctx is done. It returns the
// reply error, if any.
func (r *Reply) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Message returns the assistant message appended for this reply. The bool is
// false while unresolved or when nothing was appended.
func (r *Reply) Message() (session.Message, bool) {
	select {
	case <-r.done:
		return r.message, r.delivered
	default:
		return session.Message{}, false
	}
}

// Err returns the failure of a resolved reply. A failed responder still
// delivers an error-kind message.
func (r *Reply) Err() error {
	select {
	case <-r.done:
		return r.err
	default:
		return nil
	}
}

func (r *Reply) resolve(msg session.Message, delivered bool, err error) {
	r.message = msg
	r.delivered = delivered
	r.err = err
	close(r.done)
}
