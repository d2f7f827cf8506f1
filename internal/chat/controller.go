package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"RagChat/internal/responder"
	"RagChat/internal/session"
	"RagChat/internal/store"
)

// DefaultReplyTimeout bounds a single responder call
const DefaultReplyTimeout = 60 * time.Second

type abandonReason int

const (
	notAbandoned abandonReason = iota
	abandonedByDelete
	abandonedByShutdown
)

type pendingReply struct {
	reply  *Reply
	cancel context.CancelFunc
	reason abandonReason
}

// Controller drives the user/assistant turn-taking on top of a
// ConversationStore. It never calls into the presentation layer; callers
// re-read Snapshot after commands and when replies resolve.
type Controller struct {
	store     *store.ConversationStore
	responder responder.Responder
	timeout   time.Duration
	logger    *slog.Logger
	messages  metric.Int64Counter

	mu          sync.Mutex
	pending     map[string][]*pendingReply
	outstanding int
	wg          sync.WaitGroup
}

// Option configures a Controller
type Option func(*Controller)

// WithReplyTimeout bounds each responder call. Zero or negative disables the bound.
func WithReplyTimeout(d time.Duration) Option {
	return func(c *Controller) {
		c.timeout = d
	}
}

// WithLogger sets the controller logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMeter records message counts on meter
func WithMeter(meter metric.Meter) Option {
	return func(c *Controller) {
		if meter == nil {
			return
		}
		counter, err := meter.Int64Counter(
			"ragchat.messages",
			metric.WithDescription("Messages appended to conversations by role"),
		)
		if err != nil {
			c.logger.Warn("failed to create message counter", "error", err)
			return
		}
		c.messages = counter
	}
}

// NewController creates a controller that answers through r
func NewController(s *store.ConversationStore, r responder.Responder, opts ...Option) *Controller {
	c := &Controller{
		store:     s,
		responder: r,
		timeout:   DefaultReplyTimeout,
		logger:    slog.Default(),
		pending:   make(map[string][]*pendingReply),
	}
	c.messages, _ = noop.NewMeterProvider().Meter("").Int64Counter("ragchat.messages")
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "chat")
	return c
}

// NewChat creates an empty bare conversation and makes it active
func (c *Controller) NewChat() (*session.Conversation, error) {
	return c.store.Create(session.Bare{}, "")
}

// StartNewChat creates a conversation scoped to tenant and entity, titled after
// firstMessage, and sends firstMessage to it. Invalid input creates nothing.
func (c *Controller) StartNewChat(ctx context.Context, tenant, entity, firstMessage string) (*session.Conversation, *Reply, error) {
	tenant = strings.TrimSpace(tenant)
	entity = strings.TrimSpace(entity)
	switch {
	case tenant == "":
		return nil, nil, ErrMissingTenant
	case entity == "":
		return nil, nil, ErrMissingEntity
	case strings.TrimSpace(firstMessage) == "":
		return nil, nil, ErrEmptyMessage
	}

	conv, err := c.store.Create(session.Scoped{Tenant: tenant, Entity: entity}, session.DeriveTitle(firstMessage))
	if err != nil {
		return nil, nil, err
	}

	reply, err := c.SendMessage(ctx, conv.ID, firstMessage)
	if err != nil {
		return nil, nil, err
	}

	if latest, ok := c.store.Get(conv.ID); ok {
		conv = latest
	}
	return conv, reply, nil
}

// SendToActive sends text to the active conversation
func (c *Controller) SendToActive(ctx context.Context, text string) (*Reply, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}
	id := c.store.ActiveID()
	if id == "" {
		return nil, ErrNoActiveConversation
	}
	return c.SendMessage(ctx, id, text)
}

// SendMessage appends a user message to the conversation right away and asks
// the responder for an answer in the background. The returned Reply resolves
// once the assistant message has been appended, or dropped because the
// conversation was deleted.
func (c *Controller) SendMessage(ctx context.Context, conversationID, text string) (*Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	conv, ok := c.store.Get(conversationID)
	if !ok {
		return nil, ErrConversationNotFound
	}

	userMsg := session.NewMessage(session.RoleUser, text)
	appended, err := c.store.AppendMessage(conversationID, userMsg)
	if err != nil {
		return nil, fmt.Errorf("failed to record message: %w", err)
	}
	if !appended {
		return nil, ErrConversationNotFound
	}
	c.countMessage(ctx, userMsg)

	req := responder.Request{
		ConversationID: conversationID,
		Text:           text,
		Scope:          conv.Scope,
		History:        append(conv.Messages, userMsg),
	}

	// the reply outlives the caller's request, so only values are inherited
	replyCtx := context.WithoutCancel(ctx)
	var cancel context.CancelFunc
	if c.timeout > 0 {
		replyCtx, cancel = context.WithTimeout(replyCtx, c.timeout)
	} else {
		replyCtx, cancel = context.WithCancel(replyCtx)
	}

	p := &pendingReply{reply: newReply(conversationID, userMsg), cancel: cancel}

	c.mu.Lock()
	c.pending[conversationID] = append(c.pending[conversationID], p)
	c.outstanding++
	c.wg.Add(1)
	c.mu.Unlock()

	c.logger.Info("message sent", "conversation_id", conversationID, "message_id", userMsg.ID)

	go c.awaitReply(replyCtx, p, req)
	return p.reply, nil
}

func (c *Controller) awaitReply(ctx context.Context, p *pendingReply, req responder.Request) {
	defer c.wg.Done()

	text, err := c.responder.GenerateReply(ctx, req)
	ctxErr := ctx.Err()
	p.cancel()

	c.mu.Lock()
	reason := p.reason
	c.mu.Unlock()

	var (
		msg       session.Message
		delivered bool
		replyErr  error
	)

	switch {
	case reason == abandonedByDelete:
		replyErr = ErrConversationDeleted
	case reason == abandonedByShutdown:
		replyErr = ErrShutdown
	default:
		if err != nil {
			replyErr = err
			msg = session.NewErrorMessage(failureText(err, ctxErr))
		} else {
			msg = session.NewMessage(session.RoleAssistant, text)
		}
		appended, appendErr := c.store.AppendMessage(req.ConversationID, msg)
		switch {
		case appendErr != nil:
			c.logger.Error("failed to record reply", "conversation_id", req.ConversationID, "error", appendErr)
			replyErr = errors.Join(replyErr, appendErr)
		case !appended:
			replyErr = ErrConversationDeleted
		default:
			delivered = true
			c.countMessage(ctx, msg)
		}
	}

	c.finish(p)

	if replyErr != nil {
		c.logger.Warn("reply finished without answer", "conversation_id", req.ConversationID, "delivered", delivered, "error", replyErr)
	} else {
		c.logger.Info("reply received", "conversation_id", req.ConversationID, "message_id", msg.ID)
	}
	p.reply.resolve(msg, delivered, replyErr)
}

// finish clears the pending entry; busy drops before the reply resolves
func (c *Controller) finish(p *pendingReply) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := p.reply.ConversationID
	list := c.pending[id]
	for i, q := range list {
		if q == p {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(c.pending, id)
	} else {
		c.pending[id] = list
	}
	c.outstanding--
}

func failureText(err, ctxErr error) string {
	if errors.Is(ctxErr, context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return "The assistant could not answer: the request timed out."
	}
	return fmt.Sprintf("The assistant could not answer: %v", err)
}

func (c *Controller) countMessage(ctx context.Context, msg session.Message) {
	c.messages.Add(ctx, 1, metric.WithAttributes(
		attribute.String("role", string(msg.Role)),
		attribute.String("kind", string(msg.Kind)),
	))
}

// Select makes id the active conversation; unknown ids are ignored
func (c *Controller) Select(id string) bool {
	return c.store.Select(id)
}

// Delete removes a conversation and abandons its outstanding replies
func (c *Controller) Delete(id string) (bool, error) {
	deleted, err := c.store.Delete(id)
	if err != nil || !deleted {
		return deleted, err
	}

	c.mu.Lock()
	for _, p := range c.pending[id] {
		p.reason = abandonedByDelete
		p.cancel()
	}
	c.mu.Unlock()
	return true, nil
}

// Rename sets a conversation title; blank titles are ignored
func (c *Controller) Rename(id, title string) (bool, error) {
	return c.store.Rename(id, title)
}

// Busy reports whether any reply is outstanding
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outstanding > 0
}

// Outstanding returns the number of unresolved replies
func (c *Controller) Outstanding() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outstanding
}

// Wait blocks until every outstanding reply has resolved or ctx is done
func (c *Controller) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close abandons all outstanding replies and waits for them to resolve
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	for _, list := range c.pending {
		for _, p := range list {
			p.reason = abandonedByShutdown
			p.cancel()
		}
	}
	c.mu.Unlock()
	return c.Wait(ctx)
}
