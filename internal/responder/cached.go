package responder

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"RagChat/internal/cache"
)

// Cached serves repeated requests from a reply cache
type Cached struct {
	next   Responder
	cache  cache.Cache
	ttl    time.Duration
	logger *slog.Logger
}

// NewCached wraps next with a reply cache
func NewCached(next Responder, c cache.Cache, ttl time.Duration, logger *slog.Logger) *Cached {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cached{
		next:   next,
		cache:  c,
		ttl:    ttl,
		logger: logger.With("component", "reply_cache"),
	}
}

func (c *Cached) GenerateReply(ctx context.Context, req Request) (string, error) {
	key := cache.GenerateCacheKey(req.Scope, req.Messages())

	cached, err := c.cache.Get(ctx, key)
	if err == nil {
		c.logger.Info("cache hit", "key", key[:16], "conversation_id", req.ConversationID)
		return cached, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		c.logger.Warn("cache lookup failed", "error", err)
	}

	reply, err := c.next.GenerateReply(ctx, req)
	if err != nil {
		return "", err
	}

	if err := c.cache.Set(ctx, key, reply, c.ttl); err != nil {
		c.logger.Warn("failed to cache reply", "error", err)
	} else {
		c.logger.Info("cached reply", "key", key[:16])
	}
	return reply, nil
}
