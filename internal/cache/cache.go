package cache

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"
	"time"

	"RagChat/internal/session"
)

// ErrMiss is returned when a key is absent or expired
var ErrMiss = errors.New("cache miss")

// Cache stores generated replies by key
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Close() error
}

// CachedResponse represents a cached reply
type CachedResponse struct {
	Response  string
	Timestamp time.Time
	ExpiresAt time.Time
}

// GenerateCacheKey generates a cache key from the conversation scope and
// messages. Error notices are not part of the key.
func GenerateCacheKey(scope session.Scope, messages []session.Message) string {
	h := sha256.New()
	if scope != nil {
		h.Write([]byte(scope.String()))
		h.Write([]byte{0})
	}
	for _, msg := range messages {
		if msg.Kind == session.KindError {
			continue
		}
		h.Write([]byte(msg.Role))
		h.Write([]byte{0})
		h.Write([]byte(msg.Content))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// MemoryCache keeps replies in process memory
type MemoryCache struct {
	entries sync.Map
}

// NewMemoryCache creates an empty in-memory cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{}
}

var _ Cache = (*MemoryCache)(nil)

func (c *MemoryCache) Get(_ context.Context, key string) (string, error) {
	val, ok := c.entries.Load(key)
	if !ok {
		return "", ErrMiss
	}
	cached := val.(CachedResponse)
	if !cached.ExpiresAt.IsZero() && time.Now().After(cached.ExpiresAt) {
		c.entries.Delete(key)
		return "", ErrMiss
	}
	return cached.Response, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value string, ttl time.Duration) error {
	now := time.Now()
	entry := CachedResponse{Response: value, Timestamp: now}
	if ttl > 0 {
		entry.ExpiresAt = now.Add(ttl)
	}
	c.entries.Store(key, entry)
	return nil
}

func (c *MemoryCache) Close() error {
	return nil
}
