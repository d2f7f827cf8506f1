package store

import (
	"sync"

	"RagChat/internal/session"
)

// MemoryBackend keeps conversations in process memory
type MemoryBackend struct {
	mu    sync.RWMutex
	convs map[string]*session.Conversation
	order []string
}

// NewMemoryBackend creates an empty in-memory backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		convs: make(map[string]*session.Conversation),
	}
}

var _ Backend = (*MemoryBackend)(nil)

func (b *MemoryBackend) Insert(conv *session.Conversation) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.convs[conv.ID]; ok {
		b.removeLocked(conv.ID)
	}
	b.convs[conv.ID] = conv.Clone()
	b.order = append([]string{conv.ID}, b.order...)
	return nil
}

func (b *MemoryBackend) Get(id string) (*session.Conversation, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	conv, ok := b.convs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return conv.Clone(), nil
}

func (b *MemoryBackend) List() ([]*session.Conversation, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*session.Conversation, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.convs[id].Clone())
	}
	return out, nil
}

func (b *MemoryBackend) Delete(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.convs[id]; !ok {
		return ErrNotFound
	}
	b.removeLocked(id)
	return nil
}

func (b *MemoryBackend) removeLocked(id string) {
	delete(b.convs, id)
	for i, oid := range b.order {
		if oid == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

func (b *MemoryBackend) UpdateHeader(conv *session.Conversation) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	stored, ok := b.convs[conv.ID]
	if !ok {
		return ErrNotFound
	}
	stored.Title = conv.Title
	stored.Renamed = conv.Renamed
	stored.LastMessage = conv.LastMessage
	stored.Timestamp = conv.Timestamp
	return nil
}

func (b *MemoryBackend) AppendMessage(id string, msg session.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	stored, ok := b.convs[id]
	if !ok {
		return ErrNotFound
	}
	stored.Messages = append(stored.Messages, msg)
	return nil
}

func (b *MemoryBackend) Close() error {
	return nil
}
