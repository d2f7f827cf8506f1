package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RagChat/internal/session"
)

func TestGenerateCacheKey(t *testing.T) {
	msgs := []session.Message{
		{Role: session.RoleUser, Content: "hello"},
	}
	same := []session.Message{
		{ID: "other-id", Role: session.RoleUser, Content: "hello"},
	}

	k1 := GenerateCacheKey(session.Scoped{Tenant: "t1", Entity: "e1"}, msgs)
	k2 := GenerateCacheKey(session.Scoped{Tenant: "t1", Entity: "e1"}, same)
	assert.Equal(t, k1, k2)
	assert.Len(t, k1, 64)

	other := GenerateCacheKey(session.Scoped{Tenant: "t2", Entity: "e1"}, msgs)
	assert.NotEqual(t, k1, other)

	bare := GenerateCacheKey(session.Bare{}, msgs)
	assert.NotEqual(t, k1, bare)

	// role/content boundaries are delimited
	a := GenerateCacheKey(nil, []session.Message{{Role: "user", Content: "ab"}})
	b := GenerateCacheKey(nil, []session.Message{{Role: "usera", Content: "b"}})
	assert.NotEqual(t, a, b)

	withError := append([]session.Message{
		{Role: session.RoleAssistant, Kind: session.KindError, Content: "The assistant could not answer: boom"},
	}, msgs...)
	assert.Equal(t, k1, GenerateCacheKey(session.Scoped{Tenant: "t1", Entity: "e1"}, withError))
}

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, c.Set(ctx, "k", "v", 0))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	require.NoError(t, c.Set(ctx, "k", "v", 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestRedisCache(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	ctx := context.Background()

	c, err := NewRedisCache(ctx, url, "ragchat-test:")
	require.NoError(t, err)
	defer c.Close()

	key := session.NewID()
	_, err = c.Get(ctx, key)
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, c.Set(ctx, key, "v", time.Minute))
	got, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestNewRedisCache_RequiresURL(t *testing.T) {
	_, err := NewRedisCache(context.Background(), "", "")
	assert.Error(t, err)

	_, err = NewRedisCache(context.Background(), "not a url", "")
	assert.Error(t, err)
}
