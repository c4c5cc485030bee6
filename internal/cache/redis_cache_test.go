package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type cachedAttempt struct {
	ID        string   `json:"id"`
	Questions []string `json:"questions"`
}

func newTestCache(t *testing.T) (CacheService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCache(client, zap.NewNop()), mr
}

func TestRedisCache_SetGet(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, AttemptKey("a1"), cachedAttempt{ID: "a1", Questions: []string{"q1"}}, time.Minute))

	var got cachedAttempt
	require.NoError(t, c.Get(ctx, AttemptKey("a1"), &got))
	assert.Equal(t, "a1", got.ID)
	assert.Equal(t, []string{"q1"}, got.Questions)

	mr.FastForward(2 * time.Minute)
	assert.ErrorIs(t, c.Get(ctx, AttemptKey("a1"), &got), ErrCacheMiss)
}

func TestRedisCache_CorruptEntryIsAMiss(t *testing.T) {
	c, mr := newTestCache(t)
	require.NoError(t, mr.Set(ProgressKey("a1"), "{not json"))

	var got map[string]any
	assert.ErrorIs(t, c.Get(context.Background(), ProgressKey("a1"), &got), ErrCacheMiss)
	assert.False(t, mr.Exists(ProgressKey("a1")))
}

func TestRedisCache_DeletePattern(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	for _, id := range []string{"a1", "a2", "a3"} {
		require.NoError(t, c.Set(ctx, ProgressKey(id), map[string]int{"n": 1}, 0))
	}
	require.NoError(t, c.Set(ctx, AttemptKey("a1"), cachedAttempt{ID: "a1"}, 0))

	require.NoError(t, c.DeletePattern(ctx, "progress:*"))
	assert.False(t, mr.Exists(ProgressKey("a2")))
	assert.True(t, mr.Exists(AttemptKey("a1")))

	require.NoError(t, c.Delete(ctx, AttemptKey("a1")))
	assert.False(t, mr.Exists(AttemptKey("a1")))
}
