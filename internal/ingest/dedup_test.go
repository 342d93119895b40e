package ingest

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

func TestDedupWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	d := NewDedup(rdb, 0, 5*time.Minute, zap.NewNop())
	ctx := context.Background()

	assert.False(t, d.Seen(ctx, "msg-1"))
	assert.True(t, d.Seen(ctx, "msg-1"))
	assert.False(t, d.Seen(ctx, "msg-2"))

	// After the TTL window the id is forgotten.
	mr.FastForward(6 * time.Minute)
	assert.False(t, d.Seen(ctx, "msg-1"))
}

func TestDedupWithoutRedis(t *testing.T) {
	d := NewDedup(nil, 8, 5*time.Minute, zap.NewNop())
	ctx := context.Background()

	assert.False(t, d.Seen(ctx, "msg-1"))
	assert.True(t, d.Seen(ctx, "msg-1"))
	assert.False(t, d.Seen(ctx, "msg-2"))
}

func TestDedupFailsOpenOnRedisError(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	d := NewDedup(rdb, 8, 5*time.Minute, zap.NewNop())
	ctx := context.Background()
	require.False(t, d.Seen(ctx, "msg-1"))

	// Redis goes away; the guard falls back to the in-process cache and
	// keeps answering rather than blocking the event.
	mr.Close()
	assert.False(t, d.Seen(ctx, "msg-3"))
	assert.True(t, d.Seen(ctx, "msg-3"))
}
