package rediscache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestRedisCache_GetSet(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(mr.Addr())

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "wallet:booking:b-1", []byte("v"), time.Minute))

	b, ok, err := c.Get(ctx, "wallet:booking:b-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v"), b)

	_, ok, err = c.Get(ctx, "wallet:booking:missing")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisCache_DelAndDelPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(mr.Addr())
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "wallet:booking:b-1", []byte("1"), time.Minute))
	require.NoError(t, c.Set(ctx, "wallet:booking:b-2", []byte("2"), time.Minute))
	require.NoError(t, c.Set(ctx, "other:k", []byte("3"), time.Minute))

	require.NoError(t, c.Del(ctx, "wallet:booking:b-1"))
	_, ok, err := c.Get(ctx, "wallet:booking:b-1")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.DelPrefix(ctx, "wallet:"))
	_, ok, err = c.Get(ctx, "wallet:booking:b-2")
	require.NoError(t, err)
	require.False(t, ok)

	// Чужие ключи не задеты.
	_, ok, err = c.Get(ctx, "other:k")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRateLimiter_Allow(t *testing.T) {
	mr := miniredis.RunT(t)
	rl := NewRateLimiter(mr.Addr())

	ctx := context.Background()
	key := MinuteKey("sync", time.Now())

	ok, n, err := rl.Allow(ctx, key, 2, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(1), n)

	ok, n, _ = rl.Allow(ctx, key, 2, time.Minute)
	require.True(t, ok)
	require.Equal(t, int64(2), n)

	ok, n, _ = rl.Allow(ctx, key, 2, time.Minute)
	require.False(t, ok)
	require.Equal(t, int64(3), n)
}
