//go:build unit

package redis

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	c, err := New(context.Background(), Config{Address: mr.Addr(), KeyPrefix: "test"})
	require.NoError(t, err)

	t.Cleanup(func() { _ = c.Close() })

	return c, mr
}

func TestNew_RequiresAddress(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{Address: " , "})
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNew_PingFailure(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := New(context.Background(), Config{Address: addr, DialTimeout: 100 * time.Millisecond})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping")
}

func TestClient_GetClientAndKey(t *testing.T) {
	t.Parallel()

	c, mr := newTestClient(t)
	ctx := context.Background()

	rdb, err := c.GetClient(ctx)
	require.NoError(t, err)
	require.NoError(t, rdb.Set(ctx, c.Key("a", "b"), "v", 0).Err())

	got, err := mr.Get("test:a:b")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
	assert.True(t, c.IsConnected(ctx))

	require.NoError(t, c.Close())
	assert.False(t, c.IsConnected(ctx))
}

func TestClient_NilReceiver(t *testing.T) {
	t.Parallel()

	var c *Client

	_, err := c.GetClient(context.Background())
	require.ErrorIs(t, err, ErrNilClient)
	require.ErrorIs(t, c.Close(), ErrNilClient)
	assert.Equal(t, "stablecoin:x", c.Key("x"))
}

func TestLockManager_WithLock(t *testing.T) {
	t.Parallel()

	c, mr := newTestClient(t)

	lm, err := NewRedisLockManager(c)
	require.NoError(t, err)

	var ran atomic.Bool

	err = lm.WithLock(context.Background(), "job:1", func(context.Context) error {
		ran.Store(true)
		assert.True(t, mr.Exists("job:1"))

		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran.Load())
	assert.False(t, mr.Exists("job:1"))
}

func TestLockManager_WithLockPropagatesError(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t)
	lm, err := NewRedisLockManager(c)
	require.NoError(t, err)

	boom := errors.New("boom")
	err = lm.WithLock(context.Background(), "job:2", func(context.Context) error { return boom })
	require.ErrorIs(t, err, boom)
}

func TestLockManager_Validation(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t)
	lm, err := NewRedisLockManager(c)
	require.NoError(t, err)

	tests := []struct {
		name string
		call func() error
		want error
	}{
		{"empty key", func() error { return lm.WithLock(context.Background(), " ", func(context.Context) error { return nil }) }, ErrEmptyLockKey},
		{"nil fn", func() error { return lm.WithLock(context.Background(), "k", nil) }, ErrNilLockFn},
		{"try empty key", func() error { _, _, err := lm.TryLock(context.Background(), ""); return err }, ErrEmptyLockKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.ErrorIs(t, tt.call(), tt.want)
		})
	}

	_, err = NewRedisLockManager(nil)
	require.ErrorIs(t, err, ErrNilClient)
}

func TestLockManager_TryLockContention(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t)
	lm, err := NewRedisLockManager(c)
	require.NoError(t, err)

	ctx := context.Background()

	first, ok, err := lm.TryLock(ctx, "job:3")
	require.NoError(t, err)
	require.True(t, ok)

	second, ok, err := lm.TryLock(ctx, "job:3")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, second)

	require.NoError(t, first.Unlock(ctx))

	third, ok, err := lm.TryLock(ctx, "job:3")
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, third.Unlock(ctx))
}

func TestLockHandle_UnlockAfterExpiry(t *testing.T) {
	t.Parallel()

	c, mr := newTestClient(t)
	lm, err := NewRedisLockManager(c, LockOptions{Expiry: time.Second, Tries: 1, RetryDelay: time.Millisecond, DriftFactor: 0.01})
	require.NoError(t, err)

	h, ok, err := lm.TryLock(context.Background(), "job:4")
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	require.Error(t, h.Unlock(context.Background()))
}
