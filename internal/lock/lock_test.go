package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireSurfacesConnectionErrors(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	release, err := NewRedisLocker(client).Acquire(context.Background(), "lock:test", time.Second)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotAcquired)
	assert.Nil(t, release)
}

func newTestLocker(t *testing.T) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisLocker(client), mr
}

func TestAcquireIsExclusive(t *testing.T) {
	locker, mr := newTestLocker(t)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "lock:job", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, release)
	assert.True(t, mr.Exists("lock:job"))

	second, err := locker.Acquire(ctx, "lock:job", time.Minute)
	assert.ErrorIs(t, err, ErrNotAcquired)
	assert.Nil(t, second)

	release()
	assert.False(t, mr.Exists("lock:job"))

	again, err := locker.Acquire(ctx, "lock:job", time.Minute)
	require.NoError(t, err)
	again()
}

func TestStaleReleaseKeepsNewHoldersKey(t *testing.T) {
	locker, mr := newTestLocker(t)
	ctx := context.Background()

	stale, err := locker.Acquire(ctx, "lock:job", time.Second)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)
	require.False(t, mr.Exists("lock:job"), "the first holder's ttl ran out")

	current, err := locker.Acquire(ctx, "lock:job", time.Minute)
	require.NoError(t, err)
	token, err := mr.Get("lock:job")
	require.NoError(t, err)

	stale()
	require.True(t, mr.Exists("lock:job"))
	got, err := mr.Get("lock:job")
	require.NoError(t, err)
	assert.Equal(t, token, got)

	current()
	assert.False(t, mr.Exists("lock:job"))
}
