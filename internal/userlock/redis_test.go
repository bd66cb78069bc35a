package userlock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMiniredis(t *testing.T, ttl time.Duration) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	l := NewRedis(client, ttl, zerolog.Nop())
	l.poll = 5 * time.Millisecond
	return l, mr
}

func TestRedis_LockExcludesSecondHolder(t *testing.T) {
	l, mr := setupMiniredis(t, time.Minute)

	unlock, err := l.Lock(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("lock:user:u1"))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "u1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	assert.False(t, mr.Exists("lock:user:u1"))

	unlock2, err := l.Lock(context.Background(), "u1")
	require.NoError(t, err)
	unlock2()
}

func TestRedis_WaiterAcquiresAfterRelease(t *testing.T) {
	l, _ := setupMiniredis(t, time.Minute)

	unlock, err := l.Lock(context.Background(), "u1")
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		u, err := l.Lock(context.Background(), "u1")
		if err == nil {
			u()
		}
		close(acquired)
	}()

	time.Sleep(20 * time.Millisecond)
	unlock()

	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("waiter never acquired the lock")
	}
}

func TestRedis_ExpiredLeaseIsNotReleasedByOldHolder(t *testing.T) {
	l, mr := setupMiniredis(t, time.Second)

	stale, err := l.Lock(context.Background(), "u1")
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	fresh, err := l.Lock(context.Background(), "u1")
	require.NoError(t, err)

	stale()
	assert.True(t, mr.Exists("lock:user:u1"), "stale holder must not delete the new lease")

	fresh()
	assert.False(t, mr.Exists("lock:user:u1"))
}
