package redisclient

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/frontdesk-scheduling/internal/scheduling"
	"github.com/hackgods/frontdesk-scheduling/pkg/logging"
)

func newTestLocker(t *testing.T, retries int) (scheduling.Locker, *miniredis.Miniredis) {
	t.Helper()
	return newLoggedLocker(t, retries, logging.New("error"))
}

func newLoggedLocker(t *testing.T, retries int, logger *logging.Logger) (scheduling.Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	opts := LockOptions{TTL: time.Second, Retries: retries, RetryDelay: time.Millisecond}
	return NewRedisKeyLocker(client, opts, logger), mr
}

func TestWithLockRunsAndReleases(t *testing.T) {
	locker, mr := newTestLocker(t, 0)

	var held bool
	err := locker.WithLock(context.Background(), "patient:phone:+15550001", func(ctx context.Context) error {
		held = mr.Exists("lock:patient:phone:+15550001")
		return nil
	})

	require.NoError(t, err)
	assert.True(t, held)
	assert.False(t, mr.Exists("lock:patient:phone:+15550001"))
}

func TestWithLockPropagatesFnError(t *testing.T) {
	locker, mr := newTestLocker(t, 0)
	boom := errors.New("boom")

	err := locker.WithLock(context.Background(), "k", func(ctx context.Context) error { return boom })

	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("lock:k"))
}

func TestWithLockContendedGivesUp(t *testing.T) {
	locker, mr := newTestLocker(t, 2)
	require.NoError(t, mr.Set("lock:k", "someone-else"))

	called := false
	err := locker.WithLock(context.Background(), "k", func(ctx context.Context) error {
		called = true
		return nil
	})

	assert.ErrorIs(t, err, scheduling.ErrLockNotAcquired)
	assert.False(t, called)
	got, _ := mr.Get("lock:k")
	assert.Equal(t, "someone-else", got)
}

func TestWithLockDoesNotReleaseForeignToken(t *testing.T) {
	locker, mr := newTestLocker(t, 0)

	err := locker.WithLock(context.Background(), "k", func(ctx context.Context) error {
		// lock expired and was taken over by another holder
		return mr.Set("lock:k", "other-holder")
	})

	require.NoError(t, err)
	got, _ := mr.Get("lock:k")
	assert.Equal(t, "other-holder", got)
}

func TestWithLockBackendDown(t *testing.T) {
	locker, mr := newTestLocker(t, 0)
	mr.Close()

	err := locker.WithLock(context.Background(), "k", func(ctx context.Context) error { return nil })

	var lockErr *scheduling.LockError
	assert.ErrorAs(t, err, &lockErr)
}

func TestWithLockLogsFailedRelease(t *testing.T) {
	var buf bytes.Buffer
	locker, mr := newLoggedLocker(t, 0, logging.NewWithWriter("warn", &buf))

	err := locker.WithLock(context.Background(), "k", func(ctx context.Context) error {
		mr.Close()
		return nil
	})

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "lock release failed")
	assert.Contains(t, buf.String(), `"key":"lock:k"`)
}
