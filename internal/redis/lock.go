package redisclient

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/hackgods/frontdesk-scheduling/internal/scheduling"
	"github.com/hackgods/frontdesk-scheduling/pkg/logging"
)

type LockOptions struct {
	TTL        time.Duration
	Retries    int
	RetryDelay time.Duration
}

type redisKeyLocker struct {
	client *redis.Client
	opts   LockOptions
	logger *logging.Logger
}

// NewRedisKeyLocker creates a locker that holds one Redis key per lock name.
// A contended lock is retried opts.Retries times before giving up with
// scheduling.ErrLockNotAcquired.
func NewRedisKeyLocker(client *redis.Client, opts LockOptions, logger *logging.Logger) scheduling.Locker {
	if logger == nil {
		logger = logging.Default()
	}
	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Second
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 50 * time.Millisecond
	}
	return &redisKeyLocker{client: client, opts: opts, logger: logger}
}

func (l *redisKeyLocker) WithLock(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	key := "lock:" + name
	token := uuid.NewString()

	if err := l.acquire(ctx, key, token); err != nil {
		return err
	}

	defer func() {
		// release even if ctx was cancelled by fn's deadline
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		if err := l.release(releaseCtx, key, token); err != nil {
			// the key still expires after opts.TTL
			l.logger.Warn("lock release failed", "key", key, "error", err)
		}
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.opts.TTL)
	defer cancel()

	return fn(ctxWithTimeout)
}

func (l *redisKeyLocker) acquire(ctx context.Context, key, token string) error {
	for attempt := 0; ; attempt++ {
		ok, err := l.client.SetNX(ctx, key, token, l.opts.TTL).Result()
		if err != nil {
			return &scheduling.LockError{Err: err}
		}
		if ok {
			return nil
		}
		if attempt >= l.opts.Retries {
			return scheduling.ErrLockNotAcquired
		}

		timer := time.NewTimer(l.opts.RetryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisKeyLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}
