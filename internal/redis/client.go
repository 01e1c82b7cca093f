package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ClientOptions addresses one Redis server. Zero sizes and timeouts use
// the defaults below.
type ClientOptions struct {
	Addr        string
	Username    string
	Password    string
	PoolSize    int
	IOTimeout   time.Duration
	PingTimeout time.Duration
}

// NewClient connects to Redis and pings it once.
func NewClient(ctx context.Context, opts ClientOptions) (*redis.Client, error) {
	if opts.PoolSize <= 0 {
		opts.PoolSize = 10
	}
	if opts.IOTimeout <= 0 {
		opts.IOTimeout = 2 * time.Second
	}
	if opts.PingTimeout <= 0 {
		opts.PingTimeout = 5 * time.Second
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Username:     opts.Username,
		Password:     opts.Password,
		ReadTimeout:  opts.IOTimeout,
		WriteTimeout: opts.IOTimeout,
		PoolSize:     opts.PoolSize,
		MinIdleConns: 1,
	})

	pingCtx, cancel := context.WithTimeout(ctx, opts.PingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	return rdb, nil
}
