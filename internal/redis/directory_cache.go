package redisclient

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hackgods/frontdesk-scheduling/internal/observability/metrics"
	"github.com/hackgods/frontdesk-scheduling/internal/scheduling"
	"github.com/hackgods/frontdesk-scheduling/pkg/logging"
)

const directoryKeyPrefix = "directory:"

var _ scheduling.Directory = (*DirectoryCache)(nil)

// DirectoryCache is a read-through cache in front of the reference-data
// store. Redis failures fall back to the store; misses are not cached.
type DirectoryCache struct {
	inner   scheduling.Directory
	client  *redis.Client
	ttl     time.Duration
	metrics *metrics.SchedulingMetrics
	logger  *logging.Logger
}

func NewDirectoryCache(inner scheduling.Directory, client *redis.Client, ttl time.Duration, m *metrics.SchedulingMetrics, logger *logging.Logger) *DirectoryCache {
	if logger == nil {
		logger = logging.Default()
	}
	return &DirectoryCache{
		inner:   inner,
		client:  client,
		ttl:     ttl,
		metrics: m,
		logger:  logger,
	}
}

func (c *DirectoryCache) FindDoctorByName(ctx context.Context, name string) (*scheduling.Doctor, error) {
	return cached(ctx, c, "doctor", "doctor:"+strings.ToLower(name), func() (*scheduling.Doctor, error) {
		return c.inner.FindDoctorByName(ctx, name)
	})
}

func (c *DirectoryCache) FindDoctorsByDepartment(ctx context.Context, department string) ([]scheduling.Doctor, error) {
	return cached(ctx, c, "department_doctors", "department-doctors:"+strings.ToLower(department), func() ([]scheduling.Doctor, error) {
		return c.inner.FindDoctorsByDepartment(ctx, department)
	})
}

func (c *DirectoryCache) FindDepartmentByName(ctx context.Context, name string) (*scheduling.Department, error) {
	return cached(ctx, c, "department", "department:"+strings.ToLower(name), func() (*scheduling.Department, error) {
		return c.inner.FindDepartmentByName(ctx, name)
	})
}

func (c *DirectoryCache) ListDepartments(ctx context.Context) ([]scheduling.Department, error) {
	return cached(ctx, c, "departments", "departments", func() ([]scheduling.Department, error) {
		return c.inner.ListDepartments(ctx)
	})
}

// Invalidate drops every cached directory entry, e.g. after reseeding.
func (c *DirectoryCache) Invalidate(ctx context.Context) (int, error) {
	var removed int
	iter := c.client.Scan(ctx, 0, directoryKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, iter.Err()
}

func cached[T any](ctx context.Context, c *DirectoryCache, kind, key string, load func() (T, error)) (T, error) {
	var zero T
	if c.ttl <= 0 {
		return load()
	}
	key = directoryKeyPrefix + key

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var v T
		jsonErr := json.Unmarshal(raw, &v)
		if jsonErr == nil {
			c.metrics.ObserveCache(kind, "hit")
			return v, nil
		}
		c.logger.Warn("discarding undecodable directory cache entry", "key", key, "error", jsonErr)
	case errors.Is(err, redis.Nil):
	default:
		c.metrics.ObserveCache(kind, "error")
		c.logger.Warn("directory cache read failed", "key", key, "error", err)
	}
	c.metrics.ObserveCache(kind, "miss")

	v, err := load()
	if err != nil {
		return zero, err
	}

	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn("directory cache encode failed", "key", key, "error", err)
		return v, nil
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("directory cache write failed", "key", key, "error", err)
	}
	return v, nil
}
