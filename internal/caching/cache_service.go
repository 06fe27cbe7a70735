package caching

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimiter counts attempts per key inside a fixed window.
type RateLimiter interface {
	// IsRateLimited records one attempt for key and reports whether the
	// limit for the current window has been exceeded.
	IsRateLimited(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Reset(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

type counterStore interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

type redisRateLimiter struct {
	client counterStore
}

// NewRedisClient accepts either host:port or a redis:// URL.
func NewRedisClient(addr, password string, db int) (*redis.Client, error) {
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		opts, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		if password != "" {
			opts.Password = password
		}
		return redis.NewClient(opts), nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	}), nil
}

func NewRedisRateLimiter(client *redis.Client) RateLimiter {
	return &redisRateLimiter{client: client}
}

func rateLimitKey(key string) string {
	return "clubhub:ratelimit:" + key
}

func (r *redisRateLimiter) IsRateLimited(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	cacheKey := rateLimitKey(key)
	count, err := r.client.Incr(ctx, cacheKey).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}

	// Set expiry on first request
	if count == 1 {
		if err := r.client.Expire(ctx, cacheKey, window).Err(); err != nil {
			zap.L().Warn("failed to set rate limit window", zap.Error(err))
		}
	}

	return count > int64(limit), nil
}

func (r *redisRateLimiter) Reset(ctx context.Context, key string) error {
	return r.client.Del(ctx, rateLimitKey(key)).Err()
}

func (r *redisRateLimiter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// NoopRateLimiter never limits. It is used when Redis is not configured.
type NoopRateLimiter struct{}

func (NoopRateLimiter) IsRateLimited(context.Context, string, int, time.Duration) (bool, error) {
	return false, nil
}

func (NoopRateLimiter) Reset(context.Context, string) error { return nil }

func (NoopRateLimiter) Ping(context.Context) error { return nil }
