package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisLimiter is a sliding-window limiter shared across gateway
// instances. Each key holds a sorted set of request timestamps scored by
// unix nanoseconds.
type RedisLimiter struct {
	client redis.UniversalClient
	cfg    Config
	scope  string
	now    func() time.Time
}

// NewRedis creates a Redis-backed limiter. scope separates limiters
// sharing one Redis (e.g. "audio" vs "text").
func NewRedis(client redis.UniversalClient, cfg Config, scope string) (*RedisLimiter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if scope == "" {
		return nil, fmt.Errorf("scope is required")
	}
	return &RedisLimiter{client: client, cfg: cfg, scope: scope, now: time.Now}, nil
}

// Allow prunes entries older than the window, checks the ceiling, and
// records the request when admitted.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := "ratelimit:" + l.scope + ":" + key
	now := l.now()
	windowStart := now.Add(-l.cfg.Window).UnixNano()

	var card *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, redisKey, "0", strconv.FormatInt(windowStart, 10))
		card = pipe.ZCard(ctx, redisKey)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}

	if card.Val() >= int64(l.cfg.Ceiling) {
		return false, nil
	}

	_, err = l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, redisKey, redis.Z{
			Score:  float64(now.UnixNano()),
			Member: uuid.NewString(),
		})
		pipe.Expire(ctx, redisKey, l.cfg.Window)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("rate limit record failed: %w", err)
	}
	return true, nil
}

// Close closes the underlying client.
func (l *RedisLimiter) Close() error {
	return l.client.Close()
}
