package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mediciweb/consentd/internal/validation"
)

const keyPrefix = "consentd:ratelimit:"

// RedisLimiter is a fixed-window counter on Redis: one INCR plus an EXPIRE
// that only arms on the key's first hit, pipelined into a single round trip.
// Two instances racing on the same key over-count by at most one request.
type RedisLimiter struct {
	client *redis.Client
	max    int64
	window time.Duration
}

func NewRedisLimiter(client *redis.Client, max int, window time.Duration) *RedisLimiter {
	validation.AssertNotNil(client, "client")
	if max <= 0 {
		panic("ratelimit: max must be positive")
	}
	if window <= 0 {
		panic("ratelimit: window must be positive")
	}

	return &RedisLimiter{
		client: client,
		max:    int64(max),
		window: window,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := keyPrefix + key

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.ExpireNX(ctx, redisKey, l.window)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("ratelimit: redis pipeline: %w", err)
	}

	return incr.Val() <= l.max, nil
}
