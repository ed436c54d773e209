package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisLimiter implements a sliding log on a sorted set per key.
type RedisLimiter struct {
	client *redis.Client
	prefix string
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewRedisLimiter allows limit requests per window per key, sharing state
// through client. prefix namespaces the keys (e.g. "rl:drafts").
func NewRedisLimiter(client *redis.Client, prefix string, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		prefix: prefix,
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Allow trims the window, counts it and records the hit in one pipeline.
// A rejected hit is removed again so it does not extend the lockout.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := l.prefix + ":" + key
	now := l.now()
	member := strconv.FormatInt(now.UnixNano(), 10) + "-" + uuid.NewString()[:8]
	cutoff := now.Add(-l.window).UnixNano()

	var count *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, redisKey, "-inf", strconv.FormatInt(cutoff, 10))
		count = pipe.ZCard(ctx, redisKey)
		pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixNano()), Member: member})
		pipe.PExpire(ctx, redisKey, l.window)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("ratelimit: redis pipeline: %w", err)
	}

	if count.Val() >= int64(l.limit) {
		if err := l.client.ZRem(ctx, redisKey, member).Err(); err != nil {
			return false, fmt.Errorf("ratelimit: redis rollback: %w", err)
		}
		return false, nil
	}
	return true, nil
}
