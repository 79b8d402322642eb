package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter is a fixed-window attempt counter backed by Redis, for
// deployments where requests for the same identifier land on different
// processes. Semantics are fixed-window (INCR + conditional EXPIRE on first
// hit), not the sliding window of [Limiter].
type RedisLimiter struct {
	redis       redis.UniversalClient
	prefix      string
	maxAttempts int64
	window      time.Duration
}

// NewRedisLimiter creates a Redis-backed limiter. keyPrefix isolates
// independent policies sharing one Redis database.
func NewRedisLimiter(redisClient redis.UniversalClient, keyPrefix string, maxAttempts int, windowDuration time.Duration) *RedisLimiter {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if windowDuration <= 0 {
		windowDuration = 15 * time.Minute
	}
	return &RedisLimiter{
		redis:       redisClient,
		prefix:      keyPrefix,
		maxAttempts: int64(maxAttempts),
		window:      windowDuration,
	}
}

func (l *RedisLimiter) key(identifier string) string {
	return l.prefix + ":" + identifier
}

// Allow increments the identifier's counter and reports whether it is
// within budget.
func (l *RedisLimiter) Allow(ctx context.Context, identifier string) (bool, error) {
	count, err := l.redis.Incr(ctx, l.key(identifier)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, l.key(identifier), l.window).Err(); err != nil {
			return false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
	}

	return count <= l.maxAttempts, nil
}

// Remaining returns the key's TTL when the identifier is over budget,
// zero otherwise.
func (l *RedisLimiter) Remaining(ctx context.Context, identifier string) (time.Duration, error) {
	count, err := l.redis.Get(ctx, l.key(identifier)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if count < l.maxAttempts {
		return 0, nil
	}

	ttl, err := l.redis.TTL(ctx, l.key(identifier)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

// Reset clears the identifier's counter.
func (l *RedisLimiter) Reset(ctx context.Context, identifier string) error {
	if err := l.redis.Del(ctx, l.key(identifier)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}
