package identity

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// LockoutPolicy tracks failed sign-in attempts per user. Counters live
// outside the process so concurrent logins against the same account see a
// consistent attempt count.
type LockoutPolicy interface {
	IsLocked(ctx context.Context, userID string) (bool, error)
	RecordFailure(ctx context.Context, userID string) error
	Reset(ctx context.Context, userID string) error
}

const lockoutKeyPrefix = "security:lockout:"

type redisLockout struct {
	client      *redis.Client
	maxAttempts int
	window      time.Duration
}

// NewRedisLockout returns a redis-backed lockout policy. A user is locked
// once maxAttempts failures accumulate inside the window; the counter
// expires with the window and resets on successful sign-in.
func NewRedisLockout(client *redis.Client, maxAttempts int, window time.Duration) LockoutPolicy {
	return &redisLockout{client: client, maxAttempts: maxAttempts, window: window}
}

func (l *redisLockout) IsLocked(ctx context.Context, userID string) (bool, error) {
	count, err := l.client.Get(ctx, lockoutKeyPrefix+userID).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	return count >= l.maxAttempts, nil
}

func (l *redisLockout) RecordFailure(ctx context.Context, userID string) error {
	key := lockoutKeyPrefix + userID
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return err
	}
	if count == 1 {
		return l.client.Expire(ctx, key, l.window).Err()
	}
	return nil
}

func (l *redisLockout) Reset(ctx context.Context, userID string) error {
	return l.client.Del(ctx, lockoutKeyPrefix+userID).Err()
}
