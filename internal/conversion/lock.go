package conversion

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// ErrLockNotObtained is returned when another instance keeps converting the
// same source for longer than the wait budget.
var ErrLockNotObtained = errors.New("conversion lock not obtained")

// Locker serialises conversions of one source across instances.
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// RedisLocker implements Locker with redislock.
type RedisLocker struct {
	client  *redislock.Client
	backoff time.Duration
	retries int
}

// NewRedisLocker waits up to roughly retries*backoff for a busy lock.
func NewRedisLocker(rdb *redis.Client, backoff time.Duration, retries int) *RedisLocker {
	return &RedisLocker{client: redislock.New(rdb), backoff: backoff, retries: retries}
}

func (l *RedisLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	lock, err := l.client.Obtain(ctx, key, ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(l.backoff), l.retries),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrLockNotObtained
	}
	if err != nil {
		return nil, err
	}
	return func() {
		_ = lock.Release(context.WithoutCancel(ctx))
	}, nil
}

// LocalLocker only relies on the in-process singleflight. Used when Redis is
// not configured.
type LocalLocker struct{}

func (LocalLocker) Obtain(context.Context, string, time.Duration) (func(), error) {
	return func() {}, nil
}
