package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired signals the lock is held by another instance. Periodic
// tasks treat this as "someone else is already on it" and skip the run.
var ErrNotAcquired = errors.New("lock: already held")

// Locker provides a Redis-backed distributed lock for worker tasks that
// must not run concurrently across replicas.
type Locker struct {
	R *redis.Client
}

// WithLock runs fn while holding the lock for key. Acquisition is a single
// SETNX attempt: when the key is taken elsewhere, fn is skipped and
// ErrNotAcquired is returned. The lock is released on return, but only if
// this instance still owns it (the TTL may have handed it to someone else).
func (l Locker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	if l.R == nil {
		return errors.New("lock: redis client not configured")
	}
	if fn == nil {
		return errors.New("lock: callback not provided")
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	token := uuid.NewString()
	ok, err := l.R.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotAcquired
	}
	defer l.release(context.WithoutCancel(ctx), key, token)
	return fn(ctx)
}

// release deletes the key only when it still carries our token.
func (l Locker) release(ctx context.Context, key, token string) {
	const script = `if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
else
  return 0
end`
	_ = l.R.Eval(ctx, script, []string{key}, token).Err()
}
