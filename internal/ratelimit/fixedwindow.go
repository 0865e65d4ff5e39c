package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// FixedWindow wraps a ulule limiter with a rate fixed at construction time.
// The per-call window and max arguments are ignored; the constructor's rate
// wins. Suited for endpoints with a single static policy, like login.
type FixedWindow struct {
	limiter *limiter.Limiter
}

// NewFixedWindow builds a Redis-backed limiter allowing max events per window.
func NewFixedWindow(client *redis.Client, prefix string, window time.Duration, max int) (FixedWindow, error) {
	store, err := limiterredis.NewStoreWithOptions(client, limiter.StoreOptions{
		Prefix: prefix,
	})
	if err != nil {
		return FixedWindow{}, err
	}
	rate := limiter.Rate{Period: window, Limit: int64(max)}
	return FixedWindow{limiter: limiter.New(store, rate)}, nil
}

// Allow consumes one event for the key.
func (f FixedWindow) Allow(ctx context.Context, key string, _ time.Duration, _ int) (bool, int, time.Time, error) {
	lctx, err := f.limiter.Get(ctx, key)
	if err != nil {
		return false, 0, time.Now(), err
	}
	return !lctx.Reached, int(lctx.Remaining), time.Unix(lctx.Reset, 0), nil
}
