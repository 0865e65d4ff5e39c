package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bazar-commerce/backend-bazar/internal/pricing"
)

// ErrIntentExists is returned when an intent with the same authority was
// already written.
var ErrIntentExists = errors.New("checkout: intent already exists")

// Intent is the priced snapshot of a checkout, written before the client is
// redirected to the gateway. It expires with its Redis key; an expired intent
// is indistinguishable from one that never existed.
type Intent struct {
	Authority        string         `json:"authority"`
	UserID           string         `json:"userId"`
	Products         []pricing.Line `json:"products"`
	SubmissionMethod string         `json:"submissionMethod"`
	TotalPrice       int64          `json:"totalPrice"`
	TotalWeight      int64          `json:"totalWeight"`
	DiscountTotal    int64          `json:"discountTotal"`
	ShippingCost     int64          `json:"shippingCost"`
	CreatedAt        time.Time      `json:"createdAt"`
	ExpiresAt        time.Time      `json:"expiresAt"`
}

// IntentStore persists checkout intents for the window between gateway create
// and verify.
type IntentStore interface {
	Put(ctx context.Context, intent Intent, ttl time.Duration) error
	Get(ctx context.Context, authority string) (*Intent, error)
	Delete(ctx context.Context, authority string) error
}

// RedisIntentStore keeps intents in Redis keyed by payment authority with a
// per-key TTL. Expiry is passive: a Get after the TTL simply misses.
type RedisIntentStore struct {
	R *redis.Client
}

func intentKey(authority string) string {
	return "checkout:intent:" + authority
}

func (s RedisIntentStore) Put(ctx context.Context, intent Intent, ttl time.Duration) error {
	payload, err := json.Marshal(intent)
	if err != nil {
		return err
	}
	ok, err := s.R.SetNX(ctx, intentKey(intent.Authority), payload, ttl).Result()
	if err != nil {
		return fmt.Errorf("checkout: writing intent: %w", err)
	}
	if !ok {
		return ErrIntentExists
	}
	return nil
}

// Get returns nil without error when the intent is absent or expired.
func (s RedisIntentStore) Get(ctx context.Context, authority string) (*Intent, error) {
	raw, err := s.R.Get(ctx, intentKey(authority)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("checkout: reading intent: %w", err)
	}
	var intent Intent
	if err := json.Unmarshal(raw, &intent); err != nil {
		return nil, fmt.Errorf("checkout: decoding intent: %w", err)
	}
	return &intent, nil
}

func (s RedisIntentStore) Delete(ctx context.Context, authority string) error {
	return s.R.Del(ctx, intentKey(authority)).Err()
}
