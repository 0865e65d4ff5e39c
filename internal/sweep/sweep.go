package sweep

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/bazar-commerce/backend-bazar/internal/obs"
)

// TaskExpireStaleOrders marks unpaid orders past the intent window as expired.
const TaskExpireStaleOrders = "orders:expire_stale"

// OrderExpirer is the slice of the order store the sweep needs.
type OrderExpirer interface {
	MarkExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Sweeper stamps abandoned unpaid orders as expired audit records. The Redis
// TTL already killed the matching intents; this pass only tidies the durable
// side.
type Sweeper struct {
	Orders OrderExpirer
	After  time.Duration
	Now    func() time.Time
}

// NewTask builds the asynq task for one sweep run.
func NewTask() *asynq.Task {
	return asynq.NewTask(TaskExpireStaleOrders, nil)
}

// Handle implements the asynq handler for TaskExpireStaleOrders.
func (s *Sweeper) Handle(ctx context.Context, _ *asynq.Task) error {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	cutoff := now().Add(-s.After)
	n, err := s.Orders.MarkExpiredBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	if n > 0 {
		if obs.OrdersExpiredTotal != nil {
			obs.OrdersExpiredTotal.Add(float64(n))
		}
		zerolog.Ctx(ctx).Info().Int64("expired", n).Time("cutoff", cutoff).Msg("stale unpaid orders expired")
	}
	return nil
}
