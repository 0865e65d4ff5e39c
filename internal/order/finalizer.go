package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/bazar-commerce/backend-bazar/internal/basket"
	"github.com/bazar-commerce/backend-bazar/internal/checkout"
	"github.com/bazar-commerce/backend-bazar/internal/obs"
	"github.com/bazar-commerce/backend-bazar/internal/payment"
)

// ErrAuthorityUnknown is returned when verify targets an authority with no
// live intent. An expired intent is indistinguishable from one that never
// existed.
var ErrAuthorityUnknown = errors.New("order: authority expired or unknown")

// Store is the persistence surface the finalizer needs.
type Store interface {
	GetByAuthority(ctx context.Context, authority string) (Order, error)
	EnsureUnpaid(ctx context.Context, intent checkout.Intent) error
	Confirm(ctx context.Context, authority, refID string) (ConfirmResult, error)
	MarkFailed(ctx context.Context, authority string) error
}

// Outcome is the result of a verify call.
type Outcome struct {
	Success         bool        `json:"success"`
	Status          string      `json:"status"`
	RefID           string      `json:"refId,omitempty"`
	AlreadyVerified bool        `json:"alreadyVerified,omitempty"`
	GatewayCode     int         `json:"gatewayCode,omitempty"`
	Shortfalls      []Shortfall `json:"shortfalls,omitempty"`
}

// Finalizer converts a live checkout intent into a confirmed order once the
// gateway reports settlement. The payment authority is the idempotency key:
// repeated verifies of a confirmed order are no-op successes.
type Finalizer struct {
	Orders   Store
	Intents  checkout.IntentStore
	Provider payment.Provider
	Basket   *basket.Service
}

// Verify drives the full finalization flow for one authority. The gateway is
// called with the amount stored on the intent, never a recomputed one.
func (f *Finalizer) Verify(ctx context.Context, authority string) (Outcome, error) {
	if f == nil || f.Orders == nil || f.Intents == nil || f.Provider == nil {
		return Outcome{}, errors.New("order finalizer not configured")
	}
	if authority == "" {
		return Outcome{}, ErrAuthorityUnknown
	}

	existing, err := f.Orders.GetByAuthority(ctx, authority)
	haveOrder := err == nil
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Outcome{}, err
	}
	if haveOrder && existing.Status == StatusConfirmed {
		return Outcome{
			Success:         true,
			Status:          StatusConfirmed,
			RefID:           existing.GatewayRefID,
			AlreadyVerified: true,
		}, nil
	}

	intent, err := f.Intents.Get(ctx, authority)
	if err != nil {
		return Outcome{}, err
	}
	if intent == nil {
		return Outcome{}, ErrAuthorityUnknown
	}
	if haveOrder && (existing.Status == StatusFailed || existing.Status == StatusExpired) {
		return Outcome{Success: false, Status: existing.Status}, nil
	}
	if !haveOrder {
		// the dual-write lost its durable half; rebuild it from the intent
		if err := f.Orders.EnsureUnpaid(ctx, *intent); err != nil {
			return Outcome{}, err
		}
	}

	result, err := f.Provider.VerifyPayment(ctx, payment.VerifyRequest{
		Authority: authority,
		Amount:    intent.TotalPrice,
	})
	if err != nil {
		return Outcome{}, err
	}

	if !result.Verified {
		if err := f.Orders.MarkFailed(ctx, authority); err != nil {
			return Outcome{}, fmt.Errorf("order: marking failed: %w", err)
		}
		zerolog.Ctx(ctx).Info().
			Str("authority", authority).
			Int("gateway_code", result.Code).
			Msg("payment verify rejected")
		if obs.PaymentVerifyTotal != nil {
			obs.PaymentVerifyTotal.WithLabelValues("rejected").Inc()
		}
		return Outcome{Success: false, Status: StatusFailed, GatewayCode: result.Code}, nil
	}

	confirmed, err := f.Orders.Confirm(ctx, authority, result.RefID)
	if err != nil {
		if errors.Is(err, ErrTerminalStatus) {
			return Outcome{Success: false, Status: confirmed.Order.Status}, nil
		}
		return Outcome{}, err
	}

	if obs.PaymentVerifyTotal != nil {
		obs.PaymentVerifyTotal.WithLabelValues("verified").Inc()
	}
	if !confirmed.Already {
		if obs.OrdersConfirmedTotal != nil {
			obs.OrdersConfirmedTotal.Inc()
		}
		if obs.StockShortfallTotal != nil {
			obs.StockShortfallTotal.Add(float64(len(confirmed.Shortfalls)))
		}
		if f.Basket != nil {
			if err := f.Basket.Clear(ctx, confirmed.Order.UserID); err != nil {
				zerolog.Ctx(ctx).Warn().Err(err).Str("authority", authority).Msg("basket clear after confirm failed")
			}
		}
		if err := f.Intents.Delete(ctx, authority); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("authority", authority).Msg("intent delete after confirm failed")
		}
		for _, short := range confirmed.Shortfalls {
			zerolog.Ctx(ctx).Warn().
				Str("authority", authority).
				Str("product_id", short.ProductID).
				Int("requested", short.Requested).
				Int("available", short.Available).
				Msg("stock shortfall at confirmation")
		}
	}

	return Outcome{
		Success:         true,
		Status:          StatusConfirmed,
		RefID:           result.RefID,
		AlreadyVerified: confirmed.Already || result.AlreadyVerified,
		Shortfalls:      confirmed.Shortfalls,
	}, nil
}
