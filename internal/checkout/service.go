package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/bazar-commerce/backend-bazar/internal/auth"
	"github.com/bazar-commerce/backend-bazar/internal/basket"
	"github.com/bazar-commerce/backend-bazar/internal/obs"
	"github.com/bazar-commerce/backend-bazar/internal/payment"
	"github.com/bazar-commerce/backend-bazar/internal/shipping"
)

var (
	// ErrEmptyBasket is returned when checkout is attempted on a basket with
	// no purchasable lines.
	ErrEmptyBasket = errors.New("checkout: basket is empty")
	// ErrUnknownMethod is returned for a submission method other than post or
	// courier.
	ErrUnknownMethod = errors.New("checkout: unknown submission method")
	// ErrCourierNotAvailable is returned when courier delivery is requested
	// outside the supported city.
	ErrCourierNotAvailable = errors.New("checkout: courier not available for city")
)

// OrderWriter persists the provisional unpaid order that mirrors an intent.
type OrderWriter interface {
	CreateUnpaid(ctx context.Context, intent Intent) error
}

// Output is returned to the client so it can redirect to the gateway.
type Output struct {
	Authority   string `json:"authority"`
	RedirectURL string `json:"redirectUrl"`
	GrandTotal  int64  `json:"grandTotal"`
}

// Service runs the checkout create flow: price the stored basket, open a
// gateway transaction, then dual-write the intent and a provisional order.
type Service struct {
	Users       auth.UserStore
	Basket      *basket.Service
	Shipping    shipping.Calculator
	Provider    payment.Provider
	Intents     IntentStore
	Orders      OrderWriter
	IntentTTL   time.Duration
	CallbackURL string
	CourierCity string
	Now         func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Create prices the user's stored basket and opens a payment with the
// gateway. The intent is written before the provisional order; if the order
// write fails the intent is deleted so the authority cannot be verified.
func (s *Service) Create(ctx context.Context, userID, submissionMethod string) (Output, error) {
	if s == nil || s.Provider == nil || s.Intents == nil || s.Orders == nil {
		return Output{}, errors.New("checkout service not configured")
	}
	if !shipping.KnownMethod(submissionMethod) {
		return Output{}, ErrUnknownMethod
	}
	user, err := s.Users.GetUserByID(ctx, userID)
	if err != nil {
		return Output{}, fmt.Errorf("checkout: loading user: %w", err)
	}
	if submissionMethod == shipping.MethodCourier && !shipping.CourierAllowed(user.City, s.CourierCity) {
		return Output{}, ErrCourierNotAvailable
	}

	lines, sum, err := s.Basket.EnrichStored(ctx, userID)
	if err != nil {
		return Output{}, err
	}
	if len(lines) == 0 {
		return Output{}, ErrEmptyBasket
	}
	purchasable := false
	for _, line := range lines {
		if line.Available {
			purchasable = true
			break
		}
	}
	if !purchasable {
		return Output{}, ErrEmptyBasket
	}

	shippingCost := s.Shipping.Cost(sum.TotalWeight)
	grandTotal := int64(sum.Total) + int64(shippingCost)

	created, err := s.Provider.CreatePayment(ctx, payment.CreateRequest{
		Amount:      grandTotal,
		Description: "storefront order",
		CallbackURL: s.CallbackURL,
		Email:       user.Email,
		Mobile:      user.Phone,
	})
	if err != nil {
		return Output{}, err
	}

	now := s.now()
	intent := Intent{
		Authority:        created.Authority,
		UserID:           userID,
		Products:         lines,
		SubmissionMethod: submissionMethod,
		TotalPrice:       grandTotal,
		TotalWeight:      sum.TotalWeight,
		DiscountTotal:    int64(sum.DiscountTotal),
		ShippingCost:     int64(shippingCost),
		CreatedAt:        now,
		ExpiresAt:        now.Add(s.IntentTTL),
	}
	if err := s.Intents.Put(ctx, intent, s.IntentTTL); err != nil {
		return Output{}, err
	}
	if err := s.Orders.CreateUnpaid(ctx, intent); err != nil {
		if delErr := s.Intents.Delete(ctx, created.Authority); delErr != nil {
			zerolog.Ctx(ctx).Error().Err(delErr).Str("authority", created.Authority).Msg("intent compensation delete failed")
		}
		return Output{}, fmt.Errorf("checkout: writing provisional order: %w", err)
	}

	zerolog.Ctx(ctx).Info().
		Str("authority", created.Authority).
		Int64("grand_total", grandTotal).
		Str("method", submissionMethod).
		Msg("checkout created")
	if obs.CheckoutCreatedTotal != nil {
		obs.CheckoutCreatedTotal.WithLabelValues("created").Inc()
	}

	return Output{
		Authority:   created.Authority,
		RedirectURL: created.RedirectURL,
		GrandTotal:  grandTotal,
	}, nil
}
