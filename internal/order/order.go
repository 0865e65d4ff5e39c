package order

import (
	"time"

	"github.com/bazar-commerce/backend-bazar/internal/pricing"
)

// Order statuses. Unpaid orders are the audit trail of checkout attempts;
// only confirmed orders represent money received.
const (
	StatusUnpaid    = "unpaid"
	StatusConfirmed = "confirmed"
	StatusFailed    = "failed"
	StatusExpired   = "expired"
)

// Order is the permanent record of a checkout. Products are the priced
// snapshot copied from the intent, never re-resolved.
type Order struct {
	ID               string         `json:"id"`
	UserID           string         `json:"userId"`
	PaymentAuthority string         `json:"paymentAuthority"`
	Status           string         `json:"status"`
	Products         []pricing.Line `json:"products"`
	SubmissionMethod string         `json:"submissionMethod"`
	TotalPrice       int64          `json:"totalPrice"`
	TotalWeight      int64          `json:"totalWeight"`
	DiscountTotal    int64          `json:"discountTotal"`
	ShippingCost     int64          `json:"shippingCost"`
	GrandTotal       int64          `json:"grandTotal"`
	PostTrackingCode string         `json:"postTrackingCode,omitempty"`
	GatewayRefID     string         `json:"gatewayRefId,omitempty"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

// Shortfall reports a product whose stock could not cover a confirmed order
// line. The payment is not rolled back; shortfalls are handled operationally.
type Shortfall struct {
	ProductID string `json:"productId"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}
