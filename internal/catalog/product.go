package catalog

import (
	"errors"
	"time"
)

// ErrNoPriceHistory indicates a sellable product whose price log is empty.
var ErrNoPriceHistory = errors.New("catalog: product has no price history")

// PricePoint is one entry of a product price log.
type PricePoint struct {
	Price       int64     `json:"price"`
	EffectiveAt time.Time `json:"effectiveAt"`
}

// DiscountPoint is one entry of a product discount log.
type DiscountPoint struct {
	Percent   int       `json:"percent"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// PriceLog is an append-only sequence of price changes. The current price is
// always the last entry; earlier entries are kept for auditing.
type PriceLog []PricePoint

// Current returns the price of the last entry.
func (l PriceLog) Current() (int64, error) {
	if len(l) == 0 {
		return 0, ErrNoPriceHistory
	}
	return l[len(l)-1].Price, nil
}

// Append records a new price effective at the given time.
func (l PriceLog) Append(price int64, at time.Time) PriceLog {
	return append(l, PricePoint{Price: price, EffectiveAt: at})
}

// DiscountLog is an append-only sequence of discounts. Only the last entry is
// a candidate; expired entries are never deleted.
type DiscountLog []DiscountPoint

// EffectivePercent returns the candidate discount percent when it is still
// valid at now. A discount whose expiry equals now counts as expired.
func (l DiscountLog) EffectivePercent(now time.Time) int {
	if len(l) == 0 {
		return 0
	}
	last := l[len(l)-1]
	if !last.ExpiresAt.After(now) {
		return 0
	}
	return last.Percent
}

// Append records a new discount valid until the given expiry.
func (l DiscountLog) Append(percent int, expiresAt time.Time) DiscountLog {
	return append(l, DiscountPoint{Percent: percent, ExpiresAt: expiresAt})
}

// Product is the sellable catalog entity. Weight is expressed in grams and
// ShowCount is the stock quantity exposed to customers.
type Product struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Slug        string      `json:"slug"`
	WeightGrams int64       `json:"weightGrams"`
	ShowCount   int         `json:"showCount"`
	Prices      PriceLog    `json:"prices"`
	Discounts   DiscountLog `json:"discounts"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}
