package pricing

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bazar-commerce/backend-bazar/internal/catalog"
)

// Money represents a monetary value stored in minor units.
type Money = int64

// ErrInvalidBasketShape indicates a structurally invalid basket payload.
var ErrInvalidBasketShape = errors.New("pricing: invalid basket shape")

// BasketItem is the raw basket row supplied by a client or loaded from the
// user's stored basket.
type BasketItem struct {
	ProductID string `json:"productId" validate:"required"`
	Count     int    `json:"count" validate:"required,gt=0"`
}

// Line is one basket row after price and discount resolution.
type Line struct {
	ProductID       string `json:"productId"`
	Title           string `json:"title"`
	Count           int    `json:"count"`
	UnitPrice       Money  `json:"unitPrice"`
	DiscountPercent int    `json:"discountPercent"`
	LineGross       Money  `json:"lineGross"`
	LineDiscount    Money  `json:"lineDiscount"`
	LineNet         Money  `json:"lineNet"`
	LineWeight      int64  `json:"lineWeight"`
	Available       bool   `json:"available"`
}

// Summary aggregates computed basket totals.
type Summary struct {
	Subtotal      Money `json:"subtotal"`
	DiscountTotal Money `json:"discountTotal"`
	Total         Money `json:"total"`
	TotalWeight   int64 `json:"totalWeight"`
}

// Resolve yields the currently effective unit price and discount percent for
// a product at now. Last value wins on both logs; the discount is zero once
// its expiry is not strictly in the future.
func Resolve(prices catalog.PriceLog, discounts catalog.DiscountLog, now time.Time) (Money, int, error) {
	price, err := prices.Current()
	if err != nil {
		return 0, 0, err
	}
	return price, discounts.EffectivePercent(now), nil
}

// Enrich maps raw basket items to priced lines using the supplied product
// lookup evaluated at now. Items whose product cannot be resolved produce a
// zeroed line at the same position so callers can render the row as
// unavailable; they contribute nothing to the aggregates.
func Enrich(items []BasketItem, products map[string]catalog.Product, now time.Time) ([]Line, Summary, error) {
	if err := validateShape(items); err != nil {
		return nil, Summary{}, err
	}

	lines := make([]Line, 0, len(items))
	var sum Summary
	for _, item := range items {
		product, ok := products[item.ProductID]
		if !ok {
			lines = append(lines, Line{ProductID: item.ProductID, Count: item.Count})
			continue
		}
		unitPrice, percent, err := Resolve(product.Prices, product.Discounts, now)
		if err != nil {
			return nil, Summary{}, fmt.Errorf("product %s: %w", item.ProductID, err)
		}
		count := Money(item.Count)
		gross := unitPrice * count
		discount := unitPrice * Money(percent) / 100 * count
		line := Line{
			ProductID:       item.ProductID,
			Title:           product.Title,
			Count:           item.Count,
			UnitPrice:       unitPrice,
			DiscountPercent: percent,
			LineGross:       gross,
			LineDiscount:    discount,
			LineNet:         gross - discount,
			LineWeight:      product.WeightGrams * int64(item.Count),
			Available:       true,
		}
		lines = append(lines, line)
		sum.Subtotal += line.LineGross
		sum.DiscountTotal += line.LineDiscount
		sum.TotalWeight += line.LineWeight
	}
	sum.Total = sum.Subtotal - sum.DiscountTotal
	return lines, sum, nil
}

func validateShape(items []BasketItem) error {
	if items == nil {
		return fmt.Errorf("basket is not a list: %w", ErrInvalidBasketShape)
	}
	for i, item := range items {
		if strings.TrimSpace(item.ProductID) == "" {
			return fmt.Errorf("item %d: missing productId: %w", i, ErrInvalidBasketShape)
		}
		if item.Count <= 0 {
			return fmt.Errorf("item %d: count must be positive: %w", i, ErrInvalidBasketShape)
		}
	}
	return nil
}

// ProductIDs returns the distinct product ids referenced by the basket in
// input order, for bulk lookups.
func ProductIDs(items []BasketItem) []string {
	seen := make(map[string]struct{}, len(items))
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	return ids
}
