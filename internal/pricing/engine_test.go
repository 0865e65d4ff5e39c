package pricing_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bazar-commerce/backend-bazar/internal/catalog"
	"github.com/bazar-commerce/backend-bazar/internal/pricing"
)

func productWith(price int64, weight int64, discount *catalog.DiscountPoint) catalog.Product {
	p := catalog.Product{
		ID:          "p1",
		Title:       "Sample",
		WeightGrams: weight,
		ShowCount:   10,
		Prices:      catalog.PriceLog{{Price: price, EffectiveAt: time.Unix(0, 0)}},
	}
	if discount != nil {
		p.Discounts = catalog.DiscountLog{*discount}
	}
	return p
}

func TestResolveLastValueWins(t *testing.T) {
	t.Parallel()

	now := time.Now()
	prices := catalog.PriceLog{}.
		Append(1000, now.Add(-48*time.Hour)).
		Append(1500, now.Add(-24*time.Hour)).
		Append(1200, now.Add(-time.Hour))
	discounts := catalog.DiscountLog{}.
		Append(50, now.Add(-time.Hour)).
		Append(20, now.Add(time.Hour))

	price, percent, err := pricing.Resolve(prices, discounts, now)
	require.NoError(t, err)
	require.EqualValues(t, 1200, price)
	require.Equal(t, 20, percent)
}

func TestResolveEmptyPriceLog(t *testing.T) {
	t.Parallel()

	_, _, err := pricing.Resolve(nil, nil, time.Now())
	require.ErrorIs(t, err, catalog.ErrNoPriceHistory)
}

func TestDiscountExpiryBoundary(t *testing.T) {
	t.Parallel()

	now := time.Now()
	discounts := catalog.DiscountLog{{Percent: 30, ExpiresAt: now}}
	// expiresAt == now counts as expired
	require.Equal(t, 0, discounts.EffectivePercent(now))
	require.Equal(t, 30, discounts.EffectivePercent(now.Add(-time.Nanosecond)))
	require.Equal(t, 0, discounts.EffectivePercent(now.Add(time.Nanosecond)))
}

func TestEnrichActiveDiscountScenario(t *testing.T) {
	t.Parallel()

	t0 := time.Unix(1_700_000_000, 0)
	product := catalog.Product{
		ID:          "A",
		Title:       "A",
		WeightGrams: 250,
		Prices:      catalog.PriceLog{{Price: 1000, EffectiveAt: t0}},
		Discounts:   catalog.DiscountLog{{Percent: 10, ExpiresAt: t0.Add(1000 * time.Second)}},
	}
	items := []pricing.BasketItem{{ProductID: "A", Count: 2}}

	lines, sum, err := pricing.Enrich(items, map[string]catalog.Product{"A": product}, t0.Add(500*time.Second))
	require.NoError(t, err)
	require.Len(t, lines, 1)
	require.EqualValues(t, 1000, lines[0].UnitPrice)
	require.Equal(t, 10, lines[0].DiscountPercent)
	require.EqualValues(t, 200, lines[0].LineDiscount)
	require.EqualValues(t, 1800, lines[0].LineNet)
	require.EqualValues(t, 2000, sum.Subtotal)
	require.EqualValues(t, 1800, sum.Total)
	require.EqualValues(t, 500, sum.TotalWeight)
}

func TestEnrichExpiredDiscountScenario(t *testing.T) {
	t.Parallel()

	t0 := time.Unix(1_700_000_000, 0)
	product := catalog.Product{
		ID:          "A",
		Title:       "A",
		WeightGrams: 250,
		Prices:      catalog.PriceLog{{Price: 1000, EffectiveAt: t0}},
		Discounts:   catalog.DiscountLog{{Percent: 10, ExpiresAt: t0.Add(1000 * time.Second)}},
	}
	items := []pricing.BasketItem{{ProductID: "A", Count: 2}}

	lines, sum, err := pricing.Enrich(items, map[string]catalog.Product{"A": product}, t0.Add(2000*time.Second))
	require.NoError(t, err)
	require.Equal(t, 0, lines[0].DiscountPercent)
	require.EqualValues(t, 2000, lines[0].LineNet)
	require.EqualValues(t, 2000, sum.Total)
	require.EqualValues(t, 0, sum.DiscountTotal)
}

func TestEnrichMissingProductZeroesLine(t *testing.T) {
	t.Parallel()

	now := time.Now()
	products := map[string]catalog.Product{
		"known": productWith(500, 100, nil),
	}
	items := []pricing.BasketItem{
		{ProductID: "gone", Count: 3},
		{ProductID: "known", Count: 1},
	}

	lines, sum, err := pricing.Enrich(items, products, now)
	require.NoError(t, err)
	require.Len(t, lines, 2)

	// position preserved, everything zeroed
	require.Equal(t, "gone", lines[0].ProductID)
	require.False(t, lines[0].Available)
	require.EqualValues(t, 0, lines[0].UnitPrice)
	require.EqualValues(t, 0, lines[0].LineNet)
	require.EqualValues(t, 0, lines[0].LineWeight)

	require.True(t, lines[1].Available)
	require.EqualValues(t, 500, sum.Subtotal)
	require.EqualValues(t, 100, sum.TotalWeight)
}

func TestEnrichInvariantSubtotalMinusDiscount(t *testing.T) {
	t.Parallel()

	now := time.Now()
	active := catalog.DiscountPoint{Percent: 33, ExpiresAt: now.Add(time.Hour)}
	products := map[string]catalog.Product{
		"a": productWith(999, 10, &active),
		"b": productWith(12345, 20, nil),
	}
	items := []pricing.BasketItem{
		{ProductID: "a", Count: 7},
		{ProductID: "b", Count: 3},
	}

	_, sum, err := pricing.Enrich(items, products, now)
	require.NoError(t, err)
	require.Equal(t, sum.Total, sum.Subtotal-sum.DiscountTotal)
}

func TestEnrichRejectsMalformedItems(t *testing.T) {
	t.Parallel()

	_, _, err := pricing.Enrich(nil, nil, time.Now())
	require.ErrorIs(t, err, pricing.ErrInvalidBasketShape)

	_, _, err = pricing.Enrich([]pricing.BasketItem{{ProductID: "", Count: 1}}, nil, time.Now())
	require.ErrorIs(t, err, pricing.ErrInvalidBasketShape)

	_, _, err = pricing.Enrich([]pricing.BasketItem{{ProductID: "x", Count: 0}}, nil, time.Now())
	require.ErrorIs(t, err, pricing.ErrInvalidBasketShape)
}

func TestEnrichSurfacesEmptyPriceLog(t *testing.T) {
	t.Parallel()

	products := map[string]catalog.Product{
		"broken": {ID: "broken", Title: "broken", ShowCount: 1},
	}
	_, _, err := pricing.Enrich([]pricing.BasketItem{{ProductID: "broken", Count: 1}}, products, time.Now())
	require.ErrorIs(t, err, catalog.ErrNoPriceHistory)
}
