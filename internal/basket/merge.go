package basket

import (
	"github.com/bazar-commerce/backend-bazar/internal/catalog"
	"github.com/bazar-commerce/backend-bazar/internal/pricing"
)

// Merge reconciles a client-held basket into the server-side basket.
//
// For every incoming item matching a server item by product id the count is
// increased by the incoming count and capped at the product's showCount; a
// server count already at or above showCount is clamped down to showCount.
// Incoming items with no server match are appended verbatim without a stock
// cap. The asymmetry is inherited behaviour kept on purpose; see DESIGN.md.
// Items present only on the server are never removed.
func Merge(server, incoming []pricing.BasketItem, products map[string]catalog.Product) []pricing.BasketItem {
	merged := make([]pricing.BasketItem, len(server))
	copy(merged, server)

	index := make(map[string]int, len(merged))
	for i, item := range merged {
		index[item.ProductID] = i
	}

	for _, in := range incoming {
		pos, exists := index[in.ProductID]
		if !exists {
			merged = append(merged, in)
			index[in.ProductID] = len(merged) - 1
			continue
		}
		count := merged[pos].Count + in.Count
		if product, ok := products[in.ProductID]; ok && count > product.ShowCount {
			count = product.ShowCount
		}
		merged[pos].Count = count
	}

	// a clamp against zero stock can zero out a row; those rows are dropped
	result := merged[:0]
	for _, item := range merged {
		if item.Count > 0 {
			result = append(result, item)
		}
	}
	return result
}
