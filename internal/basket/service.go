package basket

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bazar-commerce/backend-bazar/internal/catalog"
	"github.com/bazar-commerce/backend-bazar/internal/obs"
	"github.com/bazar-commerce/backend-bazar/internal/pricing"
)

// ErrInvalidInput is returned when the provided payload is invalid.
var ErrInvalidInput = errors.New("basket: invalid input")

// Catalog is the product lookup the basket needs for enrichment and merge.
type Catalog interface {
	GetByIDs(ctx context.Context, ids []string) (map[string]catalog.Product, error)
}

// Service encapsulates basket domain operations. Prices are never stored on
// basket rows; every read re-resolves them from the product histories.
type Service struct {
	Store   Store
	Catalog Catalog
	Now     func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Items returns the user's raw basket rows.
func (s *Service) Items(ctx context.Context, userID string) ([]pricing.BasketItem, error) {
	if s == nil || s.Store == nil {
		return nil, errors.New("basket service not configured")
	}
	return s.Store.ListItems(ctx, userID)
}

// Add inserts or increments a basket row.
func (s *Service) Add(ctx context.Context, userID, productID string, count int) error {
	if s == nil || s.Store == nil {
		return errors.New("basket service not configured")
	}
	if count <= 0 {
		return fmt.Errorf("count must be positive: %w", ErrInvalidInput)
	}
	if productID == "" {
		return fmt.Errorf("productId is required: %w", ErrInvalidInput)
	}
	return s.Store.AddItem(ctx, userID, productID, count)
}

// Remove deletes a basket row.
func (s *Service) Remove(ctx context.Context, userID, productID string) error {
	if s == nil || s.Store == nil {
		return errors.New("basket service not configured")
	}
	return s.Store.RemoveItem(ctx, userID, productID)
}

// Enrich prices the supplied raw items against current product data.
func (s *Service) Enrich(ctx context.Context, items []pricing.BasketItem) ([]pricing.Line, pricing.Summary, error) {
	if s == nil || s.Catalog == nil {
		return nil, pricing.Summary{}, errors.New("basket service not configured")
	}
	products, err := s.Catalog.GetByIDs(ctx, pricing.ProductIDs(items))
	if err != nil {
		return nil, pricing.Summary{}, err
	}
	return pricing.Enrich(items, products, s.now())
}

// EnrichStored loads and prices the user's stored basket.
func (s *Service) EnrichStored(ctx context.Context, userID string) ([]pricing.Line, pricing.Summary, error) {
	items, err := s.Items(ctx, userID)
	if err != nil {
		return nil, pricing.Summary{}, err
	}
	return s.Enrich(ctx, items)
}

// MergeLocal reconciles a client-held basket into the stored one and returns
// the resulting rows.
func (s *Service) MergeLocal(ctx context.Context, userID string, incoming []pricing.BasketItem) ([]pricing.BasketItem, error) {
	if s == nil || s.Store == nil || s.Catalog == nil {
		return nil, errors.New("basket service not configured")
	}
	for _, item := range incoming {
		if item.ProductID == "" || item.Count <= 0 {
			return nil, fmt.Errorf("merge item invalid: %w", ErrInvalidInput)
		}
	}
	server, err := s.Store.ListItems(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := pricing.ProductIDs(append(append([]pricing.BasketItem{}, server...), incoming...))
	products, err := s.Catalog.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	merged := Merge(server, incoming, products)
	if err := s.Store.Replace(ctx, userID, merged); err != nil {
		return nil, err
	}
	if obs.BasketMergeTotal != nil {
		obs.BasketMergeTotal.Inc()
	}
	return merged, nil
}

// Clear empties the user's basket. Called on checkout success.
func (s *Service) Clear(ctx context.Context, userID string) error {
	if s == nil || s.Store == nil {
		return errors.New("basket service not configured")
	}
	return s.Store.Clear(ctx, userID)
}
