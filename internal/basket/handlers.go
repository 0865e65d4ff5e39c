package basket

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"

	"github.com/bazar-commerce/backend-bazar/internal/catalog"
	"github.com/bazar-commerce/backend-bazar/internal/common"
	"github.com/bazar-commerce/backend-bazar/internal/pricing"
	"github.com/bazar-commerce/backend-bazar/internal/shipping"
)

// Handler exposes basket pricing and mutation endpoints.
type Handler struct {
	Svc      *Service
	Shipping shipping.Calculator
	Validate *validator.Validate
}

type priceRequest struct {
	Basket []pricing.BasketItem `json:"basket" validate:"required,dive"`
}

type addItemRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Count     int    `json:"count" validate:"required,gt=0"`
}

type mergeRequest struct {
	Basket []pricing.BasketItem `json:"basket" validate:"required,dive"`
}

type pricedBasket struct {
	State         bool           `json:"state"`
	Items         []pricing.Line `json:"items"`
	Subtotal      pricing.Money  `json:"subtotal"`
	DiscountTotal pricing.Money  `json:"discountTotal"`
	Total         pricing.Money  `json:"total"`
	TotalWeight   int64          `json:"totalWeight"`
	ShippingCost  pricing.Money  `json:"shippingCost"`
	GrandTotal    pricing.Money  `json:"grandTotal"`
}

// Price computes the enrichment result for a client-supplied basket without
// authentication.
func (h *Handler) Price(w http.ResponseWriter, r *http.Request) {
	var payload priceRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.WriteAppError(w, common.ErrInvalidBasketShape(err))
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.WriteAppError(w, common.ErrInvalidBasketShape(err))
			return
		}
	}
	lines, sum, err := h.Svc.Enrich(r.Context(), payload.Basket)
	if err != nil {
		h.writePricingError(w, err)
		return
	}
	h.writePriced(w, lines, sum)
}

// Get returns the enrichment result of the authenticated user's stored basket.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	lines, sum, err := h.Svc.EnrichStored(r.Context(), userID)
	if err != nil {
		h.writePricingError(w, err)
		return
	}
	h.writePriced(w, lines, sum)
}

// AddItem inserts or increments a basket row.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	var payload addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.WriteAppError(w, common.ErrInvalidBasketShape(err))
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.WriteAppError(w, common.ErrInvalidBasketShape(err))
			return
		}
	}
	if err := h.Svc.Add(r.Context(), userID, payload.ProductID, payload.Count); err != nil {
		h.writePricingError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"state": true})
}

// RemoveItem deletes a basket row.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	productID := chi.URLParam(r, "productID")
	if productID == "" {
		common.WriteAppError(w, common.ErrInvalidBasketShape(errors.New("missing productID")))
		return
	}
	if err := h.Svc.Remove(r.Context(), userID, productID); err != nil {
		h.writePricingError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"state": true})
}

// Merge reconciles a cookie-held basket into the stored one.
func (h *Handler) Merge(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	var payload mergeRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.WriteAppError(w, common.ErrInvalidBasketShape(err))
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.WriteAppError(w, common.ErrInvalidBasketShape(err))
			return
		}
	}
	merged, err := h.Svc.MergeLocal(r.Context(), userID, payload.Basket)
	if err != nil {
		h.writePricingError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"state": true, "basket": merged})
}

func (h *Handler) writePriced(w http.ResponseWriter, lines []pricing.Line, sum pricing.Summary) {
	shippingCost := h.Shipping.Cost(sum.TotalWeight)
	common.JSON(w, http.StatusOK, pricedBasket{
		State:         true,
		Items:         lines,
		Subtotal:      sum.Subtotal,
		DiscountTotal: sum.DiscountTotal,
		Total:         sum.Total,
		TotalWeight:   sum.TotalWeight,
		ShippingCost:  shippingCost,
		GrandTotal:    sum.Total + shippingCost,
	})
}

func (h *Handler) writePricingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pricing.ErrInvalidBasketShape), errors.Is(err, ErrInvalidInput):
		common.WriteAppError(w, common.ErrInvalidBasketShape(err))
	case errors.Is(err, catalog.ErrNoPriceHistory):
		common.WriteAppError(w, common.ErrNoPriceHistory(err))
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
	}
}
