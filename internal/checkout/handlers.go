package checkout

import (
	"encoding/json"
	"errors"
	"net/http"

	validator "github.com/go-playground/validator/v10"

	"github.com/bazar-commerce/backend-bazar/internal/catalog"
	"github.com/bazar-commerce/backend-bazar/internal/common"
	"github.com/bazar-commerce/backend-bazar/internal/payment"
	"github.com/bazar-commerce/backend-bazar/internal/pricing"
)

// Handler exposes the checkout creation endpoint.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

type createRequest struct {
	ShipmentMethod string `json:"shipmentMethod" validate:"required,oneof=post courier"`
	// AppliedDiscount is accepted for wire compatibility; totals are always
	// recomputed server-side from the product discount history.
	AppliedDiscount int64 `json:"appliedDiscount"`
}

// Create opens a payment for the authenticated user's basket and returns the
// gateway redirect URL.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	var payload createRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_REQUEST", "malformed request body", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.JSONError(w, http.StatusBadRequest, "INVALID_REQUEST", "shipmentMethod must be post or courier", nil)
			return
		}
	}
	out, err := h.Svc.Create(r.Context(), userID, payload.ShipmentMethod)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{
		"state":       true,
		"authority":   out.Authority,
		"redirectUrl": out.RedirectURL,
		"grandTotal":  out.GrandTotal,
	})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrEmptyBasket):
		common.JSONError(w, http.StatusBadRequest, "EMPTY_BASKET", "basket has no purchasable items", nil)
	case errors.Is(err, ErrUnknownMethod):
		common.JSONError(w, http.StatusBadRequest, "INVALID_REQUEST", "shipmentMethod must be post or courier", nil)
	case errors.Is(err, ErrCourierNotAvailable):
		common.JSONError(w, http.StatusBadRequest, "COURIER_NOT_AVAILABLE", "courier delivery is not available for your city", nil)
	case errors.Is(err, payment.ErrGatewayUnavailable):
		common.WriteAppError(w, common.ErrGatewayUnavailable(err))
	case errors.Is(err, pricing.ErrInvalidBasketShape):
		common.WriteAppError(w, common.ErrInvalidBasketShape(err))
	case errors.Is(err, catalog.ErrNoPriceHistory):
		common.WriteAppError(w, common.ErrNoPriceHistory(err))
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
	}
}
