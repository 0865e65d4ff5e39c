package order

import (
	"errors"
	"net/http"

	"github.com/bazar-commerce/backend-bazar/internal/common"
	"github.com/bazar-commerce/backend-bazar/internal/payment"
)

// Handler serves checkout verification and order listing.
type Handler struct {
	Finalizer *Finalizer
	Orders    *PGStore
}

// Verify is the gateway callback target. The authority arrives as a query
// parameter; the gateway's settlement result is surfaced to the client.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	authority := r.URL.Query().Get("authority")
	outcome, err := h.Finalizer.Verify(r.Context(), authority)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if len(outcome.Shortfalls) > 0 {
		// payment is settled; the shortfall is reported, not rolled back
		common.JSON(w, http.StatusConflict, map[string]any{
			"state": true,
			"error": map[string]any{
				"code":    "INSUFFICIENT_STOCK",
				"message": "stock could not cover every confirmed line",
			},
			"result": outcome,
		})
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"state": outcome.Success, "result": outcome})
}

// List returns the authenticated user's orders.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	orders, err := h.Orders.ListByUser(r.Context(), userID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
		return
	}
	if orders == nil {
		orders = []Order{}
	}
	common.JSON(w, http.StatusOK, map[string]any{"state": true, "orders": orders})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrAuthorityUnknown):
		common.WriteAppError(w, common.ErrAuthorityExpiredOrUnknown(err))
	case errors.Is(err, payment.ErrGatewayUnavailable):
		common.WriteAppError(w, common.ErrGatewayUnavailable(err))
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
	}
}
