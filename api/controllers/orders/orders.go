package orders

import (
	"net/http"

	"github.com/codmtracker/codm-backend/api/middleware"
	"github.com/codmtracker/codm-backend/api/responses"
	"github.com/codmtracker/codm-backend/api/validators"
	ordersvc "github.com/codmtracker/codm-backend/internal/orders"
	"github.com/codmtracker/codm-backend/pkg/logger"
)

type checkoutRequest struct {
	Address string `json:"address" validate:"max=500"`
}

// Checkout turns the open cart into an order and returns the gateway
// authorization URL the client should redirect to.
func Checkout(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := middleware.RequireUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.PlaceOrder(r.Context(), userID, payload.Address)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

func RecentOrders(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := middleware.RequireUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orders, err := svc.RecentOrders(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, orders)
	}
}
