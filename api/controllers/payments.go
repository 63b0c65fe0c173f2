package controllers

import (
	"net/http"
	"strings"

	"github.com/codmtracker/codm-backend/api/responses"
	"github.com/codmtracker/codm-backend/internal/payments"
	"github.com/codmtracker/codm-backend/pkg/logger"
)

// PaymentCallback is where the gateway sends the buyer back after paying.
// The gateway names the parameter reference, older flows use trxref.
func PaymentCallback(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		reference := strings.TrimSpace(query.Get("reference"))
		if reference == "" {
			reference = strings.TrimSpace(query.Get("trxref"))
		}
		confirmation, err := svc.ConfirmCallback(r.Context(), reference)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, confirmation)
	}
}
