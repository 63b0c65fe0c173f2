package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/codmtracker/codm-backend/api/responses"
	pkgerrors "github.com/codmtracker/codm-backend/pkg/errors"
	"github.com/codmtracker/codm-backend/pkg/logger"
	"github.com/codmtracker/codm-backend/pkg/paystack"
)

const maxWebhookBody = 1 << 20

type PaystackEventHandler interface {
	HandleEvent(ctx context.Context, event paystack.Event) error
}

// SignatureVerifier authenticates a raw webhook body.
type SignatureVerifier interface {
	VerifySignature(body []byte, signature string) bool
}

// PaystackWebhook authenticates and dispatches gateway events. Once the
// signature and payload check out the gateway always gets a 200: processing
// failures are logged and reconciliation falls back to the callback and the
// expiry job. A nil verifier (no secret key configured) rejects every
// delivery.
func PaystackWebhook(svc PaystackEventHandler, verifier SignatureVerifier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeMethod, "method not allowed"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		signature := r.Header.Get(paystack.SignatureHeader)
		if signature == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "signature missing"))
			return
		}
		if verifier == nil || !verifier.VerifySignature(payload, signature) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid signature"))
			return
		}

		event, err := paystack.ParseEvent(payload)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payload"))
			return
		}

		if logg != nil {
			ctx = logg.WithFields(ctx, map[string]any{
				"paystack_event": event.Event,
				"reference":      event.Data.Reference,
			})
		}
		if err := svc.HandleEvent(ctx, event); err != nil {
			if logg != nil {
				logg.Error(ctx, "paystack.webhook_processing_failed", err)
			}
		}
		responses.WriteSuccess(w, map[string]string{"status": "received"})
	}
}
