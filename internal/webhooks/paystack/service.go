package paystackwebhook

import (
	"context"
	"errors"
	"strings"

	"github.com/codmtracker/codm-backend/pkg/logger"
	"github.com/codmtracker/codm-backend/pkg/paystack"
)

// IdempotencyScope namespaces Paystack delivery keys.
const IdempotencyScope = "paystack"

type webhookHandler interface {
	HandleWebhook(ctx context.Context, event paystack.Event) error
}

type ServiceParams struct {
	Payments webhookHandler
	Guard    *IdempotencyGuard
	Logger   *logger.Logger
}

// Service filters duplicate deliveries before handing events to payments.
type Service struct {
	payments webhookHandler
	guard    *IdempotencyGuard
	logg     *logger.Logger
}

// NewService builds the webhook service. The guard is optional.
func NewService(params ServiceParams) (*Service, error) {
	if params.Payments == nil {
		return nil, errors.New("payments handler required")
	}
	return &Service{
		payments: params.Payments,
		guard:    params.Guard,
		logg:     params.Logger,
	}, nil
}

// DeliveryKey identifies a delivery by event type and reference.
func DeliveryKey(event paystack.Event) string {
	reference := strings.TrimSpace(event.Data.Reference)
	if event.Event == "" || reference == "" {
		return ""
	}
	return event.Event + ":" + reference
}

func (s *Service) HandleEvent(ctx context.Context, event paystack.Event) error {
	key := DeliveryKey(event)
	if event.Event != paystack.EventChargeSuccess || key == "" {
		return nil
	}

	guarded := false
	if s.guard != nil {
		seen, err := s.guard.CheckAndMark(ctx, key)
		switch {
		case err != nil:
			s.warn(ctx, "paystack webhook idempotency guard unavailable: "+err.Error())
		case seen:
			if s.logg != nil {
				s.logg.Info(s.logg.WithField(ctx, "delivery_key", key), "paystack.webhook_duplicate")
			}
			return nil
		default:
			guarded = true
		}
	}

	if err := s.payments.HandleWebhook(ctx, event); err != nil {
		if guarded {
			if delErr := s.guard.Delete(ctx, key); delErr != nil {
				s.warn(ctx, "release paystack idempotency key: "+delErr.Error())
			}
		}
		return err
	}
	return nil
}

func (s *Service) warn(ctx context.Context, msg string) {
	if s.logg != nil {
		s.logg.Warn(ctx, msg)
	}
}
