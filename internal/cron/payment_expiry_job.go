package cron

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/codmtracker/codm-backend/pkg/logger"
)

const PaymentExpiryJobName = "payment-expiry"

type stalePaymentExpirer interface {
	ExpireStale(ctx context.Context, cutoff time.Time) (int, error)
}

type PaymentExpiryJobParams struct {
	Logger   *logger.Logger
	Payments stalePaymentExpirer
	// TTL is how long a payment may stay pending before it is cancelled.
	TTL time.Duration
	Now func() time.Time
}

type paymentExpiryJob struct {
	logg     *logger.Logger
	payments stalePaymentExpirer
	ttl      time.Duration
	now      func() time.Time
}

// NewPaymentExpiryJob builds the job that cancels checkouts the buyer never
// paid for, so their orders stop counting as awaiting payment.
func NewPaymentExpiryJob(params PaymentExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payments service required")
	}
	if params.TTL <= 0 {
		return nil, fmt.Errorf("pending payment ttl must be positive")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &paymentExpiryJob{
		logg:     params.Logger,
		payments: params.Payments,
		ttl:      params.TTL,
		now:      now,
	}, nil
}

func (j *paymentExpiryJob) Name() string { return PaymentExpiryJobName }

func (j *paymentExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	expired, err := j.payments.ExpireStale(ctx, cutoff)
	ctx = j.logg.WithFields(ctx, map[string]any{
		"cutoff":  cutoff.Format(time.RFC3339),
		"expired": strconv.Itoa(expired),
	})
	if err != nil {
		return fmt.Errorf("expire stale payments: %w", err)
	}
	if expired > 0 {
		j.logg.Info(ctx, "cron.payments_expired")
	}
	return nil
}
