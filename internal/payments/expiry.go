package payments

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/codmtracker/codm-backend/internal/ledger"
	"github.com/codmtracker/codm-backend/pkg/db/models"
	"github.com/codmtracker/codm-backend/pkg/enums"
)

const expiryBatchSize = 200

var cancellableOrderStatuses = []enums.OrderStatus{
	enums.OrderStatusAwaitingPayment,
	enums.OrderStatusAwaiting,
}

// ExpireStale cancels pending payments created before cutoff along with their
// unpaid orders. Each payment is handled in its own transaction; failures are
// collected and do not stop the batch.
func (s *service) ExpireStale(ctx context.Context, cutoff time.Time) (int, error) {
	stale, err := s.repo.ListStalePending(ctx, cutoff, expiryBatchSize)
	if err != nil {
		return 0, fmt.Errorf("list stale payments: %w", err)
	}

	var (
		expired int
		errs    error
	)
	for i := range stale {
		payment := stale[i]
		ok, err := s.expireOne(ctx, payment)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("expire payment %s: %w", payment.Reference, err))
			continue
		}
		if ok {
			expired++
		}
	}
	return expired, errs
}

func (s *service) expireOne(ctx context.Context, payment models.Payment) (bool, error) {
	var cancelled bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ok, err := s.repo.WithTx(tx).MarkCancelled(ctx, payment.ID)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if _, err := s.orders.WithTx(tx).TransitionStatus(ctx, payment.OrderID, cancellableOrderStatuses, enums.OrderStatusCancelled); err != nil {
			return err
		}
		if _, err := s.ledger.Record(ctx, tx, ledger.RecordInput{
			PaymentID: payment.ID,
			OrderID:   payment.OrderID,
			Type:      enums.PaymentEventExpired,
			Source:    enums.PaymentSourceCron,
			Amount:    payment.Amount,
			Metadata:  map[string]any{"created_at": payment.CreatedAt.UTC().Format(time.RFC3339)},
		}); err != nil {
			return err
		}
		cancelled = true
		return nil
	})
	return cancelled, err
}
