package payments

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/codmtracker/codm-backend/internal/ledger"
	"github.com/codmtracker/codm-backend/pkg/db/models"
	"github.com/codmtracker/codm-backend/pkg/enums"
	pkgerrors "github.com/codmtracker/codm-backend/pkg/errors"
	"github.com/codmtracker/codm-backend/pkg/metrics"
)

// errAlreadySettled rolls back a settlement that lost the race to another one.
var errAlreadySettled = errors.New("payment already settled")

type lineDemand struct {
	productID uuid.UUID
	quantity  int
}

// demandByProduct sums quantities per product, sorted by product id.
func demandByProduct(lines []models.CartLine) []lineDemand {
	totals := map[uuid.UUID]int{}
	for _, line := range lines {
		totals[line.ProductID] += line.Quantity
	}
	out := make([]lineDemand, 0, len(totals))
	for id, qty := range totals {
		out = append(out, lineDemand{productID: id, quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].productID.String() < out[j].productID.String()
	})
	return out
}

// settle runs the shared settlement for callback and webhook. It reports
// false when the payment had already been settled, in which case nothing is
// written.
func (s *service) settle(ctx context.Context, paymentID uuid.UUID, source enums.PaymentSource) (bool, error) {
	var (
		payment     *models.Payment
		orderID     uuid.UUID
		lateCapture bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		locked, err := s.repo.WithTx(tx).LockByID(ctx, paymentID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock payment")
		}
		payment = locked
		orderID = locked.OrderID
		if locked.Status == enums.PaymentStatusPaid {
			return errAlreadySettled
		}
		lateCapture = locked.Status == enums.PaymentStatusCancelled

		order, err := s.orders.WithTx(tx).FindByID(ctx, locked.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		c, err := s.carts.WithTx(tx).FindByID(ctx, order.CartID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}

		demand := demandByProduct(c.Lines)
		ids := make([]uuid.UUID, 0, len(demand))
		for _, d := range demand {
			ids = append(ids, d.productID)
		}
		products := s.products.WithTx(tx)
		rows, err := products.LockForUpdate(ctx, ids)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock products")
		}
		stock := make(map[uuid.UUID]int, len(rows))
		for _, row := range rows {
			stock[row.ID] = row.Stock
		}
		for _, d := range demand {
			if available := stock[d.productID]; available < d.quantity {
				return pkgerrors.InsufficientStock(d.productID.String(), d.quantity, available)
			}
		}
		for _, d := range demand {
			ok, err := products.DecrementStock(ctx, d.productID, d.quantity)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement stock")
			}
			if !ok {
				return pkgerrors.InsufficientStock(d.productID.String(), d.quantity, stock[d.productID])
			}
		}

		marked, err := s.repo.WithTx(tx).MarkPaid(ctx, locked.ID, s.now().UTC())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment paid")
		}
		if !marked {
			return errAlreadySettled
		}
		if err := s.orders.WithTx(tx).UpdateStatus(ctx, order.ID, enums.OrderStatusPaid); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order paid")
		}
		if err := s.carts.WithTx(tx).MarkValidated(ctx, c.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate cart")
		}
		if lateCapture {
			if _, err := s.ledger.Record(ctx, tx, ledger.RecordInput{
				PaymentID: locked.ID,
				OrderID:   order.ID,
				Type:      enums.PaymentEventLateCaptured,
				Source:    source,
				Amount:    locked.Amount,
				Metadata:  map[string]any{"previous_order_status": order.Status.String()},
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record late capture")
			}
		}
		if _, err := s.ledger.Record(ctx, tx, ledger.RecordInput{
			PaymentID: locked.ID,
			OrderID:   order.ID,
			Type:      enums.PaymentEventConfirmed,
			Source:    source,
			Amount:    locked.Amount,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payment event")
		}
		return nil
	})

	label := source.String()
	switch {
	case err == nil:
		s.metrics.IncProcessed(label, metrics.OutcomeSettled)
		if s.logg != nil {
			logCtx := s.logg.WithField(ctx, "source", label)
			if lateCapture {
				s.logg.Warn(logCtx, "payments.late_capture_settled")
			} else {
				s.logg.Info(logCtx, "payments.settled")
			}
		}
		return true, nil
	case errors.Is(err, errAlreadySettled):
		s.metrics.IncProcessed(label, metrics.OutcomeAlreadyPaid)
		return false, nil
	case pkgerrors.IsReason(err, pkgerrors.ReasonInsufficientStock):
		s.metrics.IncProcessed(label, metrics.OutcomeStockRejected)
		s.recordStockRejection(ctx, payment, orderID, source, err)
		return false, err
	default:
		s.metrics.IncProcessed(label, metrics.OutcomeError)
		return false, err
	}
}

// recordStockRejection writes the audit row outside the rolled back
// settlement so the refusal stays visible.
func (s *service) recordStockRejection(ctx context.Context, payment *models.Payment, orderID uuid.UUID, source enums.PaymentSource, cause error) {
	if payment == nil {
		return
	}
	var details map[string]any
	if typed := pkgerrors.As(cause); typed != nil {
		details, _ = typed.Details().(map[string]any)
	}
	if _, err := s.ledger.Record(ctx, nil, ledger.RecordInput{
		PaymentID: payment.ID,
		OrderID:   orderID,
		Type:      enums.PaymentEventStockRejected,
		Source:    source,
		Amount:    payment.Amount,
		Metadata:  details,
	}); err != nil && s.logg != nil {
		s.logg.Error(ctx, "payments.stock_rejection_not_recorded", err)
	}
	if s.logg != nil {
		s.logg.Warn(s.logg.WithField(ctx, "source", source.String()), "payments.stock_rejected")
	}
}
