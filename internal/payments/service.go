package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/codmtracker/codm-backend/internal/cart"
	"github.com/codmtracker/codm-backend/internal/ledger"
	"github.com/codmtracker/codm-backend/internal/orders"
	product "github.com/codmtracker/codm-backend/internal/products"
	"github.com/codmtracker/codm-backend/pkg/db/models"
	"github.com/codmtracker/codm-backend/pkg/enums"
	pkgerrors "github.com/codmtracker/codm-backend/pkg/errors"
	"github.com/codmtracker/codm-backend/pkg/logger"
	"github.com/codmtracker/codm-backend/pkg/metrics"
	"github.com/codmtracker/codm-backend/pkg/paystack"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// TransactionVerifier asks the gateway for the state of a transaction.
type TransactionVerifier interface {
	Verify(ctx context.Context, reference string) (*paystack.Transaction, error)
}

// Confirmation describes a settled (or previously settled) payment.
type Confirmation struct {
	OrderID     uuid.UUID           `json:"order_id"`
	OrderNumber string              `json:"order_number"`
	Reference   string              `json:"reference"`
	Amount      decimal.Decimal     `json:"amount"`
	Status      enums.PaymentStatus `json:"status"`
	AlreadyPaid bool                `json:"already_paid"`
}

// Service reconciles gateway confirmations with orders and stock.
type Service interface {
	ConfirmCallback(ctx context.Context, reference string) (*Confirmation, error)
	HandleWebhook(ctx context.Context, event paystack.Event) error
	ExpireStale(ctx context.Context, cutoff time.Time) (int, error)
}

type ServiceParams struct {
	Repo     *Repository
	Orders   *orders.Repository
	Carts    *cart.Repository
	Products *product.Repository
	TxRunner txRunner
	Ledger   ledger.Service
	Verifier TransactionVerifier
	Metrics  *metrics.PaymentMetrics
	Logger   *logger.Logger
	Now      func() time.Time
}

type service struct {
	repo     *Repository
	orders   *orders.Repository
	carts    *cart.Repository
	products *product.Repository
	tx       txRunner
	ledger   ledger.Service
	verifier TransactionVerifier
	metrics  *metrics.PaymentMetrics
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds the reconciliation service. The verifier may be nil when
// no gateway key is configured; callbacks then fail with a dependency error.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Products == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:     params.Repo,
		orders:   params.Orders,
		carts:    params.Carts,
		products: params.Products,
		tx:       params.TxRunner,
		ledger:   params.Ledger,
		verifier: params.Verifier,
		metrics:  params.Metrics,
		logg:     params.Logger,
		now:      now,
	}, nil
}

func verificationFailed(err error) error {
	return pkgerrors.Wrap(pkgerrors.CodePayment, err, "payment could not be verified")
}

func (s *service) ConfirmCallback(ctx context.Context, reference string) (*Confirmation, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment reference is required")
	}
	if s.verifier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment gateway is not configured")
	}
	ctx = s.withReference(ctx, reference)
	source := enums.PaymentSourceCallback.String()

	txn, err := s.verifier.Verify(ctx, reference)
	if err != nil {
		s.metrics.IncProcessed(source, metrics.OutcomeError)
		return nil, verificationFailed(err)
	}
	if txn == nil || !txn.Succeeded() {
		s.metrics.IncProcessed(source, metrics.OutcomeUnpaid)
		status := ""
		if txn != nil {
			status = txn.Status
		}
		return nil, verificationFailed(fmt.Errorf("gateway status %q", status))
	}

	payment, err := s.repo.FindByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.metrics.IncProcessed(source, metrics.OutcomeNotFound)
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	if payment.Status == enums.PaymentStatusPaid {
		s.metrics.IncProcessed(source, metrics.OutcomeAlreadyPaid)
		return confirmationFor(payment.Order, payment.Reference, payment.Amount, true), nil
	}

	settled, err := s.settle(ctx, payment.ID, enums.PaymentSourceCallback)
	if err != nil {
		return nil, err
	}
	return confirmationFor(payment.Order, payment.Reference, payment.Amount, !settled), nil
}

func (s *service) HandleWebhook(ctx context.Context, event paystack.Event) error {
	reference := strings.TrimSpace(event.Data.Reference)
	if event.Event != paystack.EventChargeSuccess || reference == "" {
		return nil
	}
	ctx = s.withReference(ctx, reference)
	source := enums.PaymentSourceWebhook.String()

	payment, err := s.repo.FindSettleableByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.metrics.IncProcessed(source, metrics.OutcomeNotFound)
			if s.logg != nil {
				s.logg.Debug(ctx, "payments.webhook_no_settleable_payment")
			}
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	_, err = s.settle(ctx, payment.ID, enums.PaymentSourceWebhook)
	return err
}

func confirmationFor(order *models.Order, reference string, amount decimal.Decimal, alreadyPaid bool) *Confirmation {
	c := &Confirmation{
		Reference:   reference,
		Amount:      amount,
		Status:      enums.PaymentStatusPaid,
		AlreadyPaid: alreadyPaid,
	}
	if order != nil {
		c.OrderID = order.ID
		c.OrderNumber = order.OrderNumber
	}
	return c
}

func (s *service) withReference(ctx context.Context, reference string) context.Context {
	if s.logg == nil {
		return ctx
	}
	return s.logg.WithReference(ctx, reference)
}
