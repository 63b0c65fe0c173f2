package orders

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
	"github.com/codmtracker/codm-backend/pkg/db/models"
	"github.com/codmtracker/codm-backend/pkg/enums"
	pkgerrors "github.com/codmtracker/codm-backend/pkg/errors"
	"github.com/codmtracker/codm-backend/pkg/logger"
	"github.com/codmtracker/codm-backend/pkg/metrics"
	"github.com/codmtracker/codm-backend/pkg/paystack"
)

const defaultRecentOrders = 5

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// PaymentInitializer opens a hosted checkout with the gateway.
type PaymentInitializer interface {
	Initialize(ctx context.Context, req paystack.InitializeRequest) (*paystack.Transaction, error)
}

type userLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Service places orders and reads the order history.
type Service interface {
	PlaceOrder(ctx context.Context, userID uuid.UUID, address string) (*CheckoutResult, error)
	RecentOrders(ctx context.Context, userID uuid.UUID) ([]OrderDTO, error)
	QuoteDelivery(ctx context.Context, userID uuid.UUID) (fee decimal.Decimal, firstPurchase bool, err error)
}

// ServiceParams groups the collaborators of the order workflow.
type ServiceParams struct {
	Repo        *Repository
	Carts       *cart.Repository
	Users       userLoader
	TxRunner    txRunner
	Delivery    *DeliveryPolicy
	Sequence    DailySequence
	Gateway     PaymentInitializer
	Ledger      ledger.Service
	Metrics     *metrics.PaymentMetrics
	Logger      *logger.Logger
	Currency    string
	CallbackURL string
	RecentLimit int
	Now         func() time.Time
}

type service struct {
	repo        *Repository
	carts       *cart.Repository
	users       userLoader
	tx          txRunner
	delivery    *DeliveryPolicy
	sequence    DailySequence
	gateway     PaymentInitializer
	ledger      ledger.Service
	metrics     *metrics.PaymentMetrics
	logg        *logger.Logger
	currency    string
	callbackURL string
	recentLimit int
	now         func() time.Time
}

// NewService validates the params and builds the order workflow. A nil
// gateway is allowed: checkout then answers with a dependency error.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("user loader required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Delivery == nil {
		return nil, fmt.Errorf("delivery policy required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	sequence := params.Sequence
	if sequence == nil {
		sequence = NewDBSequence(params.Repo)
	}
	currency := strings.TrimSpace(params.Currency)
	if currency == "" {
		currency = "XOF"
	}
	limit := params.RecentLimit
	if limit <= 0 {
		limit = defaultRecentOrders
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:        params.Repo,
		carts:       params.Carts,
		users:       params.Users,
		tx:          params.TxRunner,
		delivery:    params.Delivery,
		sequence:    sequence,
		gateway:     params.Gateway,
		ledger:      params.Ledger,
		metrics:     params.Metrics,
		logg:        params.Logger,
		currency:    currency,
		callbackURL: params.CallbackURL,
		recentLimit: limit,
		now:         now,
	}, nil
}

func initializationFailed(err error) error {
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payment could not be initialized")
}

func (s *service) PlaceOrder(ctx context.Context, userID uuid.UUID, address string) (*CheckoutResult, error) {
	open, err := s.carts.FindOpenByUser(ctx, userID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if open == nil || len(open.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "your cart is empty").
			WithReason(pkgerrors.ReasonEmptyCart)
	}
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a delivery address is required").
			WithReason(pkgerrors.ReasonMissingAddress)
	}
	if s.gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment gateway is not configured")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}

	now := s.now().UTC()
	var result *CheckoutResult
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		total := cart.Total(open.Lines)
		fee, _, err := s.delivery.FeeFor(ctx, tx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "compute delivery fee")
		}
		n, err := s.sequence.Next(ctx, tx, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "allocate order number")
		}

		order := &models.Order{
			UserID:            userID,
			CartID:            open.ID,
			OrderNumber:       OrderNumber(user.FullName(), now, n),
			Total:             total,
			DeliveryFee:       fee,
			TotalWithDelivery: total.Add(fee),
			DeliveryAddress:   address,
			PaymentMode:       enums.PaymentModePaystack,
			Status:            enums.OrderStatusAwaitingPayment,
			CreatedAt:         now,
		}
		repo := s.repo.WithTx(tx)
		if err := repo.CreateOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		payment := &models.Payment{
			OrderID:     order.ID,
			Reference:   NewPaymentReference(),
			Amount:      order.TotalWithDelivery,
			Status:      enums.PaymentStatusPending,
			PaymentMode: enums.PaymentModePaystack,
			CreatedAt:   now,
		}
		if err := repo.CreatePayment(ctx, payment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
		}

		txn, err := s.gateway.Initialize(ctx, paystack.InitializeRequest{
			Email:       user.Email,
			Amount:      paystack.ToSubunits(order.TotalWithDelivery),
			Currency:    s.currency,
			Reference:   payment.Reference,
			CallbackURL: s.callbackURL,
			Metadata: map[string]any{
				"order_id":     order.ID.String(),
				"order_number": order.OrderNumber,
				"user_id":      userID.String(),
			},
			Channels: paystack.DefaultChannels,
		})
		if err != nil {
			return initializationFailed(err)
		}
		if txn == nil || txn.AuthorizationURL == "" {
			return initializationFailed(errors.New("empty authorization url"))
		}
		if ref := strings.TrimSpace(txn.Reference); ref != "" && ref != payment.Reference {
			if err := repo.UpdatePaymentReference(ctx, payment.ID, ref); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment reference")
			}
			payment.Reference = ref
		}

		if _, err := s.ledger.Record(ctx, tx, ledger.RecordInput{
			PaymentID: payment.ID,
			OrderID:   order.ID,
			Type:      enums.PaymentEventInitialized,
			Source:    enums.PaymentSourceCheckout,
			Amount:    payment.Amount,
			Metadata:  map[string]any{"access_code": txn.AccessCode},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payment event")
		}

		result = &CheckoutResult{
			OrderID:           order.ID,
			OrderNumber:       order.OrderNumber,
			Reference:         payment.Reference,
			AuthorizationURL:  txn.AuthorizationURL,
			TotalWithDelivery: order.TotalWithDelivery,
		}
		return nil
	})
	if err != nil {
		if s.logg != nil {
			s.logg.Error(s.logg.WithField(ctx, "event", "orders.checkout_failed"), "checkout failed", err)
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncInitiated()
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"order_id":     result.OrderID.String(),
			"order_number": result.OrderNumber,
		})
		s.logg.Info(s.logg.WithReference(logCtx, result.Reference), "orders.checkout_initialized")
	}
	return result, nil
}

func (s *service) RecentOrders(ctx context.Context, userID uuid.UUID) ([]OrderDTO, error) {
	rows, err := s.repo.ListRecentByUser(ctx, userID, s.recentLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	out := make([]OrderDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, toOrderDTO(row))
	}
	return out, nil
}

func (s *service) QuoteDelivery(ctx context.Context, userID uuid.UUID) (decimal.Decimal, bool, error) {
	return s.delivery.QuoteDelivery(ctx, userID)
}
