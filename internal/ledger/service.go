package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/codmtracker/codm-backend/pkg/db/models"
	dbtypes "github.com/codmtracker/codm-backend/pkg/db/types"
	"github.com/codmtracker/codm-backend/pkg/enums"
)

// Service records the append-only audit trail of payment transitions.
type Service interface {
	// Record writes the event on tx when non-nil so it commits or rolls back
	// with the transition it describes.
	Record(ctx context.Context, tx *gorm.DB, input RecordInput) (*models.PaymentEvent, error)
	History(ctx context.Context, paymentID uuid.UUID) ([]models.PaymentEvent, error)
}

type service struct {
	repo Repository
}

// RecordInput captures the immutable data a payment event requires.
type RecordInput struct {
	PaymentID uuid.UUID
	OrderID   uuid.UUID
	Type      enums.PaymentEventType
	Source    enums.PaymentSource
	Amount    decimal.Decimal
	Metadata  map[string]any
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Record(ctx context.Context, tx *gorm.DB, input RecordInput) (*models.PaymentEvent, error) {
	if input.PaymentID == uuid.Nil {
		return nil, fmt.Errorf("payment id is required")
	}
	if input.OrderID == uuid.Nil {
		return nil, fmt.Errorf("order id is required")
	}
	if !input.Type.IsValid() {
		return nil, fmt.Errorf("invalid payment event type %q", input.Type)
	}
	if !input.Source.IsValid() {
		return nil, fmt.Errorf("invalid payment source %q", input.Source)
	}

	event := &models.PaymentEvent{
		PaymentID: input.PaymentID,
		OrderID:   input.OrderID,
		Type:      input.Type,
		Source:    input.Source,
		Amount:    input.Amount,
	}
	if len(input.Metadata) > 0 {
		event.Metadata = dbtypes.JSONMap(input.Metadata)
	}
	if err := s.repo.WithTx(tx).Create(ctx, event); err != nil {
		return nil, fmt.Errorf("record payment event: %w", err)
	}
	return event, nil
}

func (s *service) History(ctx context.Context, paymentID uuid.UUID) ([]models.PaymentEvent, error) {
	if paymentID == uuid.Nil {
		return nil, fmt.Errorf("payment id is required")
	}
	return s.repo.ListByPaymentID(ctx, paymentID)
}
