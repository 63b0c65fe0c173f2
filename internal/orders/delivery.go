package orders

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	pkgerrors "github.com/codmtracker/codm-backend/pkg/errors"
)

// DeliveryPolicy charges a fixed fee on every order after the user's first
// settled one.
type DeliveryPolicy struct {
	repo *Repository
	fee  decimal.Decimal
}

// NewDeliveryPolicy parses the configured fee.
func NewDeliveryPolicy(repo *Repository, fee string) (*DeliveryPolicy, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	parsed, err := decimal.NewFromString(fee)
	if err != nil {
		return nil, fmt.Errorf("parse delivery fee %q: %w", fee, err)
	}
	if parsed.IsNegative() {
		return nil, fmt.Errorf("delivery fee must not be negative")
	}
	return &DeliveryPolicy{repo: repo, fee: parsed}, nil
}

// FeeFor returns the fee and whether this would be the user's first purchase.
func (p *DeliveryPolicy) FeeFor(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (decimal.Decimal, bool, error) {
	settled, err := p.repo.WithTx(tx).CountSettledByUser(ctx, userID)
	if err != nil {
		return decimal.Zero, false, err
	}
	if settled == 0 {
		return decimal.Zero, true, nil
	}
	return p.fee, false, nil
}

// QuoteDelivery previews the fee outside any transaction.
func (p *DeliveryPolicy) QuoteDelivery(ctx context.Context, userID uuid.UUID) (decimal.Decimal, bool, error) {
	fee, first, err := p.FeeFor(ctx, nil, userID)
	if err != nil {
		return decimal.Zero, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "quote delivery fee")
	}
	return fee, first, nil
}
