package tournaments

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrChargeDeclined is returned by gateways that refuse an entry fee.
var ErrChargeDeclined = errors.New("entry fee declined")

// EntryFeeCharge is one player's share of a tournament entry price.
type EntryFeeCharge struct {
	TournamentID  uuid.UUID
	ProfileID     uuid.UUID
	Amount        decimal.Decimal
	PaymentMethod string
}

// EntryFeeReceipt identifies an accepted charge.
type EntryFeeReceipt struct {
	Reference string
}

// EntryFeeGateway collects tournament entry fees. Charge is the last step of
// the registration transaction, after every row has been written.
type EntryFeeGateway interface {
	Charge(ctx context.Context, charge EntryFeeCharge) (*EntryFeeReceipt, error)
}

// ApprovingGateway accepts every charge without contacting a provider.
type ApprovingGateway struct{}

func (ApprovingGateway) Charge(context.Context, EntryFeeCharge) (*EntryFeeReceipt, error) {
	return &EntryFeeReceipt{Reference: "ENTRY-" + uuid.NewString()}, nil
}
