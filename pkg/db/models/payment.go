package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	dbtypes "github.com/codmtracker/codm-backend/pkg/db/types"
	"github.com/codmtracker/codm-backend/pkg/enums"
)

// Payment is one gateway attempt for an order.
type Payment struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderID     uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	Reference   string              `gorm:"column:reference;not null;uniqueIndex"`
	Amount      decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	Status      enums.PaymentStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	PaymentMode enums.PaymentMode   `gorm:"column:payment_mode;type:text;not null;default:'paystack'"`
	PaidAt      *time.Time          `gorm:"column:paid_at"`
	Metadata    dbtypes.JSONMap     `gorm:"column:metadata"`
	CreatedAt   time.Time           `gorm:"column:created_at"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;autoUpdateTime"`

	Order *Order `gorm:"foreignKey:OrderID"`
}

func (Payment) TableName() string { return "payments" }

// PaymentEvent is an append-only audit row for payment transitions.
type PaymentEvent struct {
	ID        uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	PaymentID uuid.UUID              `gorm:"column:payment_id;type:uuid;not null;index"`
	OrderID   uuid.UUID              `gorm:"column:order_id;type:uuid;not null;index"`
	Type      enums.PaymentEventType `gorm:"column:type;type:text;not null"`
	Source    enums.PaymentSource    `gorm:"column:source;type:text;not null"`
	Amount    decimal.Decimal        `gorm:"column:amount;type:numeric(12,2);not null"`
	Metadata  dbtypes.JSONMap        `gorm:"column:metadata"`
	CreatedAt time.Time              `gorm:"column:created_at;autoCreateTime"`
}

func (PaymentEvent) TableName() string { return "payment_events" }
