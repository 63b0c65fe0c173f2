package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/codmtracker/codm-backend/pkg/enums"
)

// Order is the immutable snapshot of a cart at checkout time.
type Order struct {
	ID                uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	UserID            uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index"`
	CartID            uuid.UUID         `gorm:"column:cart_id;type:uuid;not null;index"`
	OrderNumber       string            `gorm:"column:order_number;not null;uniqueIndex"`
	Total             decimal.Decimal   `gorm:"column:total;type:numeric(12,2);not null"`
	DeliveryFee       decimal.Decimal   `gorm:"column:delivery_fee;type:numeric(12,2);not null"`
	TotalWithDelivery decimal.Decimal   `gorm:"column:total_with_delivery;type:numeric(12,2);not null"`
	DeliveryAddress   string            `gorm:"column:delivery_address;not null"`
	PaymentMode       enums.PaymentMode `gorm:"column:payment_mode;type:text;not null"`
	Status            enums.OrderStatus `gorm:"column:status;type:text;not null;default:'awaiting_payment'"`
	CreatedAt         time.Time         `gorm:"column:created_at"`
	UpdatedAt         time.Time         `gorm:"column:updated_at;autoUpdateTime"`

	Payments []Payment `gorm:"foreignKey:OrderID"`
}

func (Order) TableName() string { return "orders" }

// CurrentPayment returns the most recent payment attempt, if any were loaded.
func (o Order) CurrentPayment() *Payment {
	var current *Payment
	for i := range o.Payments {
		p := &o.Payments[i]
		if current == nil || p.CreatedAt.After(current.CreatedAt) {
			current = p
		}
	}
	return current
}
