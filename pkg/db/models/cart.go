package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/codmtracker/codm-backend/pkg/enums"
)

// Cart holds a user's pending selection. At most one open cart exists per
// user (partial unique index on user_id where status = 'open').
type Cart struct {
	ID        uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID        `gorm:"column:user_id;type:uuid;not null;index;uniqueIndex:idx_carts_one_open_per_user,where:status = 'open'"`
	Status    enums.CartStatus `gorm:"column:status;type:text;not null;default:'open'"`
	CreatedAt time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time        `gorm:"column:updated_at;autoUpdateTime"`

	Lines []CartLine `gorm:"foreignKey:CartID"`
}

func (Cart) TableName() string { return "carts" }

// CartLine is a product and quantity inside a cart. Prices are never stored
// on the line; they are read from the product each time.
type CartLine struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	CartID    uuid.UUID `gorm:"column:cart_id;type:uuid;not null;uniqueIndex:idx_cart_lines_cart_product"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null;uniqueIndex:idx_cart_lines_cart_product"`
	Quantity  int       `gorm:"column:quantity;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`

	Product *Product `gorm:"foreignKey:ProductID"`
}

func (CartLine) TableName() string { return "cart_lines" }

// UnitPrice returns the product's current effective price, zero when the
// product was not loaded.
func (l CartLine) UnitPrice() decimal.Decimal {
	if l.Product == nil {
		return decimal.Zero
	}
	return l.Product.EffectivePrice()
}

func (l CartLine) LineTotal() decimal.Decimal {
	return l.UnitPrice().Mul(decimal.NewFromInt(int64(l.Quantity)))
}
