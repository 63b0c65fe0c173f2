package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Category struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name      string    `gorm:"column:name;not null"`
	Slug      string    `gorm:"column:slug;not null;uniqueIndex"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Category) TableName() string { return "categories" }

// Product is a boutique item. Stock is guarded by a CHECK (stock >= 0).
type Product struct {
	ID              uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	CategoryID      uuid.UUID        `gorm:"column:category_id;type:uuid;not null;index"`
	Name            string           `gorm:"column:name;not null"`
	Description     string           `gorm:"column:description"`
	Price           decimal.Decimal  `gorm:"column:price;type:numeric(12,2);not null"`
	DiscountedPrice *decimal.Decimal `gorm:"column:discounted_price;type:numeric(12,2)"`
	Stock           int              `gorm:"column:stock;not null;default:0"`
	IsActive        bool             `gorm:"column:is_active;not null"`
	CreatedAt       time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time        `gorm:"column:updated_at;autoUpdateTime"`

	Category *Category `gorm:"foreignKey:CategoryID"`
}

func (Product) TableName() string { return "products" }

// EffectivePrice is the discounted price when it undercuts the normal price.
func (p Product) EffectivePrice() decimal.Decimal {
	if p.OnSale() {
		return *p.DiscountedPrice
	}
	return p.Price
}

// OnSale reports whether a lower discounted price is set.
func (p Product) OnSale() bool {
	return p.DiscountedPrice != nil && p.DiscountedPrice.LessThan(p.Price)
}
