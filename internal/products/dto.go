package product

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/codmtracker/codm-backend/pkg/db/models"
)

// CategoryDTO is the public category shape.
type CategoryDTO struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Slug string    `json:"slug"`
}

// PromoDTO describes an active discount.
type PromoDTO struct {
	DiscountedPrice decimal.Decimal `json:"discounted_price"`
	NormalPrice     decimal.Decimal `json:"normal_price"`
	Savings         decimal.Decimal `json:"savings"`
	Percentage      int64           `json:"percentage"`
}

// ProductDTO is the public catalog entry.
type ProductDTO struct {
	ID             uuid.UUID       `json:"id"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Category       *CategoryDTO    `json:"category,omitempty"`
	Price          decimal.Decimal `json:"price"`
	EffectivePrice decimal.Decimal `json:"effective_price"`
	Stock          int             `json:"stock"`
	InStock        bool            `json:"in_stock"`
	Promo          *PromoDTO       `json:"promo,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// ProductListResult is one page of the catalog.
type ProductListResult struct {
	Products   []ProductDTO `json:"products"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

func categoryFromModel(c models.Category) CategoryDTO {
	return CategoryDTO{ID: c.ID, Name: c.Name, Slug: c.Slug}
}

// PromoFor returns the discount block for a product on sale, nil otherwise.
func PromoFor(p models.Product) *PromoDTO {
	if !p.OnSale() {
		return nil
	}
	savings := p.Price.Sub(*p.DiscountedPrice)
	percentage := decimal.Zero
	if p.Price.IsPositive() {
		percentage = savings.Div(p.Price).Mul(decimal.NewFromInt(100)).Round(0)
	}
	return &PromoDTO{
		DiscountedPrice: *p.DiscountedPrice,
		NormalPrice:     p.Price,
		Savings:         savings,
		Percentage:      percentage.IntPart(),
	}
}

// FromModel maps a product row to its public shape.
func FromModel(p models.Product) ProductDTO {
	dto := ProductDTO{
		ID:             p.ID,
		Name:           p.Name,
		Description:    p.Description,
		Price:          p.Price,
		EffectivePrice: p.EffectivePrice(),
		Stock:          p.Stock,
		InStock:        p.Stock > 0,
		Promo:          PromoFor(p),
		CreatedAt:      p.CreatedAt,
	}
	if p.Category != nil {
		c := categoryFromModel(*p.Category)
		dto.Category = &c
	}
	return dto
}
