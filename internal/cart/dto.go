package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/codmtracker/codm-backend/pkg/db/models"
	"github.com/codmtracker/codm-backend/pkg/enums"
)

// LineDTO is a cart line priced at read time.
type LineDTO struct {
	ID        uuid.UUID       `json:"id"`
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
	Stock     int             `json:"stock"`
}

// CartDTO is the cart view with a delivery fee preview.
type CartDTO struct {
	ID                *uuid.UUID       `json:"id,omitempty"`
	Status            enums.CartStatus `json:"status"`
	Lines             []LineDTO        `json:"lines"`
	ItemCount         int              `json:"item_count"`
	Total             decimal.Decimal  `json:"total"`
	DeliveryFee       decimal.Decimal  `json:"delivery_fee"`
	TotalWithDelivery decimal.Decimal  `json:"total_with_delivery"`
	IsFirstPurchase   bool             `json:"is_first_purchase"`
}

// Total sums current line totals.
func Total(lines []models.CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.LineTotal())
	}
	return total
}

func toDTO(cart *models.Cart) CartDTO {
	dto := CartDTO{Status: enums.CartStatusOpen, Lines: []LineDTO{}, Total: decimal.Zero}
	if cart == nil {
		return dto
	}
	id := cart.ID
	dto.ID = &id
	dto.Status = cart.Status
	for _, line := range cart.Lines {
		l := LineDTO{
			ID:        line.ID,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice(),
			LineTotal: line.LineTotal(),
		}
		if line.Product != nil {
			l.Name = line.Product.Name
			l.Stock = line.Product.Stock
		}
		dto.Lines = append(dto.Lines, l)
		dto.ItemCount += line.Quantity
	}
	dto.Total = Total(cart.Lines)
	return dto
}
