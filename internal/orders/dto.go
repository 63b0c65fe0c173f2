package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/codmtracker/codm-backend/pkg/db/models"
	"github.com/codmtracker/codm-backend/pkg/enums"
)

// CheckoutResult tells the client where to pay.
type CheckoutResult struct {
	OrderID           uuid.UUID       `json:"order_id"`
	OrderNumber       string          `json:"order_number"`
	Reference         string          `json:"reference"`
	AuthorizationURL  string          `json:"authorization_url"`
	TotalWithDelivery decimal.Decimal `json:"total_with_delivery"`
}

// OrderDTO is the order history entry.
type OrderDTO struct {
	ID                uuid.UUID            `json:"id"`
	OrderNumber       string               `json:"order_number"`
	Status            enums.OrderStatus    `json:"status"`
	Total             decimal.Decimal      `json:"total"`
	DeliveryFee       decimal.Decimal      `json:"delivery_fee"`
	TotalWithDelivery decimal.Decimal      `json:"total_with_delivery"`
	DeliveryAddress   string               `json:"delivery_address"`
	PaymentStatus     *enums.PaymentStatus `json:"payment_status,omitempty"`
	PaymentReference  string               `json:"payment_reference,omitempty"`
	CreatedAt         time.Time            `json:"created_at"`
}

func toOrderDTO(o models.Order) OrderDTO {
	dto := OrderDTO{
		ID:                o.ID,
		OrderNumber:       o.OrderNumber,
		Status:            o.Status,
		Total:             o.Total,
		DeliveryFee:       o.DeliveryFee,
		TotalWithDelivery: o.TotalWithDelivery,
		DeliveryAddress:   o.DeliveryAddress,
		CreatedAt:         o.CreatedAt,
	}
	if p := o.CurrentPayment(); p != nil {
		status := p.Status
		dto.PaymentStatus = &status
		dto.PaymentReference = p.Reference
	}
	return dto
}
