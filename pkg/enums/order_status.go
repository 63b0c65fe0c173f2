package enums

import "fmt"

// OrderStatus is the lifecycle state of a boutique order.
type OrderStatus string

const (
	OrderStatusAwaitingPayment OrderStatus = "awaiting_payment"
	OrderStatusAwaiting        OrderStatus = "awaiting"
	OrderStatusPaid            OrderStatus = "paid"
	OrderStatusValidated       OrderStatus = "validated"
	OrderStatusDelivered       OrderStatus = "delivered"
	OrderStatusCancelled       OrderStatus = "cancelled"
	OrderStatusFailed          OrderStatus = "failed"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusAwaitingPayment,
	OrderStatusAwaiting,
	OrderStatusPaid,
	OrderStatusValidated,
	OrderStatusDelivered,
	OrderStatusCancelled,
	OrderStatusFailed,
}

// String implements fmt.Stringer.
func (o OrderStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderStatus.
func (o OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOrderStatus converts raw input into a OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}

// SettledOrderStatuses lists the states that count as a completed purchase
// when deciding whether delivery is free.
func SettledOrderStatuses() []OrderStatus {
	return []OrderStatus{OrderStatusPaid, OrderStatusValidated, OrderStatusDelivered}
}
