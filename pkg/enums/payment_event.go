package enums

import "fmt"

// PaymentEventType classifies audit rows written for payment transitions.
type PaymentEventType string

const (
	PaymentEventInitialized   PaymentEventType = "initialized"
	PaymentEventConfirmed     PaymentEventType = "confirmed"
	PaymentEventStockRejected PaymentEventType = "stock_rejected"
	PaymentEventExpired       PaymentEventType = "expired"
	PaymentEventLateCaptured  PaymentEventType = "late_captured"
)

var validPaymentEventTypes = []PaymentEventType{
	PaymentEventInitialized,
	PaymentEventConfirmed,
	PaymentEventStockRejected,
	PaymentEventExpired,
	PaymentEventLateCaptured,
}

// String implements fmt.Stringer.
func (p PaymentEventType) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentEventType.
func (p PaymentEventType) IsValid() bool {
	for _, candidate := range validPaymentEventTypes {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentEventType converts raw input into a PaymentEventType.
func ParsePaymentEventType(value string) (PaymentEventType, error) {
	for _, candidate := range validPaymentEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment event type %q", value)
}
