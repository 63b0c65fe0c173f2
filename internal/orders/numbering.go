package orders

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

const (
	orderNumberPrefix  = "ORD"
	maxCustomerSlugLen = 30
	anonymousSlug      = "client"

	// PaymentReferencePrefix starts every reference sent to the gateway.
	PaymentReferencePrefix = "CODM-TRACKER-"
	paymentReferenceHexLen = 15
)

// OrderNumber formats ORD-<customer slug>-<YYYYMMDDHHMMSS>-<n>.
func OrderNumber(fullName string, at time.Time, n int64) string {
	return fmt.Sprintf("%s-%s-%s-%d", orderNumberPrefix, customerSlug(fullName), at.UTC().Format("20060102150405"), n)
}

func customerSlug(fullName string) string {
	s := slug.Make(fullName)
	if len(s) > maxCustomerSlugLen {
		s = strings.TrimRight(s[:maxCustomerSlugLen], "-")
	}
	if s == "" {
		return anonymousSlug
	}
	return s
}

// NewPaymentReference returns CODM-TRACKER- followed by 15 uppercase hex characters.
func NewPaymentReference() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return PaymentReferencePrefix + strings.ToUpper(hex[:paymentReferenceHexLen])
}
