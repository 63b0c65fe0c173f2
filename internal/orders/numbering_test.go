package orders

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOrderNumber(t *testing.T) {
	at := time.Date(2025, 3, 14, 9, 5, 7, 0, time.UTC)

	tests := []struct {
		name     string
		fullName string
		n        int64
		want     string
	}{
		{name: "slugged name", fullName: "Awa Koné", n: 1, want: "ORD-awa-kone-20250314090507-1"},
		{name: "blank name", fullName: "   ", n: 3, want: "ORD-client-20250314090507-3"},
		{name: "symbols only", fullName: "!!!", n: 12, want: "ORD-client-20250314090507-12"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OrderNumber(tt.fullName, at, tt.n))
		})
	}
}

func TestOrderNumberTruncatesLongNames(t *testing.T) {
	at := time.Date(2025, 3, 14, 23, 59, 59, 0, time.UTC)
	got := OrderNumber(strings.Repeat("Jean Baptiste ", 6), at, 2)

	parts := strings.Split(strings.TrimPrefix(got, "ORD-"), "-20250314235959-")
	if assert.Len(t, parts, 2) {
		assert.LessOrEqual(t, len(parts[0]), maxCustomerSlugLen)
		assert.False(t, strings.HasSuffix(parts[0], "-"))
		assert.Equal(t, "2", parts[1])
	}
}

func TestOrderNumberUsesUTC(t *testing.T) {
	abidjanEast := time.FixedZone("UTC+2", 2*3600)
	at := time.Date(2025, 3, 15, 1, 0, 0, 0, abidjanEast)
	assert.Equal(t, "ORD-client-20250314230000-1", OrderNumber("", at, 1))
}

func TestNewPaymentReference(t *testing.T) {
	pattern := regexp.MustCompile(`^CODM-TRACKER-[0-9A-F]{15}$`)
	seen := map[string]struct{}{}
	for i := 0; i < 50; i++ {
		ref := NewPaymentReference()
		assert.Regexp(t, pattern, ref)
		seen[ref] = struct{}{}
	}
	assert.Len(t, seen, 50)
}
