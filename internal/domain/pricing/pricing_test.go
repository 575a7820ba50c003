package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/example/pos-checkout/internal/catalog"
)

func TestResolveUnitPrice(t *testing.T) {
	tests := []struct {
		name      string
		retail    int64
		wholesale int64
		mode      Mode
		expected  int64
	}{
		{"retail mode uses retail price", 1000, 800, ModeRetail, 1000},
		{"wholesale mode uses wholesale price", 1000, 800, ModeWholesale, 800},
		{"wholesale mode falls back without wholesale price", 1000, 0, ModeWholesale, 1000},
		{"retail mode ignores wholesale price", 500, 400, ModeRetail, 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := &catalog.Item{
				ID:             "prod-1",
				RetailPrice:    tt.retail,
				WholesalePrice: tt.wholesale,
			}

			assert.Equal(t, tt.expected, ResolveUnitPrice(item, tt.mode))
		})
	}
}

func TestLineSubtotal(t *testing.T) {
	tests := []struct {
		name      string
		unitPrice int64
		quantity  int
		discount  int64
		expected  int64
	}{
		{"no discount", 1000, 2, 0, 2000},
		{"partial discount", 1000, 2, 500, 1500},
		{"discount equals gross", 1000, 2, 2000, 0},
		{"discount exceeds gross clamps to zero", 1000, 1, 5000, 0},
		{"single unit", 350, 1, 0, 350},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, LineSubtotal(tt.unitPrice, tt.quantity, tt.discount))
		})
	}
}

func TestPercentOf(t *testing.T) {
	tests := []struct {
		name     string
		amount   int64
		percent  float64
		expected int64
	}{
		{"ten percent", 2000, 10, 200},
		{"zero percent", 2000, 0, 0},
		{"hundred percent", 2000, 100, 2000},
		{"rounds half up", 1050, 10, 105},
		{"rounds to nearest cent", 999, 10, 100},
		{"fractional rate", 1000, 12.5, 125},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, PercentOf(tt.amount, tt.percent))
		})
	}
}
