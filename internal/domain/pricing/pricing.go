package pricing

import (
	"math"

	"github.com/example/pos-checkout/internal/catalog"
)

// Mode selects which of an item's prices a cart line uses.
type Mode string

const (
	ModeRetail    Mode = "retail"
	ModeWholesale Mode = "wholesale"
)

// ResolveUnitPrice returns the unit price for an item under the given mode.
// Wholesale falls back to retail when the item defines no wholesale price.
func ResolveUnitPrice(item *catalog.Item, mode Mode) int64 {
	if mode == ModeWholesale && item.WholesalePrice > 0 {
		return item.WholesalePrice
	}
	return item.RetailPrice
}

// LineSubtotal computes unitPrice*quantity minus the line discount,
// clamped so a line never contributes a negative amount.
func LineSubtotal(unitPrice int64, quantity int, discount int64) int64 {
	subtotal := unitPrice*int64(quantity) - discount
	if subtotal < 0 {
		return 0
	}
	return subtotal
}

// PercentOf returns percent% of amount in cents, rounded half away from zero.
func PercentOf(amount int64, percent float64) int64 {
	return int64(math.Round(float64(amount) * percent / 100))
}
