package cart

import (
	"errors"

	"github.com/example/pos-checkout/internal/catalog"
	"github.com/example/pos-checkout/internal/domain/pricing"
	"github.com/example/pos-checkout/internal/domain/promotion"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrLineNotFound      = errors.New("cart line not found")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrInvalidDiscount   = errors.New("discount must not be negative")
	ErrInvalidPercent    = errors.New("discount percent must be between 0 and 100")
)

// Line is one cart entry. Both catalog prices are snapshotted at
// add-time so toggling the pricing mode re-derives UnitPrice without a
// catalog round trip and is lossless in both directions. TaxRate is
// the item's own rate; zero means the cart rate applies.
type Line struct {
	ProductID      string  `json:"product_id"`
	Name           string  `json:"name"`
	SKU            string  `json:"sku"`
	Category       string  `json:"category"`
	Quantity       int     `json:"quantity"`
	UnitPrice      int64   `json:"unit_price"`
	RetailPrice    int64   `json:"retail_price"`
	WholesalePrice int64   `json:"wholesale_price,omitempty"`
	TaxRate        float64 `json:"tax_rate,omitempty"`
	Discount       int64   `json:"discount"`
}

// Gross returns unit price times quantity, before any discount.
func (l *Line) Gross() int64 {
	return l.UnitPrice * int64(l.Quantity)
}

// Subtotal returns the line amount after its line discount, never negative.
func (l *Line) Subtotal() int64 {
	return pricing.LineSubtotal(l.UnitPrice, l.Quantity, l.Discount)
}

// effectiveDiscount is the part of the line discount that actually
// reduces the line, given the never-negative clamp.
func (l *Line) effectiveDiscount() int64 {
	if l.Discount > l.Gross() {
		return l.Gross()
	}
	return l.Discount
}

// Summary is the derived cart totals. It is recomputed from the lines
// on every read and never cached or persisted.
type Summary struct {
	Subtotal       int64 `json:"subtotal"`
	DiscountAmount int64 `json:"discount_amount"`
	TaxableAmount  int64 `json:"taxable_amount"`
	TaxAmount      int64 `json:"tax_amount"`
	Total          int64 `json:"total"`
}

// Cart is the mutable, session-scoped collection of line items. It is
// single-actor per the checkout session model; callers that share a
// cart across goroutines must serialize access themselves.
type Cart struct {
	mode            pricing.Mode
	lines           []*Line
	globalDiscount  float64
	taxRate         float64
	customerID      string
	notes           string
	promotionCodes  []string
}

func New(taxRate float64) *Cart {
	return &Cart{mode: pricing.ModeRetail, taxRate: taxRate}
}

func (c *Cart) Mode() pricing.Mode      { return c.mode }
func (c *Cart) TaxRate() float64        { return c.taxRate }
func (c *Cart) GlobalDiscount() float64 { return c.globalDiscount }
func (c *Cart) CustomerID() string      { return c.customerID }
func (c *Cart) Notes() string           { return c.notes }
func (c *Cart) PromotionCodes() []string {
	return append([]string(nil), c.promotionCodes...)
}

func (c *Cart) IsEmpty() bool { return len(c.lines) == 0 }

// Lines returns a copy of the cart lines in insertion order.
func (c *Cart) Lines() []Line {
	lines := make([]Line, 0, len(c.lines))
	for _, l := range c.lines {
		lines = append(lines, *l)
	}
	return lines
}

func (c *Cart) find(productID string) *Line {
	for _, l := range c.lines {
		if l.ProductID == productID {
			return l
		}
	}
	return nil
}

// Add puts an item in the cart, merging into an existing line when the
// product is already present. available is the caller's current view of
// sellable stock; the merged quantity must not exceed it. This is a
// soft check, the hard check happens at finalize.
func (c *Cart) Add(item *catalog.Item, quantity, available int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}

	if line := c.find(item.ID); line != nil {
		if line.Quantity+quantity > available {
			return ErrInsufficientStock
		}
		line.Quantity += quantity
		return nil
	}

	if quantity > available {
		return ErrInsufficientStock
	}
	c.lines = append(c.lines, &Line{
		ProductID:      item.ID,
		Name:           item.Name,
		SKU:            item.SKU,
		Category:       item.Category,
		Quantity:       quantity,
		UnitPrice:      pricing.ResolveUnitPrice(item, c.mode),
		RetailPrice:    item.RetailPrice,
		WholesalePrice: item.WholesalePrice,
		TaxRate:        item.TaxRate,
	})
	return nil
}

// UpdateQuantity sets a line's quantity. Below 1 removes the line; above
// the available stock the update is rejected and the line is unchanged.
func (c *Cart) UpdateQuantity(productID string, quantity, available int) error {
	line := c.find(productID)
	if line == nil {
		return ErrLineNotFound
	}
	if quantity < 1 {
		c.Remove(productID)
		return nil
	}
	if quantity > available {
		return ErrInsufficientStock
	}
	line.Quantity = quantity
	return nil
}

func (c *Cart) Remove(productID string) {
	for i, l := range c.lines {
		if l.ProductID == productID {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
			return
		}
	}
}

func (c *Cart) SetLineDiscount(productID string, amount int64) error {
	if amount < 0 {
		return ErrInvalidDiscount
	}
	line := c.find(productID)
	if line == nil {
		return ErrLineNotFound
	}
	line.Discount = amount
	return nil
}

func (c *Cart) SetGlobalDiscount(percent float64) error {
	if percent < 0 || percent > 100 {
		return ErrInvalidPercent
	}
	c.globalDiscount = percent
	return nil
}

func (c *Cart) SetCustomer(customerID string) { c.customerID = customerID }
func (c *Cart) SetNotes(notes string)         { c.notes = notes }

// SetPromotionCodes records the codes the operator applied. The discount
// itself is re-derived from these codes on every summary so a stale
// amount is never carried.
func (c *Cart) SetPromotionCodes(codes []string) {
	c.promotionCodes = append([]string(nil), codes...)
}

// SetMode switches between retail and wholesale pricing and re-derives
// every line's unit price in place from its snapshotted prices. Toggling
// back restores the original prices exactly.
func (c *Cart) SetMode(mode pricing.Mode) {
	if mode != pricing.ModeRetail && mode != pricing.ModeWholesale {
		return
	}
	c.mode = mode
	for _, l := range c.lines {
		item := catalog.Item{RetailPrice: l.RetailPrice, WholesalePrice: l.WholesalePrice}
		l.UnitPrice = pricing.ResolveUnitPrice(&item, mode)
	}
}

// Clear empties the cart and resets everything session-scoped: lines,
// customer, discounts, promotions and notes. Used on cancel and after a
// successful finalize.
func (c *Cart) Clear() {
	c.lines = nil
	c.globalDiscount = 0
	c.customerID = ""
	c.notes = ""
	c.promotionCodes = nil
}

// Snapshot produces the read-only view the promotion engine evaluates.
func (c *Cart) Snapshot() promotion.CartSnapshot {
	snap := promotion.CartSnapshot{}
	for _, l := range c.lines {
		snap.Lines = append(snap.Lines, promotion.CartLine{
			ProductID: l.ProductID,
			Category:  l.Category,
			Subtotal:  l.Subtotal(),
		})
		snap.Subtotal += l.Subtotal()
	}
	return snap
}

// Summary derives the cart totals. promoDiscount is the promotion
// discount computed by the engine for the currently recorded codes; the
// cart never stores it. Total is floored at zero.
func (c *Cart) Summary(promoDiscount int64) Summary {
	var subtotal, lineDiscounts int64
	for _, l := range c.lines {
		subtotal += l.Gross()
		lineDiscounts += l.effectiveDiscount()
	}

	discount := lineDiscounts + pricing.PercentOf(subtotal, c.globalDiscount) + promoDiscount
	if discount > subtotal {
		discount = subtotal
	}

	taxable := subtotal - discount
	tax := c.taxAmount(taxable)
	total := taxable + tax
	if total < 0 {
		total = 0
	}

	return Summary{
		Subtotal:       subtotal,
		DiscountAmount: discount,
		TaxableAmount:  taxable,
		TaxAmount:      tax,
		Total:          total,
	}
}

// taxAmount taxes the cart. With no per-line rate overrides the cart
// rate applies to the whole taxable amount. When a line carries its
// own rate, the taxable amount is split over the lines in proportion
// to their net subtotals, remainder to the last line, and each share
// is taxed at the line's effective rate.
func (c *Cart) taxAmount(taxable int64) int64 {
	overridden := false
	for _, l := range c.lines {
		if l.TaxRate > 0 {
			overridden = true
			break
		}
	}
	if !overridden {
		return pricing.PercentOf(taxable, c.taxRate)
	}

	var totalNet int64
	for _, l := range c.lines {
		totalNet += l.Subtotal()
	}

	var tax, allocated int64
	for i, l := range c.lines {
		var share int64
		if i == len(c.lines)-1 {
			share = taxable - allocated
		} else if totalNet > 0 {
			share = taxable * l.Subtotal() / totalNet
		}
		allocated += share

		rate := c.taxRate
		if l.TaxRate > 0 {
			rate = l.TaxRate
		}
		tax += pricing.PercentOf(share, rate)
	}
	return tax
}
