package promotion

import "time"

type Type string

const (
	TypePercentage Type = "percentage"
	TypeFixed      Type = "fixed"
)

// Promotion is the read-only promotion definition supplied by the
// promotion collaborator. Amounts are in cents, percents are plain
// percentages (10 = 10%). Zero StartsAt/EndsAt mean the window is
// unbounded on that side; a zero UsageLimit means unlimited usage.
type Promotion struct {
	Code        string    `json:"code"`
	Type        Type      `json:"type"`
	Percent     float64   `json:"percent,omitempty"`
	Amount      int64     `json:"amount,omitempty"`
	MinPurchase int64     `json:"min_purchase,omitempty"`
	MaxDiscount int64     `json:"max_discount,omitempty"`
	ProductIDs  []string  `json:"product_ids,omitempty"`
	Categories  []string  `json:"categories,omitempty"`
	StartsAt    time.Time `json:"starts_at,omitempty"`
	EndsAt      time.Time `json:"ends_at,omitempty"`
	UsageLimit  int       `json:"usage_limit,omitempty"`
	UsedCount   int       `json:"used_count,omitempty"`
	Active      bool      `json:"active"`
}

// restricted reports whether the promotion only applies to specific
// products or categories.
func (p *Promotion) restricted() bool {
	return len(p.ProductIDs) > 0 || len(p.Categories) > 0
}

// matches reports whether a cart line falls under the promotion's
// product/category restriction.
func (p *Promotion) matches(line CartLine) bool {
	for _, id := range p.ProductIDs {
		if id == line.ProductID {
			return true
		}
	}
	for _, c := range p.Categories {
		if c == line.Category {
			return true
		}
	}
	return false
}

// CartLine is the slice of cart state the engine evaluates against.
// Subtotal is the line subtotal after its line discount.
type CartLine struct {
	ProductID string
	Category  string
	Subtotal  int64
}

// CartSnapshot is a read-only view of the cart taken at evaluation time.
type CartSnapshot struct {
	Lines    []CartLine
	Subtotal int64
}

// Validation is the outcome of checking one promotion against a cart.
// An invalid promotion carries the reason of the first failing check.
type Validation struct {
	Valid  bool
	Reason string
}

// Validation reasons, one per named predicate.
const (
	ReasonInactive          = "promotion is not active"
	ReasonNotYetValid       = "promotion is not yet valid"
	ReasonExpired           = "promotion has expired"
	ReasonUsageLimitReached = "promotion usage limit reached"
	ReasonMinPurchaseNotMet = "cart subtotal below minimum purchase"
	ReasonNoMatchingItems   = "no cart items match the promotion"
	ReasonUnknownCode       = "unknown promotion code"
	ReasonZeroDiscount      = "promotion yields no discount"
)

// predicate is one named validation step. Predicates run in order and
// the first failure short-circuits with its reason.
type predicate struct {
	name  string
	check func(p *Promotion, snap CartSnapshot, now time.Time) (bool, string)
}

var validationOrder = []predicate{
	{
		name: "active",
		check: func(p *Promotion, _ CartSnapshot, _ time.Time) (bool, string) {
			if !p.Active {
				return false, ReasonInactive
			}
			return true, ""
		},
	},
	{
		name: "window",
		check: func(p *Promotion, _ CartSnapshot, now time.Time) (bool, string) {
			if !p.StartsAt.IsZero() && now.Before(p.StartsAt) {
				return false, ReasonNotYetValid
			}
			if !p.EndsAt.IsZero() && now.After(p.EndsAt) {
				return false, ReasonExpired
			}
			return true, ""
		},
	},
	{
		name: "usage",
		check: func(p *Promotion, _ CartSnapshot, _ time.Time) (bool, string) {
			if p.UsageLimit > 0 && p.UsedCount >= p.UsageLimit {
				return false, ReasonUsageLimitReached
			}
			return true, ""
		},
	},
	{
		name: "min_purchase",
		check: func(p *Promotion, snap CartSnapshot, _ time.Time) (bool, string) {
			if p.MinPurchase > 0 && snap.Subtotal < p.MinPurchase {
				return false, ReasonMinPurchaseNotMet
			}
			return true, ""
		},
	},
	{
		name: "item_match",
		check: func(p *Promotion, snap CartSnapshot, _ time.Time) (bool, string) {
			if !p.restricted() {
				return true, ""
			}
			for _, line := range snap.Lines {
				if p.matches(line) {
					return true, ""
				}
			}
			return false, ReasonNoMatchingItems
		},
	},
}
