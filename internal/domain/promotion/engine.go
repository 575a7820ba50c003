package promotion

import (
	"errors"
	"time"

	"github.com/example/pos-checkout/internal/domain/pricing"
)

var ErrInvalidConfig = errors.New("max promotions per order must be positive")

// Config controls how many promotions a single order may carry and how
// they are selected.
type Config struct {
	AllowStacking         bool
	MaxPromotionsPerOrder int
	AutoApplyBest         bool
}

// Engine evaluates promotions against cart snapshots. It is stateless
// apart from its configuration; promotion lifecycle is owned externally.
type Engine struct {
	cfg Config
	now func() time.Time
}

func NewEngine(cfg Config) (*Engine, error) {
	if cfg.MaxPromotionsPerOrder <= 0 {
		return nil, ErrInvalidConfig
	}
	return &Engine{cfg: cfg, now: time.Now}, nil
}

// WithClock replaces the engine's time source. Tests use it to pin the
// validation window checks.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Validate runs the ordered validation predicates and short-circuits on
// the first failure.
func (e *Engine) Validate(p *Promotion, snap CartSnapshot) Validation {
	for _, pred := range validationOrder {
		ok, reason := pred.check(p, snap, e.now())
		if !ok {
			return Validation{Valid: false, Reason: reason}
		}
	}
	return Validation{Valid: true}
}

// CalculateDiscount computes the promotion's discount against the cart.
// The base is the full cart subtotal, or only the matching lines when
// the promotion is restricted. The result is clamped to MaxDiscount and
// never exceeds the applicable base.
func (e *Engine) CalculateDiscount(p *Promotion, snap CartSnapshot) int64 {
	base := snap.Subtotal
	if p.restricted() {
		base = 0
		for _, line := range snap.Lines {
			if p.matches(line) {
				base += line.Subtotal
			}
		}
	}
	if base <= 0 {
		return 0
	}

	var discount int64
	switch p.Type {
	case TypePercentage:
		discount = pricing.PercentOf(base, p.Percent)
	case TypeFixed:
		discount = p.Amount
	}

	if p.MaxDiscount > 0 && discount > p.MaxDiscount {
		discount = p.MaxDiscount
	}
	if discount > base {
		discount = base
	}
	if discount < 0 {
		discount = 0
	}
	return discount
}

// Result reports one evaluation attempt. Rejected attempts are kept so
// callers can show why a code did not apply.
type Result struct {
	Code     string `json:"code"`
	Applied  bool   `json:"applied"`
	Discount int64  `json:"discount"`
	Reason   string `json:"reason,omitempty"`
}

// TotalDiscount sums the discounts of the applied results.
func TotalDiscount(results []Result) int64 {
	var total int64
	for _, r := range results {
		if r.Applied {
			total += r.Discount
		}
	}
	return total
}

// AppliedCodes returns the codes of the applied results, in order.
func AppliedCodes(results []Result) []string {
	var codes []string
	for _, r := range results {
		if r.Applied {
			codes = append(codes, r.Code)
		}
	}
	return codes
}

// Apply evaluates the explicitly requested codes in the order given,
// then falls back to auto-applying the best available promotion when no
// code applied and auto-apply is enabled. Every attempt, applied or
// rejected, appears in the result list.
func (e *Engine) Apply(codes []string, available []*Promotion, snap CartSnapshot) []Result {
	byCode := make(map[string]*Promotion, len(available))
	for _, p := range available {
		byCode[p.Code] = p
	}

	var results []Result
	applied := 0

	for _, code := range codes {
		if applied >= e.cfg.MaxPromotionsPerOrder {
			break
		}
		p, ok := byCode[code]
		if !ok {
			results = append(results, Result{Code: code, Reason: ReasonUnknownCode})
			continue
		}
		if v := e.Validate(p, snap); !v.Valid {
			results = append(results, Result{Code: code, Reason: v.Reason})
			continue
		}
		discount := e.CalculateDiscount(p, snap)
		if discount <= 0 {
			results = append(results, Result{Code: code, Reason: ReasonZeroDiscount})
			continue
		}
		results = append(results, Result{Code: code, Applied: true, Discount: discount})
		applied++
		if !e.cfg.AllowStacking {
			break
		}
	}

	if applied == 0 && e.cfg.AutoApplyBest {
		if best := e.bestAvailable(available, snap); best != nil {
			results = append(results, *best)
		}
	}

	return results
}

// bestAvailable scans every available promotion and returns the single
// highest-discount valid one. Ties resolve to the earliest in the list.
func (e *Engine) bestAvailable(available []*Promotion, snap CartSnapshot) *Result {
	var best *Result
	for _, p := range available {
		if v := e.Validate(p, snap); !v.Valid {
			continue
		}
		discount := e.CalculateDiscount(p, snap)
		if discount <= 0 {
			continue
		}
		if best == nil || discount > best.Discount {
			best = &Result{Code: p.Code, Applied: true, Discount: discount}
		}
	}
	return best
}
