package payment

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type Method string

const (
	MethodCash     Method = "cash"
	MethodCard     Method = "card"
	MethodTransfer Method = "transfer"
	MethodCredit   Method = "credit"
)

var (
	ErrInvalidAmount     = errors.New("payment amount must be positive")
	ErrUnknownMethod     = errors.New("unknown payment method")
	ErrReferenceRequired = errors.New("payment method requires a reference")
	ErrEntryNotFound     = errors.New("payment entry not found")
)

// requiresReference reports whether the method needs an authorization
// or transfer reference to be recorded.
func (m Method) requiresReference() bool {
	return m == MethodCard || m == MethodTransfer
}

func (m Method) valid() bool {
	switch m {
	case MethodCash, MethodCard, MethodTransfer, MethodCredit:
		return true
	}
	return false
}

// Entry is one recorded partial payment. Entries are removable until
// the sale is finalized, immutable afterwards.
type Entry struct {
	ID         string    `json:"id"`
	Method     Method    `json:"method"`
	Amount     int64     `json:"amount"`
	Reference  string    `json:"reference,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Reconciler accumulates payment entries against a sale total and
// answers whether the sale is fully paid. It never mutates the cart;
// the total is always supplied by the caller's fresh summary.
type Reconciler struct {
	entries []Entry
	now     func() time.Time
}

func NewReconciler() *Reconciler {
	return &Reconciler{now: time.Now}
}

// Add validates and records a payment entry. A rejected entry leaves
// the recorded payments untouched.
func (r *Reconciler) Add(method Method, amount int64, reference string) (Entry, error) {
	if !method.valid() {
		return Entry{}, ErrUnknownMethod
	}
	if amount <= 0 {
		return Entry{}, ErrInvalidAmount
	}
	if method.requiresReference() && reference == "" {
		return Entry{}, ErrReferenceRequired
	}

	entry := Entry{
		ID:         uuid.New().String(),
		Method:     method,
		Amount:     amount,
		Reference:  reference,
		RecordedAt: r.now(),
	}
	r.entries = append(r.entries, entry)
	return entry, nil
}

func (r *Reconciler) Remove(id string) error {
	for i, e := range r.entries {
		if e.ID == id {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return nil
		}
	}
	return ErrEntryNotFound
}

// Entries returns a copy of the recorded payments in order.
func (r *Reconciler) Entries() []Entry {
	return append([]Entry(nil), r.entries...)
}

func (r *Reconciler) Clear() {
	r.entries = nil
}

func (r *Reconciler) TotalPaid() int64 {
	var total int64
	for _, e := range r.entries {
		total += e.Amount
	}
	return total
}

func (r *Reconciler) Remaining(total int64) int64 {
	if remaining := total - r.TotalPaid(); remaining > 0 {
		return remaining
	}
	return 0
}

func (r *Reconciler) Change(total int64) int64 {
	if change := r.TotalPaid() - total; change > 0 {
		return change
	}
	return 0
}

// IsFullyPaid is the single gate that authorizes finalization.
func (r *Reconciler) IsFullyPaid(total int64) bool {
	return r.TotalPaid() >= total
}

// State is a read-only view of the reconciler against a given total,
// exposed to the UI layer.
type State struct {
	Entries   []Entry `json:"entries"`
	TotalPaid int64   `json:"total_paid"`
	Remaining int64   `json:"remaining"`
	Change    int64   `json:"change"`
	FullyPaid bool    `json:"fully_paid"`
}

func (r *Reconciler) State(total int64) State {
	return State{
		Entries:   r.Entries(),
		TotalPaid: r.TotalPaid(),
		Remaining: r.Remaining(total),
		Change:    r.Change(total),
		FullyPaid: r.IsFullyPaid(total),
	}
}
