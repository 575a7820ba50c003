package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/pos-checkout/internal/catalog"
	"github.com/example/pos-checkout/internal/domain/cart"
	"github.com/example/pos-checkout/internal/domain/payment"
	"github.com/example/pos-checkout/internal/domain/pricing"
	"github.com/example/pos-checkout/internal/domain/promotion"
	"github.com/example/pos-checkout/internal/infrastructure/store"
	"github.com/example/pos-checkout/internal/ledger"
)

var (
	ErrSessionClosed     = errors.New("checkout session is closed")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrNotFullyPaid      = errors.New("sale is not fully paid")
	ErrInvalidTransition = errors.New("invalid session state transition")
)

type Status string

const (
	StatusBuilding        Status = "building"
	StatusAwaitingPayment Status = "awaiting_payment"
	StatusFullyPaid       Status = "fully_paid"
	StatusFinalizing      Status = "finalizing"
	StatusCompleted       Status = "completed"
	StatusCancelled       Status = "cancelled"
)

// validTransitions is the session state machine. The building states
// move freely among themselves as payments and lines change; only
// finalize and cancel are one-way.
var validTransitions = map[Status][]Status{
	StatusBuilding:        {StatusAwaitingPayment, StatusFullyPaid, StatusCancelled},
	StatusAwaitingPayment: {StatusBuilding, StatusFullyPaid, StatusCancelled},
	StatusFullyPaid:       {StatusBuilding, StatusAwaitingPayment, StatusFinalizing, StatusCancelled},
	StatusFinalizing:      {StatusFullyPaid, StatusCompleted},
	StatusCompleted:       nil,
	StatusCancelled:       nil,
}

func (s Status) canTransition(to Status) bool {
	for _, next := range validTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// PromotionError reports a rejected promotion code with the reason of
// the first failing check. The cart is left unchanged.
type PromotionError struct {
	Code   string
	Reason string
}

func (e *PromotionError) Error() string {
	return fmt.Sprintf("promotion %q rejected: %s", e.Code, e.Reason)
}

// FinalizeError carries the per-line reasons when the stock ledger
// refuses a sale. Nothing was written anywhere.
type FinalizeError struct {
	Errors []string
}

func (e *FinalizeError) Error() string {
	return "finalize failed: " + strings.Join(e.Errors, "; ")
}

// ReconciliationError means the stock movements committed but the sale
// record failed to persist. It carries everything needed to reconcile
// the store against the ledger by hand.
type ReconciliationError struct {
	SaleID      string
	MovementIDs []string
	Err         error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("sale %s requires reconciliation: stock committed (%d movements) but persistence failed: %v",
		e.SaleID, len(e.MovementIDs), e.Err)
}

func (e *ReconciliationError) Unwrap() error { return e.Err }

// PromotionSource hands back candidate promotions. Validity is always
// re-checked by the engine against the current cart.
type PromotionSource interface {
	ListActivePromotions() []*promotion.Promotion
}

// SaleLine is one immutable line of a finalized sale.
type SaleLine struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	SKU       string `json:"sku,omitempty"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	Discount  int64  `json:"discount"`
	Subtotal  int64  `json:"subtotal"`
}

// Sale is the finalized aggregate. It is created once by Finalize and
// never mutated afterwards.
type Sale struct {
	ID             string          `json:"id"`
	SessionID      string          `json:"session_id"`
	CustomerID     string          `json:"customer_id,omitempty"`
	Lines          []SaleLine      `json:"lines"`
	Payments       []payment.Entry `json:"payments"`
	Subtotal       int64           `json:"subtotal"`
	Discount       int64           `json:"discount"`
	Tax            int64           `json:"tax"`
	Total          int64           `json:"total"`
	Change         int64           `json:"change"`
	PromotionCodes []string        `json:"promotion_codes,omitempty"`
	Notes          string          `json:"notes,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// View is the read model of an open session, recomputed on every call.
type View struct {
	SessionID  string             `json:"session_id"`
	Status     Status             `json:"status"`
	Lines      []cart.Line        `json:"lines"`
	Promotions []promotion.Result `json:"promotions,omitempty"`
	Summary    cart.Summary       `json:"summary"`
	Payments   payment.State      `json:"payments"`
}

// Deps are the collaborators a session needs. Sales may be nil for a
// ledger-only deployment; Logger defaults to a no-op.
type Deps struct {
	Catalog    catalog.Source
	Promotions PromotionSource
	Engine     *promotion.Engine
	Ledger     *ledger.Ledger
	Sales      store.SaleStore
	Logger     *zap.Logger
	TaxRate    float64
}

// Session drives one checkout from an empty cart to a persisted sale.
// All operations serialize on the session mutex; a session is one
// logical actor even when the HTTP layer shares it across requests.
type Session struct {
	mu        sync.Mutex
	id        string
	status    Status
	cart      *cart.Cart
	payments  *payment.Reconciler
	deps      Deps
	now       func() time.Time
	createdAt time.Time
}

func NewSession(deps Deps) *Session {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	now := time.Now
	return &Session{
		id:        uuid.New().String(),
		status:    StatusBuilding,
		cart:      cart.New(deps.TaxRate),
		payments:  payment.NewReconciler(),
		deps:      deps,
		now:       now,
		createdAt: now(),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) CreatedAt() time.Time { return s.createdAt }

func (s *Session) ensureOpenLocked() error {
	switch s.status {
	case StatusFinalizing, StatusCompleted, StatusCancelled:
		return ErrSessionClosed
	}
	return nil
}

func (s *Session) transitionLocked(to Status) error {
	if !s.status.canTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.status, to)
	}
	s.status = to
	return nil
}

// summaryLocked recomputes promotions and totals from scratch. The
// result is never cached; stale totals are how oversells and underpaid
// finalizes happen.
func (s *Session) summaryLocked() (cart.Summary, []promotion.Result) {
	snap := s.cart.Snapshot()
	var available []*promotion.Promotion
	if s.deps.Promotions != nil {
		available = s.deps.Promotions.ListActivePromotions()
	}
	results := s.deps.Engine.Apply(s.cart.PromotionCodes(), available, snap)
	return s.cart.Summary(promotion.TotalDiscount(results)), results
}

// refreshLocked re-derives the payment-driven part of the state
// machine after any cart or payment mutation. The fully-paid gate is
// paid >= total, so a zero-total cart is fully paid with no entries at
// all; only a fresh empty session stays in building.
func (s *Session) refreshLocked() {
	if s.ensureOpenLocked() != nil {
		return
	}
	sum, _ := s.summaryLocked()
	switch {
	case s.payments.IsFullyPaid(sum.Total) && (len(s.payments.Entries()) > 0 || !s.cart.IsEmpty()):
		s.status = StatusFullyPaid
	case len(s.payments.Entries()) > 0:
		s.status = StatusAwaitingPayment
	default:
		s.status = StatusBuilding
	}
}

// AddItem looks the product up in the catalog, soft-checks current
// stock and adds it to the cart, merging with an existing line.
func (s *Session) AddItem(productID string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpenLocked(); err != nil {
		return err
	}

	item, err := s.deps.Catalog.GetItem(productID)
	if err != nil {
		return err
	}
	avail := s.deps.Ledger.CheckAvailability(productID, quantity)
	if err := s.cart.Add(item, quantity, avail.MaxAvailable); err != nil {
		return err
	}
	s.refreshLocked()
	return nil
}

// UpdateQuantity sets a line's quantity. A quantity below one removes
// the line.
func (s *Session) UpdateQuantity(productID string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpenLocked(); err != nil {
		return err
	}

	avail := s.deps.Ledger.CheckAvailability(productID, quantity)
	if err := s.cart.UpdateQuantity(productID, quantity, avail.MaxAvailable); err != nil {
		return err
	}
	s.refreshLocked()
	return nil
}

func (s *Session) RemoveItem(productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpenLocked(); err != nil {
		return err
	}
	s.cart.Remove(productID)
	s.refreshLocked()
	return nil
}

func (s *Session) SetLineDiscount(productID string, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpenLocked(); err != nil {
		return err
	}
	if err := s.cart.SetLineDiscount(productID, amount); err != nil {
		return err
	}
	s.refreshLocked()
	return nil
}

func (s *Session) SetGlobalDiscount(percent float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpenLocked(); err != nil {
		return err
	}
	if err := s.cart.SetGlobalDiscount(percent); err != nil {
		return err
	}
	s.refreshLocked()
	return nil
}

func (s *Session) SetPricingMode(mode pricing.Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpenLocked(); err != nil {
		return err
	}
	s.cart.SetMode(mode)
	s.refreshLocked()
	return nil
}

func (s *Session) SetCustomer(customerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpenLocked(); err != nil {
		return err
	}
	s.cart.SetCustomer(customerID)
	return nil
}

func (s *Session) SetNotes(notes string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpenLocked(); err != nil {
		return err
	}
	s.cart.SetNotes(notes)
	return nil
}

// ApplyPromotionCode validates the code against the current cart and
// records it. The discount itself is re-derived on every summary, so a
// code that later turns invalid simply stops contributing.
func (s *Session) ApplyPromotionCode(code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpenLocked(); err != nil {
		return err
	}

	var match *promotion.Promotion
	if s.deps.Promotions != nil {
		for _, p := range s.deps.Promotions.ListActivePromotions() {
			if p.Code == code {
				match = p
				break
			}
		}
	}
	if match == nil {
		return &PromotionError{Code: code, Reason: promotion.ReasonUnknownCode}
	}
	if v := s.deps.Engine.Validate(match, s.cart.Snapshot()); !v.Valid {
		return &PromotionError{Code: code, Reason: v.Reason}
	}

	codes := s.cart.PromotionCodes()
	for _, c := range codes {
		if c == code {
			return nil
		}
	}
	s.cart.SetPromotionCodes(append(codes, code))
	s.refreshLocked()
	return nil
}

func (s *Session) RemovePromotionCode(code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpenLocked(); err != nil {
		return err
	}

	codes := s.cart.PromotionCodes()
	kept := codes[:0]
	for _, c := range codes {
		if c != code {
			kept = append(kept, c)
		}
	}
	s.cart.SetPromotionCodes(kept)
	s.refreshLocked()
	return nil
}

// AddPayment records a partial payment. A rejected payment leaves the
// reconciler untouched and never aborts the session.
func (s *Session) AddPayment(method payment.Method, amount int64, reference string) (payment.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpenLocked(); err != nil {
		return payment.Entry{}, err
	}

	entry, err := s.payments.Add(method, amount, reference)
	if err != nil {
		return payment.Entry{}, err
	}
	s.refreshLocked()
	return entry, nil
}

func (s *Session) RemovePayment(entryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpenLocked(); err != nil {
		return err
	}
	if err := s.payments.Remove(entryID); err != nil {
		return err
	}
	s.refreshLocked()
	return nil
}

// Summary returns the full recomputed view of the session.
func (s *Session) Summary() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum, results := s.summaryLocked()
	return View{
		SessionID:  s.id,
		Status:     s.status,
		Lines:      s.cart.Lines(),
		Promotions: results,
		Summary:    sum,
		Payments:   s.payments.State(sum.Total),
	}
}

// Cancel abandons the session. Nothing was written, so there is
// nothing to undo beyond clearing the in-memory state.
func (s *Session) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.transitionLocked(StatusCancelled); err != nil {
		return err
	}
	s.cart.Clear()
	s.payments.Clear()
	return nil
}

// Finalize commits the sale: re-derive the authoritative summary,
// assert full payment, commit stock through the ledger, then persist
// the aggregate. A store failure after the ledger committed returns
// the sale together with a ReconciliationError; from that point the
// sale is stock-committed and is never silently abandoned.
func (s *Session) Finalize(ctx context.Context) (*Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureOpenLocked(); err != nil {
		return nil, err
	}
	if s.cart.IsEmpty() {
		return nil, ErrEmptyCart
	}

	sum, results := s.summaryLocked()
	if !s.payments.IsFullyPaid(sum.Total) {
		return nil, ErrNotFullyPaid
	}
	s.refreshLocked()
	if err := s.transitionLocked(StatusFinalizing); err != nil {
		return nil, err
	}

	saleID := uuid.New().String()
	lines := s.cart.Lines()
	saleLines := make([]ledger.SaleLine, 0, len(lines))
	for _, l := range lines {
		saleLines = append(saleLines, ledger.SaleLine{ProductID: l.ProductID, Quantity: l.Quantity})
	}

	result := s.deps.Ledger.ProcessSale(ctx, saleLines, saleID)
	if !result.Success {
		s.status = StatusFullyPaid
		return nil, &FinalizeError{Errors: result.Errors}
	}

	sale := s.buildSaleLocked(saleID, sum, results, lines)

	if err := s.persistLocked(ctx, sale); err != nil {
		movementIDs := make([]string, 0, len(result.Movements))
		for _, m := range result.Movements {
			movementIDs = append(movementIDs, m.ID)
		}
		s.completeLocked()
		s.deps.Logger.Error("sale stock committed but persistence failed",
			zap.String("sale_id", saleID),
			zap.Strings("movement_ids", movementIDs),
			zap.Error(err))
		return sale, &ReconciliationError{SaleID: saleID, MovementIDs: movementIDs, Err: err}
	}

	s.completeLocked()
	s.deps.Logger.Info("sale completed",
		zap.String("sale_id", saleID),
		zap.String("session_id", s.id),
		zap.Int64("total", sale.Total))
	return sale, nil
}

func (s *Session) buildSaleLocked(saleID string, sum cart.Summary, results []promotion.Result, lines []cart.Line) *Sale {
	saleLines := make([]SaleLine, 0, len(lines))
	for _, l := range lines {
		saleLines = append(saleLines, SaleLine{
			ProductID: l.ProductID,
			Name:      l.Name,
			SKU:       l.SKU,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Discount:  l.Discount,
			Subtotal:  l.Subtotal(),
		})
	}
	return &Sale{
		ID:             saleID,
		SessionID:      s.id,
		CustomerID:     s.cart.CustomerID(),
		Lines:          saleLines,
		Payments:       s.payments.Entries(),
		Subtotal:       sum.Subtotal,
		Discount:       sum.DiscountAmount,
		Tax:            sum.TaxAmount,
		Total:          sum.Total,
		Change:         s.payments.Change(sum.Total),
		PromotionCodes: promotion.AppliedCodes(results),
		Notes:          s.cart.Notes(),
		CreatedAt:      s.now(),
	}
}

func (s *Session) persistLocked(ctx context.Context, sale *Sale) error {
	if s.deps.Sales == nil {
		return nil
	}

	rec := store.SaleRecord{
		ID:             sale.ID,
		CustomerID:     sale.CustomerID,
		Status:         string(StatusCompleted),
		Subtotal:       sale.Subtotal,
		Discount:       sale.Discount,
		Tax:            sale.Tax,
		Total:          sale.Total,
		PromotionCodes: sale.PromotionCodes,
		Notes:          sale.Notes,
		CreatedAt:      sale.CreatedAt,
	}
	lineRecs := make([]store.SaleLineRecord, 0, len(sale.Lines))
	for _, l := range sale.Lines {
		lineRecs = append(lineRecs, store.SaleLineRecord{
			SaleID:    sale.ID,
			ProductID: l.ProductID,
			Name:      l.Name,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Discount:  l.Discount,
			Subtotal:  l.Subtotal,
		})
	}
	payRecs := make([]store.PaymentRecord, 0, len(sale.Payments))
	for _, e := range sale.Payments {
		payRecs = append(payRecs, store.PaymentRecord{
			ID:        e.ID,
			SaleID:    sale.ID,
			Method:    string(e.Method),
			Amount:    e.Amount,
			Reference: e.Reference,
			CreatedAt: e.RecordedAt,
		})
	}
	return s.deps.Sales.InsertSale(ctx, rec, lineRecs, payRecs)
}

func (s *Session) completeLocked() {
	s.status = StatusCompleted
	s.cart.Clear()
	s.payments.Clear()
}
