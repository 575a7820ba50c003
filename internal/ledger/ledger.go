package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/pos-checkout/internal/infrastructure/store"
)

type MovementType string

const (
	TypeSale       MovementType = "sale"
	TypeRestock    MovementType = "restock"
	TypeAdjustment MovementType = "adjustment"
	TypeReturn     MovementType = "return"
)

var (
	ErrUnknownProduct = errors.New("product not registered in ledger")
	ErrProductExists  = errors.New("product already registered in ledger")
	ErrAlertNotFound  = errors.New("alert not found")
)

// Movement is one append-only ledger entry. Quantity is the signed
// stock delta; ResultingStock is the projection after applying it.
type Movement struct {
	ID             string       `json:"id"`
	ProductID      string       `json:"product_id"`
	Type           MovementType `json:"type"`
	Quantity       int          `json:"quantity"`
	PreviousStock  int          `json:"previous_stock"`
	ResultingStock int          `json:"resulting_stock"`
	Reference      string       `json:"reference,omitempty"`
	Notes          string       `json:"notes,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
}

// Thresholds are the per-product alert bounds. A zero MaxStock means no
// maximum is configured; a zero MinStock disables the low-stock alert.
type Thresholds struct {
	MinStock int `json:"min_stock"`
	MaxStock int `json:"max_stock"`
}

// Availability answers whether a quantity can currently be sold.
type Availability struct {
	Available    bool   `json:"available"`
	MaxAvailable int    `json:"max_available"`
	Reason       string `json:"reason,omitempty"`
}

// SaleLine is one line of a sale the ledger is asked to commit.
type SaleLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// SaleResult reports a ProcessSale outcome. On failure Errors carries
// one reason per failing line and Movements is empty.
type SaleResult struct {
	Success   bool       `json:"success"`
	Errors    []string   `json:"errors,omitempty"`
	Movements []Movement `json:"movements,omitempty"`
}

// Publisher pushes ledger events to an external stream. The kafka
// producer satisfies it; a nil publisher disables external publishing.
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// productState is the per-product projection. Its mutex is the
// serialization point for every check-then-append on the product.
type productState struct {
	mu         sync.Mutex
	stock      int
	thresholds Thresholds
	movements  []Movement
	active     *Alert  // at most one unacknowledged alert
	history    []Alert // acknowledged alerts, kept as record
}

// Ledger derives current stock per product from an append-only movement
// log and raises threshold alerts as movements land. It is constructed
// explicitly and injected; there is no package-level instance.
type Ledger struct {
	mu       sync.RWMutex
	products map[string]*productState

	store     store.MovementStore
	publisher Publisher
	logger    *zap.Logger
	registry  *registry
	now       func() time.Time
}

type Option func(*Ledger)

// WithMovementStore makes every appended movement durable.
func WithMovementStore(s store.MovementStore) Option {
	return func(l *Ledger) { l.store = s }
}

// WithPublisher streams movement and alert events externally.
func WithPublisher(p Publisher) Option {
	return func(l *Ledger) { l.publisher = p }
}

func WithLogger(logger *zap.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// WithClock replaces the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func New(opts ...Option) *Ledger {
	l := &Ledger{
		products: make(map[string]*productState),
		logger:   zap.NewNop(),
		registry: newRegistry(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Register seeds a product with its starting stock and thresholds.
// Current stock is this initial value plus the sum of movement deltas.
func (l *Ledger) Register(productID string, initialStock int, th Thresholds) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.products[productID]; ok {
		return ErrProductExists
	}
	l.products[productID] = &productState{stock: initialStock, thresholds: th}
	return nil
}

func (l *Ledger) state(productID string) (*productState, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ps, ok := l.products[productID]
	return ps, ok
}

func (l *Ledger) CurrentStock(productID string) (int, error) {
	ps, ok := l.state(productID)
	if !ok {
		return 0, ErrUnknownProduct
	}
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.stock, nil
}

// Movements returns the append-only log for a product, oldest first.
func (l *Ledger) Movements(productID string) ([]Movement, error) {
	ps, ok := l.state(productID)
	if !ok {
		return nil, ErrUnknownProduct
	}
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return append([]Movement(nil), ps.movements...), nil
}

// CheckAvailability reports whether qty units can be sold right now.
func (l *Ledger) CheckAvailability(productID string, qty int) Availability {
	ps, ok := l.state(productID)
	if !ok {
		return Availability{Reason: "product not found"}
	}

	ps.mu.Lock()
	stock := ps.stock
	ps.mu.Unlock()

	switch {
	case stock == 0:
		return Availability{Reason: "out of stock"}
	case qty > stock:
		return Availability{
			MaxAvailable: stock,
			Reason:       fmt.Sprintf("requested %d, only %d available", qty, stock),
		}
	default:
		return Availability{Available: true, MaxAvailable: stock}
	}
}

// UpdateStock is the single primitive every stock mutation funnels
// through. The resulting stock is clamped at zero; the delta itself is
// not validated against stock, so sale callers must pre-check through
// ProcessSale to avoid overselling.
func (l *Ledger) UpdateStock(ctx context.Context, productID string, delta int, typ MovementType, reference, notes string) (*Movement, error) {
	ps, ok := l.state(productID)
	if !ok {
		return nil, ErrUnknownProduct
	}

	ps.mu.Lock()
	movement, events := l.applyLocked(ps, productID, delta, typ, reference, notes)
	ps.mu.Unlock()

	l.afterAppend(ctx, []Movement{movement}, events)
	return &movement, nil
}

// applyLocked appends one movement and re-derives the product's alert.
// Caller holds the product mutex.
func (l *Ledger) applyLocked(ps *productState, productID string, delta int, typ MovementType, reference, notes string) (Movement, []Event) {
	prev := ps.stock
	next := prev + delta
	if next < 0 {
		next = 0
	}

	movement := Movement{
		ID:             uuid.New().String(),
		ProductID:      productID,
		Type:           typ,
		Quantity:       delta,
		PreviousStock:  prev,
		ResultingStock: next,
		Reference:      reference,
		Notes:          notes,
		CreatedAt:      l.now(),
	}
	ps.movements = append(ps.movements, movement)
	ps.stock = next

	events := []Event{{Kind: EventMovement, ProductID: productID, Movement: &movement}}
	events = append(events, l.deriveAlertLocked(ps, productID, next)...)
	return movement, events
}

// afterAppend persists, publishes and notifies outside the product
// locks. Persistence failures are logged, not returned; the in-memory
// projection already holds the movements and remains authoritative.
func (l *Ledger) afterAppend(ctx context.Context, movements []Movement, events []Event) {
	if l.store != nil {
		for _, m := range movements {
			rec := store.MovementRecord{
				ID:             m.ID,
				ProductID:      m.ProductID,
				Type:           string(m.Type),
				Quantity:       m.Quantity,
				PreviousStock:  m.PreviousStock,
				ResultingStock: m.ResultingStock,
				Reference:      m.Reference,
				Notes:          m.Notes,
				CreatedAt:      m.CreatedAt,
			}
			if err := l.store.InsertMovement(ctx, rec); err != nil {
				l.logger.Error("failed to persist stock movement",
					zap.String("movement_id", m.ID),
					zap.String("product_id", m.ProductID),
					zap.Error(err))
			}
		}
	}

	for _, e := range events {
		if l.publisher != nil {
			if err := l.publisher.Publish(ctx, e.ProductID, e); err != nil {
				l.logger.Warn("failed to publish ledger event",
					zap.String("kind", e.Kind),
					zap.String("product_id", e.ProductID),
					zap.Error(err))
			}
		}
		l.registry.notify(e)
	}
}

// ProcessSale commits a multi-line sale all-or-nothing. Every line is
// availability-checked while all affected products are locked; if any
// line fails, no movement is written. Products lock in sorted id order
// so concurrent sales over overlapping product sets cannot deadlock.
func (l *Ledger) ProcessSale(ctx context.Context, lines []SaleLine, reference string) SaleResult {
	if len(lines) == 0 {
		return SaleResult{Errors: []string{"sale has no lines"}}
	}

	// Merge duplicate product lines so the availability check sees the
	// combined quantity.
	wanted := make(map[string]int)
	for _, line := range lines {
		wanted[line.ProductID] += line.Quantity
	}

	ids := make([]string, 0, len(wanted))
	for id := range wanted {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	states := make(map[string]*productState, len(ids))
	var errs []string
	var known []string
	for _, id := range ids {
		ps, ok := l.state(id)
		if !ok {
			errs = append(errs, fmt.Sprintf("%s: product not found", id))
			continue
		}
		states[id] = ps
		known = append(known, id)
	}

	for _, id := range known {
		states[id].mu.Lock()
	}
	unlock := func() {
		for i := len(known) - 1; i >= 0; i-- {
			states[known[i]].mu.Unlock()
		}
	}

	// Every line is checked so the caller gets the full error list, not
	// just the first failure.
	for _, id := range known {
		ps := states[id]
		qty := wanted[id]
		switch {
		case ps.stock == 0:
			errs = append(errs, fmt.Sprintf("%s: out of stock", id))
		case qty > ps.stock:
			errs = append(errs, fmt.Sprintf("%s: requested %d, only %d available", id, qty, ps.stock))
		}
	}
	if len(errs) > 0 {
		unlock()
		return SaleResult{Errors: errs}
	}

	var movements []Movement
	var events []Event
	for _, id := range known {
		movement, evts := l.applyLocked(states[id], id, -wanted[id], TypeSale, reference, "")
		movements = append(movements, movement)
		events = append(events, evts...)
	}
	unlock()

	// Persist and notify only after every append landed, so subscribers
	// never observe a partially committed sale.
	l.afterAppend(ctx, movements, events)

	return SaleResult{Success: true, Movements: movements}
}

// Subscribe registers a listener for ledger events. The returned
// function unsubscribes it. Listeners run synchronously on the
// appending goroutine, after the append is fully committed.
func (l *Ledger) Subscribe(handler func(Event)) (unsubscribe func()) {
	return l.registry.subscribe(handler)
}
