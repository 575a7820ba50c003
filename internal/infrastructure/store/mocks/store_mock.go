package mocks

import (
	"context"
	"sync"

	"github.com/example/pos-checkout/internal/infrastructure/store"
)

// MockMovementStore is a MovementStore that records calls for tests.
type MockMovementStore struct {
	mu        sync.RWMutex
	movements map[string][]store.MovementRecord

	InsertCalls []store.MovementRecord
	InsertErr   error
}

func NewMockMovementStore() *MockMovementStore {
	return &MockMovementStore{
		movements:   make(map[string][]store.MovementRecord),
		InsertCalls: make([]store.MovementRecord, 0),
	}
}

func (m *MockMovementStore) InsertMovement(_ context.Context, rec store.MovementRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.InsertCalls = append(m.InsertCalls, rec)
	if m.InsertErr != nil {
		return m.InsertErr
	}
	m.movements[rec.ProductID] = append(m.movements[rec.ProductID], rec)
	return nil
}

func (m *MockMovementStore) ListMovements(_ context.Context, productID string) ([]store.MovementRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]store.MovementRecord(nil), m.movements[productID]...), nil
}

// Reset clears stored movements and recorded calls.
func (m *MockMovementStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.movements = make(map[string][]store.MovementRecord)
	m.InsertCalls = make([]store.MovementRecord, 0)
	m.InsertErr = nil
}

// InsertSaleCall records parameters passed to InsertSale.
type InsertSaleCall struct {
	Sale     store.SaleRecord
	Lines    []store.SaleLineRecord
	Payments []store.PaymentRecord
}

// MockSaleStore is a SaleStore that records calls for tests.
type MockSaleStore struct {
	mu sync.Mutex

	InsertCalls []InsertSaleCall
	InsertErr   error
}

func NewMockSaleStore() *MockSaleStore {
	return &MockSaleStore{InsertCalls: make([]InsertSaleCall, 0)}
}

func (m *MockSaleStore) InsertSale(_ context.Context, sale store.SaleRecord, lines []store.SaleLineRecord, payments []store.PaymentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.InsertCalls = append(m.InsertCalls, InsertSaleCall{Sale: sale, Lines: lines, Payments: payments})
	return m.InsertErr
}

// Reset clears recorded calls.
func (m *MockSaleStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InsertCalls = make([]InsertSaleCall, 0)
	m.InsertErr = nil
}
