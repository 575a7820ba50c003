package store

import (
	"context"
	"sync"
)

// MemoryMovementStore keeps movements in memory, grouped by product.
type MemoryMovementStore struct {
	mu        sync.RWMutex
	movements map[string][]MovementRecord // productID -> records
}

func NewMemoryMovementStore() *MemoryMovementStore {
	return &MemoryMovementStore{movements: make(map[string][]MovementRecord)}
}

func (s *MemoryMovementStore) InsertMovement(_ context.Context, m MovementRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.movements[m.ProductID] = append(s.movements[m.ProductID], m)
	return nil
}

func (s *MemoryMovementStore) ListMovements(_ context.Context, productID string) ([]MovementRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]MovementRecord(nil), s.movements[productID]...), nil
}

// MemorySale is a stored sale with its children, used by tests and the
// in-memory backend.
type MemorySale struct {
	Sale     SaleRecord
	Lines    []SaleLineRecord
	Payments []PaymentRecord
}

// MemorySaleStore keeps finalized sales in memory.
type MemorySaleStore struct {
	mu    sync.RWMutex
	sales map[string]MemorySale
	order []string
}

func NewMemorySaleStore() *MemorySaleStore {
	return &MemorySaleStore{sales: make(map[string]MemorySale)}
}

func (s *MemorySaleStore) InsertSale(_ context.Context, sale SaleRecord, lines []SaleLineRecord, payments []PaymentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sales[sale.ID] = MemorySale{Sale: sale, Lines: lines, Payments: payments}
	s.order = append(s.order, sale.ID)
	return nil
}

func (s *MemorySaleStore) GetSale(id string) (MemorySale, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sale, ok := s.sales[id]
	return sale, ok
}

func (s *MemorySaleStore) ListSales() []MemorySale {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]MemorySale, 0, len(s.order))
	for _, id := range s.order {
		sales = append(sales, s.sales[id])
	}
	return sales
}
