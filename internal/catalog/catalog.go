package catalog

import (
	"errors"
	"sync"
)

var ErrItemNotFound = errors.New("catalog item not found")

// Item is the read-only product record the checkout core consumes.
// Prices are in cents. A zero WholesalePrice means the item has no
// wholesale price and retail applies in every pricing mode.
type Item struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	SKU            string  `json:"sku"`
	Category       string  `json:"category"`
	RetailPrice    int64   `json:"retail_price"`
	WholesalePrice int64   `json:"wholesale_price,omitempty"`
	TaxRate        float64 `json:"tax_rate"`
	MinStock       int     `json:"min_stock"`
	MaxStock       int     `json:"max_stock"` // 0 = no maximum configured
}

// Source is the catalog collaborator the core reads items from.
type Source interface {
	GetItem(id string) (*Item, error)
}

// MemorySource is an in-memory catalog used in tests and as the default
// backing when no external catalog is wired.
type MemorySource struct {
	mu    sync.RWMutex
	items map[string]Item
}

func NewMemorySource() *MemorySource {
	return &MemorySource{items: make(map[string]Item)}
}

func (s *MemorySource) Put(item Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ID] = item
}

func (s *MemorySource) GetItem(id string) (*Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return nil, ErrItemNotFound
	}
	return &item, nil
}

// ListItems returns every item in the source, in no particular order.
func (s *MemorySource) ListItems() []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]Item, 0, len(s.items))
	for _, item := range s.items {
		items = append(items, item)
	}
	return items
}
