package promotion

import "sync"

// MemorySource is a thread-safe in-memory promotion catalog. The
// engine re-validates every promotion per cart, so the source only has
// to hand back candidates.
type MemorySource struct {
	mu         sync.RWMutex
	promotions []*Promotion
}

func NewMemorySource() *MemorySource {
	return &MemorySource{}
}

// Put adds a promotion, replacing any existing one with the same code.
func (s *MemorySource) Put(p *Promotion) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.promotions {
		if existing.Code == p.Code {
			s.promotions[i] = p
			return
		}
	}
	s.promotions = append(s.promotions, p)
}

func (s *MemorySource) ListActivePromotions() []*Promotion {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*Promotion(nil), s.promotions...)
}
