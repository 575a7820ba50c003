package api

import (
	"errors"
	"sync"

	"github.com/example/pos-checkout/internal/checkout"
)

var ErrSessionNotFound = errors.New("checkout session not found")

// Registry holds the open checkout sessions, one per terminal
// interaction. Sessions are kept after completion so receipts stay
// readable until the registry is asked to drop them.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*checkout.Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*checkout.Session)}
}

func (r *Registry) Create(deps checkout.Deps) *checkout.Session {
	s := checkout.NewSession(deps)
	r.mu.Lock()
	r.sessions[s.ID()] = s
	r.mu.Unlock()
	return s
}

func (r *Registry) Get(id string) (*checkout.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (r *Registry) Delete(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}
