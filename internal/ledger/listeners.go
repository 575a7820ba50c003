package ledger

import "sync"

// Event kinds delivered to subscribers and published externally.
const (
	EventMovement     = "movement"
	EventAlertRaised  = "alert_raised"
	EventAlertCleared = "alert_cleared"
)

// Event is one ledger notification. Movement is set for movement
// events, Alert for alert events.
type Event struct {
	Kind      string    `json:"kind"`
	ProductID string    `json:"product_id"`
	Movement  *Movement `json:"movement,omitempty"`
	Alert     *Alert    `json:"alert,omitempty"`
}

// EventKind tags the event for transports that route without decoding
// the payload.
func (e Event) EventKind() string { return e.Kind }

// registry is the in-process listener set. Handlers are invoked
// synchronously after an append commits, which gives at-least-once
// delivery to every registered subscriber.
type registry struct {
	mu       sync.Mutex
	nextID   int
	handlers map[int]func(Event)
}

func newRegistry() *registry {
	return &registry{handlers: make(map[int]func(Event))}
}

func (r *registry) subscribe(handler func(Event)) func() {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.handlers[id] = handler
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.handlers, id)
		r.mu.Unlock()
	}
}

func (r *registry) notify(e Event) {
	r.mu.Lock()
	handlers := make([]func(Event), 0, len(r.handlers))
	for _, h := range r.handlers {
		handlers = append(handlers, h)
	}
	r.mu.Unlock()

	for _, h := range handlers {
		h(e)
	}
}
