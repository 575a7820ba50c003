package ledger

import (
	"time"

	"github.com/google/uuid"
)

type AlertType string

const (
	AlertOutOfStock  AlertType = "out_of_stock"
	AlertLowStock    AlertType = "low_stock"
	AlertOverstocked AlertType = "overstocked"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Alert flags a product whose stock crossed a threshold. At most one
// unacknowledged alert exists per product; a movement that changes the
// condition supersedes it. Acknowledged alerts stay as history.
type Alert struct {
	ID           string    `json:"id"`
	ProductID    string    `json:"product_id"`
	Type         AlertType `json:"type"`
	Severity     Severity  `json:"severity"`
	CurrentStock int       `json:"current_stock"`
	Acknowledged bool      `json:"acknowledged"`
	CreatedAt    time.Time `json:"created_at"`
}

// alertCondition maps a resulting stock against the product thresholds.
// Returns an empty type when no condition holds.
func alertCondition(stock int, th Thresholds) (AlertType, Severity) {
	switch {
	case stock == 0:
		return AlertOutOfStock, SeverityCritical
	case th.MinStock > 0 && stock <= th.MinStock:
		if stock <= 2 {
			return AlertLowStock, SeverityHigh
		}
		return AlertLowStock, SeverityMedium
	case th.MaxStock > 0 && stock > th.MaxStock:
		return AlertOverstocked, SeverityLow
	default:
		return "", ""
	}
}

// deriveAlertLocked reconciles the product's unacknowledged alert with
// the condition after a movement. Caller holds the product mutex.
func (l *Ledger) deriveAlertLocked(ps *productState, productID string, stock int) []Event {
	typ, severity := alertCondition(stock, ps.thresholds)

	// Condition cleared: drop the superseded unacknowledged alert.
	if typ == "" {
		if ps.active == nil {
			return nil
		}
		cleared := *ps.active
		ps.active = nil
		return []Event{{Kind: EventAlertCleared, ProductID: productID, Alert: &cleared}}
	}

	// Same condition still holds: keep the existing alert, no duplicate.
	if ps.active != nil && ps.active.Type == typ {
		ps.active.CurrentStock = stock
		ps.active.Severity = severity
		return nil
	}

	var events []Event
	if ps.active != nil {
		cleared := *ps.active
		ps.active = nil
		events = append(events, Event{Kind: EventAlertCleared, ProductID: productID, Alert: &cleared})
	}

	alert := &Alert{
		ID:           uuid.New().String(),
		ProductID:    productID,
		Type:         typ,
		Severity:     severity,
		CurrentStock: stock,
		CreatedAt:    l.now(),
	}
	ps.active = alert
	raised := *alert
	events = append(events, Event{Kind: EventAlertRaised, ProductID: productID, Alert: &raised})
	return events
}

// Alerts returns every unacknowledged alert across products.
func (l *Ledger) Alerts() []Alert {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var alerts []Alert
	for _, ps := range l.products {
		ps.mu.Lock()
		if ps.active != nil {
			alerts = append(alerts, *ps.active)
		}
		ps.mu.Unlock()
	}
	return alerts
}

// AlertHistory returns a product's acknowledged alerts, oldest first.
func (l *Ledger) AlertHistory(productID string) ([]Alert, error) {
	ps, ok := l.state(productID)
	if !ok {
		return nil, ErrUnknownProduct
	}
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return append([]Alert(nil), ps.history...), nil
}

// Acknowledge marks an alert as seen and moves it to the product's
// history, leaving room for the next condition.
func (l *Ledger) Acknowledge(alertID string) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, ps := range l.products {
		ps.mu.Lock()
		if ps.active != nil && ps.active.ID == alertID {
			ps.active.Acknowledged = true
			ps.history = append(ps.history, *ps.active)
			ps.active = nil
			ps.mu.Unlock()
			return nil
		}
		ps.mu.Unlock()
	}
	return ErrAlertNotFound
}
