package store

import (
	"context"
	"time"
)

// MovementRecord is the durable form of one stock ledger entry.
type MovementRecord struct {
	ID             string    `json:"id"`
	ProductID      string    `json:"product_id"`
	Type           string    `json:"type"`
	Quantity       int       `json:"quantity"`
	PreviousStock  int       `json:"previous_stock"`
	ResultingStock int       `json:"resulting_stock"`
	Reference      string    `json:"reference,omitempty"`
	Notes          string    `json:"notes,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// MovementStore is the durable backing for the stock ledger. The
// ledger's in-memory projection stays the source of truth for reads;
// the store receives every appended movement.
type MovementStore interface {
	InsertMovement(ctx context.Context, m MovementRecord) error
	ListMovements(ctx context.Context, productID string) ([]MovementRecord, error)
}

// SaleRecord is the finalized sale aggregate header.
type SaleRecord struct {
	ID             string    `json:"id"`
	CustomerID     string    `json:"customer_id,omitempty"`
	Status         string    `json:"status"`
	Subtotal       int64     `json:"subtotal"`
	Discount       int64     `json:"discount"`
	Tax            int64     `json:"tax"`
	Total          int64     `json:"total"`
	PromotionCodes []string  `json:"promotion_codes,omitempty"`
	Notes          string    `json:"notes,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type SaleLineRecord struct {
	SaleID    string `json:"sale_id"`
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	Discount  int64  `json:"discount"`
	Subtotal  int64  `json:"subtotal"`
}

type PaymentRecord struct {
	ID        string    `json:"id"`
	SaleID    string    `json:"sale_id"`
	Method    string    `json:"method"`
	Amount    int64     `json:"amount"`
	Reference string    `json:"reference,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// SaleStore persists a finalized sale with its line items and payments
// as one unit.
type SaleStore interface {
	InsertSale(ctx context.Context, sale SaleRecord, lines []SaleLineRecord, payments []PaymentRecord) error
}
