package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// PostgresStore implements MovementStore and SaleStore on PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) InsertMovement(ctx context.Context, m MovementRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO stock_movements (id, product_id, type, quantity, previous_stock, resulting_stock, reference, notes, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		m.ID,
		m.ProductID,
		m.Type,
		m.Quantity,
		m.PreviousStock,
		m.ResultingStock,
		m.Reference,
		m.Notes,
		m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert stock movement: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListMovements(ctx context.Context, productID string) ([]MovementRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, product_id, type, quantity, previous_stock, resulting_stock, reference, notes, created_at
		 FROM stock_movements
		 WHERE product_id = $1
		 ORDER BY created_at ASC`,
		productID,
	)
	if err != nil {
		return nil, fmt.Errorf("list stock movements: %w", err)
	}
	defer rows.Close()

	var movements []MovementRecord
	for rows.Next() {
		var m MovementRecord
		if err := rows.Scan(&m.ID, &m.ProductID, &m.Type, &m.Quantity, &m.PreviousStock, &m.ResultingStock, &m.Reference, &m.Notes, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan stock movement: %w", err)
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

// InsertSale writes the sale header, line items and payments in a
// single transaction so a half-written sale never becomes visible.
func (s *PostgresStore) InsertSale(ctx context.Context, sale SaleRecord, lines []SaleLineRecord, payments []PaymentRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin sale tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sales (id, customer_id, status, subtotal, discount, tax, total, promotion_codes, notes, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		sale.ID,
		sale.CustomerID,
		sale.Status,
		sale.Subtotal,
		sale.Discount,
		sale.Tax,
		sale.Total,
		pq.Array(sale.PromotionCodes),
		sale.Notes,
		sale.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert sale: %w", err)
	}

	for _, line := range lines {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO sale_items (sale_id, product_id, name, quantity, unit_price, discount, subtotal)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			line.SaleID,
			line.ProductID,
			line.Name,
			line.Quantity,
			line.UnitPrice,
			line.Discount,
			line.Subtotal,
		)
		if err != nil {
			return fmt.Errorf("insert sale item: %w", err)
		}
	}

	for _, p := range payments {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO sale_payments (id, sale_id, method, amount, reference, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			p.ID,
			p.SaleID,
			p.Method,
			p.Amount,
			p.Reference,
			p.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert sale payment: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit sale tx: %w", err)
	}
	return nil
}

// ConnectPostgres establishes a connection to PostgreSQL.
func ConnectPostgres(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, err
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}
