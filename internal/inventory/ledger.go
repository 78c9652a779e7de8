// Package inventory is the authoritative stock ledger. All stock mutation in
// the application goes through Reserve and Release; no other code path may
// read-modify-write products.stock_quantity.
package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"webshop/internal/db"
)

var ErrProductNotFound = errors.New("product not found")

// isInvalidUUID reports Postgres rejecting a malformed product id (code
// 22P02), which can never name an existing row.
func isInvalidUUID(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22P02"
}

// InsufficientStockError reports a reservation that could not be granted,
// carrying the quantity that was still available when it was rejected.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// Ledger holds per-product available stock with race-free decrement/increment.
type Ledger struct {
	pool db.Pool
}

func NewLedger(pool db.Pool) *Ledger {
	return &Ledger{pool: pool}
}

// Reserve atomically checks availability and decrements stock in one
// conditional statement. There is no observe-then-write gap: concurrent
// reservations for the same product serialize on the row update, and the sum
// of granted reservations can never exceed the available stock.
func (l *Ledger) Reserve(ctx context.Context, productID string, quantity int) error {
	return l.ReserveTx(ctx, l.pool, productID, quantity)
}

// ReserveTx is Reserve running against a caller-owned transaction, so order
// creation can make reservations part of its unit of work.
func (l *Ledger) ReserveTx(ctx context.Context, q db.DBTX, productID string, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("reserve quantity must be positive, got %d", quantity)
	}

	tag, err := q.Exec(ctx, `
		UPDATE products
		SET stock_quantity = stock_quantity - $2, updated_at = now()
		WHERE id = $1 AND stock_quantity >= $2
	`, productID, quantity)
	if isInvalidUUID(err) {
		return ErrProductNotFound
	}
	if err != nil {
		return fmt.Errorf("reserve stock: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Zero rows: either the product does not exist or stock is short.
	var available int
	err = q.QueryRow(ctx, `SELECT stock_quantity FROM products WHERE id = $1`, productID).Scan(&available)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidUUID(err) {
			return ErrProductNotFound
		}
		return fmt.Errorf("read stock: %w", err)
	}
	return &InsufficientStockError{ProductID: productID, Requested: quantity, Available: available}
}

// Release atomically increments stock, undoing a prior reservation.
func (l *Ledger) Release(ctx context.Context, productID string, quantity int) error {
	return l.ReleaseTx(ctx, l.pool, productID, quantity)
}

func (l *Ledger) ReleaseTx(ctx context.Context, q db.DBTX, productID string, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("release quantity must be positive, got %d", quantity)
	}

	tag, err := q.Exec(ctx, `
		UPDATE products
		SET stock_quantity = stock_quantity + $2, updated_at = now()
		WHERE id = $1
	`, productID, quantity)
	if isInvalidUUID(err) {
		return ErrProductNotFound
	}
	if err != nil {
		return fmt.Errorf("release stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

// Peek returns the current available stock for display. The value can be
// stale by the time a reservation is attempted; callers must not use it for
// decision-making.
func (l *Ledger) Peek(ctx context.Context, productID string) (int, error) {
	var available int
	err := l.pool.QueryRow(ctx, `SELECT stock_quantity FROM products WHERE id = $1`, productID).Scan(&available)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidUUID(err) {
			return 0, ErrProductNotFound
		}
		return 0, fmt.Errorf("read stock: %w", err)
	}
	return available, nil
}
