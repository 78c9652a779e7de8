package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"webshop/internal/db"
)

var ErrOrderNotFound = errors.New("order not found")

type Repository interface {
	Insert(ctx context.Context, q db.DBTX, o *Order) error
	GetByID(ctx context.Context, q db.DBTX, orderID string) (*Order, error)
	GetByIDForUpdate(ctx context.Context, q db.DBTX, orderID string) (*Order, error)
	UpdateStatus(ctx context.Context, q db.DBTX, orderID string, status Status) (time.Time, error)
	ListByUser(ctx context.Context, q db.DBTX, userID string, page, limit int) ([]Order, int, error)
	List(ctx context.Context, q db.DBTX, page, limit int) ([]Order, int, error)
}

type PostgresRepository struct{}

func NewPostgresRepository() *PostgresRepository {
	return &PostgresRepository{}
}

func (r *PostgresRepository) Insert(ctx context.Context, q db.DBTX, o *Order) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}

	err := q.QueryRow(ctx, `
		INSERT INTO orders (id, user_id, status, total_price)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`, o.ID, o.UserID, o.Status, o.TotalPrice).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for i := range o.Items {
		it := &o.Items[i]
		if it.ID == "" {
			it.ID = uuid.NewString()
		}
		_, err := q.Exec(ctx, `
			INSERT INTO order_items (id, order_id, product_id, quantity, price)
			VALUES ($1, $2, $3, $4, $5)
		`, it.ID, o.ID, it.ProductID, it.Quantity, it.Price)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, q db.DBTX, orderID string) (*Order, error) {
	return r.get(ctx, q, orderID, false)
}

// GetByIDForUpdate locks the order row for the remainder of the caller's
// transaction, serializing concurrent lifecycle transitions.
func (r *PostgresRepository) GetByIDForUpdate(ctx context.Context, q db.DBTX, orderID string) (*Order, error) {
	return r.get(ctx, q, orderID, true)
}

func (r *PostgresRepository) get(ctx context.Context, q db.DBTX, orderID string, forUpdate bool) (*Order, error) {
	query := `SELECT id, user_id, status, total_price, created_at, updated_at FROM orders WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var o Order
	err := q.QueryRow(ctx, query, orderID).
		Scan(&o.ID, &o.UserID, &o.Status, &o.TotalPrice, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("select order: %w", err)
	}

	items, err := r.loadItems(ctx, q, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return &o, nil
}

func (r *PostgresRepository) loadItems(ctx context.Context, q db.DBTX, orderID string) ([]Item, error) {
	rows, err := q.Query(ctx, `
		SELECT id, product_id, quantity, price
		FROM order_items WHERE order_id = $1
		ORDER BY id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("select order items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.ProductID, &it.Quantity, &it.Price); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return items, nil
}

// UpdateStatus writes the new status and hands back the updated_at the
// database stamped, so responses reflect the persisted row.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, q db.DBTX, orderID string, status Status) (time.Time, error) {
	var updatedAt time.Time
	err := q.QueryRow(ctx, `
		UPDATE orders SET status = $2, updated_at = now() WHERE id = $1
		RETURNING updated_at
	`, orderID, status).Scan(&updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, ErrOrderNotFound
		}
		return time.Time{}, fmt.Errorf("update order status: %w", err)
	}
	return updatedAt, nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, q db.DBTX, userID string, page, limit int) ([]Order, int, error) {
	var total int
	if err := q.QueryRow(ctx, `SELECT count(*) FROM orders WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	orders, err := r.list(ctx, q, `
		SELECT id, user_id, status, total_price, created_at, updated_at
		FROM orders WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *PostgresRepository) List(ctx context.Context, q db.DBTX, page, limit int) ([]Order, int, error) {
	var total int
	if err := q.QueryRow(ctx, `SELECT count(*) FROM orders`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	orders, err := r.list(ctx, q, `
		SELECT id, user_id, status, total_price, created_at, updated_at
		FROM orders
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *PostgresRepository) list(ctx context.Context, q db.DBTX, query string, args ...any) ([]Order, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.Status, &o.TotalPrice, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	for i := range orders {
		items, err := r.loadItems(ctx, q, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}
	return orders, nil
}
