package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"webshop/internal/db"
)

var (
	ErrCartNotFound  = errors.New("cart not found")
	ErrItemNotInCart = errors.New("item not found in cart")
)

// Repository methods take a db.DBTX so callers can run them against the pool
// or inside their own transaction (the order factory clears the cart as part
// of its unit of work).
type Repository interface {
	GetOrCreate(ctx context.Context, q db.DBTX, userID string) (*Cart, error)
	GetByUser(ctx context.Context, q db.DBTX, userID string) (*Cart, error)
	GetItem(ctx context.Context, q db.DBTX, cartID, productID string) (*Item, error)
	AddItemQuantity(ctx context.Context, q db.DBTX, cartID, productID string, quantity int) (int, error)
	SetItemQuantity(ctx context.Context, q db.DBTX, cartID, productID string, quantity int) error
	DeleteItem(ctx context.Context, q db.DBTX, cartID, productID string) error
	DeleteItems(ctx context.Context, q db.DBTX, cartID string) error
	LoadView(ctx context.Context, q db.DBTX, userID string) (*View, error)
}

type PostgresRepository struct{}

func NewPostgresRepository() *PostgresRepository {
	return &PostgresRepository{}
}

// GetOrCreate returns the user's cart, creating it on first use. The upsert
// is a single statement, so two concurrent first calls for the same user
// still end up with exactly one cart.
func (r *PostgresRepository) GetOrCreate(ctx context.Context, q db.DBTX, userID string) (*Cart, error) {
	var c Cart
	err := q.QueryRow(ctx, `
		INSERT INTO carts (id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET updated_at = now()
		RETURNING id, user_id, created_at, updated_at
	`, uuid.NewString(), userID).Scan(&c.ID, &c.UserID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert cart: %w", err)
	}
	return &c, nil
}

func (r *PostgresRepository) GetByUser(ctx context.Context, q db.DBTX, userID string) (*Cart, error) {
	var c Cart
	err := q.QueryRow(ctx, `
		SELECT id, user_id, created_at, updated_at FROM carts WHERE user_id = $1
	`, userID).Scan(&c.ID, &c.UserID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("select cart: %w", err)
	}
	return &c, nil
}

func (r *PostgresRepository) GetItem(ctx context.Context, q db.DBTX, cartID, productID string) (*Item, error) {
	var it Item
	err := q.QueryRow(ctx, `
		SELECT id, cart_id, product_id, quantity
		FROM cart_items WHERE cart_id = $1 AND product_id = $2
	`, cartID, productID).Scan(&it.ID, &it.CartID, &it.ProductID, &it.Quantity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrItemNotInCart
		}
		return nil, fmt.Errorf("select cart item: %w", err)
	}
	return &it, nil
}

// AddItemQuantity inserts the line or increments an existing one, atomically,
// and returns the resulting quantity. The caller checks the returned total
// against available stock and rolls back its transaction when it is over.
func (r *PostgresRepository) AddItemQuantity(ctx context.Context, q db.DBTX, cartID, productID string, quantity int) (int, error) {
	var newQuantity int
	err := q.QueryRow(ctx, `
		INSERT INTO cart_items (id, cart_id, product_id, quantity)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (cart_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
		RETURNING quantity
	`, uuid.NewString(), cartID, productID, quantity).Scan(&newQuantity)
	if err != nil {
		return 0, fmt.Errorf("upsert cart item: %w", err)
	}
	return newQuantity, nil
}

func (r *PostgresRepository) SetItemQuantity(ctx context.Context, q db.DBTX, cartID, productID string, quantity int) error {
	tag, err := q.Exec(ctx, `
		UPDATE cart_items SET quantity = $3
		WHERE cart_id = $1 AND product_id = $2
	`, cartID, productID, quantity)
	if err != nil {
		return fmt.Errorf("update cart item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotInCart
	}
	return nil
}

func (r *PostgresRepository) DeleteItem(ctx context.Context, q db.DBTX, cartID, productID string) error {
	tag, err := q.Exec(ctx, `
		DELETE FROM cart_items WHERE cart_id = $1 AND product_id = $2
	`, cartID, productID)
	if err != nil {
		return fmt.Errorf("delete cart item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotInCart
	}
	return nil
}

func (r *PostgresRepository) DeleteItems(ctx context.Context, q db.DBTX, cartID string) error {
	if _, err := q.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		return fmt.Errorf("clear cart items: %w", err)
	}
	return nil
}

// LoadView returns the cart joined with current product name and price.
// Returns ErrCartNotFound when the user has no cart row yet.
func (r *PostgresRepository) LoadView(ctx context.Context, q db.DBTX, userID string) (*View, error) {
	c, err := r.GetByUser(ctx, q, userID)
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, `
		SELECT ci.id, ci.product_id, p.name, p.price, ci.quantity
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.created_at
	`, c.ID)
	if err != nil {
		return nil, fmt.Errorf("select cart items: %w", err)
	}
	defer rows.Close()

	view := &View{ID: c.ID, UserID: c.UserID, Items: []ViewItem{}}
	for rows.Next() {
		var it ViewItem
		if err := rows.Scan(&it.ID, &it.ProductID, &it.ProductName, &it.Price, &it.Quantity); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		it.Subtotal = it.Price * float64(it.Quantity)
		view.Items = append(view.Items, it)
		view.TotalPrice += it.Subtotal
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	view.ItemCount = len(view.Items)
	return view, nil
}
