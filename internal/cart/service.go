package cart

import (
	"context"
	"errors"
	"fmt"

	"webshop/internal/catalog"
	"webshop/internal/db"
	"webshop/internal/inventory"
)

var ErrInvalidQuantity = errors.New("quantity must be at least 1")

// ProductReader is the catalog contract the cart consumes: a plain read of
// id, price and stock. Stock mutation never happens here.
type ProductReader interface {
	GetProduct(ctx context.Context, id string) (*catalog.Product, error)
}

// Service owns a user's mutable cart. Stock checks here are soft checks for
// early feedback; the authoritative check-and-decrement happens in the order
// factory at checkout time.
type Service struct {
	pool     db.Pool
	repo     Repository
	products ProductReader
}

func NewService(pool db.Pool, repo Repository, products ProductReader) *Service {
	return &Service{pool: pool, repo: repo, products: products}
}

// Get returns the user's cart view, lazily creating the cart on first use.
func (s *Service) Get(ctx context.Context, userID string) (*View, error) {
	if _, err := s.repo.GetOrCreate(ctx, s.pool, userID); err != nil {
		return nil, err
	}
	return s.repo.LoadView(ctx, s.pool, userID)
}

func (s *Service) AddItem(ctx context.Context, userID, productID string, quantity int) (*View, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	product, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product.StockQuantity < quantity {
		return nil, &inventory.InsufficientStockError{
			ProductID: productID,
			Requested: quantity,
			Available: product.StockQuantity,
		}
	}

	// The increment and the re-check of the new line total run inside one
	// transaction, so two concurrent adds cannot slip past the stock check
	// with a stale in-application quantity.
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	c, err := s.repo.GetOrCreate(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	newQuantity, err := s.repo.AddItemQuantity(ctx, tx, c.ID, productID, quantity)
	if err != nil {
		return nil, err
	}
	if newQuantity > product.StockQuantity {
		return nil, &inventory.InsufficientStockError{
			ProductID: productID,
			Requested: newQuantity,
			Available: product.StockQuantity,
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return s.repo.LoadView(ctx, s.pool, userID)
}

// UpdateItem sets the line quantity exactly (not additive).
func (s *Service) UpdateItem(ctx context.Context, userID, productID string, quantity int) (*View, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	c, err := s.repo.GetByUser(ctx, s.pool, userID)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.GetItem(ctx, s.pool, c.ID, productID); err != nil {
		return nil, err
	}

	product, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product.StockQuantity < quantity {
		return nil, &inventory.InsufficientStockError{
			ProductID: productID,
			Requested: quantity,
			Available: product.StockQuantity,
		}
	}

	if err := s.repo.SetItemQuantity(ctx, s.pool, c.ID, productID, quantity); err != nil {
		return nil, err
	}
	return s.repo.LoadView(ctx, s.pool, userID)
}

func (s *Service) RemoveItem(ctx context.Context, userID, productID string) (*View, error) {
	c, err := s.repo.GetByUser(ctx, s.pool, userID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.DeleteItem(ctx, s.pool, c.ID, productID); err != nil {
		return nil, err
	}
	return s.repo.LoadView(ctx, s.pool, userID)
}

// Clear empties the cart. Idempotent: clearing an already-empty (or not yet
// created) cart succeeds and leaves an empty cart behind.
func (s *Service) Clear(ctx context.Context, userID string) (*View, error) {
	c, err := s.repo.GetOrCreate(ctx, s.pool, userID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.DeleteItems(ctx, s.pool, c.ID); err != nil {
		return nil, err
	}
	return s.repo.LoadView(ctx, s.pool, userID)
}
