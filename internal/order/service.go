// Package order turns a mutable cart into an immutable order. Reservation,
// order persistence and cart clearing form one unit of work: they commit
// together or not at all.
package order

import (
	"context"
	"errors"
	"fmt"
	"log"

	"webshop/internal/cart"
	"webshop/internal/catalog"
	"webshop/internal/db"
)

var (
	ErrEmptyCart       = errors.New("cart is empty")
	ErrNoItems         = errors.New("order has no items")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
)

// InvalidTransitionError reports a lifecycle transition attempted on an
// order whose current status forbids it.
type InvalidTransitionError struct {
	OrderID string
	From    Status
	To      Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("order %s cannot move from %s to %s", e.OrderID, e.From, e.To)
}

// Ledger is the slice of the inventory ledger the factory drives inside its
// transaction.
type Ledger interface {
	ReserveTx(ctx context.Context, q db.DBTX, productID string, quantity int) error
	ReleaseTx(ctx context.Context, q db.DBTX, productID string, quantity int) error
}

// CartStore is what the factory needs from the cart: the priced view to
// snapshot, and clearing the items inside the factory's transaction.
type CartStore interface {
	LoadView(ctx context.Context, q db.DBTX, userID string) (*cart.View, error)
	DeleteItems(ctx context.Context, q db.DBTX, cartID string) error
}

type ProductReader interface {
	GetProduct(ctx context.Context, id string) (*catalog.Product, error)
}

// Publisher emits lifecycle events after a successful commit. Publishing is
// best-effort: a broker failure never fails the request.
type Publisher interface {
	PublishOrderCreated(ctx context.Context, o *Order) error
	PublishOrderCancelled(ctx context.Context, o *Order) error
}

type Service struct {
	pool      db.Pool
	repo      Repository
	ledger    Ledger
	carts     CartStore
	products  ProductReader
	publisher Publisher
	logger    *log.Logger
}

func NewService(pool db.Pool, repo Repository, ledger Ledger, carts CartStore, products ProductReader, publisher Publisher, logger *log.Logger) *Service {
	return &Service{
		pool:      pool,
		repo:      repo,
		ledger:    ledger,
		carts:     carts,
		products:  products,
		publisher: publisher,
		logger:    logger,
	}
}

// CreateFromCart converts the user's cart into an order. Prices are captured
// from the cart view before the transaction and become immutable history.
// Inside one transaction every line is reserved against the ledger, the order
// and its items are written, and the cart items are deleted; any reservation
// failure rolls the whole unit of work back with nothing persisted.
func (s *Service) CreateFromCart(ctx context.Context, userID string) (*Order, error) {
	view, err := s.carts.LoadView(ctx, s.pool, userID)
	if err != nil {
		if errors.Is(err, cart.ErrCartNotFound) {
			return nil, ErrEmptyCart
		}
		return nil, err
	}
	if len(view.Items) == 0 {
		return nil, ErrEmptyCart
	}

	o := &Order{
		UserID: userID,
		Status: StatusPending,
	}
	for _, it := range view.Items {
		o.Items = append(o.Items, Item{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Price:     it.Price,
		})
		o.TotalPrice += it.Price * float64(it.Quantity)
	}

	if err := s.commitCreation(ctx, o, view.ID); err != nil {
		return nil, err
	}

	s.publish(ctx, "OrderCreated", func() error { return s.publisher.PublishOrderCreated(ctx, o) })
	return o, nil
}

// CreateDirect builds an order from an explicit line list instead of a cart.
// No cart is touched.
func (s *Service) CreateDirect(ctx context.Context, userID string, lines []Line) (*Order, error) {
	if len(lines) == 0 {
		return nil, ErrNoItems
	}

	o := &Order{
		UserID: userID,
		Status: StatusPending,
	}
	for _, line := range lines {
		if line.Quantity < 1 {
			return nil, fmt.Errorf("product %s: %w", line.ProductID, ErrInvalidQuantity)
		}
		product, err := s.products.GetProduct(ctx, line.ProductID)
		if err != nil {
			return nil, err
		}
		o.Items = append(o.Items, Item{
			ProductID: product.ID,
			Quantity:  line.Quantity,
			Price:     product.Price,
		})
		o.TotalPrice += product.Price * float64(line.Quantity)
	}

	if err := s.commitCreation(ctx, o, ""); err != nil {
		return nil, err
	}

	s.publish(ctx, "OrderCreated", func() error { return s.publisher.PublishOrderCreated(ctx, o) })
	return o, nil
}

// commitCreation runs the atomic unit of work: reserve every line, persist the
// order, and (when cartID is set) clear the cart.
func (s *Service) commitCreation(ctx context.Context, o *Order, cartID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, it := range o.Items {
		if err := s.ledger.ReserveTx(ctx, tx, it.ProductID, it.Quantity); err != nil {
			return err
		}
	}

	if err := s.repo.Insert(ctx, tx, o); err != nil {
		return err
	}

	if cartID != "" {
		if err := s.carts.DeleteItems(ctx, tx, cartID); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Cancel reverses an order: every item's stock is released and the status
// moves to CANCELLED, atomically. Terminal orders cannot be cancelled.
func (s *Service) Cancel(ctx context.Context, orderID string) (*Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o, err := s.repo.GetByIDForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status.Terminal() {
		return nil, &InvalidTransitionError{OrderID: orderID, From: o.Status, To: StatusCancelled}
	}

	for _, it := range o.Items {
		if err := s.ledger.ReleaseTx(ctx, tx, it.ProductID, it.Quantity); err != nil {
			return nil, err
		}
	}

	updatedAt, err := s.repo.UpdateStatus(ctx, tx, orderID, StatusCancelled)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	o.Status = StatusCancelled
	o.UpdatedAt = updatedAt
	s.publish(ctx, "OrderCancelled", func() error { return s.publisher.PublishOrderCancelled(ctx, o) })
	return o, nil
}

// UpdateStatus is the administrative transition: a plain field write with no
// inventory effect. Cancellation must go through Cancel so stock is restored.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, status Status) (*Order, error) {
	if status == StatusCancelled {
		return nil, &InvalidTransitionError{OrderID: orderID, From: "", To: status}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o, err := s.repo.GetByIDForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status.Terminal() {
		return nil, &InvalidTransitionError{OrderID: orderID, From: o.Status, To: status}
	}

	updatedAt, err := s.repo.UpdateStatus(ctx, tx, orderID, status)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	o.Status = status
	o.UpdatedAt = updatedAt
	return o, nil
}

func (s *Service) Get(ctx context.Context, orderID string) (*Order, error) {
	return s.repo.GetByID(ctx, s.pool, orderID)
}

func (s *Service) ListByUser(ctx context.Context, userID string, page, limit int) (*Page, error) {
	page, limit = clampPage(page, limit)
	orders, total, err := s.repo.ListByUser(ctx, s.pool, userID, page, limit)
	if err != nil {
		return nil, err
	}
	return newPage(orders, total, page, limit), nil
}

func (s *Service) ListAll(ctx context.Context, page, limit int) (*Page, error) {
	page, limit = clampPage(page, limit)
	orders, total, err := s.repo.List(ctx, s.pool, page, limit)
	if err != nil {
		return nil, err
	}
	return newPage(orders, total, page, limit), nil
}

func (s *Service) publish(ctx context.Context, event string, fn func() error) {
	if s.publisher == nil {
		return
	}
	if err := fn(); err != nil && s.logger != nil {
		s.logger.Printf("publish %s: %v", event, err)
	}
}

func clampPage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}
	return page, limit
}

func newPage(orders []Order, total, page, limit int) *Page {
	if orders == nil {
		orders = []Order{}
	}
	totalPages := total / limit
	if total%limit != 0 {
		totalPages++
	}
	return &Page{
		Data:       orders,
		Pagination: Pagination{Total: total, Page: page, Limit: limit, TotalPages: totalPages},
	}
}
