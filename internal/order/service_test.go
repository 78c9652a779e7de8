package order

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"webshop/internal/cart"
	"webshop/internal/catalog"
	"webshop/internal/db"
	"webshop/internal/inventory"
)

// fakePool hands out transactions whose rollback restores a snapshot taken at
// Begin, so tests can verify that nothing leaks out of an aborted unit of work.
type fakePool struct {
	snapshot func() func()
	begun    int
}

func (p *fakePool) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}
func (p *fakePool) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (p *fakePool) QueryRow(context.Context, string, ...any) pgx.Row        { return nil }

func (p *fakePool) Begin(context.Context) (db.Tx, error) {
	p.begun++
	var restore func()
	if p.snapshot != nil {
		restore = p.snapshot()
	}
	return &fakeTx{restore: restore}, nil
}

type fakeTx struct {
	committed bool
	restore   func()
}

func (t *fakeTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}
func (t *fakeTx) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (t *fakeTx) QueryRow(context.Context, string, ...any) pgx.Row        { return nil }

func (t *fakeTx) Commit(context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	if !t.committed && t.restore != nil {
		t.restore()
	}
	return nil
}

type fakeLedger struct {
	stock map[string]int
}

func (f *fakeLedger) ReserveTx(_ context.Context, _ db.DBTX, productID string, quantity int) error {
	available, ok := f.stock[productID]
	if !ok {
		return inventory.ErrProductNotFound
	}
	if available < quantity {
		return &inventory.InsufficientStockError{ProductID: productID, Requested: quantity, Available: available}
	}
	f.stock[productID] = available - quantity
	return nil
}

func (f *fakeLedger) ReleaseTx(_ context.Context, _ db.DBTX, productID string, quantity int) error {
	if _, ok := f.stock[productID]; !ok {
		return inventory.ErrProductNotFound
	}
	f.stock[productID] += quantity
	return nil
}

type fakeOrderRepo struct {
	orders map[string]*Order
	nextID int
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: map[string]*Order{}}
}

func (f *fakeOrderRepo) Insert(_ context.Context, _ db.DBTX, o *Order) error {
	if o.ID == "" {
		f.nextID++
		o.ID = fmt.Sprintf("order-%d", f.nextID)
	}
	cp := *o
	cp.Items = append([]Item(nil), o.Items...)
	f.orders[o.ID] = &cp
	return nil
}

func (f *fakeOrderRepo) GetByID(_ context.Context, _ db.DBTX, orderID string) (*Order, error) {
	o, ok := f.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	cp := *o
	cp.Items = append([]Item(nil), o.Items...)
	return &cp, nil
}

func (f *fakeOrderRepo) GetByIDForUpdate(ctx context.Context, q db.DBTX, orderID string) (*Order, error) {
	return f.GetByID(ctx, q, orderID)
}

func (f *fakeOrderRepo) UpdateStatus(_ context.Context, _ db.DBTX, orderID string, status Status) (time.Time, error) {
	o, ok := f.orders[orderID]
	if !ok {
		return time.Time{}, ErrOrderNotFound
	}
	o.Status = status
	o.UpdatedAt = time.Now().UTC()
	return o.UpdatedAt, nil
}

func (f *fakeOrderRepo) ListByUser(_ context.Context, _ db.DBTX, userID string, page, limit int) ([]Order, int, error) {
	var out []Order
	for _, o := range f.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, len(out), nil
}

func (f *fakeOrderRepo) List(_ context.Context, _ db.DBTX, page, limit int) ([]Order, int, error) {
	var out []Order
	for _, o := range f.orders {
		out = append(out, *o)
	}
	return out, len(out), nil
}

type fakeCartStore struct {
	cartID string
	userID string
	items  []cart.ViewItem
}

func (f *fakeCartStore) LoadView(_ context.Context, _ db.DBTX, userID string) (*cart.View, error) {
	if userID != f.userID {
		return nil, cart.ErrCartNotFound
	}
	v := &cart.View{ID: f.cartID, UserID: f.userID, Items: append([]cart.ViewItem(nil), f.items...)}
	for _, it := range v.Items {
		v.TotalPrice += it.Price * float64(it.Quantity)
	}
	v.ItemCount = len(v.Items)
	return v, nil
}

func (f *fakeCartStore) DeleteItems(_ context.Context, _ db.DBTX, cartID string) error {
	if cartID == f.cartID {
		f.items = nil
	}
	return nil
}

type fakeProducts map[string]*catalog.Product

func (f fakeProducts) GetProduct(_ context.Context, id string) (*catalog.Product, error) {
	p, ok := f[id]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

type fakePublisher struct {
	created   int
	cancelled int
	err       error
}

func (f *fakePublisher) PublishOrderCreated(context.Context, *Order) error {
	f.created++
	return f.err
}

func (f *fakePublisher) PublishOrderCancelled(context.Context, *Order) error {
	f.cancelled++
	return f.err
}

type orderFixture struct {
	svc    *Service
	pool   *fakePool
	ledger *fakeLedger
	repo   *fakeOrderRepo
	carts  *fakeCartStore
	pub    *fakePublisher
}

func newOrderFixture(stock map[string]int, carts *fakeCartStore, products fakeProducts) *orderFixture {
	ledger := &fakeLedger{stock: stock}
	repo := newFakeOrderRepo()
	pub := &fakePublisher{}

	pool := &fakePool{}
	pool.snapshot = func() func() {
		stockCopy := make(map[string]int, len(ledger.stock))
		for k, v := range ledger.stock {
			stockCopy[k] = v
		}
		ordersCopy := make(map[string]*Order, len(repo.orders))
		for k, v := range repo.orders {
			cp := *v
			ordersCopy[k] = &cp
		}
		var itemsCopy []cart.ViewItem
		if carts != nil {
			itemsCopy = append([]cart.ViewItem(nil), carts.items...)
		}
		return func() {
			ledger.stock = stockCopy
			repo.orders = ordersCopy
			if carts != nil {
				carts.items = itemsCopy
			}
		}
	}

	logger := log.New(io.Discard, "", 0)
	return &orderFixture{
		svc:    NewService(pool, repo, ledger, carts, products, pub, logger),
		pool:   pool,
		ledger: ledger,
		repo:   repo,
		carts:  carts,
		pub:    pub,
	}
}

func TestCreateFromCart(t *testing.T) {
	ctx := context.Background()

	carts := &fakeCartStore{
		cartID: "cart-1",
		userID: "user-1",
		items: []cart.ViewItem{
			{ProductID: "p1", ProductName: "Mug", Price: 5, Quantity: 2},
			{ProductID: "p2", ProductName: "Plate", Price: 10, Quantity: 1},
		},
	}
	fx := newOrderFixture(map[string]int{"p1": 3, "p2": 4}, carts, nil)

	o, err := fx.svc.CreateFromCart(ctx, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if o.Status != StatusPending {
		t.Fatalf("status = %s, want %s", o.Status, StatusPending)
	}
	if o.TotalPrice != 20 {
		t.Fatalf("total = %v, want 20", o.TotalPrice)
	}
	if len(o.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(o.Items))
	}
	if o.Items[0].Price != 5 || o.Items[1].Price != 10 {
		t.Fatalf("prices not snapshotted: %+v", o.Items)
	}

	if fx.ledger.stock["p1"] != 1 || fx.ledger.stock["p2"] != 3 {
		t.Fatalf("stock after checkout = %v", fx.ledger.stock)
	}
	if len(fx.carts.items) != 0 {
		t.Fatalf("cart not cleared: %v", fx.carts.items)
	}
	if fx.pub.created != 1 {
		t.Fatalf("OrderCreated published %d times", fx.pub.created)
	}
}

func TestCreateFromCartEmpty(t *testing.T) {
	ctx := context.Background()

	t.Run("no cart row", func(t *testing.T) {
		fx := newOrderFixture(map[string]int{}, &fakeCartStore{cartID: "c", userID: "other"}, nil)
		if _, err := fx.svc.CreateFromCart(ctx, "user-1"); !errors.Is(err, ErrEmptyCart) {
			t.Fatalf("err = %v, want ErrEmptyCart", err)
		}
	})

	t.Run("cart with no items", func(t *testing.T) {
		fx := newOrderFixture(map[string]int{}, &fakeCartStore{cartID: "c", userID: "user-1"}, nil)
		if _, err := fx.svc.CreateFromCart(ctx, "user-1"); !errors.Is(err, ErrEmptyCart) {
			t.Fatalf("err = %v, want ErrEmptyCart", err)
		}
	})
}

func TestCreateFromCartInsufficientStockRollsBack(t *testing.T) {
	ctx := context.Background()

	carts := &fakeCartStore{
		cartID: "cart-1",
		userID: "user-1",
		items: []cart.ViewItem{
			{ProductID: "p1", Price: 5, Quantity: 2},
			{ProductID: "p2", Price: 10, Quantity: 5},
		},
	}
	fx := newOrderFixture(map[string]int{"p1": 3, "p2": 4}, carts, nil)

	_, err := fx.svc.CreateFromCart(ctx, "user-1")

	var stockErr *inventory.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("err = %v, want InsufficientStockError", err)
	}
	if stockErr.ProductID != "p2" || stockErr.Available != 4 {
		t.Fatalf("error detail = %+v", stockErr)
	}

	// The whole unit of work must roll back: no partial reservation, no
	// order row, cart untouched.
	if fx.ledger.stock["p1"] != 3 || fx.ledger.stock["p2"] != 4 {
		t.Fatalf("stock mutated after rollback: %v", fx.ledger.stock)
	}
	if len(fx.repo.orders) != 0 {
		t.Fatalf("order persisted after rollback")
	}
	if len(fx.carts.items) != 2 {
		t.Fatalf("cart cleared after rollback")
	}
	if fx.pub.created != 0 {
		t.Fatalf("event published for failed order")
	}
}

func TestCreateDirect(t *testing.T) {
	ctx := context.Background()
	products := fakeProducts{
		"p1": {ID: "p1", Name: "Mug", Price: 5, StockQuantity: 3},
	}

	t.Run("creates order from lines", func(t *testing.T) {
		fx := newOrderFixture(map[string]int{"p1": 3}, nil, products)
		o, err := fx.svc.CreateDirect(ctx, "user-1", []Line{{ProductID: "p1", Quantity: 2}})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if o.TotalPrice != 10 {
			t.Fatalf("total = %v, want 10", o.TotalPrice)
		}
		if fx.ledger.stock["p1"] != 1 {
			t.Fatalf("stock = %d, want 1", fx.ledger.stock["p1"])
		}
	})

	t.Run("no lines", func(t *testing.T) {
		fx := newOrderFixture(map[string]int{}, nil, products)
		if _, err := fx.svc.CreateDirect(ctx, "user-1", nil); !errors.Is(err, ErrNoItems) {
			t.Fatalf("err = %v, want ErrNoItems", err)
		}
	})

	t.Run("non-positive quantity", func(t *testing.T) {
		fx := newOrderFixture(map[string]int{"p1": 3}, nil, products)
		if _, err := fx.svc.CreateDirect(ctx, "user-1", []Line{{ProductID: "p1", Quantity: 0}}); err == nil {
			t.Fatalf("expected error")
		}
	})

	t.Run("unknown product", func(t *testing.T) {
		fx := newOrderFixture(map[string]int{}, nil, products)
		_, err := fx.svc.CreateDirect(ctx, "user-1", []Line{{ProductID: "missing", Quantity: 1}})
		if !errors.Is(err, catalog.ErrProductNotFound) {
			t.Fatalf("err = %v, want ErrProductNotFound", err)
		}
	})
}

func TestCancelRestoresStock(t *testing.T) {
	ctx := context.Background()
	carts := &fakeCartStore{
		cartID: "cart-1",
		userID: "user-1",
		items:  []cart.ViewItem{{ProductID: "p1", Price: 5, Quantity: 2}},
	}
	fx := newOrderFixture(map[string]int{"p1": 5}, carts, nil)

	o, err := fx.svc.CreateFromCart(ctx, "user-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if fx.ledger.stock["p1"] != 3 {
		t.Fatalf("stock after create = %d", fx.ledger.stock["p1"])
	}

	cancelled, err := fx.svc.Cancel(ctx, o.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != StatusCancelled {
		t.Fatalf("status = %s", cancelled.Status)
	}
	if cancelled.UpdatedAt.IsZero() || !cancelled.UpdatedAt.After(o.UpdatedAt) {
		t.Fatalf("UpdatedAt not refreshed by cancel: %v", cancelled.UpdatedAt)
	}
	if fx.ledger.stock["p1"] != 5 {
		t.Fatalf("stock after cancel = %d, want 5", fx.ledger.stock["p1"])
	}
	if fx.pub.cancelled != 1 {
		t.Fatalf("OrderCancelled published %d times", fx.pub.cancelled)
	}

	// Cancelling again must fail: the order is terminal and stock must not
	// be released twice.
	_, err = fx.svc.Cancel(ctx, o.ID)
	var transErr *InvalidTransitionError
	if !errors.As(err, &transErr) {
		t.Fatalf("err = %v, want InvalidTransitionError", err)
	}
	if fx.ledger.stock["p1"] != 5 {
		t.Fatalf("stock changed by rejected cancel: %d", fx.ledger.stock["p1"])
	}
}

func TestCancelUnknownOrder(t *testing.T) {
	fx := newOrderFixture(map[string]int{}, nil, nil)
	if _, err := fx.svc.Cancel(context.Background(), "missing"); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("err = %v, want ErrOrderNotFound", err)
	}
}

func TestUpdateStatus(t *testing.T) {
	ctx := context.Background()

	seed := func(t *testing.T, status Status) (*orderFixture, string) {
		t.Helper()
		fx := newOrderFixture(map[string]int{"p1": 5}, nil, fakeProducts{
			"p1": {ID: "p1", Price: 5, StockQuantity: 5},
		})
		o, err := fx.svc.CreateDirect(ctx, "user-1", []Line{{ProductID: "p1", Quantity: 1}})
		if err != nil {
			t.Fatalf("seed order: %v", err)
		}
		if status != StatusPending {
			fx.repo.orders[o.ID].Status = status
		}
		return fx, o.ID
	}

	t.Run("advances status", func(t *testing.T) {
		fx, id := seed(t, StatusPending)
		before := fx.repo.orders[id].UpdatedAt
		o, err := fx.svc.UpdateStatus(ctx, id, StatusShipped)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if o.Status != StatusShipped {
			t.Fatalf("status = %s", o.Status)
		}
		if o.UpdatedAt.IsZero() || !o.UpdatedAt.After(before) {
			t.Fatalf("UpdatedAt not refreshed from the status write: %v", o.UpdatedAt)
		}
	})

	t.Run("rejects cancellation", func(t *testing.T) {
		fx, id := seed(t, StatusPending)
		_, err := fx.svc.UpdateStatus(ctx, id, StatusCancelled)
		var transErr *InvalidTransitionError
		if !errors.As(err, &transErr) {
			t.Fatalf("err = %v, want InvalidTransitionError", err)
		}
	})

	t.Run("rejects transition out of terminal state", func(t *testing.T) {
		fx, id := seed(t, StatusDelivered)
		_, err := fx.svc.UpdateStatus(ctx, id, StatusShipped)
		var transErr *InvalidTransitionError
		if !errors.As(err, &transErr) {
			t.Fatalf("err = %v, want InvalidTransitionError", err)
		}
	})
}

func TestListPagination(t *testing.T) {
	ctx := context.Background()
	fx := newOrderFixture(map[string]int{"p1": 100}, nil, fakeProducts{
		"p1": {ID: "p1", Price: 2, StockQuantity: 100},
	})

	for i := 0; i < 3; i++ {
		if _, err := fx.svc.CreateDirect(ctx, "user-1", []Line{{ProductID: "p1", Quantity: 1}}); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	page, err := fx.svc.ListByUser(ctx, "user-1", 0, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Pagination.Page != 1 || page.Pagination.Limit != 10 {
		t.Fatalf("pagination defaults not applied: %+v", page.Pagination)
	}
	if page.Pagination.Total != 3 || page.Pagination.TotalPages != 1 {
		t.Fatalf("pagination = %+v", page.Pagination)
	}

	all, err := fx.svc.ListAll(ctx, 1, 2)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if all.Pagination.TotalPages != 2 {
		t.Fatalf("total pages = %d, want 2", all.Pagination.TotalPages)
	}
}
