package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrProductHasOrders   = errors.New("cannot delete product with existing orders")
	ErrCategoryInUse      = errors.New("cannot delete category with existing products")
	ErrInvalidPrice       = errors.New("price must not be negative")
	ErrInvalidStock       = errors.New("stock quantity must not be negative")
	ErrEmptyName          = errors.New("name must not be empty")
	ErrInvalidStockChange = errors.New("stock adjustment must not be zero")
)

// StockKeeper is the slice of the inventory ledger the catalog needs. Stock
// never changes through a plain product update; it only moves through the
// ledger's atomic operations.
type StockKeeper interface {
	Reserve(ctx context.Context, productID string, quantity int) error
	Release(ctx context.Context, productID string, quantity int) error
	Peek(ctx context.Context, productID string) (int, error)
}

type Service struct {
	repo  Repository
	stock StockKeeper
}

func NewService(repo Repository, stock StockKeeper) *Service {
	return &Service{repo: repo, stock: stock}
}

type CreateProductInput struct {
	CategoryID    string  `json:"categoryId"`
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	Price         float64 `json:"price"`
	StockQuantity int     `json:"stockQuantity"`
}

func (s *Service) CreateProduct(ctx context.Context, in CreateProductInput) (*Product, error) {
	if in.Name == "" {
		return nil, ErrEmptyName
	}
	if in.Price < 0 {
		return nil, ErrInvalidPrice
	}
	if in.StockQuantity < 0 {
		return nil, ErrInvalidStock
	}
	if _, err := s.repo.GetCategory(ctx, in.CategoryID); err != nil {
		return nil, err
	}

	p := &Product{
		ID:            uuid.NewString(),
		CategoryID:    in.CategoryID,
		Name:          in.Name,
		Description:   in.Description,
		Price:         in.Price,
		StockQuantity: in.StockQuantity,
	}
	if err := s.repo.InsertProduct(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) GetProduct(ctx context.Context, id string) (*Product, error) {
	return s.repo.GetProduct(ctx, id)
}

// UpdateProductInput carries partial updates; nil fields are left untouched.
// Stock is deliberately absent: it moves only through AdjustStock.
type UpdateProductInput struct {
	CategoryID  *string  `json:"categoryId"`
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price"`
}

func (s *Service) UpdateProduct(ctx context.Context, id string, in UpdateProductInput) (*Product, error) {
	p, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.CategoryID != nil {
		if _, err := s.repo.GetCategory(ctx, *in.CategoryID); err != nil {
			return nil, err
		}
		p.CategoryID = *in.CategoryID
	}
	if in.Name != nil {
		if *in.Name == "" {
			return nil, ErrEmptyName
		}
		p.Name = *in.Name
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.Price != nil {
		if *in.Price < 0 {
			return nil, ErrInvalidPrice
		}
		p.Price = *in.Price
	}

	if err := s.repo.UpdateProduct(ctx, p); err != nil {
		return nil, err
	}
	return s.repo.GetProduct(ctx, id)
}

func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	if _, err := s.repo.GetProduct(ctx, id); err != nil {
		return err
	}
	n, err := s.repo.CountOrderItemsForProduct(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return ErrProductHasOrders
	}
	return s.repo.DeleteProduct(ctx, id)
}

func (s *Service) ListProducts(ctx context.Context, f Filter) (*ProductPage, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 100 {
		f.Limit = 10
	}

	products, total, err := s.repo.ListProducts(ctx, f)
	if err != nil {
		return nil, err
	}
	if products == nil {
		products = []Product{}
	}
	return &ProductPage{
		Data:       products,
		Pagination: paginate(total, f.Page, f.Limit),
	}, nil
}

// AdjustStock moves stock through the inventory ledger: positive deltas
// release stock back, negative deltas reserve it (and fail when the decrement
// would drive the counter below zero). Returns the resulting quantity.
func (s *Service) AdjustStock(ctx context.Context, productID string, delta int) (int, error) {
	if delta == 0 {
		return 0, ErrInvalidStockChange
	}
	if _, err := s.repo.GetProduct(ctx, productID); err != nil {
		return 0, err
	}

	var err error
	if delta > 0 {
		err = s.stock.Release(ctx, productID, delta)
	} else {
		err = s.stock.Reserve(ctx, productID, -delta)
	}
	if err != nil {
		return 0, err
	}
	return s.stock.Peek(ctx, productID)
}

func (s *Service) GetStock(ctx context.Context, productID string) (int, error) {
	return s.stock.Peek(ctx, productID)
}

type CategoryInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *Service) CreateCategory(ctx context.Context, in CategoryInput) (*Category, error) {
	if in.Name == "" {
		return nil, ErrEmptyName
	}
	c := &Category{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Description: in.Description,
	}
	if err := s.repo.InsertCategory(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) GetCategory(ctx context.Context, id string) (*Category, error) {
	return s.repo.GetCategory(ctx, id)
}

func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	if categories == nil {
		categories = []Category{}
	}
	return categories, nil
}

func (s *Service) UpdateCategory(ctx context.Context, id string, in CategoryInput) (*Category, error) {
	c, err := s.repo.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Name != "" {
		c.Name = in.Name
	}
	c.Description = in.Description
	if err := s.repo.UpdateCategory(ctx, c); err != nil {
		return nil, err
	}
	return s.repo.GetCategory(ctx, id)
}

func (s *Service) DeleteCategory(ctx context.Context, id string) error {
	if _, err := s.repo.GetCategory(ctx, id); err != nil {
		return err
	}
	n, err := s.repo.CountProductsInCategory(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return ErrCategoryInUse
	}
	return s.repo.DeleteCategory(ctx, id)
}

func paginate(total, page, limit int) Pagination {
	totalPages := total / limit
	if total%limit != 0 {
		totalPages++
	}
	return Pagination{Total: total, Page: page, Limit: limit, TotalPages: totalPages}
}
