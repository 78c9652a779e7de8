package order

import "time"

// Item is an order line. Price is the snapshot captured when the order was
// created; it is never recomputed from the live product, so historical orders
// keep their value when catalog prices change.
type Item struct {
	ID        string  `json:"id"`
	ProductID string  `json:"productId"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

// Order is immutable once created, except for Status and UpdatedAt.
type Order struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	Status     Status    `json:"status"`
	TotalPrice float64   `json:"totalPrice"`
	Items      []Item    `json:"items"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Line is a requested (product, quantity) pair for direct order creation.
type Line struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type Pagination struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

type Page struct {
	Data       []Order    `json:"data"`
	Pagination Pagination `json:"pagination"`
}
