package cart

import "time"

type Cart struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Item struct {
	ID        string `json:"id"`
	CartID    string `json:"cartId"`
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// View is what every cart operation returns: the recomputed cart with display
// data joined from the catalog. Prices here are the *current* product prices;
// the cart has not crystallized an order yet.
type View struct {
	ID         string     `json:"id"`
	UserID     string     `json:"userId"`
	Items      []ViewItem `json:"items"`
	ItemCount  int        `json:"itemCount"`
	TotalPrice float64    `json:"totalPrice"`
}

type ViewItem struct {
	ID          string  `json:"id"`
	ProductID   string  `json:"productId"`
	ProductName string  `json:"productName"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
	Subtotal    float64 `json:"subtotal"`
}
