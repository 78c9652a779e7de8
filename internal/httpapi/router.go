package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter wires the whole HTTP surface. Cart and order routes require an
// authenticated caller; catalog reads are public and catalog writes go through
// the handler's authorizer.
func NewRouter(carts *CartHandler, orders *OrderHandler, cat *CatalogHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(Identity)
	r.Use(Correlation)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(RequireUser)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", carts.Get)
				r.Delete("/", carts.Clear)
				r.Post("/items", carts.AddItem)
				r.Patch("/items/{productId}", carts.UpdateItem)
				r.Delete("/items/{productId}", carts.RemoveItem)
			})

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", orders.Create)
				r.Post("/direct", orders.CreateDirect)
				r.Get("/", orders.List)
				r.Get("/my", orders.ListMine)
				r.Get("/{orderId}", orders.Get)
				r.Post("/{orderId}/cancel", orders.Cancel)
				r.Patch("/{orderId}/status", orders.UpdateStatus)
			})
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", cat.ListProducts)
			r.Post("/", cat.CreateProduct)
			r.Get("/{productId}", cat.GetProduct)
			r.Patch("/{productId}", cat.UpdateProduct)
			r.Delete("/{productId}", cat.DeleteProduct)
			r.Get("/{productId}/stock", cat.GetStock)
			r.Post("/{productId}/stock", cat.AdjustStock)
		})

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", cat.ListCategories)
			r.Post("/", cat.CreateCategory)
			r.Get("/{categoryId}", cat.GetCategory)
			r.Patch("/{categoryId}", cat.UpdateCategory)
			r.Delete("/{categoryId}", cat.DeleteCategory)
		})
	})

	return r
}
