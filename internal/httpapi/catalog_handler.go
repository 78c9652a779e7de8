package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"webshop/internal/authz"
	"webshop/internal/catalog"
)

// CatalogService is the slice of the catalog the HTTP layer uses.
type CatalogService interface {
	CreateProduct(ctx context.Context, in catalog.CreateProductInput) (*catalog.Product, error)
	GetProduct(ctx context.Context, id string) (*catalog.Product, error)
	UpdateProduct(ctx context.Context, id string, in catalog.UpdateProductInput) (*catalog.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	ListProducts(ctx context.Context, f catalog.Filter) (*catalog.ProductPage, error)
	AdjustStock(ctx context.Context, productID string, delta int) (int, error)
	GetStock(ctx context.Context, productID string) (int, error)

	CreateCategory(ctx context.Context, in catalog.CategoryInput) (*catalog.Category, error)
	GetCategory(ctx context.Context, id string) (*catalog.Category, error)
	ListCategories(ctx context.Context) ([]catalog.Category, error)
	UpdateCategory(ctx context.Context, id string, in catalog.CategoryInput) (*catalog.Category, error)
	DeleteCategory(ctx context.Context, id string) error
}

type CatalogHandler struct {
	catalog CatalogService
	authz   authz.Authorizer
}

func NewCatalogHandler(svc CatalogService, authorizer authz.Authorizer) *CatalogHandler {
	return &CatalogHandler{catalog: svc, authz: authorizer}
}

func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	f := filterFromQuery(r)
	page, err := h.catalog.ListProducts(ctx, f)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.catalog.GetProduct(ctx, chi.URLParam(r, "productId"))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *CatalogHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r, "products:write") {
		return
	}
	var in catalog.CreateProductInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.catalog.CreateProduct(ctx, in)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *CatalogHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r, "products:write") {
		return
	}
	var in catalog.UpdateProductInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.catalog.UpdateProduct(ctx, chi.URLParam(r, "productId"), in)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *CatalogHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r, "products:write") {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.catalog.DeleteProduct(ctx, chi.URLParam(r, "productId")); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CatalogHandler) GetStock(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	productID := chi.URLParam(r, "productId")
	qty, err := h.catalog.GetStock(ctx, productID)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stockResponse{ProductID: productID, StockQuantity: qty})
}

func (h *CatalogHandler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r, "products:write") {
		return
	}
	var body struct {
		Delta int `json:"delta"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	productID := chi.URLParam(r, "productId")
	qty, err := h.catalog.AdjustStock(ctx, productID, body.Delta)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stockResponse{ProductID: productID, StockQuantity: qty})
}

func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	cs, err := h.catalog.ListCategories(ctx)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cs)
}

func (h *CatalogHandler) GetCategory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	c, err := h.catalog.GetCategory(ctx, chi.URLParam(r, "categoryId"))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *CatalogHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r, "categories:write") {
		return
	}
	var in catalog.CategoryInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	c, err := h.catalog.CreateCategory(ctx, in)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *CatalogHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r, "categories:write") {
		return
	}
	var in catalog.CategoryInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	c, err := h.catalog.UpdateCategory(ctx, chi.URLParam(r, "categoryId"), in)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *CatalogHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r, "categories:write") {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.catalog.DeleteCategory(ctx, chi.URLParam(r, "categoryId")); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CatalogHandler) authorize(w http.ResponseWriter, r *http.Request, action string) bool {
	ctx := r.Context()
	if !h.authz.Authorize(ctx, UserID(ctx), action, "*") {
		writeError(w, http.StatusForbidden, "forbidden")
		return false
	}
	return true
}

type stockResponse struct {
	ProductID     string `json:"productId"`
	StockQuantity int    `json:"stockQuantity"`
}

func filterFromQuery(r *http.Request) catalog.Filter {
	q := r.URL.Query()
	f := catalog.Filter{
		CategoryID: q.Get("categoryId"),
		Search:     q.Get("search"),
	}
	f.Page, _ = strconv.Atoi(q.Get("page"))
	f.Limit, _ = strconv.Atoi(q.Get("limit"))
	if v, err := strconv.ParseFloat(q.Get("minPrice"), 64); err == nil {
		f.MinPrice = &v
	}
	if v, err := strconv.ParseFloat(q.Get("maxPrice"), 64); err == nil {
		f.MaxPrice = &v
	}
	return f
}
