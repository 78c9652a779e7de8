package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"webshop/internal/authz"
	"webshop/internal/order"
)

// OrderService is the slice of the order engine the HTTP layer uses.
type OrderService interface {
	CreateFromCart(ctx context.Context, userID string) (*order.Order, error)
	CreateDirect(ctx context.Context, userID string, lines []order.Line) (*order.Order, error)
	Cancel(ctx context.Context, orderID string) (*order.Order, error)
	UpdateStatus(ctx context.Context, orderID string, status order.Status) (*order.Order, error)
	Get(ctx context.Context, orderID string) (*order.Order, error)
	ListByUser(ctx context.Context, userID string, page, limit int) (*order.Page, error)
	ListAll(ctx context.Context, page, limit int) (*order.Page, error)
}

type OrderHandler struct {
	orders OrderService
	authz  authz.Authorizer
}

func NewOrderHandler(orders OrderService, authorizer authz.Authorizer) *OrderHandler {
	return &OrderHandler{orders: orders, authz: authorizer}
}

func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.orders.CreateFromCart(ctx, UserID(ctx))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (h *OrderHandler) CreateDirect(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Items []order.Line `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.orders.CreateDirect(ctx, UserID(ctx), body.Items)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.authz.Authorize(ctx, UserID(ctx), "orders:list", "*") {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	page, limit := pageParams(r)
	orders, err := h.orders.ListAll(ctx, page, limit)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	page, limit := pageParams(r)
	orders, err := h.orders.ListByUser(ctx, UserID(ctx), page, limit)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.orders.Get(ctx, orderID)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.orders.Cancel(ctx, orderID)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := chi.URLParam(r, "orderId")
	if !h.authz.Authorize(ctx, UserID(ctx), "orders:update-status", orderID) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	status, err := order.ParseStatus(body.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	o, err := h.orders.UpdateStatus(ctx, orderID, status)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func pageParams(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return page, limit
}
