package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"webshop/internal/cart"
	"webshop/internal/catalog"
	"webshop/internal/inventory"
	"webshop/internal/order"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// respondError maps the engine's error taxonomy onto HTTP statuses. Stock
// errors keep their message so the client sees the offending product and the
// quantity still available.
func respondError(w http.ResponseWriter, err error) {
	var insufficient *inventory.InsufficientStockError
	var transition *order.InvalidTransitionError

	switch {
	case errors.As(err, &insufficient),
		errors.As(err, &transition),
		errors.Is(err, order.ErrEmptyCart),
		errors.Is(err, order.ErrNoItems),
		errors.Is(err, order.ErrInvalidQuantity),
		errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, catalog.ErrInvalidPrice),
		errors.Is(err, catalog.ErrInvalidStock),
		errors.Is(err, catalog.ErrInvalidStockChange),
		errors.Is(err, catalog.ErrEmptyName),
		errors.Is(err, catalog.ErrCategoryExists),
		errors.Is(err, catalog.ErrProductHasOrders),
		errors.Is(err, catalog.ErrCategoryInUse):
		writeError(w, http.StatusBadRequest, err.Error())

	case errors.Is(err, catalog.ErrProductNotFound),
		errors.Is(err, inventory.ErrProductNotFound),
		errors.Is(err, catalog.ErrCategoryNotFound),
		errors.Is(err, cart.ErrCartNotFound),
		errors.Is(err, cart.ErrItemNotInCart),
		errors.Is(err, order.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, err.Error())

	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
