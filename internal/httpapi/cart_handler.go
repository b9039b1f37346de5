package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/grocerlane/backend/internal/auth"
	"github.com/grocerlane/backend/internal/cart"
)

type CartService interface {
	Get(ctx context.Context, userID string) (*cart.Cart, error)
	AddItem(ctx context.Context, userID, productID, name string, price float64, delta int) (*cart.Cart, error)
	SetQuantity(ctx context.Context, userID, productID string, quantity int) (*cart.Cart, error)
	Clear(ctx context.Context, userID string) error
}

type CartHandler struct {
	carts   CartService
	catalog CatalogService
}

func NewCartHandler(carts CartService, catalog CatalogService) *CartHandler {
	return &CartHandler{carts: carts, catalog: catalog}
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.SessionFromContext(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	c, err := h.carts.Get(ctx, sess.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load cart")
		return
	}
	if c == nil {
		// an empty cart, not an error
		c = &cart.Cart{UserID: sess.UserID, Items: []cart.Item{}}
	}

	writeJSON(w, http.StatusOK, c)
}

// AddItem adjusts a line quantity by a delta. Name and price are resolved
// from the catalog, never taken from the client.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.SessionFromContext(r.Context())

	var body struct {
		ProductID string `json:"productId"`
		Quantity  int    `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if body.ProductID == "" || body.Quantity == 0 {
		writeError(w, http.StatusBadRequest, "missing productId or quantity")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.catalog.GetByID(ctx, body.ProductID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load product")
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}

	c, err := h.carts.AddItem(ctx, sess.UserID, p.ID, p.Name, p.Price, body.Quantity)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to update cart")
		return
	}

	writeJSON(w, http.StatusOK, c)
}

func (h *CartHandler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.SessionFromContext(r.Context())

	var body struct {
		ProductID string `json:"productId"`
		Quantity  int    `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if body.ProductID == "" {
		writeError(w, http.StatusBadRequest, "missing productId")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	c, err := h.carts.SetQuantity(ctx, sess.UserID, body.ProductID, body.Quantity)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update cart")
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "cart not found")
		return
	}

	writeJSON(w, http.StatusOK, c)
}
