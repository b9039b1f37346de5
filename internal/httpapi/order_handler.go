package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/grocerlane/backend/internal/auth"
	"github.com/grocerlane/backend/internal/order"
	"github.com/grocerlane/backend/internal/user"
)

type OrderService interface {
	Checkout(ctx context.Context, userID string, req order.CheckoutRequest) (*order.Order, error)
	Advance(ctx context.Context, orderID string, to order.Status, agentID string) (*order.Order, error)
	Rate(ctx context.Context, orderID, userID string, stars int, feedback string) error
	Get(ctx context.Context, orderID string) (*order.Order, error)
	ListByUser(ctx context.Context, userID string) ([]order.Order, error)
	ListByAgent(ctx context.Context, agentID string) ([]order.Order, error)
	ListActive(ctx context.Context) ([]order.Order, error)
}

type OrderHandler struct {
	svc OrderService
}

func NewOrderHandler(svc OrderService) *OrderHandler {
	return &OrderHandler{svc: svc}
}

func (h *OrderHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.SessionFromContext(r.Context())

	var body struct {
		DropoffLat     *float64 `json:"dropoffLat"`
		DropoffLng     *float64 `json:"dropoffLng"`
		DropoffAddress string   `json:"dropoffAddress"`
		ContactPhone   string   `json:"contactPhone"`
		PaymentRef     string   `json:"paymentRef"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.svc.Checkout(ctx, sess.UserID, order.CheckoutRequest{
		DropoffLat:     body.DropoffLat,
		DropoffLng:     body.DropoffLng,
		DropoffAddress: body.DropoffAddress,
		ContactPhone:   body.ContactPhone,
		PaymentRef:     body.PaymentRef,
	})
	if err != nil {
		if errors.Is(err, order.ErrEmptyCart) {
			writeError(w, http.StatusBadRequest, "cart is empty")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to create order")
		return
	}

	writeJSON(w, http.StatusCreated, o)
}

func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	sess, _ := auth.SessionFromContext(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.svc.Get(ctx, orderID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load order")
		return
	}
	// customers only see their own orders
	if o == nil || (sess.Role == string(user.RoleCustomer) && o.UserID != sess.UserID) {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}

	writeJSON(w, http.StatusOK, o)
}

func (h *OrderHandler) ListMyOrders(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.SessionFromContext(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	orders, err := h.svc.ListByUser(ctx, sess.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load orders")
		return
	}
	if orders == nil {
		orders = []order.Order{}
	}

	writeJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) ListAgentOrders(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.SessionFromContext(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	orders, err := h.svc.ListByAgent(ctx, sess.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load orders")
		return
	}
	if orders == nil {
		orders = []order.Order{}
	}

	writeJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) ListActiveOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	orders, err := h.svc.ListActive(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load orders")
		return
	}
	if orders == nil {
		orders = []order.Order{}
	}

	writeJSON(w, http.StatusOK, orders)
}

// AdvanceStatus moves an order one step along the lifecycle. Delivery role
// only; the service validates the transition itself.
func (h *OrderHandler) AdvanceStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	sess, _ := auth.SessionFromContext(r.Context())

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.svc.Advance(ctx, orderID, order.Status(body.Status), sess.UserID)
	if err != nil {
		switch {
		case errors.Is(err, order.ErrNotFound):
			writeError(w, http.StatusNotFound, "order not found")
		case errors.Is(err, order.ErrInvalidTransition):
			writeError(w, http.StatusConflict, "invalid status transition")
		case errors.Is(err, order.ErrConflict):
			writeError(w, http.StatusConflict, "order was modified concurrently")
		default:
			writeError(w, http.StatusInternalServerError, "failed to update order")
		}
		return
	}

	writeJSON(w, http.StatusOK, o)
}

func (h *OrderHandler) RateOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	sess, _ := auth.SessionFromContext(r.Context())

	var body struct {
		Stars    int    `json:"stars"`
		Feedback string `json:"feedback"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	err := h.svc.Rate(ctx, orderID, sess.UserID, body.Stars, body.Feedback)
	if err != nil {
		switch {
		case errors.Is(err, order.ErrNotFound):
			writeError(w, http.StatusNotFound, "order not found")
		case errors.Is(err, order.ErrInvalidRating):
			writeError(w, http.StatusBadRequest, "stars must be between 1 and 5")
		case errors.Is(err, order.ErrNotDelivered):
			writeError(w, http.StatusConflict, "order is not delivered yet")
		case errors.Is(err, order.ErrAlreadyRated):
			writeError(w, http.StatusConflict, "order is already rated")
		default:
			writeError(w, http.StatusInternalServerError, "failed to rate order")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
