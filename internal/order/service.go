package order

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/grocerlane/backend/internal/cart"
	"github.com/grocerlane/backend/internal/events"
)

// CartStore is the slice of the cart layer the order workflow needs.
type CartStore interface {
	GetCart(ctx context.Context, userID string) (*cart.Cart, error)
	ClearCartWithTx(ctx context.Context, tx *sql.Tx, userID string) error
}

// Notifier appends a customer-facing message inside the workflow transaction.
type Notifier interface {
	AddWithTx(ctx context.Context, tx *sql.Tx, userID, message string) error
}

// EventSink records an event for asynchronous publication. The write shares
// the workflow transaction so the event cannot be lost or orphaned.
type EventSink interface {
	Enqueue(ctx context.Context, tx *sql.Tx, routingKey, partitionKey string, payload any) error
}

type CheckoutRequest struct {
	DropoffLat     *float64
	DropoffLng     *float64
	DropoffAddress string
	ContactPhone   string
	PaymentRef     string
}

// Service owns the order lifecycle: checkout and the delivery status machine.
type Service struct {
	db     *sql.DB
	orders Repository
	carts  CartStore
	notifs Notifier
	sink   EventSink
	logger *log.Logger
}

func NewService(db *sql.DB, orders Repository, carts CartStore, notifs Notifier, sink EventSink, logger *log.Logger) *Service {
	return &Service{db: db, orders: orders, carts: carts, notifs: notifs, sink: sink, logger: logger}
}

// Checkout turns the user's cart into a pending order. Order creation, the
// initial history row, the customer notification, the outbox event and the
// cart clear commit atomically.
func (s *Service) Checkout(ctx context.Context, userID string, req CheckoutRequest) (*Order, error) {
	c, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if c == nil || len(c.Items) == 0 {
		return nil, ErrEmptyCart
	}

	o := &Order{
		UserID:       userID,
		Status:       StatusPending,
		ContactPhone: req.ContactPhone,
		PaymentRef:   req.PaymentRef,
		CreatedAt:    time.Now().UTC(),
	}
	if req.DropoffLat != nil && req.DropoffLng != nil {
		o.Dropoff = &Dropoff{Lat: *req.DropoffLat, Lng: *req.DropoffLng, Address: req.DropoffAddress}
	}

	// Totals come from the stored cart, never from the client.
	for _, it := range c.Items {
		o.Items = append(o.Items, Item{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			Price:     it.Price,
		})
		o.Total += float64(it.Quantity) * it.Price
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := s.orders.CreateWithTx(ctx, tx, o); err != nil {
		return nil, err
	}

	if err := s.notifs.AddWithTx(ctx, tx, userID, fmt.Sprintf("Your order %s has been placed.", o.ID)); err != nil {
		return nil, err
	}

	payload := events.OrderCreatedPayload{
		OrderID:   o.ID,
		UserID:    o.UserID,
		Total:     o.Total,
		Timestamp: o.CreatedAt,
	}
	for _, it := range o.Items {
		payload.Items = append(payload.Items, events.OrderLine{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			Price:     it.Price,
		})
	}
	if err := s.sink.Enqueue(ctx, tx, events.OrderCreatedRoutingKey, o.ID, payload); err != nil {
		return nil, err
	}

	if err := s.carts.ClearCartWithTx(ctx, tx, userID); err != nil {
		return nil, fmt.Errorf("clear cart: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	s.logger.Printf("created order %s for user %s total %.2f", o.ID, o.UserID, o.Total)
	return o, nil
}

// Advance moves an order one step along the delivery lifecycle. The acting
// agent is assigned on first touch. Transitions are validated against the
// server-held machine; a wrong predecessor or a concurrent update leaves the
// order and its history untouched.
func (s *Service) Advance(ctx context.Context, orderID string, to Status, agentID string) (*Order, error) {
	if !to.Valid() {
		return nil, ErrInvalidTransition
	}
	if _, ok := Predecessor(to); !ok {
		return nil, ErrInvalidTransition
	}

	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, ErrNotFound
	}
	if !CanTransition(o.Status, to) {
		return nil, ErrInvalidTransition
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := s.orders.AdvanceWithTx(ctx, tx, o, to, agentID); err != nil {
		return nil, err
	}

	if err := s.notifs.AddWithTx(ctx, tx, o.UserID, statusMessage(o.ID, to)); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	payload := events.OrderStatusChangedPayload{
		OrderID:   o.ID,
		UserID:    o.UserID,
		AgentID:   agentID,
		From:      string(o.Status),
		To:        string(to),
		Timestamp: now,
	}
	if err := s.sink.Enqueue(ctx, tx, events.OrderStatusChangedRoutingKey, o.ID, payload); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	from := o.Status
	o.Status = to
	o.Version++
	if o.AgentID == "" {
		o.AgentID = agentID
	}
	o.History = append(o.History, HistoryEntry{Status: to, ChangedAt: now})

	s.logger.Printf("order %s: %s -> %s (agent %s)", o.ID, from, to, o.AgentID)
	return o, nil
}

// Rate attaches a one-time rating, allowed only to the owning customer and
// only once the order is delivered.
func (s *Service) Rate(ctx context.Context, orderID, userID string, stars int, feedback string) error {
	if stars < 1 || stars > 5 {
		return ErrInvalidRating
	}

	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	if o == nil || o.UserID != userID {
		return ErrNotFound
	}
	if o.Status != StatusDelivered {
		return ErrNotDelivered
	}

	return s.orders.Rate(ctx, orderID, stars, feedback)
}

func (s *Service) Get(ctx context.Context, orderID string) (*Order, error) {
	return s.orders.GetByID(ctx, orderID)
}

func (s *Service) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	return s.orders.ListByUser(ctx, userID)
}

func (s *Service) ListByAgent(ctx context.Context, agentID string) ([]Order, error) {
	return s.orders.ListByAgent(ctx, agentID)
}

func (s *Service) ListActive(ctx context.Context) ([]Order, error) {
	return s.orders.ListActive(ctx)
}

func statusMessage(orderID string, st Status) string {
	switch st {
	case StatusPickedUp:
		return fmt.Sprintf("Your order %s has been picked up.", orderID)
	case StatusOutForDelivery:
		return fmt.Sprintf("Your order %s is out for delivery.", orderID)
	case StatusDelivered:
		return fmt.Sprintf("Your order %s has been delivered.", orderID)
	default:
		return fmt.Sprintf("Your order %s is %s.", orderID, st)
	}
}
