package integration

import (
	"context"
	"database/sql"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/grocerlane/backend/internal/cart"
	"github.com/grocerlane/backend/internal/notification"
	"github.com/grocerlane/backend/internal/order"
	"github.com/grocerlane/backend/internal/outbox"
	"github.com/grocerlane/backend/internal/sequence"
	"github.com/grocerlane/backend/internal/testutil"
	"github.com/grocerlane/backend/internal/user"
)

type capturePublisher struct {
	routingKeys []string
}

func (p *capturePublisher) Publish(ctx context.Context, routingKey string, body []byte) error {
	p.routingKeys = append(p.routingKeys, routingKey)
	return nil
}

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestOrderLifecycle(t *testing.T) {
	db, cleanup := testutil.StartPostgres(t)
	t.Cleanup(cleanup)
	truncateTables(t, db)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	users := user.NewService(user.NewRepository(db), discardLogger())
	carts := cart.NewRepository(db)
	cartSvc := cart.NewService(carts)
	notifs := notification.NewRepository(db)
	outboxRepo := outbox.NewRepository(db)
	orders := order.NewService(db, order.NewRepository(db), carts, notifs, outboxRepo, discardLogger())

	customer, err := users.Register(ctx, "Customer", "customer@example.com", "secret1", user.RoleCustomer)
	require.NoError(t, err)
	agent, err := users.Register(ctx, "Agent", "agent@example.com", "secret1", user.RoleDelivery)
	require.NoError(t, err)

	// one item, quantity bumped to 2 via a second delta
	_, err = cartSvc.AddItem(ctx, customer.ID, "p1", "Milk", 100, 1)
	require.NoError(t, err)
	c, err := cartSvc.AddItem(ctx, customer.ID, "p1", "Milk", 100, 1)
	require.NoError(t, err)
	require.Equal(t, 200.0, c.Total)

	o, err := orders.Checkout(ctx, customer.ID, order.CheckoutRequest{ContactPhone: "12345678"})
	require.NoError(t, err)
	require.Equal(t, order.StatusPending, o.Status)
	require.Equal(t, 200.0, o.Total)
	require.Len(t, o.History, 1)

	// checkout empties the cart
	c, err = cartSvc.Get(ctx, customer.ID)
	require.NoError(t, err)
	if c != nil {
		require.Empty(t, c.Items)
	}

	// a skipped step is rejected without touching the order
	_, err = orders.Advance(ctx, o.ID, order.StatusDelivered, agent.ID)
	require.ErrorIs(t, err, order.ErrInvalidTransition)
	unchanged, err := orders.Get(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, order.StatusPending, unchanged.Status)
	require.Len(t, unchanged.History, 1)

	for _, st := range []order.Status{order.StatusPickedUp, order.StatusOutForDelivery, order.StatusDelivered} {
		o, err = orders.Advance(ctx, o.ID, st, agent.ID)
		require.NoError(t, err)
		require.Equal(t, st, o.Status)
	}
	require.Equal(t, agent.ID, o.AgentID)

	fetched, err := orders.Get(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, fetched.History, 4)
	require.Equal(t, order.StatusPending, fetched.History[0].Status)
	require.Equal(t, order.StatusDelivered, fetched.History[3].Status)
	for i := 1; i < len(fetched.History); i++ {
		require.False(t, fetched.History[i].ChangedAt.Before(fetched.History[i-1].ChangedAt))
	}

	// rating attaches once and cannot be overwritten
	require.NoError(t, orders.Rate(ctx, o.ID, customer.ID, 5, "great"))
	require.ErrorIs(t, orders.Rate(ctx, o.ID, customer.ID, 3, "changed my mind"), order.ErrAlreadyRated)

	fetched, err = orders.Get(ctx, o.ID)
	require.NoError(t, err)
	require.NotNil(t, fetched.Rating)
	require.Equal(t, 5, fetched.Rating.Stars)

	// every lifecycle step notified the customer
	msgs, err := notifs.ListByUser(ctx, customer.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 4)

	// the outbox drains into the broker in order
	pub := &capturePublisher{}
	relay := outbox.NewRelay(outboxRepo, sequence.NewRepository(db), pub, discardLogger(), time.Second, 50, 3)
	n, err := relay.RunOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Equal(t, []string{
		"order.created.v1",
		"order.status_changed.v1",
		"order.status_changed.v1",
		"order.status_changed.v1",
	}, pub.routingKeys)

	// a second pass finds nothing left
	n, err = relay.RunOnce(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestAdvance_ConcurrentAgentsLoseCleanly(t *testing.T) {
	db, cleanup := testutil.StartPostgres(t)
	t.Cleanup(cleanup)
	truncateTables(t, db)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	users := user.NewService(user.NewRepository(db), discardLogger())
	carts := cart.NewRepository(db)
	cartSvc := cart.NewService(carts)
	orders := order.NewService(db, order.NewRepository(db), carts, notification.NewRepository(db), outbox.NewRepository(db), discardLogger())

	customer, err := users.Register(ctx, "Customer", "c2@example.com", "secret1", user.RoleCustomer)
	require.NoError(t, err)
	agentA, err := users.Register(ctx, "Agent A", "a2@example.com", "secret1", user.RoleDelivery)
	require.NoError(t, err)
	agentB, err := users.Register(ctx, "Agent B", "b2@example.com", "secret1", user.RoleDelivery)
	require.NoError(t, err)

	_, err = cartSvc.AddItem(ctx, customer.ID, "p1", "Milk", 50, 1)
	require.NoError(t, err)
	o, err := orders.Checkout(ctx, customer.ID, order.CheckoutRequest{})
	require.NoError(t, err)

	// repository-level advance with a stale snapshot simulates the race
	repo := order.NewRepository(db)
	stale, err := repo.GetByID(ctx, o.ID)
	require.NoError(t, err)

	_, err = orders.Advance(ctx, o.ID, order.StatusPickedUp, agentA.ID)
	require.NoError(t, err)

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	err = repo.AdvanceWithTx(ctx, tx, stale, order.StatusPickedUp, agentB.ID)
	require.ErrorIs(t, err, order.ErrConflict)
	require.NoError(t, tx.Rollback())

	// the first agent keeps the order
	fetched, err := repo.GetByID(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, order.StatusPickedUp, fetched.Status)
	require.Equal(t, agentA.ID, fetched.AgentID)
	require.Len(t, fetched.History, 2)
}

func truncateTables(t *testing.T, db *sql.DB) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := db.ExecContext(ctx, `TRUNCATE users, carts, cart_items, orders, order_items,
		order_status_history, order_ratings, notifications, outbox,
		event_sequence, event_dedup_checkpoint CASCADE`)
	require.NoError(t, err)
}
