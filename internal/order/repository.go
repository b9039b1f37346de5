package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	CreateWithTx(ctx context.Context, tx *sql.Tx, o *Order) error
	GetByID(ctx context.Context, orderID string) (*Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	ListByAgent(ctx context.Context, agentID string) ([]Order, error)
	ListActive(ctx context.Context) ([]Order, error)
	AdvanceWithTx(ctx context.Context, tx *sql.Tx, o *Order, to Status, agentID string) error
	Rate(ctx context.Context, orderID string, stars int, feedback string) error
}

type repo struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repo{db: db}
}

func (r *repo) CreateWithTx(ctx context.Context, tx *sql.Tx, o *Order) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Status == "" {
		o.Status = StatusPending
	}
	if o.Version == 0 {
		o.Version = 1
	}

	var lat, lng any
	if o.Dropoff != nil {
		lat, lng = o.Dropoff.Lat, o.Dropoff.Lng
	}
	address := ""
	if o.Dropoff != nil {
		address = o.Dropoff.Address
	}

	_, err := tx.ExecContext(ctx,
		`INSERT INTO orders (id, user_id, total, status, version, dropoff_lat, dropoff_lng, dropoff_address, contact_phone, payment_ref, created_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		o.ID, o.UserID, o.Total, o.Status, o.Version, lat, lng, address, o.ContactPhone, o.PaymentRef, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for _, it := range o.Items {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO order_items (id, order_id, product_id, name, quantity, price)
             VALUES ($1, $2, $3, $4, $5, $6)`,
			uuid.NewString(), o.ID, it.ProductID, it.Name, it.Quantity, it.Price,
		)
		if err != nil {
			return fmt.Errorf("insert order_item: %w", err)
		}
	}

	// changed_at defaults to NOW() so the initial row and later advance
	// rows come from the same clock
	var changedAt time.Time
	err = tx.QueryRowContext(ctx,
		`INSERT INTO order_status_history (order_id, status) VALUES ($1, $2) RETURNING changed_at`,
		o.ID, o.Status,
	).Scan(&changedAt)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}

	o.History = append(o.History, HistoryEntry{Status: o.Status, ChangedAt: changedAt})
	return nil
}

func (r *repo) GetByID(ctx context.Context, orderID string) (*Order, error) {
	var (
		o        Order
		agentID  sql.NullString
		lat, lng sql.NullFloat64
		address  string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, total, status, version, agent_id, dropoff_lat, dropoff_lng, dropoff_address, contact_phone, payment_ref, created_at
         FROM orders WHERE id = $1`,
		orderID,
	).Scan(&o.ID, &o.UserID, &o.Total, &o.Status, &o.Version, &agentID, &lat, &lng, &address, &o.ContactPhone, &o.PaymentRef, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select order: %w", err)
	}
	o.AgentID = agentID.String
	if lat.Valid && lng.Valid {
		o.Dropoff = &Dropoff{Lat: lat.Float64, Lng: lng.Float64, Address: address}
	}

	if err := r.loadItems(ctx, &o); err != nil {
		return nil, err
	}
	if err := r.loadHistory(ctx, &o); err != nil {
		return nil, err
	}
	if err := r.loadRating(ctx, &o); err != nil {
		return nil, err
	}

	return &o, nil
}

func (r *repo) loadItems(ctx context.Context, o *Order) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT product_id, name, quantity, price FROM order_items WHERE order_id = $1`, o.ID)
	if err != nil {
		return fmt.Errorf("select order_items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ProductID, &it.Name, &it.Quantity, &it.Price); err != nil {
			return fmt.Errorf("scan order_item: %w", err)
		}
		o.Items = append(o.Items, it)
	}
	return rows.Err()
}

func (r *repo) loadHistory(ctx context.Context, o *Order) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT status, changed_at FROM order_status_history WHERE order_id = $1 ORDER BY id`, o.ID)
	if err != nil {
		return fmt.Errorf("select history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var h HistoryEntry
		if err := rows.Scan(&h.Status, &h.ChangedAt); err != nil {
			return fmt.Errorf("scan history: %w", err)
		}
		o.History = append(o.History, h)
	}
	return rows.Err()
}

func (r *repo) loadRating(ctx context.Context, o *Order) error {
	var rating Rating
	err := r.db.QueryRowContext(ctx,
		`SELECT stars, feedback, rated_at FROM order_ratings WHERE order_id = $1`, o.ID,
	).Scan(&rating.Stars, &rating.Feedback, &rating.RatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("select rating: %w", err)
	}
	o.Rating = &rating
	return nil
}

func (r *repo) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	return r.list(ctx, `WHERE user_id = $1`, userID)
}

func (r *repo) ListByAgent(ctx context.Context, agentID string) ([]Order, error) {
	return r.list(ctx, `WHERE agent_id = $1`, agentID)
}

// ListActive returns orders that still need fulfillment, oldest first.
func (r *repo) ListActive(ctx context.Context) ([]Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, total, status, version, agent_id, created_at
         FROM orders WHERE status <> $1 ORDER BY created_at ASC`, StatusDelivered)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	return r.scanList(rows)
}

func (r *repo) list(ctx context.Context, where string, arg any) ([]Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, total, status, version, agent_id, created_at
         FROM orders `+where+` ORDER BY created_at DESC`, arg)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	return r.scanList(rows)
}

func (r *repo) scanList(rows *sql.Rows) ([]Order, error) {
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		var (
			o       Order
			agentID sql.NullString
		)
		if err := rows.Scan(&o.ID, &o.UserID, &o.Total, &o.Status, &o.Version, &agentID, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		o.AgentID = agentID.String
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return orders, nil
}

// AdvanceWithTx moves o to the given status. The UPDATE is guarded by both the
// required predecessor status and the version read by the caller, so a
// concurrent agent loses with ErrConflict instead of silently clobbering.
func (r *repo) AdvanceWithTx(ctx context.Context, tx *sql.Tx, o *Order, to Status, agentID string) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE orders
         SET status = $1, version = version + 1, agent_id = COALESCE(agent_id, $2)
         WHERE id = $3 AND status = $4 AND version = $5`,
		to, agentID, o.ID, o.Status, o.Version,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrConflict
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO order_status_history (order_id, status) VALUES ($1, $2)`,
		o.ID, to,
	)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

// Rate attaches a rating once; later attempts fail with ErrAlreadyRated.
func (r *repo) Rate(ctx context.Context, orderID string, stars int, feedback string) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO order_ratings (order_id, stars, feedback)
         VALUES ($1, $2, $3) ON CONFLICT (order_id) DO NOTHING`,
		orderID, stars, feedback,
	)
	if err != nil {
		return fmt.Errorf("insert rating: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrAlreadyRated
	}
	return nil
}
