package notification

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type Notification struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"userId"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// Repository is an append-only per-user message feed.
type Repository interface {
	AddWithTx(ctx context.Context, tx *sql.Tx, userID, message string) error
	ListByUser(ctx context.Context, userID string) ([]Notification, error)
}

type repo struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repo{db: db}
}

func (r *repo) AddWithTx(ctx context.Context, tx *sql.Tx, userID, message string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO notifications (user_id, message) VALUES ($1, $2)`, userID, message)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (r *repo) ListByUser(ctx context.Context, userID string) ([]Notification, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, message, created_at FROM notifications
         WHERE user_id = $1 ORDER BY id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("select notifications: %w", err)
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Message, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}
