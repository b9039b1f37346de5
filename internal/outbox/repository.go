package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Message is a pending event row. Payload is the event payload only; the
// relay wraps it in the shared envelope at publish time.
type Message struct {
	ID            string
	RoutingKey    string
	PartitionKey  string
	Payload       json.RawMessage
	Attempts      int
	NextAttemptAt time.Time
	CreatedAt     time.Time
}

type Repository interface {
	Enqueue(ctx context.Context, tx *sql.Tx, routingKey, partitionKey string, payload any) error
	FetchDue(ctx context.Context, limit int) ([]Message, error)
	MarkPublished(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, nextAttemptAt time.Time) error
	MarkDead(ctx context.Context, id string) error
}

type repo struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repo{db: db}
}

// Enqueue writes the event row inside the caller's transaction so the
// domain write and its event commit or roll back together.
func (r *repo) Enqueue(ctx context.Context, tx *sql.Tx, routingKey, partitionKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO outbox (id, routing_key, partition_key, payload)
         VALUES ($1, $2, $3, $4)`,
		uuid.NewString(), routingKey, partitionKey, body)
	if err != nil {
		return fmt.Errorf("insert outbox: %w", err)
	}
	return nil
}

func (r *repo) FetchDue(ctx context.Context, limit int) ([]Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, routing_key, partition_key, payload, attempts, next_attempt_at, created_at
		FROM outbox
		WHERE published_at IS NULL AND NOT dead AND next_attempt_at <= NOW()
		ORDER BY created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("select outbox: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.RoutingKey, &m.PartitionKey, &m.Payload, &m.Attempts, &m.NextAttemptAt, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (r *repo) MarkPublished(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE outbox SET published_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark published: %w", err)
	}
	return nil
}

func (r *repo) MarkFailed(ctx context.Context, id string, nextAttemptAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE outbox SET attempts = attempts + 1, next_attempt_at = $2 WHERE id = $1`,
		id, nextAttemptAt)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

func (r *repo) MarkDead(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE outbox SET dead = TRUE, attempts = attempts + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark dead: %w", err)
	}
	return nil
}
