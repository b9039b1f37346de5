package mirror

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Checkpoints tracks, per consumer and partition, the highest event sequence
// already applied. Projections read it before writing and record it in the
// same transaction as the projected row, so a redelivered event is skipped
// instead of appended twice.
type Checkpoints interface {
	Last(ctx context.Context, consumer, partition string) (int64, bool, error)
	Record(ctx context.Context, tx *sql.Tx, consumer, partition string, seq int64) error
}

type checkpoints struct {
	db *sql.DB
}

func NewCheckpoints(db *sql.DB) Checkpoints {
	return &checkpoints{db: db}
}

func (c *checkpoints) Last(ctx context.Context, consumer, partition string) (int64, bool, error) {
	var seq int64
	err := c.db.QueryRowContext(ctx, `
		SELECT last_sequence FROM event_dedup_checkpoint
		WHERE consumer_name = $1 AND partition_key = $2
	`, consumer, partition).Scan(&seq)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("select checkpoint: %w", err)
	}
	return seq, true, nil
}

// Record never moves a checkpoint backwards, even when events arrive out of
// order.
func (c *checkpoints) Record(ctx context.Context, tx *sql.Tx, consumer, partition string, seq int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO event_dedup_checkpoint (consumer_name, partition_key, last_sequence, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (consumer_name, partition_key)
		DO UPDATE SET
			last_sequence = GREATEST(event_dedup_checkpoint.last_sequence, EXCLUDED.last_sequence),
			updated_at = NOW()
	`, consumer, partition, seq)
	if err != nil {
		return fmt.Errorf("record checkpoint: %w", err)
	}
	return nil
}
