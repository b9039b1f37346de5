package agent

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type Location struct {
	AgentID   string    `json:"agentId"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Repository interface {
	UpsertWithTx(ctx context.Context, tx *sql.Tx, loc *Location) error
	Latest(ctx context.Context, agentID string) (*Location, error)
	ListLatest(ctx context.Context) ([]Location, error)
	AppendHistory(ctx context.Context, tx *sql.Tx, loc *Location) error
}

type repo struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repo{db: db}
}

// UpsertWithTx overwrites the agent's latest coordinates; history lives in
// the projection fed by the location events.
func (r *repo) UpsertWithTx(ctx context.Context, tx *sql.Tx, loc *Location) error {
	err := tx.QueryRowContext(ctx, `
		INSERT INTO agent_locations (agent_id, lat, lng, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (agent_id)
		DO UPDATE SET lat = EXCLUDED.lat, lng = EXCLUDED.lng, updated_at = NOW()
		RETURNING updated_at
	`, loc.AgentID, loc.Lat, loc.Lng).Scan(&loc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert location: %w", err)
	}
	return nil
}

func (r *repo) Latest(ctx context.Context, agentID string) (*Location, error) {
	var loc Location
	err := r.db.QueryRowContext(ctx,
		`SELECT agent_id, lat, lng, updated_at FROM agent_locations WHERE agent_id = $1`, agentID,
	).Scan(&loc.AgentID, &loc.Lat, &loc.Lng, &loc.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select location: %w", err)
	}
	return &loc, nil
}

func (r *repo) ListLatest(ctx context.Context) ([]Location, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT agent_id, lat, lng, updated_at FROM agent_locations ORDER BY agent_id`)
	if err != nil {
		return nil, fmt.Errorf("select locations: %w", err)
	}
	defer rows.Close()

	var out []Location
	for rows.Next() {
		var loc Location
		if err := rows.Scan(&loc.AgentID, &loc.Lat, &loc.Lng, &loc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		out = append(out, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

// AppendHistory is used by the mirror consumer to project location events
// into the append-only history table.
func (r *repo) AppendHistory(ctx context.Context, tx *sql.Tx, loc *Location) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO agent_location_history (agent_id, lat, lng, recorded_at)
         VALUES ($1, $2, $3, $4)`,
		loc.AgentID, loc.Lat, loc.Lng, loc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert location history: %w", err)
	}
	return nil
}
