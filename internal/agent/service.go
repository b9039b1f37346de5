package agent

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/grocerlane/backend/internal/events"
)

type EventSink interface {
	Enqueue(ctx context.Context, tx *sql.Tx, routingKey, partitionKey string, payload any) error
}

type Service struct {
	db   *sql.DB
	repo Repository
	sink EventSink
}

func NewService(db *sql.DB, repo Repository, sink EventSink) *Service {
	return &Service{db: db, repo: repo, sink: sink}
}

// ReportLocation stores the agent's latest position and enqueues the event
// the history projection consumes.
func (s *Service) ReportLocation(ctx context.Context, agentID string, lat, lng float64) (*Location, error) {
	loc := &Location{AgentID: agentID, Lat: lat, Lng: lng}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := s.repo.UpsertWithTx(ctx, tx, loc); err != nil {
		return nil, err
	}

	payload := events.AgentLocationUpdatedPayload{
		AgentID:   agentID,
		Lat:       lat,
		Lng:       lng,
		Timestamp: time.Now().UTC(),
	}
	if err := s.sink.Enqueue(ctx, tx, events.AgentLocationUpdatedRoutingKey, agentID, payload); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return loc, nil
}

func (s *Service) Latest(ctx context.Context, agentID string) (*Location, error) {
	return s.repo.Latest(ctx, agentID)
}

func (s *Service) ListLatest(ctx context.Context) ([]Location, error) {
	return s.repo.ListLatest(ctx)
}
