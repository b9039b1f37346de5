package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/grocerlane/backend/internal/events"
)

// EventSink mirrors the order package's outbox dependency.
type EventSink interface {
	Enqueue(ctx context.Context, tx *sql.Tx, routingKey, partitionKey string, payload any) error
}

type Service struct {
	db     *sql.DB
	repo   Repository
	sink   EventSink
	logger *log.Logger
}

func NewService(db *sql.DB, repo Repository, sink EventSink, logger *log.Logger) *Service {
	return &Service{db: db, repo: repo, sink: sink, logger: logger}
}

func (s *Service) List(ctx context.Context) ([]Product, error) {
	return s.repo.List(ctx)
}

func (s *Service) ListByCategory(ctx context.Context, category string) ([]Product, error) {
	return s.repo.ListByCategory(ctx, category)
}

func (s *Service) ListByCard(ctx context.Context, cardID string) ([]Product, error) {
	return s.repo.ListByCard(ctx, cardID)
}

func (s *Service) GetByID(ctx context.Context, productID string) (*Product, error) {
	return s.repo.GetByID(ctx, productID)
}

// Search runs a product search and records the query. The log row and its
// mirror event commit together; a failure to log never fails the search.
func (s *Service) Search(ctx context.Context, userID, query string) ([]Product, error) {
	query = strings.TrimSpace(query)
	products, err := s.repo.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	if query != "" {
		if err := s.logSearch(ctx, userID, query); err != nil {
			s.logger.Printf("log search %q: %v", query, err)
		}
	}
	return products, nil
}

func (s *Service) logSearch(ctx context.Context, userID, query string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := s.repo.LogSearchWithTx(ctx, tx, userID, query); err != nil {
		return err
	}

	payload := events.SearchLoggedPayload{
		UserID:    userID,
		Query:     query,
		Timestamp: time.Now().UTC(),
	}
	partition := userID
	if partition == "" {
		partition = "anonymous"
	}
	if err := s.sink.Enqueue(ctx, tx, events.SearchLoggedRoutingKey, partition, payload); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Service) Upsert(ctx context.Context, p *Product) error {
	if p.Name == "" || p.Price < 0 {
		return fmt.Errorf("invalid product")
	}
	return s.repo.Upsert(ctx, p)
}

func (s *Service) SetStock(ctx context.Context, productID string, stock int) error {
	if stock < 0 {
		stock = 0
	}
	return s.repo.SetStock(ctx, productID, stock)
}

func (s *Service) ListCards(ctx context.Context) ([]HomepageCard, error) {
	return s.repo.ListCards(ctx)
}

func (s *Service) UpsertCard(ctx context.Context, c *HomepageCard) error {
	if c.Title == "" {
		return fmt.Errorf("invalid card")
	}
	return s.repo.UpsertCard(ctx, c)
}

func (s *Service) DeleteCard(ctx context.Context, cardID string) error {
	return s.repo.DeleteCard(ctx, cardID)
}
