package outbox

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/grocerlane/backend/internal/events"
	"github.com/grocerlane/backend/internal/sequence"
)

// Publisher is the broker side of the relay.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

// Relay drains the outbox into the broker. Failed publishes are retried with
// exponential backoff; rows exceeding MaxAttempts are marked dead and logged.
// The request path never waits on the broker, so the service stays usable
// when RabbitMQ is down; rows simply accumulate until it returns.
type Relay struct {
	repo        Repository
	seq         sequence.Repository
	pub         Publisher
	logger      *log.Logger
	interval    time.Duration
	batchSize   int
	maxAttempts int
}

func NewRelay(repo Repository, seq sequence.Repository, pub Publisher, logger *log.Logger, interval time.Duration, batchSize, maxAttempts int) *Relay {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	return &Relay{
		repo:        repo,
		seq:         seq,
		pub:         pub,
		logger:      logger,
		interval:    interval,
		batchSize:   batchSize,
		maxAttempts: maxAttempts,
	}
}

// Run polls until the context is cancelled.
func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Println("stopping outbox relay")
			return
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil {
				r.logger.Printf("outbox relay pass: %v", err)
			}
		}
	}
}

// RunOnce processes one batch and reports how many messages were published.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	msgs, err := r.repo.FetchDue(ctx, r.batchSize)
	if err != nil {
		return 0, err
	}

	published := 0
	for _, m := range msgs {
		if err := r.publishOne(ctx, m); err != nil {
			r.fail(ctx, m, err)
			continue
		}
		if err := r.repo.MarkPublished(ctx, m.ID); err != nil {
			r.logger.Printf("mark published %s: %v", m.ID, err)
			continue
		}
		published++
	}
	return published, nil
}

func (r *Relay) publishOne(ctx context.Context, m Message) error {
	seq, err := r.seq.NextSequence(ctx, m.PartitionKey)
	if err != nil {
		return err
	}

	env := events.EventEnvelope[json.RawMessage]{
		EventName:    eventName(m.RoutingKey),
		EventVersion: 1,
		EventID:      m.ID,
		Producer:     events.ProducerName,
		PartitionKey: m.PartitionKey,
		Sequence:     seq,
		OccurredAt:   m.CreatedAt,
		Payload:      m.Payload,
	}

	body, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return r.pub.Publish(ctx, m.RoutingKey, body)
}

func (r *Relay) fail(ctx context.Context, m Message, cause error) {
	if m.Attempts+1 >= r.maxAttempts {
		r.logger.Printf("outbox message %s (%s) dead after %d attempts: %v", m.ID, m.RoutingKey, m.Attempts+1, cause)
		if err := r.repo.MarkDead(ctx, m.ID); err != nil {
			r.logger.Printf("mark dead %s: %v", m.ID, err)
		}
		return
	}

	delay := backoff(m.Attempts)
	r.logger.Printf("publish %s (%s) failed (attempt %d, retry in %s): %v", m.ID, m.RoutingKey, m.Attempts+1, delay, cause)
	if err := r.repo.MarkFailed(ctx, m.ID, time.Now().Add(delay)); err != nil {
		r.logger.Printf("mark failed %s: %v", m.ID, err)
	}
}

// backoff doubles per attempt from 2s up to a 5m cap.
func backoff(attempts int) time.Duration {
	d := 2 * time.Second
	for i := 0; i < attempts && d < 5*time.Minute; i++ {
		d *= 2
	}
	if d > 5*time.Minute {
		d = 5 * time.Minute
	}
	return d
}

// eventName strips the version suffix from a routing key.
func eventName(routingKey string) string {
	if i := strings.LastIndex(routingKey, ".v"); i > 0 {
		return routingKey[:i]
	}
	return routingKey
}
