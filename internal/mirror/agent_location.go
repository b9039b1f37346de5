// Package mirror projects published events into append-only local tables.
package mirror

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/grocerlane/backend/internal/agent"
	"github.com/grocerlane/backend/internal/events"
)

const (
	agentLocationConsumer = "agent-location-mirror"
	redialDelay           = 5 * time.Second
)

// AgentLocationMirror consumes agent.location_updated events into the
// append-only location history. The latest-position table is overwritten on
// every report; this projection keeps the full trail, deduplicated by
// per-partition sequence in the same transaction as the insert. The broker
// connection is dialed inside Run and re-dialed after failures, so the
// mirror starts even when RabbitMQ is down and catches up once it returns.
type AgentLocationMirror struct {
	url    string
	db     *sql.DB
	agents agent.Repository
	marks  Checkpoints
	logger *log.Logger
}

func NewAgentLocationMirror(url string, db *sql.DB, agents agent.Repository, marks Checkpoints, logger *log.Logger) *AgentLocationMirror {
	return &AgentLocationMirror{url: url, db: db, agents: agents, marks: marks, logger: logger}
}

// Run consumes until the context is cancelled, re-dialing the broker after
// connection or channel failures.
func (m *AgentLocationMirror) Run(ctx context.Context) {
	for {
		if err := m.consume(ctx); err != nil {
			m.logger.Printf("agent location mirror: %v", err)
		}

		select {
		case <-ctx.Done():
			m.logger.Println("stopping agent location mirror")
			return
		case <-time.After(redialDelay):
		}
	}
}

func (m *AgentLocationMirror) consume(ctx context.Context) error {
	conn, err := amqp.Dial(m.url)
	if err != nil {
		return fmt.Errorf("dial rabbitmq: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if err := events.DeclareEventsExchange(ch); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	queue := events.QueueName(events.AgentLocationUpdatedRoutingKey)
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	if err := ch.QueueBind(queue, events.AgentLocationUpdatedRoutingKey, events.EventsExchange, false, nil); err != nil {
		return fmt.Errorf("queue bind: %w", err)
	}

	msgs, err := ch.Consume(
		queue,
		agentLocationConsumer,
		false, // autoAck
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}

			if err := m.handle(ctx, msg.Body); err != nil {
				m.logger.Printf("handle location event: %v", err)
				_ = msg.Nack(false, false)
				continue
			}
			_ = msg.Ack(false)
		}
	}
}

func (m *AgentLocationMirror) handle(ctx context.Context, body []byte) error {
	var env events.EventEnvelope[events.AgentLocationUpdatedPayload]
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if err := env.Validate(events.EventNameAgentLocationUpdated, 1); err != nil {
		return err
	}

	last, ok, err := m.marks.Last(ctx, agentLocationConsumer, env.PartitionKey)
	if err != nil {
		return err
	}
	if ok && env.Sequence != 0 && env.Sequence <= last {
		m.logger.Printf("skip duplicate agent=%s seq=%d last=%d", env.PartitionKey, env.Sequence, last)
		return nil
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	loc := &agent.Location{
		AgentID:   env.Payload.AgentID,
		Lat:       env.Payload.Lat,
		Lng:       env.Payload.Lng,
		UpdatedAt: env.Payload.Timestamp,
	}
	if err := m.agents.AppendHistory(ctx, tx, loc); err != nil {
		return err
	}

	if env.Sequence != 0 {
		if err := m.marks.Record(ctx, tx, agentLocationConsumer, env.PartitionKey, env.Sequence); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
