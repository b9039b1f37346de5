package mirror

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grocerlane/backend/internal/agent"
	"github.com/grocerlane/backend/internal/events"
)

type fakeAgentRepo struct {
	history []agent.Location
}

func (f *fakeAgentRepo) UpsertWithTx(ctx context.Context, tx *sql.Tx, loc *agent.Location) error {
	return nil
}

func (f *fakeAgentRepo) Latest(ctx context.Context, agentID string) (*agent.Location, error) {
	return nil, nil
}

func (f *fakeAgentRepo) ListLatest(ctx context.Context) ([]agent.Location, error) {
	return nil, nil
}

func (f *fakeAgentRepo) AppendHistory(ctx context.Context, tx *sql.Tx, loc *agent.Location) error {
	f.history = append(f.history, *loc)
	return nil
}

type fakeCheckpoints struct {
	last map[string]int64
}

func newFakeCheckpoints() *fakeCheckpoints {
	return &fakeCheckpoints{last: map[string]int64{}}
}

func (f *fakeCheckpoints) Last(ctx context.Context, consumer, partition string) (int64, bool, error) {
	seq, ok := f.last[consumer+"/"+partition]
	return seq, ok, nil
}

func (f *fakeCheckpoints) Record(ctx context.Context, tx *sql.Tx, consumer, partition string, seq int64) error {
	key := consumer + "/" + partition
	if seq > f.last[key] {
		f.last[key] = seq
	}
	return nil
}

func newTestMirror(t *testing.T, agents agent.Repository, marks Checkpoints) (*AgentLocationMirror, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewAgentLocationMirror("amqp://unused", db, agents, marks, log.New(io.Discard, "", 0)), mock
}

func locationEventBody(t *testing.T, seq int64, lat, lng float64) []byte {
	t.Helper()
	env := events.EventEnvelope[events.AgentLocationUpdatedPayload]{
		EventName:    events.EventNameAgentLocationUpdated,
		EventVersion: 1,
		EventID:      "evt-1",
		Producer:     events.ProducerName,
		PartitionKey: "agent-1",
		Sequence:     seq,
		OccurredAt:   time.Now().UTC(),
		Payload: events.AgentLocationUpdatedPayload{
			AgentID:   "agent-1",
			Lat:       lat,
			Lng:       lng,
			Timestamp: time.Now().UTC(),
		},
	}
	body, err := json.Marshal(env)
	require.NoError(t, err)
	return body
}

func TestHandle_AppendsHistory(t *testing.T) {
	agents := &fakeAgentRepo{}
	marks := newFakeCheckpoints()
	m, mock := newTestMirror(t, agents, marks)
	mock.ExpectBegin()
	mock.ExpectCommit()

	require.NoError(t, m.handle(context.Background(), locationEventBody(t, 1, 55.7, 12.6)))

	require.Len(t, agents.history, 1)
	assert.Equal(t, "agent-1", agents.history[0].AgentID)
	assert.Equal(t, 55.7, agents.history[0].Lat)
	assert.Equal(t, int64(1), marks.last[agentLocationConsumer+"/agent-1"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandle_SkipsDuplicateSequence(t *testing.T) {
	agents := &fakeAgentRepo{}
	marks := newFakeCheckpoints()
	m, mock := newTestMirror(t, agents, marks)
	mock.ExpectBegin()
	mock.ExpectCommit()

	require.NoError(t, m.handle(context.Background(), locationEventBody(t, 3, 55.7, 12.6)))
	require.Len(t, agents.history, 1)

	// redelivery of an already-applied sequence is a no-op
	require.NoError(t, m.handle(context.Background(), locationEventBody(t, 3, 55.8, 12.7)))
	require.NoError(t, m.handle(context.Background(), locationEventBody(t, 2, 55.9, 12.8)))
	assert.Len(t, agents.history, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandle_RejectsBadEnvelope(t *testing.T) {
	agents := &fakeAgentRepo{}
	m, _ := newTestMirror(t, agents, newFakeCheckpoints())

	assert.Error(t, m.handle(context.Background(), []byte("not json")))

	env := events.EventEnvelope[events.AgentLocationUpdatedPayload]{
		EventName:    "something.else",
		EventVersion: 1,
		PartitionKey: "agent-1",
	}
	body, err := json.Marshal(env)
	require.NoError(t, err)
	assert.Error(t, m.handle(context.Background(), body))

	assert.Empty(t, agents.history)
}
