package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEnvelopeValidate(t *testing.T) {
	env := EventEnvelope[AgentLocationUpdatedPayload]{
		EventName:    EventNameAgentLocationUpdated,
		EventVersion: 1,
		EventID:      "evt-1",
		Producer:     ProducerName,
		PartitionKey: "agent-1",
		OccurredAt:   time.Now().UTC(),
	}
	assert.NoError(t, env.Validate(EventNameAgentLocationUpdated, 1))

	assert.Error(t, env.Validate(EventNameOrderCreated, 1))
	assert.Error(t, env.Validate(EventNameAgentLocationUpdated, 2))

	env.PartitionKey = ""
	assert.Error(t, env.Validate(EventNameAgentLocationUpdated, 1))
}
