package events

import (
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	EventsExchange = "grocerlane.events"

	OrderCreatedRoutingKey         = "order.created.v1"
	OrderStatusChangedRoutingKey   = "order.status_changed.v1"
	AgentLocationUpdatedRoutingKey = "agent.location_updated.v1"
	SearchLoggedRoutingKey         = "search.logged.v1"

	ProducerName = "grocerlane-backend"
)

func serviceQueue(serviceName, routingKey string) string {
	return serviceName + "." + routingKey
}

// QueueName returns the queue this service binds for a routing key.
func QueueName(routingKey string) string {
	return serviceQueue(ProducerName, routingKey)
}

// DeclareEventsExchange declares the shared topic exchange on a channel.
// Publishers and consumers both declare it so either side can start first.
func DeclareEventsExchange(ch *amqp.Channel) error {
	return ch.ExchangeDeclare(
		EventsExchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
}
