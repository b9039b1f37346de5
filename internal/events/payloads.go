package events

import "time"

// Payload types for the events this service emits. Event names match the
// routing key without the version suffix.

const (
	EventNameOrderCreated         = "order.created"
	EventNameOrderStatusChanged   = "order.status_changed"
	EventNameAgentLocationUpdated = "agent.location_updated"
	EventNameSearchLogged         = "search.logged"
)

type OrderLine struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

type OrderCreatedPayload struct {
	OrderID   string      `json:"orderId"`
	UserID    string      `json:"userId"`
	Total     float64     `json:"total"`
	Items     []OrderLine `json:"items"`
	Timestamp time.Time   `json:"timestamp"`
}

type OrderStatusChangedPayload struct {
	OrderID   string    `json:"orderId"`
	UserID    string    `json:"userId"`
	AgentID   string    `json:"agentId,omitempty"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Timestamp time.Time `json:"timestamp"`
}

type AgentLocationUpdatedPayload struct {
	AgentID   string    `json:"agentId"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Timestamp time.Time `json:"timestamp"`
}

type SearchLoggedPayload struct {
	UserID    string    `json:"userId,omitempty"`
	Query     string    `json:"query"`
	Timestamp time.Time `json:"timestamp"`
}
