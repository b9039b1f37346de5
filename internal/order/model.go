package order

import "time"

type Item struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

type HistoryEntry struct {
	Status    Status    `json:"status"`
	ChangedAt time.Time `json:"changedAt"`
}

type Rating struct {
	Stars    int       `json:"stars"`
	Feedback string    `json:"feedback"`
	RatedAt  time.Time `json:"ratedAt"`
}

type Dropoff struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address"`
}

type Order struct {
	ID           string         `json:"orderId"`
	UserID       string         `json:"userId"`
	Items        []Item         `json:"items"`
	Total        float64        `json:"total"`
	Status       Status         `json:"status"`
	Version      int64          `json:"version"`
	AgentID      string         `json:"agentId,omitempty"`
	Dropoff      *Dropoff       `json:"dropoff,omitempty"`
	ContactPhone string         `json:"contactPhone,omitempty"`
	PaymentRef   string         `json:"paymentRef,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	History      []HistoryEntry `json:"history,omitempty"`
	Rating       *Rating        `json:"rating,omitempty"`
}
