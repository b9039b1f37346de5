package cart

import "time"

type Item struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

type Cart struct {
	ID        string    `json:"cartId"`
	UserID    string    `json:"userId"`
	Items     []Item    `json:"items"`
	Total     float64   `json:"totalAmount"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Recalculate recomputes the total from the line items.
func (c *Cart) Recalculate() {
	total := 0.0
	for _, it := range c.Items {
		total += float64(it.Quantity) * it.Price
	}
	c.Total = total
}
