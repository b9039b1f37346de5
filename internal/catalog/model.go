package catalog

import "time"

type StockStatus string

const (
	StockIn  StockStatus = "in"
	StockOut StockStatus = "out"
)

type Product struct {
	ID            string      `json:"productId"`
	Name          string      `json:"name"`
	Description   string      `json:"description,omitempty"`
	Price         float64     `json:"price"`
	OriginalPrice *float64    `json:"originalPrice,omitempty"`
	Stock         int         `json:"stock"`
	StockStatus   StockStatus `json:"stockStatus"`
	Category      string      `json:"category,omitempty"`
	ImageURL      string      `json:"imageUrl,omitempty"`
	CardID        string      `json:"cardId,omitempty"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

// HomepageCard is a merchandising tile linking to a category of products.
type HomepageCard struct {
	ID       string `json:"cardId"`
	Title    string `json:"title"`
	Category string `json:"category,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
	Position int    `json:"position"`
}

func stockStatus(stock int) StockStatus {
	if stock > 0 {
		return StockIn
	}
	return StockOut
}
