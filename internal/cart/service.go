package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrQuantityZero = errors.New("quantity must be positive")

// Service applies cart mutations and keeps the stored total consistent.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context, userID string) (*Cart, error) {
	return s.repo.GetCart(ctx, userID)
}

// AddItem adjusts the quantity of a line by delta. A positive delta on an
// absent product creates the line; a resulting quantity of zero or below
// removes it entirely.
func (s *Service) AddItem(ctx context.Context, userID, productID, name string, price float64, delta int) (*Cart, error) {
	c, err := s.repo.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		c = &Cart{
			ID:        uuid.NewString(),
			UserID:    userID,
			Items:     []Item{},
			UpdatedAt: time.Now(),
		}
	}

	found := false
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items[i].Quantity += delta
			c.Items[i].Price = price
			if c.Items[i].Quantity <= 0 {
				c.Items = append(c.Items[:i], c.Items[i+1:]...)
			}
			found = true
			break
		}
	}
	if !found {
		if delta <= 0 {
			return nil, ErrQuantityZero
		}
		c.Items = append(c.Items, Item{
			ProductID: productID,
			Name:      name,
			Quantity:  delta,
			Price:     price,
		})
	}

	c.Recalculate()
	c.UpdatedAt = time.Now()

	if err := s.repo.UpsertCart(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// SetQuantity sets a line to an absolute quantity; zero or below removes it.
func (s *Service) SetQuantity(ctx context.Context, userID, productID string, quantity int) (*Cart, error) {
	c, err := s.repo.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, nil
	}

	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			if quantity <= 0 {
				c.Items = append(c.Items[:i], c.Items[i+1:]...)
			} else {
				c.Items[i].Quantity = quantity
			}
			break
		}
	}

	c.Recalculate()
	c.UpdatedAt = time.Now()

	if err := s.repo.UpsertCart(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) Clear(ctx context.Context, userID string) error {
	return s.repo.ClearCart(ctx, userID)
}
