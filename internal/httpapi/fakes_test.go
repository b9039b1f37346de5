package httpapi

import (
	"context"
	"errors"

	"github.com/grocerlane/backend/internal/agent"
	"github.com/grocerlane/backend/internal/cart"
	"github.com/grocerlane/backend/internal/catalog"
	"github.com/grocerlane/backend/internal/notification"
	"github.com/grocerlane/backend/internal/order"
	"github.com/grocerlane/backend/internal/user"
)

type fakeUserService struct {
	registerUser *user.User
	registerErr  error
	authUser     *user.User
	authErr      error
}

func (f *fakeUserService) Register(ctx context.Context, name, email, password string, role user.Role) (*user.User, error) {
	return f.registerUser, f.registerErr
}

func (f *fakeUserService) Authenticate(ctx context.Context, email, password string) (*user.User, error) {
	return f.authUser, f.authErr
}

func (f *fakeUserService) GetByID(ctx context.Context, id string) (*user.User, error) {
	return nil, nil
}

type fakeCartService struct {
	cart        *cart.Cart
	addedDelta  int
	addedName   string
	addedPrice  float64
	clearedUser string
}

func (f *fakeCartService) Get(ctx context.Context, userID string) (*cart.Cart, error) {
	return f.cart, nil
}

func (f *fakeCartService) AddItem(ctx context.Context, userID, productID, name string, price float64, delta int) (*cart.Cart, error) {
	f.addedName = name
	f.addedPrice = price
	f.addedDelta = delta
	return f.cart, nil
}

func (f *fakeCartService) SetQuantity(ctx context.Context, userID, productID string, quantity int) (*cart.Cart, error) {
	return f.cart, nil
}

func (f *fakeCartService) Clear(ctx context.Context, userID string) error {
	f.clearedUser = userID
	return nil
}

type fakeCatalogService struct {
	products    []catalog.Product
	product     *catalog.Product
	cards       []catalog.HomepageCard
	searchUser  string
	searchQuery string
	stockErr    error
}

func (f *fakeCatalogService) List(ctx context.Context) ([]catalog.Product, error) {
	return f.products, nil
}

func (f *fakeCatalogService) ListByCategory(ctx context.Context, category string) ([]catalog.Product, error) {
	return f.products, nil
}

func (f *fakeCatalogService) ListByCard(ctx context.Context, cardID string) ([]catalog.Product, error) {
	return f.products, nil
}

func (f *fakeCatalogService) GetByID(ctx context.Context, productID string) (*catalog.Product, error) {
	return f.product, nil
}

func (f *fakeCatalogService) Search(ctx context.Context, userID, query string) ([]catalog.Product, error) {
	f.searchUser = userID
	f.searchQuery = query
	return f.products, nil
}

func (f *fakeCatalogService) Upsert(ctx context.Context, p *catalog.Product) error {
	return nil
}

func (f *fakeCatalogService) SetStock(ctx context.Context, productID string, stock int) error {
	return f.stockErr
}

func (f *fakeCatalogService) ListCards(ctx context.Context) ([]catalog.HomepageCard, error) {
	return f.cards, nil
}

func (f *fakeCatalogService) UpsertCard(ctx context.Context, c *catalog.HomepageCard) error {
	return nil
}

func (f *fakeCatalogService) DeleteCard(ctx context.Context, cardID string) error {
	return nil
}

type fakeOrderService struct {
	order       *order.Order
	checkoutErr error
	advanceErr  error
	rateErr     error
	agentSeen   string
	ratedStars  int
}

var errBoom = errors.New("boom")

func (f *fakeOrderService) Checkout(ctx context.Context, userID string, req order.CheckoutRequest) (*order.Order, error) {
	return f.order, f.checkoutErr
}

func (f *fakeOrderService) Advance(ctx context.Context, orderID string, to order.Status, agentID string) (*order.Order, error) {
	f.agentSeen = agentID
	return f.order, f.advanceErr
}

func (f *fakeOrderService) Rate(ctx context.Context, orderID, userID string, stars int, feedback string) error {
	if f.rateErr != nil {
		return f.rateErr
	}
	f.ratedStars = stars
	return nil
}

func (f *fakeOrderService) Get(ctx context.Context, orderID string) (*order.Order, error) {
	return f.order, nil
}

func (f *fakeOrderService) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	if f.order == nil {
		return nil, nil
	}
	return []order.Order{*f.order}, nil
}

func (f *fakeOrderService) ListByAgent(ctx context.Context, agentID string) ([]order.Order, error) {
	return nil, nil
}

func (f *fakeOrderService) ListActive(ctx context.Context) ([]order.Order, error) {
	if f.order == nil {
		return nil, nil
	}
	return []order.Order{*f.order}, nil
}

type fakeAgentService struct {
	reportedID string
	location   *agent.Location
}

func (f *fakeAgentService) ReportLocation(ctx context.Context, agentID string, lat, lng float64) (*agent.Location, error) {
	f.reportedID = agentID
	f.location = &agent.Location{AgentID: agentID, Lat: lat, Lng: lng}
	return f.location, nil
}

func (f *fakeAgentService) ListLatest(ctx context.Context) ([]agent.Location, error) {
	if f.location == nil {
		return nil, nil
	}
	return []agent.Location{*f.location}, nil
}

type fakeNotificationStore struct {
	notifications []notification.Notification
}

func (f *fakeNotificationStore) ListByUser(ctx context.Context, userID string) ([]notification.Notification, error) {
	var out []notification.Notification
	for _, n := range f.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}
