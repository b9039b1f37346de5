package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/grocerlane/backend/internal/auth"
	"github.com/grocerlane/backend/internal/user"
)

type Deps struct {
	Auth          *AuthHandler
	Catalog       *CatalogHandler
	Cart          *CartHandler
	Order         *OrderHandler
	Agent         *AgentHandler
	Notifications *NotificationHandler
	JWTSecret     []byte
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	r.Get("/health", healthHandler)

	requireAuth := auth.RequireAuth(d.JWTSecret)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", d.Auth.Register)
		r.Post("/auth/login", d.Auth.Login)

		// public catalog; search picks up the session when a token is sent
		// so logged-in searches are attributed to the user
		r.Get("/products", d.Catalog.ListProducts)
		r.With(auth.OptionalAuth(d.JWTSecret)).Get("/products/search", d.Catalog.Search)
		r.Get("/products/{productId}", d.Catalog.GetProduct)
		r.Get("/cards", d.Catalog.ListCards)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Post("/auth/logout", d.Auth.Logout)
			r.Get("/notifications", d.Notifications.ListMine)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireRole(string(user.RoleCustomer)))
				r.Get("/cart", d.Cart.GetCart)
				r.Post("/cart/items", d.Cart.AddItem)
				r.Put("/cart/items", d.Cart.SetQuantity)
				r.Post("/checkout", d.Order.Checkout)
				r.Get("/orders", d.Order.ListMyOrders)
				r.Post("/orders/{orderId}/rating", d.Order.RateOrder)
			})

			r.Get("/orders/{orderId}", d.Order.GetOrder)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireRole(string(user.RoleDelivery)))
				r.Get("/delivery/orders", d.Order.ListAgentOrders)
				r.Post("/orders/{orderId}/status", d.Order.AdvanceStatus)
				r.Post("/delivery/location", d.Agent.ReportLocation)
			})

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireRole(string(user.RoleAdmin)))
				r.Get("/admin/orders", d.Order.ListActiveOrders)
				r.Get("/admin/agents/locations", d.Agent.ListLocations)
				r.Post("/admin/products", d.Catalog.UpsertProduct)
				r.Put("/admin/products/{productId}/stock", d.Catalog.SetStock)
				r.Post("/admin/cards", d.Catalog.UpsertCard)
				r.Delete("/admin/cards/{cardId}", d.Catalog.DeleteCard)
			})
		})
	})

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "grocerlane-backend",
	})
}
