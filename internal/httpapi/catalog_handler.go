package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/grocerlane/backend/internal/auth"
	"github.com/grocerlane/backend/internal/catalog"
)

type CatalogService interface {
	List(ctx context.Context) ([]catalog.Product, error)
	ListByCategory(ctx context.Context, category string) ([]catalog.Product, error)
	ListByCard(ctx context.Context, cardID string) ([]catalog.Product, error)
	GetByID(ctx context.Context, productID string) (*catalog.Product, error)
	Search(ctx context.Context, userID, query string) ([]catalog.Product, error)
	Upsert(ctx context.Context, p *catalog.Product) error
	SetStock(ctx context.Context, productID string, stock int) error
	ListCards(ctx context.Context) ([]catalog.HomepageCard, error)
	UpsertCard(ctx context.Context, c *catalog.HomepageCard) error
	DeleteCard(ctx context.Context, cardID string) error
}

type CatalogHandler struct {
	svc CatalogService
}

func NewCatalogHandler(svc CatalogService) *CatalogHandler {
	return &CatalogHandler{svc: svc}
}

func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var (
		products []catalog.Product
		err      error
	)
	switch {
	case r.URL.Query().Get("category") != "":
		products, err = h.svc.ListByCategory(ctx, r.URL.Query().Get("category"))
	case r.URL.Query().Get("card") != "":
		products, err = h.svc.ListByCard(ctx, r.URL.Query().Get("card"))
	default:
		products, err = h.svc.List(ctx)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load products")
		return
	}
	if products == nil {
		products = []catalog.Product{}
	}

	writeJSON(w, http.StatusOK, products)
}

func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.svc.GetByID(ctx, productID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load product")
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}

	writeJSON(w, http.StatusOK, p)
}

func (h *CatalogHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "missing query")
		return
	}

	userID := ""
	if sess, ok := auth.SessionFromContext(r.Context()); ok {
		userID = sess.UserID
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	products, err := h.svc.Search(ctx, userID, q)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	if products == nil {
		products = []catalog.Product{}
	}

	writeJSON(w, http.StatusOK, products)
}

func (h *CatalogHandler) UpsertProduct(w http.ResponseWriter, r *http.Request) {
	var p catalog.Product
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.svc.Upsert(ctx, &p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid product")
		return
	}

	writeJSON(w, http.StatusOK, p)
}

func (h *CatalogHandler) SetStock(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")

	var body struct {
		Stock int `json:"stock"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.svc.SetStock(ctx, productID, body.Stock); err != nil {
		if err == catalog.ErrNotFound {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to update stock")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *CatalogHandler) ListCards(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	cards, err := h.svc.ListCards(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load cards")
		return
	}
	if cards == nil {
		cards = []catalog.HomepageCard{}
	}

	writeJSON(w, http.StatusOK, cards)
}

func (h *CatalogHandler) UpsertCard(w http.ResponseWriter, r *http.Request) {
	var c catalog.HomepageCard
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.svc.UpsertCard(ctx, &c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid card")
		return
	}

	writeJSON(w, http.StatusOK, c)
}

func (h *CatalogHandler) DeleteCard(w http.ResponseWriter, r *http.Request) {
	cardID := chi.URLParam(r, "cardId")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.svc.DeleteCard(ctx, cardID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete card")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
