package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/grocerlane/backend/internal/auth"
	"github.com/grocerlane/backend/internal/user"
)

type UserService interface {
	Register(ctx context.Context, name, email, password string, role user.Role) (*user.User, error)
	Authenticate(ctx context.Context, email, password string) (*user.User, error)
	GetByID(ctx context.Context, id string) (*user.User, error)
}

type AuthHandler struct {
	users      UserService
	carts      CartService
	jwtSecret  []byte
	sessionTTL time.Duration
}

func NewAuthHandler(users UserService, carts CartService, jwtSecret []byte, sessionTTL time.Duration) *AuthHandler {
	return &AuthHandler{users: users, carts: carts, jwtSecret: jwtSecret, sessionTTL: sessionTTL}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	u, err := h.users.Register(ctx, body.Name, body.Email, body.Password, user.Role(body.Role))
	if err != nil {
		switch {
		case errors.Is(err, user.ErrEmailTaken):
			writeError(w, http.StatusConflict, "email already registered")
		case errors.Is(err, user.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "invalid registration details")
		default:
			writeError(w, http.StatusInternalServerError, "failed to register")
		}
		return
	}

	writeJSON(w, http.StatusCreated, u)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	u, err := h.users.Authenticate(ctx, body.Email, body.Password)
	if err != nil {
		// one message for every failure mode
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := auth.IssueToken(h.jwtSecret, u.ID, string(u.Role), h.sessionTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"user":  u,
	})
}

// Logout empties the user's cart. The token itself is stateless; the client
// discards it.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sess, ok := auth.SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing session")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.carts.Clear(ctx, sess.UserID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to clear cart")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}
