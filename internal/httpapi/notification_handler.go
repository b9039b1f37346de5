package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/grocerlane/backend/internal/auth"
	"github.com/grocerlane/backend/internal/notification"
)

type NotificationStore interface {
	ListByUser(ctx context.Context, userID string) ([]notification.Notification, error)
}

type NotificationHandler struct {
	store NotificationStore
}

func NewNotificationHandler(store NotificationStore) *NotificationHandler {
	return &NotificationHandler{store: store}
}

func (h *NotificationHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.SessionFromContext(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	out, err := h.store.ListByUser(ctx, sess.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load notifications")
		return
	}
	if out == nil {
		out = []notification.Notification{}
	}

	writeJSON(w, http.StatusOK, out)
}
