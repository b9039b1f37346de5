package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/grocerlane/backend/internal/agent"
	"github.com/grocerlane/backend/internal/auth"
)

type AgentService interface {
	ReportLocation(ctx context.Context, agentID string, lat, lng float64) (*agent.Location, error)
	ListLatest(ctx context.Context) ([]agent.Location, error)
}

type AgentHandler struct {
	svc AgentService
}

func NewAgentHandler(svc AgentService) *AgentHandler {
	return &AgentHandler{svc: svc}
}

// ReportLocation stores the calling agent's position. Agents can only report
// for themselves; the id comes from the session, not the body.
func (h *AgentHandler) ReportLocation(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.SessionFromContext(r.Context())

	var body struct {
		Lat *float64 `json:"lat"`
		Lng *float64 `json:"lng"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if body.Lat == nil || body.Lng == nil {
		writeError(w, http.StatusBadRequest, "missing lat or lng")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	loc, err := h.svc.ReportLocation(ctx, sess.UserID, *body.Lat, *body.Lng)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store location")
		return
	}

	writeJSON(w, http.StatusOK, loc)
}

func (h *AgentHandler) ListLocations(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	locs, err := h.svc.ListLatest(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load locations")
		return
	}
	if locs == nil {
		locs = []agent.Location{}
	}

	writeJSON(w, http.StatusOK, locs)
}
