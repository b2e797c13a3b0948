package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/coachloop/coachloop/server/internal/api/respond"
	"github.com/coachloop/coachloop/server/internal/coach"
)

// CoachHandler serves the static coach catalog.
type CoachHandler struct {
	catalog *coach.Catalog
}

func NewCoachHandler(catalog *coach.Catalog) *CoachHandler {
	return &CoachHandler{catalog: catalog}
}

// ListCoaches handles GET /coaches
func (h *CoachHandler) ListCoaches(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSON(w, http.StatusOK, h.catalog.List())
}

// GetCoach handles GET /coaches/{coachId}
func (h *CoachHandler) GetCoach(w http.ResponseWriter, r *http.Request) {
	c, err := h.catalog.Get(mux.Vars(r)["coachId"])
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, c)
}
