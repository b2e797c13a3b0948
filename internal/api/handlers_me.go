package api

import (
	"encoding/json"
	"net/http"

	"github.com/coachloop/coachloop/server/internal/api/respond"
	"github.com/coachloop/coachloop/server/internal/api/validate"
	"github.com/coachloop/coachloop/server/internal/auth"
	"github.com/coachloop/coachloop/server/internal/model"
	"github.com/coachloop/coachloop/server/internal/services"
)

// MeHandler serves the authenticated user's profile, entitlement and context.
type MeHandler struct {
	users *services.UserService
}

func NewMeHandler(users *services.UserService) *MeHandler {
	return &MeHandler{users: users}
}

// GetProfile handles GET /me
func (h *MeHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Profile(r.Context(), auth.UserIDFrom(r.Context()))
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, user)
}

// GetEntitlement handles GET /me/entitlement
func (h *MeHandler) GetEntitlement(w http.ResponseWriter, r *http.Request) {
	tier, expiresAt, err := h.users.Entitlement(r.Context(), auth.UserIDFrom(r.Context()))
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"entitlement":  tier,
		"proExpiresAt": expiresAt,
	})
}

// PutContext handles PUT /me/context
func (h *MeHandler) PutContext(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Role  string `json:"role"`
		Tools string `json:"tools"`
		Goals string `json:"goals"`
		Prefs string `json:"prefs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := validate.UserContext(req.Role, req.Tools, req.Goals, req.Prefs); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	uc := model.UserContext{Role: req.Role, Tools: req.Tools, Goals: req.Goals, Prefs: req.Prefs}
	if err := h.users.PutContext(r.Context(), auth.UserIDFrom(r.Context()), uc); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// GetContext handles GET /me/context. Returns {} when nothing is saved.
func (h *MeHandler) GetContext(w http.ResponseWriter, r *http.Request) {
	uc, err := h.users.GetContext(r.Context(), auth.UserIDFrom(r.Context()))
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	if uc == nil {
		respond.WriteJSON(w, http.StatusOK, map[string]string{})
		return
	}
	respond.WriteJSON(w, http.StatusOK, uc)
}
