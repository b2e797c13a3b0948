package api

import (
	"encoding/json"
	"net/http"

	"github.com/coachloop/coachloop/server/internal/api/respond"
	"github.com/coachloop/coachloop/server/internal/api/validate"
	"github.com/coachloop/coachloop/server/internal/services"
)

// AuthHandler handles signup, login and refresh-token endpoints.
type AuthHandler struct {
	accounts *services.AccountService
}

func NewAuthHandler(accounts *services.AccountService) *AuthHandler {
	return &AuthHandler{accounts: accounts}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Signup handles POST /auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := validate.Credentials(req.Email, req.Password); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	pair, err := h.accounts.Signup(r.Context(), req.Email, req.Password)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, pair)
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := validate.Credentials(req.Email, req.Password); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	pair, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, pair)
}

// Refresh handles POST /auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if req.RefreshToken == "" {
		respond.WriteBadRequest(w, "refreshToken is required")
		return
	}
	pair, err := h.accounts.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, pair)
}

// Logout handles POST /auth/logout. Best effort, always succeeds.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	_ = h.accounts.Logout(r.Context(), req.RefreshToken)
	respond.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
