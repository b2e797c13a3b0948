package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/coachloop/coachloop/server/internal/api/respond"
	"github.com/coachloop/coachloop/server/internal/api/validate"
	"github.com/coachloop/coachloop/server/internal/auth"
	"github.com/coachloop/coachloop/server/internal/model"
	"github.com/coachloop/coachloop/server/internal/services"
)

// SessionHandler handles session and chat-message endpoints.
type SessionHandler struct {
	sessions *services.SessionService
	chat     *services.ChatService
}

func NewSessionHandler(sessions *services.SessionService, chat *services.ChatService) *SessionHandler {
	return &SessionHandler{sessions: sessions, chat: chat}
}

// CreateSession handles POST /sessions
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CoachID string `json:"coachId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := validate.NonEmpty("coachId", req.CoachID); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	session, err := h.sessions.Create(r.Context(), auth.UserIDFrom(r.Context()), req.CoachID)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, session)
}

// ListSessions handles GET /sessions
func (h *SessionHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.sessions.List(r.Context(), auth.UserIDFrom(r.Context()))
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	if sessions == nil {
		sessions = []*model.SessionWithMessages{}
	}
	respond.WriteJSON(w, http.StatusOK, sessions)
}

// GetSession handles GET /sessions/{sessionId}
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Get(r.Context(), auth.UserIDFrom(r.Context()), mux.Vars(r)["sessionId"])
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, session)
}

// PostMessage handles POST /sessions/{sessionId}/messages
func (h *SessionHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := validate.MessageContent(req.Content); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	assistant, err := h.chat.SendMessage(r.Context(), auth.UserIDFrom(r.Context()), mux.Vars(r)["sessionId"], req.Content)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]*model.Message{"assistant": assistant})
}
