package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/coachloop/coachloop/server/internal/api/recovery"
	"github.com/coachloop/coachloop/server/internal/auth"
)

// RouterDeps bundles the handlers and middleware the router wires together.
type RouterDeps struct {
	Auth     *AuthHandler
	Coaches  *CoachHandler
	Sessions *SessionHandler
	Me       *MeHandler
	Webhooks *WebhookHandler
	Tokens   *auth.TokenManager
}

// NewRouter wires HTTP routes to handlers. Identity on protected routes comes
// exclusively from the verified bearer token.
func NewRouter(deps RouterDeps) *mux.Router {
	root := mux.NewRouter()
	root.Use(recovery.Middleware)

	// Public
	root.HandleFunc("/auth/signup", deps.Auth.Signup).Methods(http.MethodPost)
	root.HandleFunc("/auth/login", deps.Auth.Login).Methods(http.MethodPost)
	root.HandleFunc("/auth/refresh", deps.Auth.Refresh).Methods(http.MethodPost)
	root.HandleFunc("/auth/logout", deps.Auth.Logout).Methods(http.MethodPost)
	root.HandleFunc("/coaches", deps.Coaches.ListCoaches).Methods(http.MethodGet)
	root.HandleFunc("/coaches/{coachId}", deps.Coaches.GetCoach).Methods(http.MethodGet)
	root.HandleFunc("/webhooks/revenuecat", deps.Webhooks.HandleRevenueCat).Methods(http.MethodPost)

	healthHandler := NewHealthHandler()
	root.HandleFunc("/health", healthHandler.CheckHealth).Methods(http.MethodGet)

	// Bearer-authenticated
	authed := root.NewRoute().Subrouter()
	authed.Use(auth.Middleware(deps.Tokens))
	authed.HandleFunc("/sessions", deps.Sessions.CreateSession).Methods(http.MethodPost)
	authed.HandleFunc("/sessions", deps.Sessions.ListSessions).Methods(http.MethodGet)
	authed.HandleFunc("/sessions/{sessionId}", deps.Sessions.GetSession).Methods(http.MethodGet)
	authed.HandleFunc("/sessions/{sessionId}/messages", deps.Sessions.PostMessage).Methods(http.MethodPost)
	authed.HandleFunc("/me", deps.Me.GetProfile).Methods(http.MethodGet)
	authed.HandleFunc("/me/entitlement", deps.Me.GetEntitlement).Methods(http.MethodGet)
	authed.HandleFunc("/me/context", deps.Me.PutContext).Methods(http.MethodPut)
	authed.HandleFunc("/me/context", deps.Me.GetContext).Methods(http.MethodGet)

	return root
}
