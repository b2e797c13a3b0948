package api

import (
	"crypto/subtle"
	"io"
	"net/http"

	"github.com/coachloop/coachloop/server/internal/api/respond"
	"github.com/coachloop/coachloop/server/internal/services"
)

const maxWebhookBody = 1 << 20

// WebhookHandler ingests subscription-provider webhooks.
type WebhookHandler struct {
	entitlements *services.EntitlementService
	secret       string
}

func NewWebhookHandler(entitlements *services.EntitlementService, secret string) *WebhookHandler {
	return &WebhookHandler{entitlements: entitlements, secret: secret}
}

// HandleRevenueCat handles POST /webhooks/revenuecat. Once the shared secret
// checks out the handler always acknowledges; processing failures are logged
// and the raw payload is kept for replay.
func (h *WebhookHandler) HandleRevenueCat(w http.ResponseWriter, r *http.Request) {
	if h.secret != "" {
		presented := r.Header.Get("Revenuecat-Signature")
		if presented == "" {
			presented = r.Header.Get("X-Revenuecat-Signature")
		}
		if subtle.ConstantTimeCompare([]byte(presented), []byte(h.secret)) != 1 {
			respond.WriteJSON(w, http.StatusForbidden, map[string]bool{"ok": false})
			return
		}
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		respond.WriteBadRequest(w, "unreadable body")
		return
	}

	h.entitlements.Process(r.Context(), payload)
	respond.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
