package services

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"

	"github.com/coachloop/coachloop/server/internal/model"
	"github.com/coachloop/coachloop/server/internal/store"
)

// entitlementTransitions maps billing-provider event types to tier
// transitions. Unknown event types leave the entitlement untouched; the raw
// payload is still persisted for audit/replay.
var entitlementTransitions = map[string]string{
	"INITIAL_PURCHASE": model.TierPro,
	"RENEWAL":          model.TierPro,
	"UNCANCELLATION":   model.TierPro,
	"PRODUCT_CHANGE":   model.TierPro,
	"EXPIRATION":       model.TierFree,
}

// EntitlementService ingests subscription webhook events. Processing failures
// are logged and swallowed so the provider never retries against a consumer
// whose idempotence it cannot verify; payloads are always recorded.
type EntitlementService struct {
	store store.Store
	log   zerolog.Logger
}

func NewEntitlementService(s store.Store, log zerolog.Logger) *EntitlementService {
	return &EntitlementService{store: s, log: log}
}

type webhookEvent struct {
	Type      string `json:"type"`
	AppUserID string `json:"app_user_id"`
}

type webhookPayload struct {
	Type       string        `json:"type"`
	AppUserID  string        `json:"app_user_id"`
	Event      *webhookEvent `json:"event"`
	Subscriber *struct {
		OriginalAppUserID string `json:"original_app_user_id"`
	} `json:"subscriber"`
}

// Process applies one raw webhook payload. It never returns an error to the
// transport layer.
func (s *EntitlementService) Process(ctx context.Context, payload []byte) {
	var userID *string

	var p webhookPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		s.log.Error().Err(err).Msg("webhook payload is not valid JSON")
	} else {
		userID = s.apply(ctx, &p)
	}

	if _, err := s.store.Events().Append(ctx, &model.EntitlementEvent{
		UserID:  userID,
		Payload: payload,
	}); err != nil {
		s.log.Error().Err(err).Msg("failed to record entitlement event")
	}
}

func (s *EntitlementService) apply(ctx context.Context, p *webhookPayload) *string {
	appUserID := resolveAppUserID(p)
	if appUserID == "" {
		s.log.Warn().Msg("webhook carries no app user id")
		return nil
	}

	user, err := s.store.Users().GetByBillingID(ctx, appUserID)
	if errors.Is(err, model.ErrNotFound) {
		// common integration keys the billing account by our user id
		user, err = s.store.Users().Get(ctx, appUserID)
	}
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			s.log.Error().Err(err).Msg("webhook user lookup failed")
		}
		return nil
	}

	tier, ok := entitlementTransitions[eventType(p)]
	if !ok {
		s.log.Info().Str("event_type", eventType(p)).Str("user_id", user.UserID).Msg("ignoring webhook event type")
		return &user.UserID
	}
	if err := s.store.Users().SetEntitlement(ctx, user.UserID, tier, nil); err != nil {
		s.log.Error().Err(err).Str("user_id", user.UserID).Msg("failed to update entitlement")
		return &user.UserID
	}
	s.log.Info().Str("user_id", user.UserID).Str("tier", tier).Msg("entitlement updated")
	return &user.UserID
}

// resolveAppUserID returns the first present identifier among the known event
// fields.
func resolveAppUserID(p *webhookPayload) string {
	if p.Subscriber != nil && p.Subscriber.OriginalAppUserID != "" {
		return p.Subscriber.OriginalAppUserID
	}
	if p.AppUserID != "" {
		return p.AppUserID
	}
	if p.Event != nil {
		return p.Event.AppUserID
	}
	return ""
}

func eventType(p *webhookPayload) string {
	if p.Event != nil && p.Event.Type != "" {
		return p.Event.Type
	}
	return p.Type
}
