package services

import (
	"context"
	"errors"
	"time"

	"github.com/coachloop/coachloop/server/internal/coach"
	"github.com/coachloop/coachloop/server/internal/model"
	"github.com/coachloop/coachloop/server/internal/store"
)

// SessionService handles session lifecycle and listing.
type SessionService struct {
	store   store.Store
	catalog *coach.Catalog
	now     func() time.Time
}

func NewSessionService(s store.Store, cat *coach.Catalog) *SessionService {
	return &SessionService{store: s, catalog: cat, now: time.Now}
}

// Create opens a session with a coach. Premium coaches require an active PRO
// entitlement.
func (s *SessionService) Create(ctx context.Context, userID, coachID string) (*model.Session, error) {
	if userID == "" {
		return nil, model.ErrUnauthorized
	}
	user, err := s.store.Users().Get(ctx, userID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, model.ErrUnauthorized
		}
		return nil, err
	}
	c, err := s.catalog.Get(coachID)
	if err != nil {
		return nil, err
	}
	if c.IsPremium && !user.IsPro(s.now()) {
		return nil, model.ErrUpgradeRequired
	}
	return s.store.Sessions().Create(ctx, &model.Session{UserID: userID, CoachID: coachID})
}

// List returns the caller's sessions, most recent first, with full histories.
func (s *SessionService) List(ctx context.Context, userID string) ([]*model.SessionWithMessages, error) {
	if userID == "" {
		return nil, model.ErrUnauthorized
	}
	sessions, err := s.store.Sessions().List(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]*model.SessionWithMessages, 0, len(sessions))
	for _, sess := range sessions {
		msgs, err := s.store.Messages().ListBySession(ctx, sess.SessionID)
		if err != nil {
			return nil, err
		}
		if msgs == nil {
			msgs = []*model.Message{}
		}
		out = append(out, &model.SessionWithMessages{Session: *sess, Messages: msgs})
	}
	return out, nil
}

// Get returns one owned session with its ordered history. Missing and
// not-owned are indistinguishable to the caller.
func (s *SessionService) Get(ctx context.Context, userID, sessionID string) (*model.SessionWithMessages, error) {
	if userID == "" {
		return nil, model.ErrUnauthorized
	}
	sess, err := s.store.Sessions().Get(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.store.Messages().ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []*model.Message{}
	}
	return &model.SessionWithMessages{Session: *sess, Messages: msgs}, nil
}
