package services

import (
	"context"
	"errors"
	"time"

	"github.com/coachloop/coachloop/server/internal/model"
	"github.com/coachloop/coachloop/server/internal/store"
)

// UserService serves the /me surface: profile, entitlement view and the
// context-memory profile.
type UserService struct {
	store store.Store
}

func NewUserService(s store.Store) *UserService { return &UserService{store: s} }

// Profile returns the caller's account record.
func (s *UserService) Profile(ctx context.Context, userID string) (*model.User, error) {
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
	return user, nil
}

// Entitlement returns the caller's tier and expiry. An unknown user reads as
// FREE with no expiry.
func (s *UserService) Entitlement(ctx context.Context, userID string) (string, *time.Time, error) {
	if userID == "" {
		return "", nil, model.ErrUnauthorized
	}
	user, err := s.store.Users().Get(ctx, userID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.TierFree, nil, nil
		}
		return "", nil, err
	}
	return user.Entitlement, user.ProExpiresAt, nil
}

// GetContext returns the saved context, or nil when none exists.
func (s *UserService) GetContext(ctx context.Context, userID string) (*model.UserContext, error) {
	if userID == "" {
		return nil, model.ErrUnauthorized
	}
	uc, err := s.store.Contexts().Get(ctx, userID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return uc, nil
}

// PutContext fully replaces the four context fields. Writing is open to any
// authenticated user; only prompt injection is tier-gated.
func (s *UserService) PutContext(ctx context.Context, userID string, uc model.UserContext) error {
	if userID == "" {
		return model.ErrUnauthorized
	}
	if _, err := s.store.Users().Get(ctx, userID); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.ErrUpgradeRequired
		}
		return err
	}
	uc.UserID = userID
	_, err := s.store.Contexts().Put(ctx, &uc)
	return err
}
