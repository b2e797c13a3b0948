package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/coachloop/coachloop/server/internal/auth"
	"github.com/coachloop/coachloop/server/internal/model"
	"github.com/coachloop/coachloop/server/internal/store"
)

// AccountService implements signup, login and refresh-token rotation.
type AccountService struct {
	store  store.Store
	tokens *auth.TokenManager
}

func NewAccountService(s store.Store, tokens *auth.TokenManager) *AccountService {
	return &AccountService{store: s, tokens: tokens}
}

// Signup registers a new FREE-tier user and returns a token pair.
func (s *AccountService) Signup(ctx context.Context, email, password string) (auth.TokenPair, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return auth.TokenPair{}, err
	}
	user, err := s.store.Users().Create(ctx, &model.User{
		Email:        email,
		PasswordHash: hash,
		Entitlement:  model.TierFree,
	})
	if err != nil {
		return auth.TokenPair{}, err
	}
	return s.issue(ctx, user.UserID)
}

// Login verifies credentials and returns a fresh token pair.
func (s *AccountService) Login(ctx context.Context, email, password string) (auth.TokenPair, error) {
	user, err := s.store.Users().GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return auth.TokenPair{}, model.ErrUnauthorized
		}
		return auth.TokenPair{}, err
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return auth.TokenPair{}, model.ErrUnauthorized
	}
	return s.issue(ctx, user.UserID)
}

// Refresh rotates a refresh token: the presented token must verify and match
// the stored digest, and rotation invalidates it.
func (s *AccountService) Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error) {
	userID, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return auth.TokenPair{}, model.ErrUnauthorized
	}
	user, err := s.store.Users().Get(ctx, userID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return auth.TokenPair{}, model.ErrUnauthorized
		}
		return auth.TokenPair{}, err
	}
	if user.RefreshTokenHash == nil || *user.RefreshTokenHash != auth.HashRefreshToken(refreshToken) {
		return auth.TokenPair{}, model.ErrUnauthorized
	}
	return s.issue(ctx, userID)
}

// Logout clears the stored refresh digest. Best effort: an invalid token is
// not an error.
func (s *AccountService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	userID, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil
	}
	_ = s.store.Users().SetRefreshTokenHash(ctx, userID, nil)
	return nil
}

func (s *AccountService) issue(ctx context.Context, userID string) (auth.TokenPair, error) {
	pair, err := s.tokens.IssuePair(userID)
	if err != nil {
		return auth.TokenPair{}, err
	}
	digest := auth.HashRefreshToken(pair.RefreshToken)
	if err := s.store.Users().SetRefreshTokenHash(ctx, userID, &digest); err != nil {
		return auth.TokenPair{}, fmt.Errorf("store refresh token: %w", err)
	}
	return pair, nil
}
