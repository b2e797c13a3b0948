package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coachloop/coachloop/server/internal/auth"
	"github.com/coachloop/coachloop/server/internal/model"
	"github.com/coachloop/coachloop/server/internal/store"
	"github.com/coachloop/coachloop/server/internal/store/sqlite"
)

func newAccountFixture(t *testing.T) (*AccountService, store.Store, *auth.TokenManager) {
	t.Helper()
	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	tokens := auth.NewTokenManager("test_access", "test_refresh", 15*time.Minute, 720*time.Hour)
	return NewAccountService(st, tokens), st, tokens
}

func TestSignup_CreatesFreeUserAndIssuesTokens(t *testing.T) {
	svc, st, tokens := newAccountFixture(t)
	ctx := context.Background()

	pair, err := svc.Signup(ctx, "new@example.test", "hunter2hunter2")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	userID, err := tokens.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)

	u, err := st.Users().Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, model.TierFree, u.Entitlement)
	assert.Equal(t, "new@example.test", u.Email)
	// Password is stored hashed, never verbatim.
	assert.NotEqual(t, "hunter2hunter2", u.PasswordHash)
	require.NotNil(t, u.RefreshTokenHash)
	assert.Equal(t, auth.HashRefreshToken(pair.RefreshToken), *u.RefreshTokenHash)
}

func TestSignup_DuplicateEmailConflicts(t *testing.T) {
	svc, _, _ := newAccountFixture(t)
	ctx := context.Background()

	_, err := svc.Signup(ctx, "dup@example.test", "hunter2hunter2")
	require.NoError(t, err)
	_, err = svc.Signup(ctx, "dup@example.test", "different-pass")
	require.ErrorIs(t, err, model.ErrConflict)
}

func TestLogin_RightAndWrongCredentials(t *testing.T) {
	svc, _, tokens := newAccountFixture(t)
	ctx := context.Background()

	_, err := svc.Signup(ctx, "login@example.test", "hunter2hunter2")
	require.NoError(t, err)

	pair, err := svc.Login(ctx, "login@example.test", "hunter2hunter2")
	require.NoError(t, err)
	_, err = tokens.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)

	_, err = svc.Login(ctx, "login@example.test", "wrong-password")
	require.ErrorIs(t, err, model.ErrUnauthorized)

	_, err = svc.Login(ctx, "nobody@example.test", "hunter2hunter2")
	require.ErrorIs(t, err, model.ErrUnauthorized)
}

func TestRefresh_RotatesAndInvalidatesOldToken(t *testing.T) {
	svc, _, _ := newAccountFixture(t)
	ctx := context.Background()

	first, err := svc.Signup(ctx, "rotate@example.test", "hunter2hunter2")
	require.NoError(t, err)

	second, err := svc.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	require.NotEmpty(t, second.RefreshToken)

	// The superseded token no longer matches the stored digest.
	_, err = svc.Refresh(ctx, first.RefreshToken)
	require.ErrorIs(t, err, model.ErrUnauthorized)

	// The current token still rotates.
	_, err = svc.Refresh(ctx, second.RefreshToken)
	require.NoError(t, err)
}

func TestRefresh_RejectsGarbageAndAccessTokens(t *testing.T) {
	svc, _, _ := newAccountFixture(t)
	ctx := context.Background()

	pair, err := svc.Signup(ctx, "mix@example.test", "hunter2hunter2")
	require.NoError(t, err)

	_, err = svc.Refresh(ctx, "not-a-jwt")
	require.ErrorIs(t, err, model.ErrUnauthorized)

	// Access tokens are signed with a different secret and must not refresh.
	_, err = svc.Refresh(ctx, pair.AccessToken)
	require.ErrorIs(t, err, model.ErrUnauthorized)
}

func TestLogout_ClearsDigestAndIsBestEffort(t *testing.T) {
	svc, st, tokens := newAccountFixture(t)
	ctx := context.Background()

	pair, err := svc.Signup(ctx, "out@example.test", "hunter2hunter2")
	require.NoError(t, err)
	userID, err := tokens.VerifyRefresh(pair.RefreshToken)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, pair.RefreshToken))
	u, err := st.Users().Get(ctx, userID)
	require.NoError(t, err)
	assert.Nil(t, u.RefreshTokenHash)

	// A logged-out token cannot refresh.
	_, err = svc.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, model.ErrUnauthorized)

	// Invalid input is silently accepted.
	assert.NoError(t, svc.Logout(ctx, "garbage"))
	assert.NoError(t, svc.Logout(ctx, ""))
}
