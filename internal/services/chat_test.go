package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coachloop/coachloop/server/internal/coach"
	"github.com/coachloop/coachloop/server/internal/completion"
	"github.com/coachloop/coachloop/server/internal/model"
	"github.com/coachloop/coachloop/server/internal/store"
	"github.com/coachloop/coachloop/server/internal/store/sqlite"
)

// stubCompletion records the prompts it receives and replies with canned text.
type stubCompletion struct {
	reply   string
	err     error
	calls   int
	prompts []completion.Prompt
}

func (c *stubCompletion) Complete(_ context.Context, p completion.Prompt) (string, error) {
	c.calls++
	c.prompts = append(c.prompts, p)
	if c.err != nil {
		return "", c.err
	}
	return c.reply, nil
}

func newChatFixture(t *testing.T, stub *stubCompletion) (*ChatService, store.Store) {
	t.Helper()
	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	svc := NewChatService(st, coach.NewCatalog(), stub, 3)
	return svc, st
}

func seedUser(t *testing.T, st store.Store, tier string) *model.User {
	t.Helper()
	u, err := st.Users().Create(context.Background(), &model.User{
		Email:        "u-" + uuid.New().String() + "@example.test",
		PasswordHash: "x",
		Entitlement:  tier,
	})
	require.NoError(t, err)
	return u
}

func seedSession(t *testing.T, st store.Store, userID, coachID string) *model.Session {
	t.Helper()
	s, err := st.Sessions().Create(context.Background(), &model.Session{UserID: userID, CoachID: coachID})
	require.NoError(t, err)
	return s
}

func TestSendMessage_AppendsTrailerWhenMarkerMissing(t *testing.T) {
	stub := &stubCompletion{reply: "Try a 25 minute timer."}
	svc, st := newChatFixture(t, stub)
	u := seedUser(t, st, model.TierFree)
	sess := seedSession(t, st, u.UserID, "focus")

	reply, err := svc.SendMessage(context.Background(), u.UserID, sess.SessionID, "I keep procrastinating")
	require.NoError(t, err)
	assert.Equal(t, model.RoleAssistant, reply.Role)
	assert.Equal(t, "Try a 25 minute timer.\n\nNext action: Provide one concrete next action.", reply.Content)
}

func TestSendMessage_KeepsReplyWithMarkerUntouched(t *testing.T) {
	stub := &stubCompletion{reply: "Good start. Next action: block 30 minutes tomorrow."}
	svc, st := newChatFixture(t, stub)
	u := seedUser(t, st, model.TierFree)
	sess := seedSession(t, st, u.UserID, "focus")

	reply, err := svc.SendMessage(context.Background(), u.UserID, sess.SessionID, "hello")
	require.NoError(t, err)
	assert.Equal(t, stub.reply, reply.Content)
}

func TestSendMessage_PersistsBothTurns(t *testing.T) {
	stub := &stubCompletion{reply: "ok Next action: breathe."}
	svc, st := newChatFixture(t, stub)
	u := seedUser(t, st, model.TierFree)
	sess := seedSession(t, st, u.UserID, "focus")

	_, err := svc.SendMessage(context.Background(), u.UserID, sess.SessionID, "first message")
	require.NoError(t, err)

	msgs, err := st.Messages().ListBySession(context.Background(), sess.SessionID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, model.RoleUser, msgs[0].Role)
	assert.Equal(t, "first message", msgs[0].Content)
	assert.Equal(t, model.RoleAssistant, msgs[1].Role)
}

func TestSendMessage_FreeQuotaBlocksFourthReply(t *testing.T) {
	stub := &stubCompletion{reply: "Next action: one thing."}
	svc, st := newChatFixture(t, stub)
	u := seedUser(t, st, model.TierFree)
	sess := seedSession(t, st, u.UserID, "focus")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.SendMessage(ctx, u.UserID, sess.SessionID, fmt.Sprintf("msg %d", i))
		require.NoError(t, err)
	}

	callsBefore := stub.calls
	msgsBefore, err := st.Messages().ListBySession(ctx, sess.SessionID)
	require.NoError(t, err)

	_, err = svc.SendMessage(ctx, u.UserID, sess.SessionID, "fourth")
	require.ErrorIs(t, err, model.ErrQuotaExceeded)

	// Rejection happens before persistence and before the upstream call.
	assert.Equal(t, callsBefore, stub.calls)
	msgsAfter, err := st.Messages().ListBySession(ctx, sess.SessionID)
	require.NoError(t, err)
	assert.Len(t, msgsAfter, len(msgsBefore))
}

func TestSendMessage_QuotaResetsOnNewDay(t *testing.T) {
	stub := &stubCompletion{reply: "Next action: go."}
	svc, st := newChatFixture(t, stub)
	u := seedUser(t, st, model.TierFree)
	sess := seedSession(t, st, u.UserID, "focus")
	ctx := context.Background()

	day1 := time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return day1 }
	for i := 0; i < 3; i++ {
		_, err := svc.SendMessage(ctx, u.UserID, sess.SessionID, "m")
		require.NoError(t, err)
	}
	_, err := svc.SendMessage(ctx, u.UserID, sess.SessionID, "m")
	require.ErrorIs(t, err, model.ErrQuotaExceeded)

	// Just past midnight UTC the counter keys to a new date.
	svc.now = func() time.Time { return day1.Add(7 * time.Hour) }
	_, err = svc.SendMessage(ctx, u.UserID, sess.SessionID, "m")
	require.NoError(t, err)
}

func TestSendMessage_ProBypassesQuota(t *testing.T) {
	stub := &stubCompletion{reply: "Next action: keep going."}
	svc, st := newChatFixture(t, stub)
	u := seedUser(t, st, model.TierPro)
	sess := seedSession(t, st, u.UserID, "focus")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.SendMessage(ctx, u.UserID, sess.SessionID, "m")
		require.NoError(t, err)
	}

	// PRO replies are not counted.
	du, err := st.Usage().GetOrCreate(ctx, u.UserID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, du.AssistantReplies)
}

func TestSendMessage_ExpiredProCountsAsFree(t *testing.T) {
	stub := &stubCompletion{reply: "Next action: renew."}
	svc, st := newChatFixture(t, stub)
	u := seedUser(t, st, model.TierPro)
	past := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, st.Users().SetEntitlement(context.Background(), u.UserID, model.TierPro, &past))
	sess := seedSession(t, st, u.UserID, "focus")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.SendMessage(ctx, u.UserID, sess.SessionID, "m")
		require.NoError(t, err)
	}
	_, err := svc.SendMessage(ctx, u.UserID, sess.SessionID, "m")
	require.ErrorIs(t, err, model.ErrQuotaExceeded)
}

func TestSendMessage_WindowCapsHistoryAtTwenty(t *testing.T) {
	stub := &stubCompletion{reply: "Next action: focus."}
	svc, st := newChatFixture(t, stub)
	u := seedUser(t, st, model.TierFree)
	sess := seedSession(t, st, u.UserID, "focus")
	ctx := context.Background()

	// 25 prior turns in store
	for i := 0; i < 25; i++ {
		_, err := st.Messages().Append(ctx, &model.Message{
			SessionID: sess.SessionID,
			Role:      model.RoleUser,
			Content:   fmt.Sprintf("old %d", i),
		})
		require.NoError(t, err)
	}

	_, err := svc.SendMessage(ctx, u.UserID, sess.SessionID, "newest")
	require.NoError(t, err)

	require.Len(t, stub.prompts, 1)
	h := stub.prompts[0].History
	require.Len(t, h, completion.HistoryWindow)
	// Window ends with the just-appended user turn.
	assert.Equal(t, "newest", h[len(h)-1].Content)
	// Oldest entries fell out of the window.
	assert.Equal(t, "old 6", h[0].Content)
}

func TestSendMessage_MemoryBlockOnlyForPro(t *testing.T) {
	ctx := context.Background()

	uc := func(userID string) *model.UserContext {
		return &model.UserContext{UserID: userID, Role: "engineer", Tools: "vscode", Goals: "ship mvp", Prefs: "direct tone"}
	}
	wantBlock := "User Context:\nrole:engineer\ntools:vscode\ngoals:ship mvp\nprefs:direct tone"

	t.Run("pro user with context", func(t *testing.T) {
		stub := &stubCompletion{reply: "Next action: ship."}
		svc, st := newChatFixture(t, stub)
		u := seedUser(t, st, model.TierPro)
		_, err := st.Contexts().Put(ctx, uc(u.UserID))
		require.NoError(t, err)
		sess := seedSession(t, st, u.UserID, "builder")

		_, err = svc.SendMessage(ctx, u.UserID, sess.SessionID, "hi")
		require.NoError(t, err)
		require.Len(t, stub.prompts, 1)
		assert.Equal(t, wantBlock, stub.prompts[0].MemoryBlock)
	})

	t.Run("free user with context gets no block", func(t *testing.T) {
		stub := &stubCompletion{reply: "Next action: ship."}
		svc, st := newChatFixture(t, stub)
		u := seedUser(t, st, model.TierFree)
		_, err := st.Contexts().Put(ctx, uc(u.UserID))
		require.NoError(t, err)
		sess := seedSession(t, st, u.UserID, "focus")

		_, err = svc.SendMessage(ctx, u.UserID, sess.SessionID, "hi")
		require.NoError(t, err)
		require.Len(t, stub.prompts, 1)
		assert.Empty(t, stub.prompts[0].MemoryBlock)
	})

	t.Run("pro user without context gets no block", func(t *testing.T) {
		stub := &stubCompletion{reply: "Next action: ship."}
		svc, st := newChatFixture(t, stub)
		u := seedUser(t, st, model.TierPro)
		sess := seedSession(t, st, u.UserID, "builder")

		_, err := svc.SendMessage(ctx, u.UserID, sess.SessionID, "hi")
		require.NoError(t, err)
		require.Len(t, stub.prompts, 1)
		assert.Empty(t, stub.prompts[0].MemoryBlock)
	})
}

func TestSendMessage_CoachPromptSelected(t *testing.T) {
	stub := &stubCompletion{reply: "Next action: reflect."}
	svc, st := newChatFixture(t, stub)
	u := seedUser(t, st, model.TierFree)
	sess := seedSession(t, st, u.UserID, "focus")

	_, err := svc.SendMessage(context.Background(), u.UserID, sess.SessionID, "hi")
	require.NoError(t, err)

	require.Len(t, stub.prompts, 1)
	cat := coach.NewCatalog()
	c, err := cat.Get("focus")
	require.NoError(t, err)
	assert.Equal(t, c.SystemPrompt, stub.prompts[0].SystemPrompt)
}

func TestSendMessage_UpstreamFailureKeepsUserTurnAndQuota(t *testing.T) {
	stub := &stubCompletion{err: fmt.Errorf("%w: status 500", model.ErrUpstream)}
	svc, st := newChatFixture(t, stub)
	u := seedUser(t, st, model.TierFree)
	sess := seedSession(t, st, u.UserID, "focus")
	ctx := context.Background()

	_, err := svc.SendMessage(ctx, u.UserID, sess.SessionID, "please help")
	require.ErrorIs(t, err, model.ErrUpstream)

	// The user turn survives the failed generation.
	msgs, err := st.Messages().ListBySession(ctx, sess.SessionID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, model.RoleUser, msgs[0].Role)

	// The failed call did not consume quota.
	du, err := st.Usage().GetOrCreate(ctx, u.UserID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, du.AssistantReplies)
}

func TestSendMessage_UnknownErrorsWrappedAsUpstream(t *testing.T) {
	stub := &stubCompletion{err: errors.New("connection reset")}
	svc, st := newChatFixture(t, stub)
	u := seedUser(t, st, model.TierFree)
	sess := seedSession(t, st, u.UserID, "focus")

	_, err := svc.SendMessage(context.Background(), u.UserID, sess.SessionID, "hi")
	require.ErrorIs(t, err, model.ErrUpstream)
	assert.True(t, strings.Contains(err.Error(), "connection reset"))
}

func TestSendMessage_Validation(t *testing.T) {
	stub := &stubCompletion{reply: "Next action: none."}
	svc, st := newChatFixture(t, stub)
	u := seedUser(t, st, model.TierFree)
	sess := seedSession(t, st, u.UserID, "focus")
	ctx := context.Background()

	_, err := svc.SendMessage(ctx, "", sess.SessionID, "hi")
	require.ErrorIs(t, err, model.ErrUnauthorized)

	_, err = svc.SendMessage(ctx, u.UserID, sess.SessionID, "")
	require.ErrorIs(t, err, model.ErrValidation)

	_, err = svc.SendMessage(ctx, "ghost", sess.SessionID, "hi")
	require.ErrorIs(t, err, model.ErrUnauthorized)

	_, err = svc.SendMessage(ctx, u.UserID, "no-such-session", "hi")
	require.ErrorIs(t, err, model.ErrNotFound)

	assert.Zero(t, stub.calls)
}

func TestSendMessage_ForeignSessionIsNotFound(t *testing.T) {
	stub := &stubCompletion{reply: "Next action: none."}
	svc, st := newChatFixture(t, stub)
	owner := seedUser(t, st, model.TierFree)
	intruder := seedUser(t, st, model.TierFree)
	sess := seedSession(t, st, owner.UserID, "focus")

	_, err := svc.SendMessage(context.Background(), intruder.UserID, sess.SessionID, "hi")
	require.ErrorIs(t, err, model.ErrNotFound)
	assert.Zero(t, stub.calls)
}
