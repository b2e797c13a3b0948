package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/coachloop/coachloop/server/internal/model"
	"github.com/coachloop/coachloop/server/internal/store"
)

// Run exercises a compliance suite against a store.Store implementation.
// Implementations should provide a clean, isolated store from makeStore.
func Run(t *testing.T, makeStore func(t *testing.T) store.Store) {
	t.Helper()

	s := makeStore(t)
	ctx := context.Background()

	// Unique test identifiers
	email := "u-" + uuid.New().String() + "@example.test"

	// Users
	u, err := s.Users().Create(ctx, &model.User{Email: email, PasswordHash: "x", Entitlement: model.TierFree})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if u.UserID == "" {
		t.Fatalf("CreateUser: empty user id")
	}
	if got, err := s.Users().Get(ctx, u.UserID); err != nil || got == nil || got.Email != email {
		t.Fatalf("GetUser: got=%v err=%v", got, err)
	}
	if got, err := s.Users().GetByEmail(ctx, email); err != nil || got == nil || got.UserID != u.UserID {
		t.Fatalf("GetUserByEmail: got=%v err=%v", got, err)
	}
	if _, err := s.Users().Get(ctx, "no-such-user"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("GetUser missing: want ErrNotFound, got %v", err)
	}

	// Duplicate email must conflict
	if _, err := s.Users().Create(ctx, &model.User{Email: email, PasswordHash: "x", Entitlement: model.TierFree}); !errors.Is(err, model.ErrConflict) {
		t.Fatalf("CreateUser duplicate: want ErrConflict, got %v", err)
	}

	// Entitlement and billing linkage
	expires := time.Now().UTC().Add(30 * 24 * time.Hour).Truncate(time.Second)
	if err := s.Users().SetEntitlement(ctx, u.UserID, model.TierPro, &expires); err != nil {
		t.Fatalf("SetEntitlement: %v", err)
	}
	if got, _ := s.Users().Get(ctx, u.UserID); got.Entitlement != model.TierPro || got.ProExpiresAt == nil {
		t.Fatalf("SetEntitlement not persisted: %+v", got)
	}
	if _, err := s.Users().GetByBillingID(ctx, "rc-"+u.UserID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("GetByBillingID missing: want ErrNotFound, got %v", err)
	}

	// Refresh token digest round trip
	digest := "abc123"
	if err := s.Users().SetRefreshTokenHash(ctx, u.UserID, &digest); err != nil {
		t.Fatalf("SetRefreshTokenHash: %v", err)
	}
	if got, _ := s.Users().Get(ctx, u.UserID); got.RefreshTokenHash == nil || *got.RefreshTokenHash != digest {
		t.Fatalf("refresh digest not persisted: %+v", got)
	}
	if err := s.Users().SetRefreshTokenHash(ctx, u.UserID, nil); err != nil {
		t.Fatalf("clear refresh digest: %v", err)
	}
	if got, _ := s.Users().Get(ctx, u.UserID); got.RefreshTokenHash != nil {
		t.Fatalf("refresh digest not cleared: %+v", got)
	}

	// Sessions
	sess, err := s.Sessions().Create(ctx, &model.Session{UserID: u.UserID, CoachID: "focus"})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if sess.SessionID == "" {
		t.Fatalf("CreateSession: empty session id")
	}
	if got, err := s.Sessions().Get(ctx, u.UserID, sess.SessionID); err != nil || got == nil || got.CoachID != "focus" {
		t.Fatalf("GetSession: got=%v err=%v", got, err)
	}
	// Ownership folds into existence
	if _, err := s.Sessions().Get(ctx, "other-user", sess.SessionID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("GetSession foreign owner: want ErrNotFound, got %v", err)
	}
	time.Sleep(5 * time.Millisecond) // ensure monotonic creation time ordering
	sess2, err := s.Sessions().Create(ctx, &model.Session{UserID: u.UserID, CoachID: "creator"})
	if err != nil {
		t.Fatalf("CreateSession 2: %v", err)
	}
	lst, err := s.Sessions().List(ctx, u.UserID)
	if err != nil || len(lst) != 2 {
		t.Fatalf("ListSessions: n=%d err=%v", len(lst), err)
	}
	if lst[0].SessionID != sess2.SessionID {
		t.Fatalf("ListSessions order: newest first expected, got %s", lst[0].SessionID)
	}

	// Messages keep append order within a session
	for _, content := range []string{"one", "two", "three"} {
		if _, err := s.Messages().Append(ctx, &model.Message{SessionID: sess.SessionID, Role: model.RoleUser, Content: content}); err != nil {
			t.Fatalf("AppendMessage %q: %v", content, err)
		}
	}
	msgs, err := s.Messages().ListBySession(ctx, sess.SessionID)
	if err != nil || len(msgs) != 3 {
		t.Fatalf("ListBySession: n=%d err=%v", len(msgs), err)
	}
	for i, want := range []string{"one", "two", "three"} {
		if msgs[i].Content != want {
			t.Fatalf("message order[%d]: got %q want %q", i, msgs[i].Content, want)
		}
	}
	if other, err := s.Messages().ListBySession(ctx, sess2.SessionID); err != nil || len(other) != 0 {
		t.Fatalf("ListBySession isolation: n=%d err=%v", len(other), err)
	}

	// Contexts: full replace, Get after Put
	if _, err := s.Contexts().Get(ctx, u.UserID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("GetContext missing: want ErrNotFound, got %v", err)
	}
	if _, err := s.Contexts().Put(ctx, &model.UserContext{UserID: u.UserID, Role: "engineer", Tools: "vim", Goals: "ship", Prefs: "short"}); err != nil {
		t.Fatalf("PutContext: %v", err)
	}
	if _, err := s.Contexts().Put(ctx, &model.UserContext{UserID: u.UserID, Role: "manager"}); err != nil {
		t.Fatalf("PutContext replace: %v", err)
	}
	got, err := s.Contexts().Get(ctx, u.UserID)
	if err != nil || got.Role != "manager" {
		t.Fatalf("GetContext after replace: got=%+v err=%v", got, err)
	}
	if got.Tools != "" {
		t.Fatalf("PutContext must replace all fields, kept tools=%q", got.Tools)
	}

	// Usage: lazy row creation, idempotent GetOrCreate, atomic increments
	day := model.UTCDay(time.Now())
	du, err := s.Usage().GetOrCreate(ctx, u.UserID, day)
	if err != nil || du.AssistantReplies != 0 {
		t.Fatalf("GetOrCreate: got=%+v err=%v", du, err)
	}
	if du2, err := s.Usage().GetOrCreate(ctx, u.UserID, day); err != nil || du2.AssistantReplies != 0 {
		t.Fatalf("GetOrCreate repeat: got=%+v err=%v", du2, err)
	}
	if n, err := s.Usage().Increment(ctx, u.UserID, day); err != nil || n != 1 {
		t.Fatalf("Increment: n=%d err=%v", n, err)
	}
	if n, err := s.Usage().Increment(ctx, u.UserID, day); err != nil || n != 2 {
		t.Fatalf("Increment 2: n=%d err=%v", n, err)
	}
	// A new day starts a fresh counter
	nextDay := day.Add(24 * time.Hour)
	if du3, err := s.Usage().GetOrCreate(ctx, u.UserID, nextDay); err != nil || du3.AssistantReplies != 0 {
		t.Fatalf("GetOrCreate next day: got=%+v err=%v", du3, err)
	}
	if _, err := s.Usage().Increment(ctx, "no-such-user", day); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("Increment missing row: want ErrNotFound, got %v", err)
	}

	// Entitlement events are append-only
	ev, err := s.Events().Append(ctx, &model.EntitlementEvent{UserID: &u.UserID, Payload: []byte(`{"event":{"type":"RENEWAL"}}`)})
	if err != nil {
		t.Fatalf("AppendEvent: %v", err)
	}
	if ev.EventID == "" {
		t.Fatalf("AppendEvent: empty event id")
	}
}
