package sqlite

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/coachloop/coachloop/server/internal/model"
	"github.com/coachloop/coachloop/server/internal/store"
	"github.com/coachloop/coachloop/server/internal/store/storetest"
)

func makeSQLiteStore(t *testing.T) store.Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("sqlite open: %v", err)
	}
	return s
}

func TestSQLiteStore_Compliance(t *testing.T) {
	storetest.Run(t, makeSQLiteStore)
}

func TestSQLiteStore_UsageConcurrentFirstUse(t *testing.T) {
	s := makeSQLiteStore(t)
	ctx := context.Background()

	u, err := s.Users().Create(ctx, &model.User{Email: "c@example.test", PasswordHash: "x"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	day := model.UTCDay(time.Now())

	// Concurrent GetOrCreate on a fresh (user, day) key must not fail and must
	// leave exactly one zero-count row.
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Usage().GetOrCreate(ctx, u.UserID, day); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent GetOrCreate: %v", err)
	}

	got, err := s.Usage().GetOrCreate(ctx, u.UserID, day)
	if err != nil || got.AssistantReplies != 0 {
		t.Fatalf("after concurrent create: got=%+v err=%v", got, err)
	}
	if n, err := s.Usage().Increment(ctx, u.UserID, day); err != nil || n != 1 {
		t.Fatalf("increment: n=%d err=%v", n, err)
	}
}

func TestSQLiteStore_FileBacked(t *testing.T) {
	path := t.TempDir() + "/coach.db"
	s, err := New(path)
	if err != nil {
		t.Fatalf("sqlite open %s: %v", path, err)
	}
	ctx := context.Background()
	u, err := s.Users().Create(ctx, &model.User{Email: "f@example.test", PasswordHash: "x"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	// Reopen the same file; data must survive.
	s2, err := New(path)
	if err != nil {
		t.Fatalf("sqlite reopen: %v", err)
	}
	got, err := s2.Users().Get(ctx, u.UserID)
	if err != nil || got.Email != "f@example.test" {
		t.Fatalf("get after reopen: got=%+v err=%v", got, err)
	}
}
