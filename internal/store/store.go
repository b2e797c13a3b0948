package store

import (
	"context"
	"time"

	"github.com/coachloop/coachloop/server/internal/model"
)

// Store exposes persistence operations required by services.
// Implementations live under internal/store/<driver>/ (e.g., postgres, sqlite).
type Store interface {
	Users() Users
	Sessions() Sessions
	Messages() Messages
	Contexts() Contexts
	Usage() Usage
	Events() Events
}

type Users interface {
	Create(ctx context.Context, u *model.User) (*model.User, error)
	Get(ctx context.Context, userID string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByBillingID(ctx context.Context, billingID string) (*model.User, error)
	// SetEntitlement is invoked only by the webhook path.
	SetEntitlement(ctx context.Context, userID, tier string, proExpiresAt *time.Time) error
	SetRefreshTokenHash(ctx context.Context, userID string, hash *string) error
}

type Sessions interface {
	Create(ctx context.Context, s *model.Session) (*model.Session, error)
	// Get folds ownership into existence: a session that exists but belongs
	// to another user is reported as ErrNotFound.
	Get(ctx context.Context, userID, sessionID string) (*model.Session, error)
	// List returns the user's sessions, most recent first.
	List(ctx context.Context, userID string) ([]*model.Session, error)
}

type Messages interface {
	// Append stores one message. Messages are never edited or deleted.
	Append(ctx context.Context, m *model.Message) (*model.Message, error)
	// ListBySession returns messages in append order.
	ListBySession(ctx context.Context, sessionID string) ([]*model.Message, error)
}

type Contexts interface {
	// Put fully replaces the user's context (created if absent).
	Put(ctx context.Context, c *model.UserContext) (*model.UserContext, error)
	Get(ctx context.Context, userID string) (*model.UserContext, error)
}

type Usage interface {
	// GetOrCreate is an atomic upsert: safe under concurrent first use of a
	// (user, day) key.
	GetOrCreate(ctx context.Context, userID string, day time.Time) (*model.DailyUsage, error)
	// Increment atomically adds 1 to an existing row and returns the new
	// count; ErrNotFound if the row does not exist.
	Increment(ctx context.Context, userID string, day time.Time) (int, error)
}

type Events interface {
	Append(ctx context.Context, e *model.EntitlementEvent) (*model.EntitlementEvent, error)
}
