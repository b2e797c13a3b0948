// Package sqlite implements store.Store on modernc.org/sqlite. It backs local
// deployments and, opened at ":memory:", the test store.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/coachloop/coachloop/server/internal/model"
	"github.com/coachloop/coachloop/server/internal/store"
)

//go:embed schema.sql
var schemaSQL string

const dayFormat = "2006-01-02"

// New opens (or creates) a SQLite database at path and applies the schema.
func New(path string) (store.Store, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	return NewWithDB(db)
}

// NewWithDB wires the adapter over an existing connection and applies the
// schema idempotently.
func NewWithDB(db *sql.DB) (store.Store, error) {
	if _, err := db.Exec(schemaSQL); err != nil {
		return nil, err
	}
	return &sqliteStore{db: db}, nil
}

type sqliteStore struct{ db *sql.DB }

func (s *sqliteStore) Users() store.Users       { return &users{db: s.db} }
func (s *sqliteStore) Sessions() store.Sessions { return &sessions{db: s.db} }
func (s *sqliteStore) Messages() store.Messages { return &messages{db: s.db} }
func (s *sqliteStore) Contexts() store.Contexts { return &contexts{db: s.db} }
func (s *sqliteStore) Usage() store.Usage       { return &usage{db: s.db} }
func (s *sqliteStore) Events() store.Events     { return &events{db: s.db} }

// HealthPing implements health.HealthPinger.
func (s *sqliteStore) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// --- Users ---

type users struct{ db *sql.DB }

func (u *users) Create(ctx context.Context, m *model.User) (*model.User, error) {
	out := *m
	if out.UserID == "" {
		out.UserID = uuid.New().String()
	}
	if out.Entitlement == "" {
		out.Entitlement = model.TierFree
	}
	out.CreationTime = time.Now().UTC()

	_, err := u.db.ExecContext(ctx, `
        INSERT INTO users (user_id, email, password_hash, entitlement, pro_expires_at, billing_id, refresh_token_hash, creation_time)
        VALUES (?,?,?,?,?,?,?,?)
    `, out.UserID, out.Email, out.PasswordHash, out.Entitlement, out.ProExpiresAt, out.BillingID, out.RefreshTokenHash, out.CreationTime)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, model.ErrConflict
		}
		return nil, err
	}
	return &out, nil
}

func (u *users) Get(ctx context.Context, userID string) (*model.User, error) {
	return scanUser(u.db.QueryRowContext(ctx, `
        SELECT user_id, email, password_hash, entitlement, pro_expires_at, billing_id, refresh_token_hash, creation_time
        FROM users WHERE user_id=?
    `, userID))
}

func (u *users) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return scanUser(u.db.QueryRowContext(ctx, `
        SELECT user_id, email, password_hash, entitlement, pro_expires_at, billing_id, refresh_token_hash, creation_time
        FROM users WHERE email=?
    `, email))
}

func (u *users) GetByBillingID(ctx context.Context, billingID string) (*model.User, error) {
	return scanUser(u.db.QueryRowContext(ctx, `
        SELECT user_id, email, password_hash, entitlement, pro_expires_at, billing_id, refresh_token_hash, creation_time
        FROM users WHERE billing_id=?
    `, billingID))
}

func (u *users) SetEntitlement(ctx context.Context, userID, tier string, proExpiresAt *time.Time) error {
	res, err := u.db.ExecContext(ctx, `UPDATE users SET entitlement=?, pro_expires_at=? WHERE user_id=?`, tier, proExpiresAt, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (u *users) SetRefreshTokenHash(ctx context.Context, userID string, hash *string) error {
	res, err := u.db.ExecContext(ctx, `UPDATE users SET refresh_token_hash=? WHERE user_id=?`, hash, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func scanUser(row *sql.Row) (*model.User, error) {
	var out model.User
	if err := row.Scan(&out.UserID, &out.Email, &out.PasswordHash, &out.Entitlement, &out.ProExpiresAt, &out.BillingID, &out.RefreshTokenHash, &out.CreationTime); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	return &out, nil
}

// --- Sessions ---

type sessions struct{ db *sql.DB }

func (s *sessions) Create(ctx context.Context, m *model.Session) (*model.Session, error) {
	out := *m
	if out.SessionID == "" {
		out.SessionID = uuid.New().String()
	}
	out.CreationTime = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO sessions (session_id, user_id, coach_id, creation_time) VALUES (?,?,?,?)
    `, out.SessionID, out.UserID, out.CoachID, out.CreationTime)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *sessions) Get(ctx context.Context, userID, sessionID string) (*model.Session, error) {
	var out model.Session
	row := s.db.QueryRowContext(ctx, `
        SELECT session_id, user_id, coach_id, creation_time FROM sessions WHERE session_id=? AND user_id=?
    `, sessionID, userID)
	if err := row.Scan(&out.SessionID, &out.UserID, &out.CoachID, &out.CreationTime); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	return &out, nil
}

func (s *sessions) List(ctx context.Context, userID string) ([]*model.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT session_id, user_id, coach_id, creation_time
        FROM sessions WHERE user_id=? ORDER BY creation_time DESC, session_id
    `, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*model.Session
	for rows.Next() {
		var m model.Session
		if err := rows.Scan(&m.SessionID, &m.UserID, &m.CoachID, &m.CreationTime); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

// --- Messages ---

type messages struct{ db *sql.DB }

func (m *messages) Append(ctx context.Context, msg *model.Message) (*model.Message, error) {
	out := *msg
	if out.MessageID == "" {
		out.MessageID = uuid.New().String()
	}
	out.CreationTime = time.Now().UTC()
	_, err := m.db.ExecContext(ctx, `
        INSERT INTO messages (message_id, session_id, role, content, creation_time) VALUES (?,?,?,?,?)
    `, out.MessageID, out.SessionID, out.Role, out.Content, out.CreationTime)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (m *messages) ListBySession(ctx context.Context, sessionID string) ([]*model.Message, error) {
	rows, err := m.db.QueryContext(ctx, `
        SELECT message_id, session_id, role, content, creation_time
        FROM messages WHERE session_id=? ORDER BY seq
    `, sessionID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*model.Message
	for rows.Next() {
		var msg model.Message
		if err := rows.Scan(&msg.MessageID, &msg.SessionID, &msg.Role, &msg.Content, &msg.CreationTime); err != nil {
			return nil, err
		}
		out = append(out, &msg)
	}
	return out, rows.Err()
}

// --- Contexts ---

type contexts struct{ db *sql.DB }

func (c *contexts) Put(ctx context.Context, uc *model.UserContext) (*model.UserContext, error) {
	_, err := c.db.ExecContext(ctx, `
        INSERT INTO user_contexts (user_id, role, tools, goals, prefs) VALUES (?,?,?,?,?)
        ON CONFLICT(user_id) DO UPDATE SET role=excluded.role, tools=excluded.tools, goals=excluded.goals, prefs=excluded.prefs
    `, uc.UserID, uc.Role, uc.Tools, uc.Goals, uc.Prefs)
	if err != nil {
		return nil, err
	}
	out := *uc
	return &out, nil
}

func (c *contexts) Get(ctx context.Context, userID string) (*model.UserContext, error) {
	var out model.UserContext
	row := c.db.QueryRowContext(ctx, `SELECT user_id, role, tools, goals, prefs FROM user_contexts WHERE user_id=?`, userID)
	if err := row.Scan(&out.UserID, &out.Role, &out.Tools, &out.Goals, &out.Prefs); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	return &out, nil
}

// --- Usage ---

type usage struct{ db *sql.DB }

func (u *usage) GetOrCreate(ctx context.Context, userID string, day time.Time) (*model.DailyUsage, error) {
	key := model.UTCDay(day).Format(dayFormat)
	if _, err := u.db.ExecContext(ctx, `
        INSERT INTO daily_usage (user_id, usage_day, assistant_replies) VALUES (?,?,0)
        ON CONFLICT(user_id, usage_day) DO NOTHING
    `, userID, key); err != nil {
		return nil, err
	}
	var count int
	if err := u.db.QueryRowContext(ctx, `
        SELECT assistant_replies FROM daily_usage WHERE user_id=? AND usage_day=?
    `, userID, key).Scan(&count); err != nil {
		return nil, err
	}
	return &model.DailyUsage{UserID: userID, Day: model.UTCDay(day), AssistantReplies: count}, nil
}

func (u *usage) Increment(ctx context.Context, userID string, day time.Time) (int, error) {
	key := model.UTCDay(day).Format(dayFormat)
	var count int
	err := u.db.QueryRowContext(ctx, `
        UPDATE daily_usage SET assistant_replies = assistant_replies + 1
        WHERE user_id=? AND usage_day=?
        RETURNING assistant_replies
    `, userID, key).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, model.ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return count, nil
}

// --- Events ---

type events struct{ db *sql.DB }

func (e *events) Append(ctx context.Context, ev *model.EntitlementEvent) (*model.EntitlementEvent, error) {
	out := *ev
	if out.EventID == "" {
		out.EventID = uuid.New().String()
	}
	out.CreationTime = time.Now().UTC()
	_, err := e.db.ExecContext(ctx, `
        INSERT INTO entitlement_events (event_id, user_id, payload, creation_time) VALUES (?,?,?,?)
    `, out.EventID, out.UserID, out.Payload, out.CreationTime)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
