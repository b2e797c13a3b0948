// Package postgres implements store.Store on PostgreSQL via the pgx stdlib
// driver.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/coachloop/coachloop/server/internal/model"
	"github.com/coachloop/coachloop/server/internal/store"
)

// Open opens a PostgreSQL connection using the pgx stdlib driver and verifies connectivity.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// NewWithDB constructs a native Postgres store backed directly by database/sql.
func NewWithDB(db *sql.DB) store.Store { return &pgStore{db: db} }

type pgStore struct{ db *sql.DB }

func (s *pgStore) Users() store.Users       { return &users{db: s.db} }
func (s *pgStore) Sessions() store.Sessions { return &sessions{db: s.db} }
func (s *pgStore) Messages() store.Messages { return &messages{db: s.db} }
func (s *pgStore) Contexts() store.Contexts { return &contexts{db: s.db} }
func (s *pgStore) Usage() store.Usage       { return &usage{db: s.db} }
func (s *pgStore) Events() store.Events     { return &events{db: s.db} }

// HealthPing implements health.HealthPinger for the Postgres-backed store.
func (s *pgStore) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Bootstrap performs a connectivity check to ensure Postgres is reachable.
// Schema setup is handled by deployment migrations (see schema.sql).
func Bootstrap(ctx context.Context, dsn string) error {
	if dsn == "" {
		return nil
	}
	db, err := Open(dsn)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	return db.PingContext(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// --- Users ---

type users struct{ db *sql.DB }

const userColumns = `user_id, email, password_hash, entitlement, pro_expires_at, billing_id, refresh_token_hash, creation_time`

func (u *users) Create(ctx context.Context, m *model.User) (*model.User, error) {
	out := *m
	if out.UserID == "" {
		out.UserID = uuid.New().String()
	}
	if out.Entitlement == "" {
		out.Entitlement = model.TierFree
	}
	var created time.Time
	row := u.db.QueryRowContext(ctx, `
        INSERT INTO users (user_id, email, password_hash, entitlement, pro_expires_at, billing_id, refresh_token_hash)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING creation_time
    `, out.UserID, out.Email, out.PasswordHash, out.Entitlement, out.ProExpiresAt, out.BillingID, out.RefreshTokenHash)
	if err := row.Scan(&created); err != nil {
		if isUniqueViolation(err) {
			return nil, model.ErrConflict
		}
		return nil, err
	}
	out.CreationTime = created
	return &out, nil
}

func (u *users) Get(ctx context.Context, userID string) (*model.User, error) {
	return scanUser(u.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE user_id=$1`, userID))
}

func (u *users) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return scanUser(u.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email=$1`, email))
}

func (u *users) GetByBillingID(ctx context.Context, billingID string) (*model.User, error) {
	return scanUser(u.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE billing_id=$1`, billingID))
}

func (u *users) SetEntitlement(ctx context.Context, userID, tier string, proExpiresAt *time.Time) error {
	res, err := u.db.ExecContext(ctx, `UPDATE users SET entitlement=$1, pro_expires_at=$2 WHERE user_id=$3`, tier, proExpiresAt, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (u *users) SetRefreshTokenHash(ctx context.Context, userID string, hash *string) error {
	res, err := u.db.ExecContext(ctx, `UPDATE users SET refresh_token_hash=$1 WHERE user_id=$2`, hash, userID)
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
	var created time.Time
	row := s.db.QueryRowContext(ctx, `
        INSERT INTO sessions (session_id, user_id, coach_id)
        VALUES ($1,$2,$3)
        RETURNING creation_time
    `, out.SessionID, out.UserID, out.CoachID)
	if err := row.Scan(&created); err != nil {
		return nil, err
	}
	out.CreationTime = created
	return &out, nil
}

func (s *sessions) Get(ctx context.Context, userID, sessionID string) (*model.Session, error) {
	var out model.Session
	row := s.db.QueryRowContext(ctx, `
        SELECT session_id, user_id, coach_id, creation_time FROM sessions WHERE session_id=$1 AND user_id=$2
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
        FROM sessions WHERE user_id=$1 ORDER BY creation_time DESC, session_id
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
	var created time.Time
	row := m.db.QueryRowContext(ctx, `
        INSERT INTO messages (message_id, session_id, role, content)
        VALUES ($1,$2,$3,$4)
        RETURNING creation_time
    `, out.MessageID, out.SessionID, out.Role, out.Content)
	if err := row.Scan(&created); err != nil {
		return nil, err
	}
	out.CreationTime = created
	return &out, nil
}

func (m *messages) ListBySession(ctx context.Context, sessionID string) ([]*model.Message, error) {
	rows, err := m.db.QueryContext(ctx, `
        SELECT message_id, session_id, role, content, creation_time
        FROM messages WHERE session_id=$1 ORDER BY seq
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
        INSERT INTO user_contexts (user_id, role, tools, goals, prefs) VALUES ($1,$2,$3,$4,$5)
        ON CONFLICT (user_id) DO UPDATE SET role=EXCLUDED.role, tools=EXCLUDED.tools, goals=EXCLUDED.goals, prefs=EXCLUDED.prefs
    `, uc.UserID, uc.Role, uc.Tools, uc.Goals, uc.Prefs)
	if err != nil {
		return nil, err
	}
	out := *uc
	return &out, nil
}

func (c *contexts) Get(ctx context.Context, userID string) (*model.UserContext, error) {
	var out model.UserContext
	row := c.db.QueryRowContext(ctx, `SELECT user_id, role, tools, goals, prefs FROM user_contexts WHERE user_id=$1`, userID)
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
	key := model.UTCDay(day)
	if _, err := u.db.ExecContext(ctx, `
        INSERT INTO daily_usage (user_id, usage_day, assistant_replies) VALUES ($1,$2,0)
        ON CONFLICT (user_id, usage_day) DO NOTHING
    `, userID, key); err != nil {
		return nil, err
	}
	var count int
	if err := u.db.QueryRowContext(ctx, `
        SELECT assistant_replies FROM daily_usage WHERE user_id=$1 AND usage_day=$2
    `, userID, key).Scan(&count); err != nil {
		return nil, err
	}
	return &model.DailyUsage{UserID: userID, Day: key, AssistantReplies: count}, nil
}

func (u *usage) Increment(ctx context.Context, userID string, day time.Time) (int, error) {
	key := model.UTCDay(day)
	var count int
	err := u.db.QueryRowContext(ctx, `
        UPDATE daily_usage SET assistant_replies = assistant_replies + 1
        WHERE user_id=$1 AND usage_day=$2
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
	var created time.Time
	row := e.db.QueryRowContext(ctx, `
        INSERT INTO entitlement_events (event_id, user_id, payload) VALUES ($1,$2,$3)
        RETURNING creation_time
    `, out.EventID, out.UserID, out.Payload)
	if err := row.Scan(&created); err != nil {
		return nil, err
	}
	out.CreationTime = created
	return &out, nil
}
