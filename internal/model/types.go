package model

import "time"

// Entitlement tiers. Every new user starts on FREE; transitions are driven by
// the billing webhook, never by the chat pipeline.
const (
	TierFree = "FREE"
	TierPro  = "PRO"
)

// User represents an account in the system.
type User struct {
	UserID           string     `json:"userId"`
	Email            string     `json:"email"`
	PasswordHash     string     `json:"-"`
	Entitlement      string     `json:"entitlement"`
	ProExpiresAt     *time.Time `json:"proExpiresAt,omitempty"`
	BillingID        *string    `json:"-"`
	RefreshTokenHash *string    `json:"-"`
	CreationTime     time.Time  `json:"creationTime"`
}

// IsPro reports whether the user has an active PRO entitlement at the given
// instant. A PRO tier with an expiry in the past counts as FREE.
func (u *User) IsPro(now time.Time) bool {
	if u.Entitlement != TierPro {
		return false
	}
	if u.ProExpiresAt != nil && u.ProExpiresAt.Before(now) {
		return false
	}
	return true
}

// Coach is an immutable catalog entry: a persona with a fixed system prompt.
type Coach struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	IsPremium    bool   `json:"isPremium"`
	SystemPrompt string `json:"systemPrompt"`
}

// Session is one conversation thread between a user and a coach.
type Session struct {
	SessionID    string    `json:"id"`
	UserID       string    `json:"userId"`
	CoachID      string    `json:"coachId"`
	CreationTime time.Time `json:"createdAt"`
}

// SessionWithMessages carries a session plus its ordered history.
type SessionWithMessages struct {
	Session
	Messages []*Message `json:"messages"`
}

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is a single turn within a session. Append-only.
type Message struct {
	MessageID    string    `json:"id"`
	SessionID    string    `json:"sessionId"`
	Role         string    `json:"role"`
	Content      string    `json:"content"`
	CreationTime time.Time `json:"createdAt"`
}

// UserContext is the optional free-text profile injected into prompts for PRO
// users. At most one per user; writes replace all four fields.
type UserContext struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
	Tools  string `json:"tools"`
	Goals  string `json:"goals"`
	Prefs  string `json:"prefs"`
}

// DailyUsage counts assistant replies for (user, UTC calendar day). The row is
// created lazily on first use of a day and never decremented; the date key is
// what resets the quota.
type DailyUsage struct {
	UserID           string    `json:"userId"`
	Day              time.Time `json:"date"`
	AssistantReplies int       `json:"assistantReplies"`
}

// EntitlementEvent is an append-only audit record of raw webhook payloads.
type EntitlementEvent struct {
	EventID      string    `json:"eventId"`
	UserID       *string   `json:"userId,omitempty"`
	Payload      []byte    `json:"payload"`
	CreationTime time.Time `json:"creationTime"`
}

// UTCDay truncates t to its UTC calendar date, the quota window key.
func UTCDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
