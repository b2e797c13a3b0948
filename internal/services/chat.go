package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/coachloop/coachloop/server/internal/coach"
	"github.com/coachloop/coachloop/server/internal/completion"
	"github.com/coachloop/coachloop/server/internal/model"
	"github.com/coachloop/coachloop/server/internal/store"
)

const (
	replyMarker  = "Next action:"
	replyTrailer = "\n\nNext action: Provide one concrete next action."
)

// ChatService runs the per-message pipeline: ownership check, quota check,
// user-turn persistence, prompt assembly, completion call, reply policy,
// assistant-turn persistence, usage accounting.
type ChatService struct {
	store          store.Store
	catalog        *coach.Catalog
	completions    completion.Client
	freeDailyLimit int

	now func() time.Time

	// one permit per session; serializes concurrent turns on the same
	// session so history assembly never loses an update. Entries are kept
	// for the process lifetime: eviction would race LoadOrStore against
	// Release, and a semaphore per session ever chatted stays small next
	// to the session rows themselves.
	sessionLocks sync.Map
}

func NewChatService(s store.Store, cat *coach.Catalog, client completion.Client, freeDailyLimit int) *ChatService {
	return &ChatService{
		store:          s,
		catalog:        cat,
		completions:    client,
		freeDailyLimit: freeDailyLimit,
		now:            time.Now,
	}
}

func (s *ChatService) sessionLock(sessionID string) *semaphore.Weighted {
	v, _ := s.sessionLocks.LoadOrStore(sessionID, semaphore.NewWeighted(1))
	return v.(*semaphore.Weighted)
}

// SendMessage posts one user turn to a session and returns exactly one
// assistant message or an error. Nothing is retried automatically; a failed
// generation leaves the user turn persisted and the quota untouched.
func (s *ChatService) SendMessage(ctx context.Context, userID, sessionID, content string) (*model.Message, error) {
	if userID == "" {
		return nil, model.ErrUnauthorized
	}
	if content == "" {
		return nil, fmt.Errorf("%w: content is required", model.ErrValidation)
	}

	lock := s.sessionLock(sessionID)
	if err := lock.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer lock.Release(1)

	user, err := s.store.Users().Get(ctx, userID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, model.ErrUnauthorized
		}
		return nil, err
	}

	session, err := s.store.Sessions().Get(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	isPro := user.IsPro(now)

	// Quota: row is created lazily before the comparison; nothing is
	// persisted when the limit is already reached.
	usage, err := s.store.Usage().GetOrCreate(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	if !isPro && usage.AssistantReplies >= s.freeDailyLimit {
		return nil, model.ErrQuotaExceeded
	}

	// The user turn is committed before the completion call so a generation
	// failure never loses the user's input.
	if _, err := s.store.Messages().Append(ctx, &model.Message{
		SessionID: sessionID,
		Role:      model.RoleUser,
		Content:   content,
	}); err != nil {
		return nil, err
	}

	prompt, err := s.assemblePrompt(ctx, session, user, isPro)
	if err != nil {
		return nil, err
	}

	text, err := s.completions.Complete(ctx, prompt)
	if err != nil {
		if !errors.Is(err, model.ErrUpstream) {
			err = fmt.Errorf("%w: %v", model.ErrUpstream, err)
		}
		return nil, err
	}

	text = applyReplyPolicy(text)

	assistant, err := s.store.Messages().Append(ctx, &model.Message{
		SessionID: sessionID,
		Role:      model.RoleAssistant,
		Content:   text,
	})
	if err != nil {
		return nil, err
	}

	if !isPro {
		if _, err := s.store.Usage().Increment(ctx, userID, now); err != nil {
			return nil, err
		}
	}
	return assistant, nil
}

// assemblePrompt replays the session history, most recent window last,
// resolves the coach system prompt, and injects the memory block for PRO
// users with a saved context.
func (s *ChatService) assemblePrompt(ctx context.Context, session *model.Session, user *model.User, isPro bool) (completion.Prompt, error) {
	history, err := s.store.Messages().ListBySession(ctx, session.SessionID)
	if err != nil {
		return completion.Prompt{}, err
	}
	turns := make([]completion.ChatMessage, 0, len(history))
	for _, m := range history {
		turns = append(turns, completion.ChatMessage{Role: m.Role, Content: m.Content})
	}

	systemPrompt := coach.DefaultSystemPrompt
	if c, err := s.catalog.Get(session.CoachID); err == nil {
		systemPrompt = c.SystemPrompt
	}

	prompt := completion.Prompt{
		SystemPrompt: systemPrompt,
		History:      completion.WindowHistory(turns),
	}

	if isPro {
		uc, err := s.store.Contexts().Get(ctx, user.UserID)
		switch {
		case err == nil:
			prompt.MemoryBlock = completion.BuildMemoryBlock(uc)
		case errors.Is(err, model.ErrNotFound):
			// no saved context, nothing to inject
		default:
			return completion.Prompt{}, err
		}
	}
	return prompt, nil
}

// applyReplyPolicy guarantees every assistant reply surfaces a concrete next
// action regardless of model output.
func applyReplyPolicy(text string) string {
	if strings.Contains(text, replyMarker) {
		return text
	}
	return text + replyTrailer
}
