// Package completion adapts an OpenAI-compatible chat-completions endpoint.
package completion

import (
	"context"
	"fmt"

	"github.com/coachloop/coachloop/server/internal/model"
)

// HistoryWindow is the hard cap on history entries sent upstream. Older
// entries are silently dropped; this is a deliberate cost trade-off, not a
// token-aware truncation.
const HistoryWindow = 20

// ChatMessage is one model-facing turn.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Prompt is the structured input for one completion call.
type Prompt struct {
	SystemPrompt string
	// MemoryBlock, when non-empty, is passed as a second system message.
	MemoryBlock string
	History     []ChatMessage
}

// Client generates one assistant reply for a prompt.
type Client interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}

// WindowHistory keeps the most recent HistoryWindow entries.
func WindowHistory(history []ChatMessage) []ChatMessage {
	if len(history) <= HistoryWindow {
		return history
	}
	return history[len(history)-HistoryWindow:]
}

// BuildMemoryBlock renders a user context into the deterministic four-line
// block injected as an auxiliary system message for PRO users.
func BuildMemoryBlock(uc *model.UserContext) string {
	return fmt.Sprintf("User Context:\nrole:%s\ntools:%s\ngoals:%s\nprefs:%s",
		uc.Role, uc.Tools, uc.Goals, uc.Prefs)
}
