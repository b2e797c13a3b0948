package completion

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/coachloop/coachloop/server/internal/model"
)

func TestWindowHistory(t *testing.T) {
	mk := func(n int) []ChatMessage {
		out := make([]ChatMessage, n)
		for i := range out {
			out[i] = ChatMessage{Role: model.RoleUser, Content: fmt.Sprintf("m%d", i)}
		}
		return out
	}

	assert.Empty(t, WindowHistory(nil))
	assert.Len(t, WindowHistory(mk(5)), 5)
	assert.Len(t, WindowHistory(mk(HistoryWindow)), HistoryWindow)

	got := WindowHistory(mk(HistoryWindow + 7))
	assert.Len(t, got, HistoryWindow)
	// Oldest entries are dropped; the newest survives.
	assert.Equal(t, "m7", got[0].Content)
	assert.Equal(t, fmt.Sprintf("m%d", HistoryWindow+6), got[len(got)-1].Content)
}

func TestBuildMemoryBlock(t *testing.T) {
	uc := &model.UserContext{Role: "engineer", Tools: "vscode", Goals: "ship mvp", Prefs: "direct tone"}
	want := "User Context:\nrole:engineer\ntools:vscode\ngoals:ship mvp\nprefs:direct tone"
	assert.Equal(t, want, BuildMemoryBlock(uc))

	// Empty fields still render their lines; the shape is fixed.
	empty := &model.UserContext{}
	assert.Equal(t, "User Context:\nrole:\ntools:\ngoals:\nprefs:", BuildMemoryBlock(empty))
}
