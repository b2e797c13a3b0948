package completion

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coachloop/coachloop/server/internal/model"
)

type capturedRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float32       `json:"temperature"`
}

func newUpstream(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(baseURL string) *OpenAIClient {
	return NewOpenAIClient(OpenAIOptions{
		BaseURL:     baseURL,
		APIKey:      "test-key",
		Model:       "gpt-4o-mini",
		MaxTokens:   600,
		Temperature: 0.7,
		Timeout:     5 * time.Second,
	})
}

func completionJSON(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{{"message": map[string]any{"content": content}}},
	})
	return string(b)
}

func TestComplete_SendsExpectedRequest(t *testing.T) {
	var got capturedRequest
	var gotAuth, gotPath string
	srv := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, completionJSON("hello there"))
	})

	c := newTestClient(srv.URL)
	text, err := c.Complete(context.Background(), Prompt{
		SystemPrompt: "You coach people.",
		MemoryBlock:  "User Context:\nrole:x\ntools:\ngoals:\nprefs:",
		History: []ChatMessage{
			{Role: model.RoleUser, Content: "hi"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello there", text)

	assert.Equal(t, "/v1/chat/completions", gotPath)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "gpt-4o-mini", got.Model)
	assert.Equal(t, 600, got.MaxTokens)
	assert.InDelta(t, 0.7, got.Temperature, 0.001)

	// system prompt, memory block, then history
	require.Len(t, got.Messages, 3)
	assert.Equal(t, model.RoleSystem, got.Messages[0].Role)
	assert.Equal(t, "You coach people.", got.Messages[0].Content)
	assert.Equal(t, model.RoleSystem, got.Messages[1].Role)
	assert.Equal(t, model.RoleUser, got.Messages[2].Role)
}

func TestComplete_OmitsMemoryBlockWhenEmpty(t *testing.T) {
	var got capturedRequest
	srv := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, completionJSON("ok"))
	})

	c := newTestClient(srv.URL)
	_, err := c.Complete(context.Background(), Prompt{
		SystemPrompt: "sys",
		History:      []ChatMessage{{Role: model.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "sys", got.Messages[0].Content)
	assert.Equal(t, "hi", got.Messages[1].Content)
}

func TestComplete_WindowsLongHistory(t *testing.T) {
	var got capturedRequest
	srv := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, completionJSON("ok"))
	})

	history := make([]ChatMessage, HistoryWindow+10)
	for i := range history {
		history[i] = ChatMessage{Role: model.RoleUser, Content: fmt.Sprintf("m%d", i)}
	}

	c := newTestClient(srv.URL)
	_, err := c.Complete(context.Background(), Prompt{SystemPrompt: "sys", History: history})
	require.NoError(t, err)
	// 1 system + windowed history
	require.Len(t, got.Messages, 1+HistoryWindow)
	assert.Equal(t, "m10", got.Messages[1].Content)
}

func TestComplete_UpstreamFailures(t *testing.T) {
	t.Run("non-200 status", func(t *testing.T) {
		srv := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
		})
		_, err := newTestClient(srv.URL).Complete(context.Background(), Prompt{SystemPrompt: "s"})
		require.ErrorIs(t, err, model.ErrUpstream)
	})

	t.Run("malformed body", func(t *testing.T) {
		srv := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, "not json")
		})
		_, err := newTestClient(srv.URL).Complete(context.Background(), Prompt{SystemPrompt: "s"})
		require.ErrorIs(t, err, model.ErrUpstream)
	})

	t.Run("empty choices", func(t *testing.T) {
		srv := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"choices":[]}`)
		})
		_, err := newTestClient(srv.URL).Complete(context.Background(), Prompt{SystemPrompt: "s"})
		require.ErrorIs(t, err, model.ErrUpstream)
	})

	t.Run("empty content", func(t *testing.T) {
		srv := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, completionJSON(""))
		})
		_, err := newTestClient(srv.URL).Complete(context.Background(), Prompt{SystemPrompt: "s"})
		require.ErrorIs(t, err, model.ErrUpstream)
	})

	t.Run("unreachable host", func(t *testing.T) {
		c := newTestClient("http://127.0.0.1:1")
		_, err := c.Complete(context.Background(), Prompt{SystemPrompt: "s"})
		require.ErrorIs(t, err, model.ErrUpstream)
	})
}
