package completion

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/coachloop/coachloop/server/internal/model"
)

// OpenAIClient calls an OpenAI-compatible chat-completions API.
// Model, max tokens and temperature are fixed per deployment.
type OpenAIClient struct {
	client      *resty.Client
	model       string
	maxTokens   int
	temperature float32
}

// OpenAIOptions configures an OpenAIClient.
type OpenAIOptions struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
}

// NewOpenAIClient builds the upstream adapter. The timeout bounds every
// completion call; a timed-out call is reported as upstream failure.
func NewOpenAIClient(opts OpenAIOptions) *OpenAIClient {
	c := resty.New().
		SetBaseURL(opts.BaseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(opts.Timeout)
	if opts.APIKey != "" {
		c.SetAuthToken(opts.APIKey)
	}
	return &OpenAIClient{
		client:      c,
		model:       opts.Model,
		maxTokens:   opts.MaxTokens,
		temperature: opts.Temperature,
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float32       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends [system prompt] + [optional memory block] + windowed history
// and returns the generated text.
func (c *OpenAIClient) Complete(ctx context.Context, p Prompt) (string, error) {
	msgs := make([]ChatMessage, 0, 2+HistoryWindow)
	msgs = append(msgs, ChatMessage{Role: model.RoleSystem, Content: p.SystemPrompt})
	if p.MemoryBlock != "" {
		msgs = append(msgs, ChatMessage{Role: model.RoleSystem, Content: p.MemoryBlock})
	}
	msgs = append(msgs, WindowHistory(p.History)...)

	reqBody := chatRequest{
		Model:       c.model,
		Messages:    msgs,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(&reqBody).
		Post("/v1/chat/completions")
	if err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrUpstream, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("%w: status %d: %s", model.ErrUpstream, resp.StatusCode(), resp.String())
	}

	var cr chatResponse
	if err := json.Unmarshal(resp.Body(), &cr); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", model.ErrUpstream, err)
	}
	if len(cr.Choices) == 0 || cr.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("%w: no completion choice returned", model.ErrUpstream)
	}
	return cr.Choices[0].Message.Content, nil
}
