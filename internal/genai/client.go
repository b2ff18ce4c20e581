// Package genai wraps an OpenAI-compatible chat completion API.
package genai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/starford/blogsync/internal/apperr"
)

// DefaultModel is used when no model is configured.
const DefaultModel = openai.GPT4oMini

// Config captures the runtime settings required to talk to the API.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Client issues single-prompt chat completions.
type Client struct {
	api   *openai.Client
	model string
}

// NewClient constructs a client. httpClient may be nil.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	oc := openai.DefaultConfig(strings.TrimSpace(cfg.APIKey))
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		oc.BaseURL = strings.TrimSuffix(base, "/")
	}
	if httpClient != nil {
		oc.HTTPClient = httpClient
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	return &Client{api: openai.NewClientWithConfig(oc), model: model}
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

// Complete sends prompt as a single user message and returns the text of
// the first non-empty choice.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("genai: empty prompt: %w", apperr.ErrInvalidInput)
	}
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("genai: http %d: %w: %s", apiErr.HTTPStatusCode, apperr.ErrTransport, apiErr.Message)
		}
		return "", fmt.Errorf("genai: request: %w: %w", apperr.ErrTransport, err)
	}

	var finishReason string
	for _, choice := range resp.Choices {
		if finishReason == "" {
			finishReason = string(choice.FinishReason)
		}
		if content := strings.TrimSpace(choice.Message.Content); content != "" {
			return choice.Message.Content, nil
		}
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("genai: empty choices: %w", apperr.ErrGenerationFailure)
	}
	return "", fmt.Errorf("genai: empty content (finish_reason=%q): %w", finishReason, apperr.ErrGenerationFailure)
}
