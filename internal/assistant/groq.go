// Package assistant produces chat replies through an OpenAI compatible
// completion API such as Groq.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/example/visitor-desk/internal/application"
	"github.com/example/visitor-desk/internal/logging"
)

// Defaults used by the Groq deployment of the assistant.
const (
	DefaultBaseURL     = "https://api.groq.com/openai/v1"
	DefaultModel       = "llama3-8b-8192"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 500
)

var (
	// ErrNotConfigured is returned when no API key was provided.
	ErrNotConfigured = errors.New("assistant: completion API key is not configured")
	errNoChoices     = errors.New("assistant: completion returned no choices")
)

// Client implements application.CompletionClient.
type Client struct {
	api         *openai.Client
	model       string
	temperature float32
	maxTokens   int
	logger      *slog.Logger
}

// Settings configures a Client.
type Settings struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
	Logger      *slog.Logger
}

// New constructs a Client. A missing key yields a client whose every call
// fails with ErrNotConfigured.
func New(settings Settings) *Client {
	c := &Client{
		model:       fallback(settings.Model, DefaultModel),
		temperature: settings.Temperature,
		maxTokens:   settings.MaxTokens,
		logger:      settings.Logger,
	}
	if c.temperature <= 0 {
		c.temperature = DefaultTemperature
	}
	if c.maxTokens <= 0 {
		c.maxTokens = DefaultMaxTokens
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	key := strings.TrimSpace(settings.APIKey)
	if key == "" {
		return c
	}
	cfg := openai.DefaultConfig(key)
	cfg.BaseURL = strings.TrimRight(fallback(settings.BaseURL, DefaultBaseURL), "/")
	if settings.Timeout > 0 {
		cfg.HTTPClient = &http.Client{Timeout: settings.Timeout}
	}
	c.api = openai.NewClientWithConfig(cfg)
	return c
}

var _ application.CompletionClient = (*Client)(nil)

// Complete returns the model's reply to messages.
func (c *Client) Complete(ctx context.Context, messages []application.ChatMessage) (reply string, err error) {
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = c.logger
	}
	logger = logger.With("component", "assistant", "model", c.model)
	started := time.Now()
	defer func() {
		if err != nil {
			logger.WarnContext(ctx, "completion failed", "error", err, "duration", time.Since(started))
			return
		}
		logger.DebugContext(ctx, "completion received", "duration", time.Since(started), "reply_length", len(reply))
	}()

	if c.api == nil {
		return "", ErrNotConfigured
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    toOpenAI(messages),
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("assistant: completion rejected with status %d: %w", apiErr.HTTPStatusCode, err)
		}
		return "", fmt.Errorf("assistant: request completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errNoChoices
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func toOpenAI(messages []application.ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case application.ChatAssistant:
			role = openai.ChatMessageRoleAssistant
		case application.ChatSystem:
			role = openai.ChatMessageRoleSystem
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return out
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return strings.TrimSpace(value)
}
