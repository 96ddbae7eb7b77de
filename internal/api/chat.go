package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/example/visitor-desk/internal/application"
)

var (
	_ application.ChatAPI      = (*Client)(nil)
	_ application.DashboardAPI = (*Client)(nil)
)

// DashboardStats fetches the server computed dashboard statistics.
func (c *Client) DashboardStats(ctx context.Context) (application.DashboardStats, error) {
	var out dashboardDTO
	if _, err := c.do(ctx, call{op: "dashboard_stats", method: http.MethodGet, path: "/dashboard/stats"}, &out); err != nil {
		return application.DashboardStats{}, err
	}
	return out.stats(), nil
}

// ChatHistory returns the caller's messages for path, oldest first.
func (c *Client) ChatHistory(ctx context.Context, path string) ([]application.ChatMessage, error) {
	return c.chatMessages(ctx, "chat_history", "/chat/history", path)
}

// SaveChatMessage stores a user or assistant message.
func (c *Client) SaveChatMessage(ctx context.Context, message application.ChatMessage) (application.ChatMessage, error) {
	return c.saveChat(ctx, "save_chat_message", "/chat/message", chatMessageRequest{
		Content: message.Content,
		Role:    string(message.Role),
		Path:    message.Path,
	})
}

// SystemMessages returns the latest system message stored for path.
func (c *Client) SystemMessages(ctx context.Context, path string) ([]application.ChatMessage, error) {
	return c.chatMessages(ctx, "chat_system_messages", "/chat/system", path)
}

// SaveSystemMessage stores a system message for path.
func (c *Client) SaveSystemMessage(ctx context.Context, message application.ChatMessage) (application.ChatMessage, error) {
	return c.saveChat(ctx, "save_chat_system_message", "/chat/system", chatMessageRequest{
		Content: message.Content,
		Path:    message.Path,
	})
}

func (c *Client) chatMessages(ctx context.Context, op, endpoint, path string) ([]application.ChatMessage, error) {
	var query url.Values
	if path != "" {
		query = url.Values{"path": []string{path}}
	}
	var out chatMessagesEnvelope
	if _, err := c.do(ctx, call{op: op, method: http.MethodGet, path: endpoint, query: query}, &out); err != nil {
		return nil, err
	}
	messages := make([]application.ChatMessage, 0, len(out.Messages))
	for _, m := range out.Messages {
		messages = append(messages, m.message())
	}
	return messages, nil
}

func (c *Client) saveChat(ctx context.Context, op, endpoint string, body chatMessageRequest) (application.ChatMessage, error) {
	var out chatMessageDTO
	if _, err := c.do(ctx, call{op: op, method: http.MethodPost, path: endpoint, body: body}, &out); err != nil {
		return application.ChatMessage{}, err
	}
	return out.message(), nil
}
