package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ChatAPI exposes the backend transcript endpoints.
type ChatAPI interface {
	ChatHistory(ctx context.Context, path string) ([]ChatMessage, error)
	SaveChatMessage(ctx context.Context, message ChatMessage) (ChatMessage, error)
	SystemMessages(ctx context.Context, path string) ([]ChatMessage, error)
	SaveSystemMessage(ctx context.Context, message ChatMessage) (ChatMessage, error)
}

// CompletionClient produces an assistant reply for a conversation.
type CompletionClient interface {
	Complete(ctx context.Context, messages []ChatMessage) (string, error)
}

// ChatStage names one step of the chat pipeline.
type ChatStage string

const (
	StageSaveUser      ChatStage = "save_user_message"
	StageComplete      ChatStage = "completion"
	StageSaveAssistant ChatStage = "save_assistant_message"
)

// ChatStageError reports the failure, or skip, of one pipeline stage.
type ChatStageError struct {
	Stage   ChatStage
	Skipped bool
	Err     error
}

// Error implements the error interface.
func (e *ChatStageError) Error() string {
	if e == nil {
		return ""
	}
	if e.Skipped {
		return fmt.Sprintf("chat %s skipped: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("chat %s failed: %v", e.Stage, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *ChatStageError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

var errCompletionUnavailable = errors.New("no assistant reply to save")

// ChatResult is the outcome of one Send.
type ChatResult struct {
	Reply    ChatMessage
	Failures []*ChatStageError
}

// Failed reports whether stage failed or was skipped.
func (r ChatResult) Failed(stage ChatStage) bool {
	for _, f := range r.Failures {
		if f.Stage == stage {
			return true
		}
	}
	return false
}

// Err joins every stage failure, or returns nil.
func (r ChatResult) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Failures))
	for _, f := range r.Failures {
		errs = append(errs, f)
	}
	return errors.Join(errs...)
}

const (
	chatWelcome     = "Hi there! How can I help you with your visit today?"
	chatFallback    = "Sorry, I encountered an error. Please try again later."
	chatHistorySize = 5
)

// ChatService runs the page aware assistant pipeline.
type ChatService struct {
	api        ChatAPI
	completion CompletionClient
	session    SessionGate
	logger     *slog.Logger
}

// NewChatService constructs a ChatService.
func NewChatService(api ChatAPI, completion CompletionClient, session SessionGate, logger *slog.Logger) *ChatService {
	return &ChatService{api: api, completion: completion, session: session, logger: defaultLogger(logger)}
}

func (s *ChatService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ChatService", operation, attrs...)
}

// History loads the transcript for path. Failures are logged and the default
// welcome message is returned instead.
func (s *ChatService) History(ctx context.Context, path string) []ChatMessage {
	welcome := []ChatMessage{{Role: ChatAssistant, Content: chatWelcome, Path: path}}
	if s == nil || s.api == nil {
		return welcome
	}
	if _, err := requirePrincipal(ctx, s.session); err != nil {
		return welcome
	}
	messages, err := s.api.ChatHistory(ctx, path)
	if err != nil {
		s.loggerWith(ctx, "History", "path", path).WarnContext(ctx, "failed to load chat history", "error", err, "error_kind", ErrorKind(err))
		return welcome
	}
	if len(messages) == 0 {
		return welcome
	}
	return messages
}

// Send stores the user message, asks the model for a reply and stores the reply.
//
// Every stage runs even when an earlier persistence stage failed; each failure
// is reported on the result. When the model call fails the reply is a
// fallback text and storing it is reported as skipped.
func (s *ChatService) Send(ctx context.Context, path, content string, history []ChatMessage) (result ChatResult, err error) {
	if s == nil || s.api == nil || s.completion == nil {
		err = fmt.Errorf("chat dependencies not configured")
		return
	}
	content = strings.TrimSpace(content)
	if content == "" {
		vErr := &ValidationError{}
		vErr.add("content", "Please enter a message")
		err = vErr
		return
	}
	if _, err = requirePrincipal(ctx, s.session); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "Send", "path", path)
	fail := func(stage ChatStage, skipped bool, cause error) {
		f := &ChatStageError{Stage: stage, Skipped: skipped, Err: cause}
		result.Failures = append(result.Failures, f)
		logger.ErrorContext(ctx, "chat stage failed", "stage", stage, "skipped", skipped, "error", cause, "error_kind", ErrorKind(cause))
	}

	userMessage := ChatMessage{Role: ChatUser, Content: content, Path: path}
	if _, saveErr := s.api.SaveChatMessage(ctx, userMessage); saveErr != nil {
		fail(StageSaveUser, false, saveErr)
	}

	conversation := append(append([]ChatMessage(nil), history...), userMessage)
	if len(conversation) > chatHistorySize {
		conversation = conversation[len(conversation)-chatHistorySize:]
	}
	prompt := append([]ChatMessage{{Role: ChatSystem, Content: PageContext(path), Path: path}}, conversation...)

	reply, completeErr := s.completion.Complete(ctx, prompt)
	if completeErr != nil || strings.TrimSpace(reply) == "" {
		if completeErr == nil {
			completeErr = errors.New("empty completion")
		}
		fail(StageComplete, false, completeErr)
		fail(StageSaveAssistant, true, errCompletionUnavailable)
		result.Reply = ChatMessage{Role: ChatAssistant, Content: chatFallback, Path: path}
		err = result.Err()
		return
	}

	result.Reply = ChatMessage{Role: ChatAssistant, Content: reply, Path: path}
	if saved, saveErr := s.api.SaveChatMessage(ctx, result.Reply); saveErr != nil {
		fail(StageSaveAssistant, false, saveErr)
	} else {
		result.Reply = saved
	}

	err = result.Err()
	if err == nil {
		logger.InfoContext(ctx, "chat reply delivered")
	}
	return
}

// SystemMessages returns the system transcript stored for path.
func (s *ChatService) SystemMessages(ctx context.Context, path string) ([]ChatMessage, error) {
	if s == nil || s.api == nil {
		return nil, fmt.Errorf("chat dependencies not configured")
	}
	if _, err := requirePrincipal(ctx, s.session); err != nil {
		return nil, err
	}
	return s.api.SystemMessages(ctx, path)
}

// SaveSystemMessage stores a system message for path.
func (s *ChatService) SaveSystemMessage(ctx context.Context, path, content string) (ChatMessage, error) {
	if s == nil || s.api == nil {
		return ChatMessage{}, fmt.Errorf("chat dependencies not configured")
	}
	if _, err := requirePrincipal(ctx, s.session); err != nil {
		return ChatMessage{}, err
	}
	return s.api.SaveSystemMessage(ctx, ChatMessage{Role: ChatSystem, Content: strings.TrimSpace(content), Path: path})
}

const baseChatContext = "You are a helpful assistant for a visitor management system. " +
	"It covers visitor registration, visitor check-in and check-out, meeting scheduling and approvals, " +
	"and visitor and meeting status. Reply concisely and stay on the current page's task."

var pageContexts = []struct {
	fragment string
	context  string
}{
	{"/visitors/new", "The user is registering a new visitor and may need help with required fields or pre-approval."},
	{"/visitors/check-in", "The user is checking visitors in by scanning their QR codes."},
	{"/visitors/check-out", "The user is recording visitors leaving the premises."},
	{"/visitors/pending", "The user is reviewing visitors waiting for approval."},
	{"/meetings/request", "The user is requesting a meeting with one or more recipients."},
	{"/meetings/respond", "The user is approving or rejecting incoming meeting requests."},
	{"/meetings/status", "The user is reviewing sent and received meetings and their statuses."},
	{"/dashboard", "The user is on the dashboard with visitor statistics."},
}

// PageContext returns the system prompt for the page at path.
func PageContext(path string) string {
	for _, page := range pageContexts {
		if strings.Contains(path, page.fragment) {
			return baseChatContext + "\n" + page.context
		}
	}
	return baseChatContext + "\nHelp the user navigate the system and its features."
}
