package application

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type chatAPIStub struct {
	history  []ChatMessage
	saved    []ChatMessage
	system   []ChatMessage
	histErr  error
	saveErrs []error
}

func (s *chatAPIStub) ChatHistory(_ context.Context, path string) ([]ChatMessage, error) {
	return s.history, s.histErr
}

func (s *chatAPIStub) SaveChatMessage(_ context.Context, message ChatMessage) (ChatMessage, error) {
	var err error
	if len(s.saveErrs) > 0 {
		err, s.saveErrs = s.saveErrs[0], s.saveErrs[1:]
	}
	if err != nil {
		return ChatMessage{}, err
	}
	message.ID = itoa(len(s.saved) + 1)
	s.saved = append(s.saved, message)
	return message, nil
}

func (s *chatAPIStub) SystemMessages(context.Context, string) ([]ChatMessage, error) {
	return s.system, nil
}

func (s *chatAPIStub) SaveSystemMessage(_ context.Context, message ChatMessage) (ChatMessage, error) {
	s.system = append(s.system, message)
	return message, nil
}

type completionStub struct {
	reply   string
	err     error
	prompts [][]ChatMessage
}

func (c *completionStub) Complete(_ context.Context, messages []ChatMessage) (string, error) {
	c.prompts = append(c.prompts, messages)
	return c.reply, c.err
}

func TestChatService_Send(t *testing.T) {
	t.Parallel()

	t.Run("stores both messages and returns the reply", func(t *testing.T) {
		t.Parallel()

		api := &chatAPIStub{}
		completion := &completionStub{reply: "Scan the visitor's QR code."}
		svc := NewChatService(api, completion, newSessionStub("1", RoleSecurity), nil)

		result, err := svc.Send(context.Background(), "/visitors/check-in", " how do I check in? ", nil)
		if err != nil {
			t.Fatalf("Send returned error: %v", err)
		}
		if result.Reply.Content != "Scan the visitor's QR code." || result.Reply.ID != "2" {
			t.Fatalf("unexpected reply %+v", result.Reply)
		}
		if len(api.saved) != 2 || api.saved[0].Role != ChatUser || api.saved[0].Content != "how do I check in?" {
			t.Fatalf("unexpected saved messages %+v", api.saved)
		}
		prompt := completion.prompts[0]
		if prompt[0].Role != ChatSystem || !strings.Contains(prompt[0].Content, "scanning their QR codes") {
			t.Fatalf("expected page context system prompt, got %+v", prompt[0])
		}
	})

	t.Run("keeps only recent history in the prompt", func(t *testing.T) {
		t.Parallel()

		history := make([]ChatMessage, 0, 8)
		for i := 0; i < 8; i++ {
			history = append(history, ChatMessage{Role: ChatUser, Content: itoa(i)})
		}
		completion := &completionStub{reply: "ok"}
		svc := NewChatService(&chatAPIStub{}, completion, newSessionStub("1", RoleSecurity), nil)

		if _, err := svc.Send(context.Background(), "/dashboard", "latest", history); err != nil {
			t.Fatalf("Send returned error: %v", err)
		}
		prompt := completion.prompts[0]
		if len(prompt) != 1+chatHistorySize {
			t.Fatalf("expected %d prompt messages, got %d", 1+chatHistorySize, len(prompt))
		}
		if prompt[len(prompt)-1].Content != "latest" || prompt[1].Content != "4" {
			t.Fatalf("unexpected prompt window %+v", prompt)
		}
	})

	t.Run("continues after the user message fails to save", func(t *testing.T) {
		t.Parallel()

		api := &chatAPIStub{saveErrs: []error{&TransportError{Op: "save chat message", Err: errors.New("down")}}}
		svc := NewChatService(api, &completionStub{reply: "hello"}, newSessionStub("1", RoleSecurity), nil)

		result, err := svc.Send(context.Background(), "/", "hi", nil)
		if err == nil {
			t.Fatal("expected joined stage error")
		}
		if !result.Failed(StageSaveUser) || result.Failed(StageComplete) || result.Failed(StageSaveAssistant) {
			t.Fatalf("unexpected failures %+v", result.Failures)
		}
		if result.Reply.Content != "hello" {
			t.Fatalf("reply must still be delivered, got %+v", result.Reply)
		}
		var tErr *TransportError
		if !errors.As(err, &tErr) {
			t.Fatalf("expected transport error in chain, got %v", err)
		}
	})

	t.Run("completion failure yields the fallback and skips saving it", func(t *testing.T) {
		t.Parallel()

		api := &chatAPIStub{}
		svc := NewChatService(api, &completionStub{err: errors.New("rate limited")}, newSessionStub("1", RoleSecurity), nil)

		result, err := svc.Send(context.Background(), "/", "hi", nil)
		if err == nil {
			t.Fatal("expected error")
		}
		if result.Reply.Content != chatFallback {
			t.Fatalf("expected fallback reply, got %q", result.Reply.Content)
		}
		if !result.Failed(StageComplete) || !result.Failed(StageSaveAssistant) {
			t.Fatalf("unexpected failures %+v", result.Failures)
		}
		var skipped bool
		for _, f := range result.Failures {
			if f.Stage == StageSaveAssistant {
				skipped = f.Skipped
			}
		}
		if !skipped {
			t.Fatal("assistant save must be reported as skipped")
		}
		if len(api.saved) != 1 {
			t.Fatalf("only the user message may be stored, got %+v", api.saved)
		}
	})

	t.Run("rejects an empty message", func(t *testing.T) {
		t.Parallel()

		completion := &completionStub{reply: "x"}
		svc := NewChatService(&chatAPIStub{}, completion, newSessionStub("1", RoleSecurity), nil)

		var vErr *ValidationError
		if _, err := svc.Send(context.Background(), "/", "   ", nil); !errors.As(err, &vErr) {
			t.Fatalf("expected validation error, got %v", err)
		}
		if len(completion.prompts) != 0 {
			t.Fatal("expected no completion call")
		}
	})
}

func TestChatService_History(t *testing.T) {
	t.Parallel()

	t.Run("falls back to the welcome message", func(t *testing.T) {
		t.Parallel()

		api := &chatAPIStub{histErr: errors.New("boom")}
		svc := NewChatService(api, nil, newSessionStub("1", RoleSecurity), nil)

		messages := svc.History(context.Background(), "/dashboard")
		if len(messages) != 1 || messages[0].Content != chatWelcome {
			t.Fatalf("unexpected history %+v", messages)
		}
	})

	t.Run("returns stored messages", func(t *testing.T) {
		t.Parallel()

		api := &chatAPIStub{history: []ChatMessage{{ID: "1", Role: ChatUser, Content: "hello"}}}
		svc := NewChatService(api, nil, newSessionStub("1", RoleSecurity), nil)

		if messages := svc.History(context.Background(), "/"); len(messages) != 1 || messages[0].ID != "1" {
			t.Fatalf("unexpected history %+v", messages)
		}
	})
}

func TestPageContext(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"/visitors/new":     "registering a new visitor",
		"/meetings/respond": "approving or rejecting",
		"/dashboard":        "visitor statistics",
		"/somewhere/else":   "navigate the system",
	}
	for path, fragment := range cases {
		if got := PageContext(path); !strings.Contains(got, fragment) {
			t.Fatalf("PageContext(%q) = %q, want fragment %q", path, got, fragment)
		}
	}
}
