package api

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/example/visitor-desk/internal/application"
)

func TestDashboardStats(t *testing.T) {
	t.Parallel()

	_, srv := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, `{"total_visitors":12,"today_visitors":3,"checked_in":2,"pending":4,`+
			`"status_distribution":{"pending":4,"approved":6,"checked_in":2},`+
			`"hourly_expected":{"09:00":2},"daily_trend":{"2025-04-10":3},"avg_visit_duration":45.5,`+
			`"pre_approved_count":5,"no_photo_count":1,`+
			`"recent_checked_out":[{"id":4,"full_name":"Grace Hopper","status":"checked_out","ago":"5 minutes ago"}]}`)
	})
	client := newTestClient(srv, &tokenStub{token: "abc"})

	stats, err := client.DashboardStats(context.Background())
	if err != nil {
		t.Fatalf("DashboardStats returned error: %v", err)
	}
	if stats.TotalVisitors != 12 || stats.CheckedIn != 2 || stats.AvgVisitDuration != 45.5 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if stats.StatusDistribution[application.VisitorApproved] != 6 {
		t.Fatalf("unexpected distribution %+v", stats.StatusDistribution)
	}
	if len(stats.RecentCheckedOut) != 1 || stats.RecentCheckedOut[0].ID != "4" || stats.RecentCheckedOut[0].Ago != "5 minutes ago" {
		t.Fatalf("unexpected recent list %+v", stats.RecentCheckedOut)
	}
}

func TestChatHistorySendsPath(t *testing.T) {
	t.Parallel()

	b, srv := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, `{"messages":[{"id":1,"content":"hello","role":"user","timestamp":"2025-04-10T09:00:00.5","path":"/visitors"}]}`)
	})
	client := newTestClient(srv, &tokenStub{token: "abc"}, WithLocation(time.FixedZone("X", 3*3600)))

	messages, err := client.ChatHistory(context.Background(), "/visitors")
	if err != nil {
		t.Fatalf("ChatHistory returned error: %v", err)
	}
	req := b.calls()[0]
	query, _ := url.ParseQuery(req.Query)
	if req.Path != "/api/chat/history" || query.Get("path") != "/visitors" {
		t.Fatalf("unexpected request %s?%s", req.Path, req.Query)
	}
	want := time.Date(2025, 4, 10, 9, 0, 0, 500000000, time.UTC)
	if len(messages) != 1 || messages[0].Role != application.ChatUser || !messages[0].Timestamp.Equal(want) {
		t.Fatalf("chat timestamps must be read as UTC, got %+v", messages)
	}
}

func TestSaveMessages(t *testing.T) {
	t.Parallel()

	b, srv := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusCreated, `{"id":5,"content":"hi","role":"assistant","timestamp":"2025-04-10T09:00:00","path":"/"}`)
	})
	client := newTestClient(srv, &tokenStub{token: "abc"})
	ctx := context.Background()

	saved, err := client.SaveChatMessage(ctx, application.ChatMessage{Role: application.ChatAssistant, Content: "hi", Path: "/"})
	if err != nil {
		t.Fatalf("SaveChatMessage returned error: %v", err)
	}
	if saved.ID != "5" {
		t.Fatalf("unexpected saved message %+v", saved)
	}
	if _, err := client.SaveSystemMessage(ctx, application.ChatMessage{Role: application.ChatSystem, Content: "context", Path: "/"}); err != nil {
		t.Fatalf("SaveSystemMessage returned error: %v", err)
	}

	calls := b.calls()
	if calls[0].Path != "/api/chat/message" || calls[0].Body["role"] != "assistant" || calls[0].Body["content"] != "hi" {
		t.Fatalf("unexpected chat request %+v", calls[0])
	}
	if calls[1].Path != "/api/chat/system" || calls[1].Body["content"] != "context" {
		t.Fatalf("unexpected system request %+v", calls[1])
	}
	if _, ok := calls[1].Body["role"]; ok {
		t.Fatalf("system messages must not send a role")
	}
}
