package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/example/visitor-desk/internal/application"
)

type emailServer struct {
	mu       sync.Mutex
	requests []sendRequest
}

func newEmailServer(t *testing.T, status int, body string) (*emailServer, *httptest.Server) {
	t.Helper()
	s := &emailServer{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var req sendRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			t.Errorf("invalid email request: %v", err)
		}
		s.mu.Lock()
		s.requests = append(s.requests, req)
		s.mu.Unlock()
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return s, srv
}

func (s *emailServer) last() sendRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[len(s.requests)-1]
}

var testTemplates = Templates{
	Registered:  "tpl-registered",
	PreApproved: "tpl-preapproved",
	Approved:    "tpl-approved",
	Rejected:    "tpl-rejected",
}

func newTestNotifier(srv *httptest.Server) *Client {
	return New("service-1", "public-key", testTemplates,
		WithEndpoint(srv.URL),
		WithLocation(time.UTC),
		WithClock(func() time.Time { return time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC) }),
	)
}

func TestNotifySelectsTemplatePerKind(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 4, 10, 9, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)
	visitor := application.Visitor{ID: "42", FullName: "Ada Lovelace", Email: "ada@example.com", Purpose: "Demo"}
	windowed := visitor
	windowed.ApprovalWindowStart = &start
	windowed.ApprovalWindowEnd = &end
	token := &application.CheckInToken{VisitorID: "42", URL: "http://desk/visitors/42/check-in", DataURL: "data:image/png;base64,AAAA"}

	tests := []struct {
		name         string
		notification application.Notification
		wantTemplate string
		wantParams   map[string]string
	}{
		{
			name:         "registered",
			notification: application.Notification{Kind: application.NotifyRegistered, Visitor: visitor},
			wantTemplate: "tpl-registered",
			wantParams:   map[string]string{"status": "pending", "visit_date": "Apr 01, 2025", "host_id": "N/A", "approval_start": "N/A"},
		},
		{
			name:         "pre-approved carries the code",
			notification: application.Notification{Kind: application.NotifyPreApproved, Visitor: windowed, Token: token},
			wantTemplate: "tpl-preapproved",
			wantParams: map[string]string{
				"qr_code":        "data:image/png;base64,AAAA",
				"visit_date":     "Apr 10, 2025",
				"approval_start": "Apr 10, 2025 09:00",
				"approval_end":   "Apr 10, 2025 11:00",
				"status":         "approved",
			},
		},
		{
			name:         "approved",
			notification: application.Notification{Kind: application.NotifyApproved, Visitor: visitor, Token: token},
			wantTemplate: "tpl-approved",
			wantParams:   map[string]string{"check_in_url": "http://desk/visitors/42/check-in", "name": "Ada Lovelace"},
		},
		{
			name:         "rejected",
			notification: application.Notification{Kind: application.NotifyRejected, Visitor: visitor, Reason: "No host"},
			wantTemplate: "tpl-rejected",
			wantParams:   map[string]string{"status": "rejected", "reason": "No host", "qr_code": ""},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server, srv := newEmailServer(t, http.StatusOK, "OK")
			if err := newTestNotifier(srv).Notify(context.Background(), tt.notification); err != nil {
				t.Fatalf("Notify returned error: %v", err)
			}
			req := server.last()
			if req.ServiceID != "service-1" || req.UserID != "public-key" || req.TemplateID != tt.wantTemplate {
				t.Fatalf("unexpected request envelope %+v", req)
			}
			for key, want := range tt.wantParams {
				if got := req.TemplateParams[key]; got != want {
					t.Fatalf("param %s: expected %q, got %q", key, want, got)
				}
			}
			if req.TemplateParams["email"] != "ada@example.com" {
				t.Fatalf("recipient email missing from params")
			}
		})
	}
}

func TestNotifyReportsDeliveryFailure(t *testing.T) {
	t.Parallel()

	_, srv := newEmailServer(t, http.StatusBadRequest, "The template ID is invalid")
	err := newTestNotifier(srv).Notify(context.Background(), application.Notification{
		Kind:    application.NotifyApproved,
		Visitor: application.Visitor{ID: "42", Email: "ada@example.com"},
	})

	var dErr *DeliveryError
	if !errors.As(err, &dErr) {
		t.Fatalf("expected DeliveryError, got %v", err)
	}
	if dErr.Status != http.StatusBadRequest || dErr.Text != "The template ID is invalid" {
		t.Fatalf("unexpected delivery error %+v", dErr)
	}
}

func TestNotifyWithoutTemplateMakesNoRequest(t *testing.T) {
	t.Parallel()

	server, srv := newEmailServer(t, http.StatusOK, "OK")
	client := New("service-1", "public-key", Templates{}, WithEndpoint(srv.URL))

	err := client.Notify(context.Background(), application.Notification{Kind: application.NotifyApproved})
	if !errors.Is(err, errNoTemplate) {
		t.Fatalf("expected errNoTemplate, got %v", err)
	}
	server.mu.Lock()
	defer server.mu.Unlock()
	if len(server.requests) != 0 {
		t.Fatalf("expected no request, got %d", len(server.requests))
	}
}
