package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/example/visitor-desk/internal/application"
	"github.com/example/visitor-desk/internal/logging"
	"github.com/example/visitor-desk/internal/metrics"
)

type tokenStub struct {
	mu       sync.Mutex
	token    string
	err      error
	rejected int
}

func (s *tokenStub) Token(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	if s.token == "" {
		return "", application.ErrNotAuthenticated
	}
	return s.token, nil
}

func (s *tokenStub) HandleAuthFailure(context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejected++
	s.token = ""
}

// recordedRequest captures what the backend received.
type recordedRequest struct {
	Method    string
	Path      string
	Query     string
	Auth      string
	RequestID string
	Body      map[string]any
}

type backend struct {
	t        *testing.T
	mu       sync.Mutex
	requests []recordedRequest
	handler  func(w http.ResponseWriter, r *http.Request)
}

func newBackend(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*backend, *httptest.Server) {
	t.Helper()
	b := &backend{t: t, handler: handler}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recordedRequest{
			Method:    r.Method,
			Path:      r.URL.Path,
			Query:     r.URL.RawQuery,
			Auth:      r.Header.Get("Authorization"),
			RequestID: r.Header.Get(RequestIDHeader),
		}
		if raw, _ := io.ReadAll(r.Body); len(raw) > 0 {
			if err := json.Unmarshal(raw, &rec.Body); err != nil {
				t.Errorf("backend received invalid JSON: %v", err)
			}
		}
		b.mu.Lock()
		b.requests = append(b.requests, rec)
		b.mu.Unlock()
		b.handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return b, srv
}

func (b *backend) calls() []recordedRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]recordedRequest(nil), b.requests...)
}

func respond(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func newTestClient(srv *httptest.Server, tokens *tokenStub, opts ...Option) *Client {
	base := []Option{
		WithTokenSource(tokens),
		WithAuthFailureHandler(tokens),
		WithLocation(time.UTC),
		WithRequestIDGenerator(func() string { return "req-generated" }),
	}
	return New(srv.URL+"/api/", append(base, opts...)...)
}

func TestProtectedCallWithoutTokenMakesNoRequest(t *testing.T) {
	t.Parallel()

	b, srv := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, `{"visitors":[]}`)
	})
	client := newTestClient(srv, &tokenStub{})

	_, err := client.ListVisitors(context.Background(), application.ListVisitorsParams{})
	if !errors.Is(err, application.ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
	if len(b.calls()) != 0 {
		t.Fatalf("expected no backend call, got %d", len(b.calls()))
	}
}

func TestRequestCarriesBearerAndRequestID(t *testing.T) {
	t.Parallel()

	b, srv := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, `{"visitors":[]}`)
	})
	client := newTestClient(srv, &tokenStub{token: "abc"})

	if _, err := client.ListVisitors(context.Background(), application.ListVisitorsParams{}); err != nil {
		t.Fatalf("ListVisitors returned error: %v", err)
	}
	ctx := logging.ContextWithRequestID(context.Background(), "req-from-context")
	if _, err := client.ListVisitors(ctx, application.ListVisitorsParams{}); err != nil {
		t.Fatalf("ListVisitors returned error: %v", err)
	}

	calls := b.calls()
	if calls[0].Auth != "Bearer abc" {
		t.Fatalf("unexpected Authorization header %q", calls[0].Auth)
	}
	if calls[0].RequestID != "req-generated" || calls[1].RequestID != "req-from-context" {
		t.Fatalf("unexpected request ids %q, %q", calls[0].RequestID, calls[1].RequestID)
	}
	if calls[0].Path != "/api/visitors" {
		t.Fatalf("unexpected path %q", calls[0].Path)
	}
}

func TestLogin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    int
		body      string
		wantErr   error
		wantToken string
		wantID    string
	}{
		{
			name:      "normalises integer ids",
			status:    http.StatusOK,
			body:      `{"access_token":"jwt-token","user":{"id":7,"username":"alice","email":"a@example.com","department":"Ops","role":"security"}}`,
			wantToken: "jwt-token",
			wantID:    "7",
		},
		{
			name:    "maps 401 to invalid credentials",
			status:  http.StatusUnauthorized,
			body:    `{"message":"Invalid credentials"}`,
			wantErr: application.ErrInvalidCredentials,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b, srv := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
				respond(w, tt.status, tt.body)
			})
			tokens := &tokenStub{}
			client := newTestClient(srv, tokens)

			result, err := client.Login(context.Background(), "alice", "secret")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				if tokens.rejected != 0 {
					t.Fatalf("login failure must not run the auth failure hook")
				}
				return
			}
			if err != nil {
				t.Fatalf("Login returned error: %v", err)
			}
			if result.Token != tt.wantToken || result.Profile.ID != tt.wantID {
				t.Fatalf("unexpected login result %+v", result)
			}
			if result.Profile.Role != application.RoleSecurity || result.Profile.Name != "alice" {
				t.Fatalf("unexpected profile %+v", result.Profile)
			}
			req := b.calls()[0]
			if req.Auth != "" {
				t.Fatalf("login must not send a bearer token, got %q", req.Auth)
			}
			if req.Body["username"] != "alice" || req.Body["password"] != "secret" {
				t.Fatalf("unexpected login body %+v", req.Body)
			}
		})
	}
}

func TestErrorClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		status       int
		body         string
		wantIs       error
		wantBusiness *application.BusinessError
		wantRejected int
	}{
		{name: "401 rejects the token", status: http.StatusUnauthorized, body: `{"msg":"Token has expired"}`, wantIs: application.ErrAuthenticationRejected, wantRejected: 1},
		{name: "422 from the token layer", status: http.StatusUnprocessableEntity, body: `{"msg":"Signature verification failed"}`, wantIs: application.ErrAuthenticationRejected, wantRejected: 1},
		{name: "403 is unauthorized", status: http.StatusForbidden, body: `{"message":"Unauthorized"}`, wantIs: application.ErrUnauthorized},
		{name: "404 without message", status: http.StatusNotFound, body: `<html>Not Found</html>`, wantIs: application.ErrNotFound},
		{name: "404 with message", status: http.StatusNotFound, body: `{"message":"Meeting request not found for this user"}`, wantBusiness: &application.BusinessError{Status: 404, Message: "Meeting request not found for this user"}},
		{name: "400 business rule", status: http.StatusBadRequest, body: `{"message":"Approval Window Expired"}`, wantBusiness: &application.BusinessError{Status: 400, Message: "Approval Window Expired"}},
		{name: "500 without body", status: http.StatusInternalServerError, body: ``, wantBusiness: &application.BusinessError{Status: 500}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, srv := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
				respond(w, tt.status, tt.body)
			})
			tokens := &tokenStub{token: "abc"}
			client := newTestClient(srv, tokens)

			_, err := client.GetVisitor(context.Background(), "3")
			if tt.wantIs != nil && !errors.Is(err, tt.wantIs) {
				t.Fatalf("expected %v, got %v", tt.wantIs, err)
			}
			if tt.wantBusiness != nil {
				var bErr *application.BusinessError
				if !errors.As(err, &bErr) {
					t.Fatalf("expected BusinessError, got %v", err)
				}
				if *bErr != *tt.wantBusiness {
					t.Fatalf("unexpected business error %+v", bErr)
				}
			}
			if tokens.rejected != tt.wantRejected {
				t.Fatalf("expected %d auth failures reported, got %d", tt.wantRejected, tokens.rejected)
			}
		})
	}
}

func TestTransportErrors(t *testing.T) {
	t.Parallel()

	t.Run("unreachable backend", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close()
		client := newTestClient(srv, &tokenStub{token: "abc"})

		_, err := client.GetVisitor(context.Background(), "3")
		var tErr *application.TransportError
		if !errors.As(err, &tErr) {
			t.Fatalf("expected TransportError, got %v", err)
		}
		if tErr.Op != "get_visitor" {
			t.Fatalf("unexpected op %q", tErr.Op)
		}
	})

	t.Run("undecodable body", func(t *testing.T) {
		t.Parallel()
		_, srv := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
			respond(w, http.StatusOK, `{"visitor":`)
		})
		client := newTestClient(srv, &tokenStub{token: "abc"})

		_, err := client.GetVisitor(context.Background(), "3")
		var tErr *application.TransportError
		if !errors.As(err, &tErr) {
			t.Fatalf("expected TransportError, got %v", err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()
		_, srv := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
			respond(w, http.StatusOK, `{"visitors":[]}`)
		})
		client := newTestClient(srv, &tokenStub{token: "abc"})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := client.ListVisitors(ctx, application.ListVisitorsParams{})
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled in chain, got %v", err)
		}
	})
}

func TestCallsAreCountedInMetrics(t *testing.T) {
	t.Parallel()

	_, srv := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusForbidden, `{"message":"Unauthorized"}`)
	})
	registry := metrics.NewRegistry()
	client := newTestClient(srv, &tokenStub{token: "abc"}, WithMetrics(registry))

	_, _ = client.ListUsers(context.Background())

	rec := httptest.NewRecorder()
	registry.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	want := `visitordesk_api_requests_total{operation="list_users",outcome="unauthorized"} 1`
	if !strings.Contains(rec.Body.String(), want) {
		t.Fatalf("expected metrics to contain %q", want)
	}
}
