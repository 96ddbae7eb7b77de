// Package api is the REST client for the visitor management backend.
//
// Every call is classified into the error taxonomy of the application
// package: a missing token short-circuits with ErrNotAuthenticated before any
// request, HTTP failures become sentinel, business or transport errors.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/visitor-desk/internal/application"
	"github.com/example/visitor-desk/internal/logging"
	"github.com/example/visitor-desk/internal/metrics"
)

// RequestIDHeader carries the correlation id of each backend call.
const RequestIDHeader = "X-Request-ID"

const (
	defaultTimeout = 30 * time.Second
	maxErrorBody   = 64 * 1024
)

// TokenSource supplies the bearer token of the current session.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// AuthFailureHandler is told when the backend rejects the bearer token.
type AuthFailureHandler interface {
	HandleAuthFailure(ctx context.Context)
}

// Client calls the backend under a base URL such as http://localhost:5000/api.
type Client struct {
	baseURL   string
	http      *http.Client
	tokens    TokenSource
	onReject  AuthFailureHandler
	metrics   *metrics.Registry
	logger    *slog.Logger
	location  *time.Location
	requestID func() string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithTimeout sets the per request timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.http.Timeout = timeout
		}
	}
}

// WithTokenSource sets where protected calls read the bearer token from.
func WithTokenSource(tokens TokenSource) Option {
	return func(c *Client) {
		c.tokens = tokens
	}
}

// WithAuthFailureHandler registers the hook run on a rejected token.
func WithAuthFailureHandler(handler AuthFailureHandler) Option {
	return func(c *Client) {
		c.onReject = handler
	}
}

// WithMetrics records call counts and latency on registry.
func WithMetrics(registry *metrics.Registry) Option {
	return func(c *Client) {
		c.metrics = registry
	}
}

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithLocation sets the zone used for the backend's zone-less timestamps.
func WithLocation(loc *time.Location) Option {
	return func(c *Client) {
		if loc != nil {
			c.location = loc
		}
	}
}

// WithRequestIDGenerator overrides how request ids are generated when the
// context does not carry one.
func WithRequestIDGenerator(next func() string) Option {
	return func(c *Client) {
		if next != nil {
			c.requestID = next
		}
	}
}

// New constructs a Client for baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{Timeout: defaultTimeout},
		logger:    slog.Default(),
		location:  time.Local,
		requestID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// call describes one backend request.
type call struct {
	op        string
	method    string
	path      string
	query     url.Values
	body      any
	public    bool
	onMessage func(status int, message string) error
}

// errorBody covers both the backend's {"message"} and the token layer's {"msg"}.
type errorBody struct {
	Message string `json:"message"`
	Msg     string `json:"msg"`
}

func (b errorBody) text() string {
	if strings.TrimSpace(b.Message) != "" {
		return strings.TrimSpace(b.Message)
	}
	return strings.TrimSpace(b.Msg)
}

// do performs the request and decodes a 2xx body into out. The status code is
// returned so callers can tell a 201 without a record from a 200.
func (c *Client) do(ctx context.Context, req call, out any) (status int, err error) {
	started := time.Now()
	requestID := logging.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = c.requestID()
	}
	logger := c.loggerWith(ctx, req.op, requestID)
	defer func() {
		elapsed := time.Since(started)
		outcome := "ok"
		if err != nil {
			outcome = application.ErrorKind(err)
		}
		c.metrics.ObserveAPICall(req.op, outcome, elapsed)
		if err != nil {
			logger.DebugContext(ctx, "backend call failed", "status", status, "duration", elapsed, "error", err, "error_kind", outcome)
			return
		}
		logger.DebugContext(ctx, "backend call completed", "status", status, "duration", elapsed)
	}()

	var token string
	if !req.public {
		if c.tokens == nil {
			err = application.ErrNotAuthenticated
			return
		}
		token, err = c.tokens.Token(ctx)
		if err != nil {
			return
		}
		if strings.TrimSpace(token) == "" {
			err = application.ErrNotAuthenticated
			return
		}
	}

	target := c.baseURL + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		payload, marshalErr := json.Marshal(req.body)
		if marshalErr != nil {
			err = fmt.Errorf("encode %s request: %w", req.op, marshalErr)
			return
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, body)
	if err != nil {
		err = &application.TransportError{Op: req.op, Err: err}
		return
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(RequestIDHeader, requestID)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		err = &application.TransportError{Op: req.op, Err: err}
		return
	}
	defer func() { _ = resp.Body.Close() }()
	status = resp.StatusCode

	if status < 200 || status >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var eb errorBody
		_ = json.Unmarshal(raw, &eb)
		err = c.classify(ctx, req, status, eb)
		return
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return
	}
	if decodeErr := json.NewDecoder(resp.Body).Decode(out); decodeErr != nil && !errors.Is(decodeErr, io.EOF) {
		err = &application.TransportError{Op: req.op, Err: fmt.Errorf("decode response: %w", decodeErr)}
	}
	return
}

// classify maps a non-2xx response to the application error taxonomy.
func (c *Client) classify(ctx context.Context, req call, status int, body errorBody) error {
	message := body.text()
	if req.onMessage != nil {
		if err := req.onMessage(status, message); err != nil {
			return err
		}
	}

	switch status {
	case http.StatusUnauthorized:
		if req.public {
			return application.ErrInvalidCredentials
		}
		c.rejectToken(ctx)
		return fmt.Errorf("%w: %s", application.ErrAuthenticationRejected, fallback(message, "token rejected"))
	case http.StatusUnprocessableEntity:
		// The token layer answers malformed tokens with 422 and a "msg" field.
		if !req.public && body.Message == "" && body.Msg != "" {
			c.rejectToken(ctx)
			return fmt.Errorf("%w: %s", application.ErrAuthenticationRejected, body.Msg)
		}
	case http.StatusForbidden:
		return application.ErrUnauthorized
	case http.StatusNotFound:
		if message == "" {
			return application.ErrNotFound
		}
	}
	return &application.BusinessError{Status: status, Message: message}
}

func (c *Client) rejectToken(ctx context.Context) {
	if c.onReject != nil {
		c.onReject.HandleAuthFailure(ctx)
	}
}

func (c *Client) loggerWith(ctx context.Context, op, requestID string) *slog.Logger {
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = c.logger
	}
	return logger.With("component", "api", "operation", op, "request_id", requestID)
}

func fallback(value, def string) string {
	if value == "" {
		return def
	}
	return value
}

// missingBody is returned for a 2xx response that lacks the expected record.
func missingBody(status int, message, def string) error {
	return &application.BusinessError{Status: status, Message: fallback(message, def)}
}
