// Package notify sends visitor notification emails through the EmailJS REST API.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/visitor-desk/internal/application"
	"github.com/example/visitor-desk/internal/logging"
)

// DefaultEndpoint is the EmailJS send endpoint.
const DefaultEndpoint = "https://api.emailjs.com/api/v1.0/email/send"

const (
	defaultSender  = "GuestFlow Team"
	defaultCompany = "GuestFlow Inc."
	notAvailable   = "N/A"
	maxErrorBody   = 4 * 1024
)

var errNoTemplate = errors.New("notify: no template configured for notification kind")

// Templates maps each notification kind to an EmailJS template id.
type Templates struct {
	Registered  string
	PreApproved string
	Approved    string
	Rejected    string
}

func (t Templates) lookup(kind application.NotificationKind) string {
	switch kind {
	case application.NotifyRegistered:
		return t.Registered
	case application.NotifyPreApproved:
		return t.PreApproved
	case application.NotifyApproved:
		return t.Approved
	case application.NotifyRejected:
		return t.Rejected
	default:
		return ""
	}
}

// DeliveryError is returned when EmailJS answers with a non-200 status.
type DeliveryError struct {
	Status int
	Text   string
}

// Error implements the error interface.
func (e *DeliveryError) Error() string {
	if e.Text == "" {
		return fmt.Sprintf("emailjs returned status %d", e.Status)
	}
	return fmt.Sprintf("emailjs returned status %d: %s", e.Status, e.Text)
}

// Client implements application.Notifier.
type Client struct {
	serviceID string
	publicKey string
	templates Templates
	endpoint  string
	sender    string
	company   string
	http      *http.Client
	location  *time.Location
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithEndpoint overrides the send endpoint.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		if endpoint != "" {
			c.endpoint = endpoint
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithSender sets the sender and organisation names shown in the email.
func WithSender(sender, company string) Option {
	return func(c *Client) {
		if sender != "" {
			c.sender = sender
		}
		if company != "" {
			c.company = company
		}
	}
}

// WithLocation sets the zone used to format visit dates.
func WithLocation(loc *time.Location) Option {
	return func(c *Client) {
		if loc != nil {
			c.location = loc
		}
	}
}

// WithClock overrides the time source used for the visit date fallback.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
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

// New constructs a Client for the given EmailJS service.
func New(serviceID, publicKey string, templates Templates, opts ...Option) *Client {
	c := &Client{
		serviceID: strings.TrimSpace(serviceID),
		publicKey: strings.TrimSpace(publicKey),
		templates: templates,
		endpoint:  DefaultEndpoint,
		sender:    defaultSender,
		company:   defaultCompany,
		http:      &http.Client{Timeout: 15 * time.Second},
		location:  time.Local,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ application.Notifier = (*Client)(nil)

type sendRequest struct {
	ServiceID      string            `json:"service_id"`
	TemplateID     string            `json:"template_id"`
	UserID         string            `json:"user_id"`
	TemplateParams map[string]string `json:"template_params"`
}

// Notify sends one email for n. It does not retry.
func (c *Client) Notify(ctx context.Context, n application.Notification) (err error) {
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = c.logger
	}
	logger = logger.With("component", "notify", "kind", n.Kind, "visitor_id", n.Visitor.ID)
	defer func() {
		if err != nil {
			logger.DebugContext(ctx, "email not sent", "error", err)
			return
		}
		logger.DebugContext(ctx, "email sent")
	}()

	template := strings.TrimSpace(c.templates.lookup(n.Kind))
	if template == "" {
		return fmt.Errorf("%w: %s", errNoTemplate, n.Kind)
	}

	payload, err := json.Marshal(sendRequest{
		ServiceID:      c.serviceID,
		TemplateID:     template,
		UserID:         c.publicKey,
		TemplateParams: c.params(n),
	})
	if err != nil {
		return fmt.Errorf("encode email request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if requestID := logging.RequestIDFromContext(ctx); requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &DeliveryError{Status: resp.StatusCode, Text: strings.TrimSpace(string(raw))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) params(n application.Notification) map[string]string {
	v := n.Visitor
	params := map[string]string{
		"name":           v.FullName,
		"email":          v.Email,
		"from_name":      c.sender,
		"company":        c.company,
		"purpose":        v.Purpose,
		"visit_date":     c.now().In(c.location).Format("Jan 02, 2006"),
		"host_id":        orNA(v.HostID),
		"approval_start": notAvailable,
		"approval_end":   notAvailable,
		"qr_code":        "",
	}
	if v.ApprovalWindowStart != nil {
		params["visit_date"] = v.ApprovalWindowStart.In(c.location).Format("Jan 02, 2006")
		params["approval_start"] = v.ApprovalWindowStart.In(c.location).Format("Jan 02, 2006 15:04")
	}
	if v.ApprovalWindowEnd != nil {
		params["approval_end"] = v.ApprovalWindowEnd.In(c.location).Format("Jan 02, 2006 15:04")
	}
	if n.Token != nil {
		params["qr_code"] = n.Token.DataURL
		params["check_in_url"] = n.Token.URL
	}

	switch n.Kind {
	case application.NotifyApproved, application.NotifyPreApproved:
		params["status"] = "approved"
		params["message"] = "Your visit has been approved. Please use the QR code below for check-in."
	case application.NotifyRejected:
		params["status"] = "rejected"
		params["message"] = "We regret to inform you that your visit request has been rejected."
		params["reason"] = orNA(n.Reason)
	case application.NotifyRegistered:
		params["status"] = "pending"
		params["message"] = "Your visit request has been received and is awaiting approval."
	}
	return params
}

func orNA(value string) string {
	if strings.TrimSpace(value) == "" {
		return notAvailable
	}
	return value
}
