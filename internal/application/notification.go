package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Notifier delivers visitor notifications (email) on lifecycle changes.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

var (
	errNotifierDisabled = errors.New("notifications are not configured")
	errMissingRecipient = errors.New("recipient email is missing")
)

// NotificationWarning reports a notification that could not be delivered.
// The lifecycle change it belongs to has still been committed.
type NotificationWarning struct {
	Kind      NotificationKind
	VisitorID string
	Err       error
}

// Message returns the operator facing text.
func (w *NotificationWarning) Message() string {
	if w == nil {
		return ""
	}
	reason := "Unknown error"
	if w.Err != nil {
		reason = w.Err.Error()
	}
	return "Email notification failed: " + reason
}

// notifyOnce attempts exactly one delivery and converts failures to a warning.
func notifyOnce(ctx context.Context, notifier Notifier, logger *slog.Logger, n Notification) *NotificationWarning {
	warn := func(err error) *NotificationWarning {
		logger.WarnContext(ctx, "visitor notification not delivered",
			"kind", n.Kind,
			"visitor_id", n.Visitor.ID,
			"error", err,
		)
		return &NotificationWarning{Kind: n.Kind, VisitorID: n.Visitor.ID, Err: err}
	}

	if notifier == nil {
		return warn(errNotifierDisabled)
	}
	if strings.TrimSpace(n.Visitor.Email) == "" {
		return warn(errMissingRecipient)
	}
	if err := notifier.Notify(ctx, n); err != nil {
		return warn(fmt.Errorf("send %s notification: %w", n.Kind, err))
	}
	logger.InfoContext(ctx, "visitor notification sent", "kind", n.Kind, "visitor_id", n.Visitor.ID)
	return nil
}
