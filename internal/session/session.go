package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/example/visitor-desk/internal/application"
	"github.com/example/visitor-desk/internal/logging"
	"github.com/example/visitor-desk/internal/persistence"
)

// Store persists the session record between invocations.
type Store interface {
	SaveSession(ctx context.Context, record persistence.SessionRecord) error
	CurrentSession(ctx context.Context) (persistence.SessionRecord, error)
	DeleteSession(ctx context.Context) error
}

// Session is the authenticated state of the desk operator. It is the only
// writer of the stored record.
type Session struct {
	store       Store
	sealer      *Sealer
	now         func() time.Time
	newID       func() string
	logger      *slog.Logger
	forceLogout bool
}

// Option configures a Session.
type Option func(*Session)

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides the record id generator.
func WithIDGenerator(newID func() string) Option {
	return func(s *Session) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithForceLogout controls whether a rejected token clears the session.
func WithForceLogout(enabled bool) Option {
	return func(s *Session) {
		s.forceLogout = enabled
	}
}

var _ application.SessionManager = (*Session)(nil)

// New constructs a Session over store. Tokens are sealed with sealer.
func New(store Store, sealer *Sealer, opts ...Option) *Session {
	s := &Session{
		store:       store,
		sealer:      sealer,
		now:         time.Now,
		newID:       uuid.NewString,
		logger:      slog.Default(),
		forceLogout: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) loggerWith(ctx context.Context, operation string) *slog.Logger {
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = s.logger
	}
	attrs := []any{"component", "Session", "operation", operation}
	if requestID := logging.RequestIDFromContext(ctx); requestID != "" {
		attrs = append(attrs, "request_id", requestID)
	}
	return logger.With(attrs...)
}

// TokenExpiry returns the exp claim of a JWT bearer token. Opaque tokens and
// tokens without exp report ok=false. The signature is not verified; the
// backend remains the authority.
func TokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// Login stores token and profile as the current session, replacing any other.
func (s *Session) Login(ctx context.Context, token string, profile application.Profile) (application.Principal, error) {
	if s == nil || s.store == nil || s.sealer == nil {
		return application.Principal{}, fmt.Errorf("session store not configured")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return application.Principal{}, fmt.Errorf("session: token is required")
	}

	principal := application.Principal{Token: token, Profile: profile}
	if exp, ok := TokenExpiry(token); ok {
		if !exp.After(s.now()) {
			return application.Principal{}, fmt.Errorf("%w: token already expired", application.ErrAuthenticationRejected)
		}
		principal.ExpiresAt = &exp
	}

	sealed, err := s.sealer.Seal([]byte(token))
	if err != nil {
		return application.Principal{}, fmt.Errorf("seal token: %w", err)
	}
	record := persistence.SessionRecord{
		ID:          s.newID(),
		UserID:      profile.ID,
		Username:    profile.Name,
		Email:       profile.Email,
		Department:  profile.Department,
		Role:        string(profile.Role),
		SealedToken: sealed,
		ExpiresAt:   principal.ExpiresAt,
		CreatedAt:   s.now(),
	}
	if err := s.store.SaveSession(ctx, record); err != nil {
		return application.Principal{}, fmt.Errorf("save session: %w", err)
	}

	s.loggerWith(ctx, "Login").InfoContext(ctx, "session stored", "user_id", profile.ID, "role", profile.Role)
	return principal, nil
}

// Current returns the stored principal. Expired or unreadable records are
// cleared and reported as anonymous.
func (s *Session) Current(ctx context.Context) (application.Principal, bool) {
	if s == nil || s.store == nil || s.sealer == nil {
		return application.Principal{}, false
	}
	logger := s.loggerWith(ctx, "Current")

	record, err := s.store.CurrentSession(ctx)
	if err != nil {
		if !errors.Is(err, persistence.ErrNotFound) {
			logger.ErrorContext(ctx, "failed to read session", "error", err)
		}
		return application.Principal{}, false
	}

	if record.ExpiresAt != nil && !record.ExpiresAt.After(s.now()) {
		logger.InfoContext(ctx, "session expired", "user_id", record.UserID)
		s.clear(ctx, logger)
		return application.Principal{}, false
	}

	token, err := s.sealer.Open(record.SealedToken)
	if err != nil {
		logger.WarnContext(ctx, "stored session unreadable", "user_id", record.UserID, "error", err)
		s.clear(ctx, logger)
		return application.Principal{}, false
	}

	return application.Principal{
		Token: string(token),
		Profile: application.Profile{
			ID:         record.UserID,
			Name:       record.Username,
			Email:      record.Email,
			Department: record.Department,
			Role:       application.Role(record.Role),
		},
		ExpiresAt: record.ExpiresAt,
	}, true
}

// RequireAuthenticated returns the current principal or ErrNotAuthenticated.
func (s *Session) RequireAuthenticated(ctx context.Context) (application.Principal, error) {
	principal, ok := s.Current(ctx)
	if !ok {
		return application.Principal{}, application.ErrNotAuthenticated
	}
	return principal, nil
}

// Token returns the bearer token for the current session.
func (s *Session) Token(ctx context.Context) (string, error) {
	principal, err := s.RequireAuthenticated(ctx)
	if err != nil {
		return "", err
	}
	return principal.Token, nil
}

// Logout clears the stored session.
func (s *Session) Logout(ctx context.Context) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("session store not configured")
	}
	if err := s.store.DeleteSession(ctx); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// HandleAuthFailure reacts to the backend rejecting the bearer token.
func (s *Session) HandleAuthFailure(ctx context.Context) {
	if s == nil || !s.forceLogout {
		return
	}
	logger := s.loggerWith(ctx, "HandleAuthFailure")
	logger.WarnContext(ctx, "backend rejected token; logging out")
	s.clear(ctx, logger)
}

func (s *Session) clear(ctx context.Context, logger *slog.Logger) {
	if err := s.store.DeleteSession(ctx); err != nil {
		logger.ErrorContext(ctx, "failed to clear session", "error", err)
	}
}
