package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Principal is the authenticated identity held by the session.
type Principal struct {
	Token     string
	Profile   Profile
	ExpiresAt *time.Time
}

// SessionGate is the read side of the session, consulted before every protected operation.
type SessionGate interface {
	Current(ctx context.Context) (Principal, bool)
}

// SessionManager adds the login and logout mutators to SessionGate.
type SessionManager interface {
	SessionGate
	Login(ctx context.Context, token string, profile Profile) (Principal, error)
	Logout(ctx context.Context) error
}

// AuthAPI exposes the backend authentication endpoints.
type AuthAPI interface {
	Login(ctx context.Context, username, password string) (LoginResult, error)
	Register(ctx context.Context, params RegisterUserParams) error
	ListUsers(ctx context.Context) ([]Profile, error)
}

// requirePrincipal is the route guard; it runs before any protected fetch.
func requirePrincipal(ctx context.Context, gate SessionGate) (Principal, error) {
	if gate == nil {
		return Principal{}, ErrNotAuthenticated
	}
	principal, ok := gate.Current(ctx)
	if !ok || strings.TrimSpace(principal.Token) == "" {
		return Principal{}, ErrNotAuthenticated
	}
	return principal, nil
}

// AuthService coordinates login, logout and account registration.
type AuthService struct {
	api     AuthAPI
	session SessionManager
	logger  *slog.Logger
}

// NewAuthService constructs an AuthService with the provided dependencies.
func NewAuthService(api AuthAPI, session SessionManager) *AuthService {
	return NewAuthServiceWithLogger(api, session, nil)
}

// NewAuthServiceWithLogger constructs an AuthService with a specified logger.
func NewAuthServiceWithLogger(api AuthAPI, session SessionManager, logger *slog.Logger) *AuthService {
	return &AuthService{
		api:     api,
		session: session,
		logger:  defaultLogger(logger),
	}
}

func (s *AuthService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AuthService", operation, attrs...)
}

// Login validates credentials against the backend and stores the resulting session.
func (s *AuthService) Login(ctx context.Context, username, password string) (principal Principal, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}
	if s.api == nil || s.session == nil {
		err = fmt.Errorf("auth dependencies not configured")
		return
	}

	username = strings.TrimSpace(username)
	logger := s.loggerWith(ctx, "Login", "username", username)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "login failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "login succeeded", "user_id", principal.Profile.ID, "role", principal.Profile.Role)
	}()

	vErr := &ValidationError{}
	if username == "" {
		vErr.add("username", "Username is required")
	}
	if password == "" {
		vErr.add("password", "Password is required")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var result LoginResult
	result, err = s.api.Login(ctx, username, password)
	if err != nil {
		return
	}
	if strings.TrimSpace(result.Token) == "" {
		err = &BusinessError{Message: "login response did not contain a token"}
		return
	}

	principal, err = s.session.Login(ctx, result.Token, result.Profile)
	return
}

// Logout clears all session state.
func (s *AuthService) Logout(ctx context.Context) error {
	if s == nil || s.session == nil {
		return fmt.Errorf("auth dependencies not configured")
	}
	logger := s.loggerWith(ctx, "Logout")
	if err := s.session.Logout(ctx); err != nil {
		logger.ErrorContext(ctx, "logout failed", "error", err)
		return err
	}
	logger.InfoContext(ctx, "logged out")
	return nil
}

// Whoami returns the current principal or ErrNotAuthenticated.
func (s *AuthService) Whoami(ctx context.Context) (Principal, error) {
	if s == nil {
		return Principal{}, ErrNotAuthenticated
	}
	return requirePrincipal(ctx, s.session)
}

// Register creates a backend account. It does not log the new user in.
func (s *AuthService) Register(ctx context.Context, params RegisterUserParams) (err error) {
	if s == nil || s.api == nil {
		return fmt.Errorf("auth dependencies not configured")
	}

	params.Username = strings.TrimSpace(params.Username)
	params.Email = strings.TrimSpace(strings.ToLower(params.Email))
	params.Department = strings.TrimSpace(params.Department)
	if params.Role == "" {
		params.Role = RoleEmployee
	}

	logger := s.loggerWith(ctx, "Register", "username", params.Username)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "registration failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "registration succeeded")
	}()

	vErr := &ValidationError{}
	if params.Username == "" {
		vErr.add("username", "Username is required")
	}
	if params.Email == "" {
		vErr.add("email", "Email address is required")
	} else if !strings.Contains(params.Email, "@") {
		vErr.add("email", "Email address is invalid")
	}
	if len(params.Password) < 6 {
		vErr.add("password", "Password must be at least 6 characters")
	}
	switch params.Role {
	case RoleAdmin, RoleSecurity, RoleEmployee:
	default:
		vErr.add("role", "Role must be admin, security or employee")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	err = s.api.Register(ctx, params)
	return
}

// Users lists backend accounts. The backend restricts this to administrators.
func (s *AuthService) Users(ctx context.Context) ([]Profile, error) {
	if s == nil || s.api == nil {
		return nil, fmt.Errorf("auth dependencies not configured")
	}
	if _, err := requirePrincipal(ctx, s.session); err != nil {
		return nil, err
	}
	return s.api.ListUsers(ctx)
}
