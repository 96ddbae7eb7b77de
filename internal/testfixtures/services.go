package testfixtures

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/example/visitor-desk/internal/application"
	"github.com/example/visitor-desk/internal/session"
)

// ServiceFactory assists tests with constructing application services using
// deterministic clocks and an in-memory session.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Session     *StaticSession
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults. The session is
// logged in as a security officer.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
		Session:     NewStaticSession(application.Profile{ID: "1", Name: "officer", Role: application.RoleSecurity}),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	if factory.Session == nil {
		factory.Session = NewStaticSession(application.Profile{})
		factory.Session.Clear()
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// WithProfile logs the factory session in as profile.
func WithProfile(profile application.Profile) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Session = NewStaticSession(profile)
	}
}

// VisitorServiceDeps captures dependencies for constructing a visitor service.
type VisitorServiceDeps struct {
	API            application.VisitorAPI
	Notifier       application.Notifier
	Encoder        application.QREncoder
	CheckInBaseURL string
	Logger         *slog.Logger
}

// NewVisitorService builds a visitor service using the supplied dependencies
// combined with the factory defaults.
func (f *ServiceFactory) NewVisitorService(deps VisitorServiceDeps) *application.VisitorService {
	base := deps.CheckInBaseURL
	if base == "" {
		base = "http://localhost:5000/api"
	}
	return application.NewVisitorServiceWithLogger(
		deps.API,
		f.Session,
		deps.Notifier,
		deps.Encoder,
		base,
		f.Clock.NowFunc(),
		deps.Logger,
	)
}

// MeetingServiceDeps captures dependencies for constructing a meeting service.
type MeetingServiceDeps struct {
	API      application.MeetingAPI
	Policy   application.CallJoinPolicy
	Location *time.Location
	Logger   *slog.Logger
}

// NewMeetingService builds a meeting service using the supplied dependencies.
func (f *ServiceFactory) NewMeetingService(deps MeetingServiceDeps) *application.MeetingService {
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	return application.NewMeetingServiceWithLogger(deps.API, f.Session, deps.Policy, loc, deps.Logger)
}

// NewSession builds a persistent session over store using the factory clock
// and identifier generator.
func (f *ServiceFactory) NewSession(store session.Store, sealer *session.Sealer, opts ...session.Option) *session.Session {
	base := []session.Option{
		session.WithClock(f.Clock.NowFunc()),
		session.WithIDGenerator(f.IDGenerator.NextFunc()),
	}
	return session.New(store, sealer, append(base, opts...)...)
}

// StaticSession is an in-memory application.SessionManager.
type StaticSession struct {
	mu        sync.Mutex
	principal application.Principal
	active    bool
	failures  int
}

// NewStaticSession returns a session logged in as profile.
func NewStaticSession(profile application.Profile) *StaticSession {
	return &StaticSession{
		principal: application.Principal{Token: "token-" + profile.ID, Profile: profile},
		active:    true,
	}
}

// Current implements application.SessionGate.
func (s *StaticSession) Current(context.Context) (application.Principal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.principal, s.active
}

// Login implements application.SessionManager.
func (s *StaticSession) Login(_ context.Context, token string, profile application.Profile) (application.Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.principal = application.Principal{Token: token, Profile: profile}
	s.active = true
	return s.principal, nil
}

// Logout implements application.SessionManager.
func (s *StaticSession) Logout(context.Context) error {
	s.Clear()
	return nil
}

// Token returns the bearer token or application.ErrNotAuthenticated.
func (s *StaticSession) Token(ctx context.Context) (string, error) {
	principal, ok := s.Current(ctx)
	if !ok {
		return "", application.ErrNotAuthenticated
	}
	return principal.Token, nil
}

// HandleAuthFailure records the rejection and logs out.
func (s *StaticSession) HandleAuthFailure(context.Context) {
	s.mu.Lock()
	s.failures++
	s.mu.Unlock()
	s.Clear()
}

// AuthFailures returns how many rejections were reported.
func (s *StaticSession) AuthFailures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures
}

// Clear logs the session out.
func (s *StaticSession) Clear() {
	s.mu.Lock()
	s.principal = application.Principal{}
	s.active = false
	s.mu.Unlock()
}
