package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/visitor-desk/internal/application"
	"github.com/example/visitor-desk/internal/persistence"
)

var (
	visitorCounter uint64
	meetingCounter uint64
	sessionCounter uint64
)

var referenceTime = time.Date(2025, time.January, 1, 8, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ----------------------------- Visitor fixtures ---------------------------

// VisitorOption configures a generated visitor.
type VisitorOption func(*application.Visitor)

// NewVisitor returns a deterministic pending visitor with optional overrides.
func NewVisitor(opts ...VisitorOption) application.Visitor {
	idx := atomic.AddUint64(&visitorCounter, 1)
	visitor := application.Visitor{
		ID:       fmt.Sprintf("%d", 1000+idx),
		FullName: fmt.Sprintf("Visitor %03d", idx),
		Email:    fmt.Sprintf("visitor-%03d@example.com", idx),
		Phone:    fmt.Sprintf("555-%04d", idx),
		Company:  "Example Corp",
		Purpose:  "Meeting",
		HostID:   "1",
		BadgeID:  fmt.Sprintf("BDG-%03d", idx),
		Status:   application.VisitorPending,
	}
	for _, opt := range opts {
		opt(&visitor)
	}
	return visitor
}

// WithVisitorID overrides the generated id.
func WithVisitorID(id string) VisitorOption {
	return func(v *application.Visitor) {
		v.ID = id
	}
}

// WithVisitorStatus sets the lifecycle status.
func WithVisitorStatus(status application.VisitorStatus) VisitorOption {
	return func(v *application.Visitor) {
		v.Status = status
	}
}

// WithVisitorEmail overrides the email address.
func WithVisitorEmail(email string) VisitorOption {
	return func(v *application.Visitor) {
		v.Email = email
	}
}

// WithApprovalWindow marks the visitor pre-approved for the window.
func WithApprovalWindow(start, end time.Time) VisitorOption {
	return func(v *application.Visitor) {
		v.PreApproved = true
		v.ApprovalWindowStart = &start
		v.ApprovalWindowEnd = &end
		v.HostID = ""
		v.Status = application.VisitorApproved
	}
}

// WithCheckIn records a check-in at t.
func WithCheckIn(t time.Time) VisitorOption {
	return func(v *application.Visitor) {
		v.CheckInTime = &t
		v.Status = application.VisitorCheckedIn
	}
}

// ----------------------------- Meeting fixtures ---------------------------

// MeetingOption configures a generated meeting.
type MeetingOption func(*application.Meeting)

// NewMeeting returns a deterministic one hour meeting with optional overrides.
// Recipients start pending.
func NewMeeting(requestorID string, recipientIDs []string, opts ...MeetingOption) application.Meeting {
	idx := atomic.AddUint64(&meetingCounter, 1)
	id := fmt.Sprintf("%d", 500+idx)
	start := referenceTime.Add(time.Duration(idx) * time.Hour)
	meeting := application.Meeting{
		ID:            id,
		RequestorID:   requestorID,
		Purpose:       fmt.Sprintf("Meeting %03d", idx),
		ScheduleStart: start,
		ScheduleEnd:   start.Add(time.Hour),
		CallLink:      fmt.Sprintf("https://meet.example.com/room-%03d", idx),
		CreatedAt:     referenceTime,
	}
	for _, recipientID := range recipientIDs {
		meeting.Recipients = append(meeting.Recipients, application.Recipient{
			MeetingID:   id,
			RecipientID: recipientID,
			Status:      application.MembershipPending,
		})
	}
	for _, opt := range opts {
		opt(&meeting)
	}
	return meeting
}

// WithMeetingID overrides the generated id.
func WithMeetingID(id string) MeetingOption {
	return func(m *application.Meeting) {
		m.ID = id
		for i := range m.Recipients {
			m.Recipients[i].MeetingID = id
		}
	}
}

// WithMeetingStart moves the meeting to start at t, keeping its duration.
func WithMeetingStart(t time.Time) MeetingOption {
	return func(m *application.Meeting) {
		duration := m.ScheduleEnd.Sub(m.ScheduleStart)
		m.ScheduleStart = t
		m.ScheduleEnd = t.Add(duration)
	}
}

// WithRecipientStatus sets the membership status of one recipient.
func WithRecipientStatus(recipientID string, status application.MembershipStatus) MeetingOption {
	return func(m *application.Meeting) {
		for i := range m.Recipients {
			if m.Recipients[i].RecipientID == recipientID {
				m.Recipients[i].Status = status
			}
		}
	}
}

// ----------------------------- Session fixtures -------------------------

// SessionFixture represents a deterministic stored session.
type SessionFixture struct {
	ID          string
	UserID      string
	Username    string
	Role        application.Role
	SealedToken []byte
	ExpiresAt   *time.Time
	CreatedAt   time.Time
}

// SessionOption configures the generated session fixture.
type SessionOption func(*SessionFixture)

// NewSessionFixture returns a deterministic session fixture with optional overrides.
// Later fixtures are created later.
func NewSessionFixture(opts ...SessionOption) SessionFixture {
	idx := atomic.AddUint64(&sessionCounter, 1)
	fixture := SessionFixture{
		ID:          fmt.Sprintf("session-%03d", idx),
		UserID:      fmt.Sprintf("%d", idx),
		Username:    fmt.Sprintf("user-%03d", idx),
		Role:        application.RoleEmployee,
		SealedToken: []byte(fmt.Sprintf("sealed-%03d", idx)),
		CreatedAt:   referenceTime.Add(time.Duration(idx) * time.Minute),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithSessionUser sets the user id and name.
func WithSessionUser(id, username string) SessionOption {
	return func(f *SessionFixture) {
		f.UserID = id
		f.Username = username
	}
}

// WithSessionRole sets the role.
func WithSessionRole(role application.Role) SessionOption {
	return func(f *SessionFixture) {
		f.Role = role
	}
}

// WithSessionExpiresAt sets the expiration timestamp.
func WithSessionExpiresAt(t time.Time) SessionOption {
	return func(f *SessionFixture) {
		f.ExpiresAt = &t
	}
}

// Persistence converts the fixture into a persistence record.
func (f SessionFixture) Persistence() persistence.SessionRecord {
	return persistence.SessionRecord{
		ID:          f.ID,
		UserID:      f.UserID,
		Username:    f.Username,
		Role:        string(f.Role),
		SealedToken: append([]byte(nil), f.SealedToken...),
		ExpiresAt:   f.ExpiresAt,
		CreatedAt:   f.CreatedAt,
	}
}

// Profile converts the fixture into the profile it belongs to.
func (f SessionFixture) Profile() application.Profile {
	return application.Profile{ID: f.UserID, Name: f.Username, Role: f.Role}
}
