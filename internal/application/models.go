package application

import "time"

// Role identifies the backend role assigned to a user.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleSecurity Role = "security"
	RoleEmployee Role = "employee"
)

// Staff reports whether the role may act on every visitor rather than only hosted ones.
func (r Role) Staff() bool {
	return r == RoleAdmin || r == RoleSecurity
}

// Profile is the user profile returned on login.
type Profile struct {
	ID         string
	Name       string
	Email      string
	Department string
	Role       Role
}

// LoginResult carries the issued bearer token and the profile it belongs to.
type LoginResult struct {
	Token   string
	Profile Profile
}

// RegisterUserParams captures the fields submitted on account registration.
type RegisterUserParams struct {
	Username   string
	Email      string
	Password   string
	Department string
	Role       Role
}

// VisitorStatus is the lifecycle state of a visitor record.
type VisitorStatus string

const (
	VisitorPending    VisitorStatus = "pending"
	VisitorApproved   VisitorStatus = "approved"
	VisitorRejected   VisitorStatus = "rejected"
	VisitorCheckedIn  VisitorStatus = "checked_in"
	VisitorCheckedOut VisitorStatus = "checked_out"
)

// VisitorStatuses lists every status in lifecycle order.
var VisitorStatuses = []VisitorStatus{
	VisitorPending,
	VisitorApproved,
	VisitorRejected,
	VisitorCheckedIn,
	VisitorCheckedOut,
}

// Valid reports whether s is a known status.
func (s VisitorStatus) Valid() bool {
	for _, candidate := range VisitorStatuses {
		if s == candidate {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is accepted from s.
func (s VisitorStatus) Terminal() bool {
	return s == VisitorRejected || s == VisitorCheckedOut
}

// Visitor represents one visit record.
type Visitor struct {
	ID                  string
	FullName            string
	Email               string
	Phone               string
	Company             string
	Purpose             string
	HostID              string
	PhotoPath           string
	BadgeID             string
	Status              VisitorStatus
	PreApproved         bool
	ApprovalWindowStart *time.Time
	ApprovalWindowEnd   *time.Time
	CheckInTime         *time.Time
	CheckOutTime        *time.Time
}

// RegisterVisitorParams captures a registration form submission.
type RegisterVisitorParams struct {
	PreApproved         bool
	FullName            string
	Email               string
	Phone               string
	Company             string
	Purpose             string
	HostID              string
	Photo               []byte
	PhotoContentType    string
	ApprovalWindowStart time.Time
	ApprovalWindowEnd   time.Time
}

// NewVisitor is the validated payload sent to the backend on registration.
type NewVisitor struct {
	PreApproved         bool
	FullName            string
	Email               string
	Phone               string
	Company             string
	Purpose             string
	HostID              string
	Photo               string
	ApprovalWindowStart time.Time
	ApprovalWindowEnd   time.Time
}

// ListVisitorsParams mirrors the query parameters of the visitor listing.
type ListVisitorsParams struct {
	Status VisitorStatus
	Search string
	Sort   string
	Page   int
	Limit  int
}

// CheckInToken is the scannable reference issued to an approved visitor.
type CheckInToken struct {
	VisitorID string
	URL       string
	PNG       []byte
	DataURL   string
}

// VisitorResult is returned by visitor operations that may trigger a notification.
type VisitorResult struct {
	Visitor Visitor
	Token   *CheckInToken
	Warning *NotificationWarning
}

// NotificationKind selects the message template sent to a visitor.
type NotificationKind string

const (
	NotifyPreApproved NotificationKind = "pre_approved"
	NotifyRegistered  NotificationKind = "registered"
	NotifyApproved    NotificationKind = "approved"
	NotifyRejected    NotificationKind = "rejected"
)

// Notification is the message handed to the notifier collaborator.
type Notification struct {
	Kind    NotificationKind
	Visitor Visitor
	Token   *CheckInToken
	Reason  string
}

// MembershipStatus is one recipient's state within a meeting request.
type MembershipStatus string

const (
	MembershipPending  MembershipStatus = "pending"
	MembershipApproved MembershipStatus = "approved"
	MembershipRejected MembershipStatus = "rejected"
)

// Recipient is one recipient membership of a meeting.
type Recipient struct {
	ID             string
	MeetingID      string
	RecipientID    string
	Status         MembershipStatus
	ResponseReason string
	RespondedAt    *time.Time
}

// Meeting is a meeting request from one requester to one or more recipients.
type Meeting struct {
	ID            string
	RequestorID   string
	Purpose       string
	ScheduleStart time.Time
	ScheduleEnd   time.Time
	CallLink      string
	Notes         string
	CreatedAt     time.Time
	Recipients    []Recipient
}

// RequestMeetingParams captures a meeting request form submission.
type RequestMeetingParams struct {
	Recipients string
	Purpose    string
	Start      time.Time
	End        time.Time
	CallLink   string
	Notes      string
}

// NewMeeting is the validated payload sent to the backend.
type NewMeeting struct {
	RecipientIDs []string
	Purpose      string
	Start        time.Time
	End          time.Time
	CallLink     string
	Notes        string
}

// MeetingGroup holds the meetings starting on one local calendar date.
type MeetingGroup struct {
	Date     time.Time
	Meetings []Meeting
}

// Key returns the group date formatted as YYYY-MM-DD.
func (g MeetingGroup) Key() string {
	return g.Date.Format(time.DateOnly)
}

// MeetingStatusView is the received and outgoing meetings grouped by date.
type MeetingStatusView struct {
	Received []MeetingGroup
	Outgoing []MeetingGroup
}

// MeetingConflict is an existing meeting that overlaps a requested slot for
// one participant.
type MeetingConflict struct {
	MeetingID   string
	Purpose     string
	Participant string
	Start       time.Time
	End         time.Time
}

// CallSession describes the video call a user is about to join.
type CallSession struct {
	MeetingID string
	RoomID    string
	Link      string
	Started   bool
}

// DashboardStats mirrors the aggregate statistics computed by the backend.
type DashboardStats struct {
	TotalVisitors      int
	TodayVisitors      int
	CheckedIn          int
	Pending            int
	StatusDistribution map[VisitorStatus]int
	HourlyExpected     map[string]int
	DailyTrend         map[string]int
	AvgVisitDuration   float64
	PreApprovedCount   int
	NoPhotoCount       int
	RecentCheckedOut   []RecentVisitor
}

// RecentVisitor is an entry of the recently checked out list.
type RecentVisitor struct {
	ID       string
	FullName string
	Status   VisitorStatus
	Ago      string
}

// SeriesPoint is one labelled value of a chart series.
type SeriesPoint struct {
	Label string
	Count int
}

// StatusShare is one slice of the status distribution.
type StatusShare struct {
	Status  VisitorStatus
	Count   int
	Percent float64
}

// DashboardView is the ordered projection of DashboardStats used for display.
type DashboardView struct {
	Stats        DashboardStats
	Hourly       []SeriesPoint
	Daily        []SeriesPoint
	Distribution []StatusShare
}

// ChatRole identifies the author of a chat message.
type ChatRole string

const (
	ChatUser      ChatRole = "user"
	ChatAssistant ChatRole = "assistant"
	ChatSystem    ChatRole = "system"
)

// ChatMessage is one entry of a page scoped chat transcript.
type ChatMessage struct {
	ID        string
	Role      ChatRole
	Content   string
	Path      string
	Timestamp time.Time
}
