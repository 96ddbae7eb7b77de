package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/example/visitor-desk/internal/application"
)

// wireID accepts integer or string ids and normalises them to strings.
// Numeric ids are sent back as JSON numbers.
type wireID string

func (id *wireID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = wireID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a number or string: %w", err)
	}
	*id = wireID(n.String())
	return nil
}

func (id wireID) MarshalJSON() ([]byte, error) {
	s := strings.TrimSpace(string(id))
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return []byte(strconv.FormatInt(n, 10)), nil
	}
	return json.Marshal(s)
}

// wireTimeLayout is the zone-less ISO layout the backend reads and writes.
const wireTimeLayout = "2006-01-02T15:04:05"

var zonelessLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
}

// parseTime reads a backend timestamp. Zone-less values are read in loc.
func parseTime(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, nil
	}
	for _, layout := range zonelessLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", raw)
}

func optionalTime(raw *string, loc *time.Location) *time.Time {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil
	}
	t, err := parseTime(*raw, loc)
	if err != nil {
		return nil
	}
	return &t
}

func requiredTime(raw string, loc *time.Location) time.Time {
	t, _ := parseTime(raw, loc)
	return t
}

func formatTime(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(wireTimeLayout)
}

// ----------------------------- Users -------------------------------------

type userDTO struct {
	ID         wireID `json:"id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Department string `json:"department"`
	Role       string `json:"role"`
}

func (u userDTO) profile() application.Profile {
	return application.Profile{
		ID:         string(u.ID),
		Name:       u.Username,
		Email:      u.Email,
		Department: u.Department,
		Role:       application.Role(u.Role),
	}
}

// ----------------------------- Visitors ----------------------------------

type visitorDTO struct {
	ID                  wireID  `json:"id"`
	FullName            string  `json:"full_name"`
	Email               string  `json:"email"`
	Phone               string  `json:"phone"`
	Company             string  `json:"company"`
	Purpose             string  `json:"purpose"`
	HostID              wireID  `json:"host_id"`
	PhotoPath           string  `json:"photo_path"`
	BadgeID             string  `json:"badge_id"`
	Status              string  `json:"status"`
	PreApproved         bool    `json:"pre_approved"`
	ApprovalWindowStart *string `json:"approval_window_start"`
	ApprovalWindowEnd   *string `json:"approval_window_end"`
	CheckInTime         *string `json:"check_in_time"`
	CheckOutTime        *string `json:"check_out_time"`
}

func (v visitorDTO) visitor(loc *time.Location) application.Visitor {
	return application.Visitor{
		ID:                  string(v.ID),
		FullName:            v.FullName,
		Email:               v.Email,
		Phone:               v.Phone,
		Company:             v.Company,
		Purpose:             v.Purpose,
		HostID:              string(v.HostID),
		PhotoPath:           v.PhotoPath,
		BadgeID:             v.BadgeID,
		Status:              application.VisitorStatus(v.Status),
		PreApproved:         v.PreApproved,
		ApprovalWindowStart: optionalTime(v.ApprovalWindowStart, loc),
		ApprovalWindowEnd:   optionalTime(v.ApprovalWindowEnd, loc),
		CheckInTime:         optionalTime(v.CheckInTime, loc),
		CheckOutTime:        optionalTime(v.CheckOutTime, loc),
	}
}

type visitorEnvelope struct {
	Message string      `json:"message"`
	Visitor *visitorDTO `json:"visitor"`
}

type visitorsEnvelope struct {
	Visitors []visitorDTO `json:"visitors"`
}

type directVisitorRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Company  string `json:"company,omitempty"`
	Purpose  string `json:"purpose"`
	HostID   wireID `json:"host_id"`
	Photo    string `json:"photo,omitempty"`
}

type preApprovedVisitorRequest struct {
	FullName            string `json:"full_name"`
	Email               string `json:"email"`
	Phone               string `json:"phone"`
	Company             string `json:"company,omitempty"`
	Purpose             string `json:"purpose"`
	Photo               string `json:"photo,omitempty"`
	ApprovalWindowStart string `json:"approval_window_start"`
	ApprovalWindowEnd   string `json:"approval_window_end"`
}

type reasonRequest struct {
	Reason string `json:"reason,omitempty"`
}

// ----------------------------- Meetings ----------------------------------

type recipientDTO struct {
	ID             wireID  `json:"id"`
	MeetingID      wireID  `json:"meeting_id"`
	RecipientID    wireID  `json:"recipient_id"`
	Status         string  `json:"status"`
	ResponseReason *string `json:"response_reason"`
	RespondedAt    *string `json:"responded_at"`
}

type meetingDTO struct {
	ID             wireID         `json:"id"`
	RequestorID    wireID         `json:"requestor_id"`
	Purpose        string         `json:"purpose"`
	ScheduleStart  string         `json:"schedule_start"`
	ScheduleEnd    string         `json:"schedule_end"`
	GoogleMeetLink string         `json:"google_meet_link"`
	Notes          *string        `json:"notes"`
	CreatedAt      string         `json:"created_at"`
	Recipients     []recipientDTO `json:"recipients"`
}

func (m meetingDTO) meeting(loc *time.Location) application.Meeting {
	meeting := application.Meeting{
		ID:            string(m.ID),
		RequestorID:   string(m.RequestorID),
		Purpose:       m.Purpose,
		ScheduleStart: requiredTime(m.ScheduleStart, loc),
		ScheduleEnd:   requiredTime(m.ScheduleEnd, loc),
		CallLink:      m.GoogleMeetLink,
		CreatedAt:     requiredTime(m.CreatedAt, loc),
	}
	if m.Notes != nil {
		meeting.Notes = *m.Notes
	}
	for _, r := range m.Recipients {
		recipient := application.Recipient{
			ID:          string(r.ID),
			MeetingID:   string(r.MeetingID),
			RecipientID: string(r.RecipientID),
			Status:      application.MembershipStatus(r.Status),
			// Response times are recorded in UTC by the backend.
			RespondedAt: optionalTime(r.RespondedAt, time.UTC),
		}
		if recipient.MeetingID == "" {
			recipient.MeetingID = meeting.ID
		}
		if r.ResponseReason != nil {
			recipient.ResponseReason = *r.ResponseReason
		}
		meeting.Recipients = append(meeting.Recipients, recipient)
	}
	return meeting
}

type meetingEnvelope struct {
	Message string      `json:"message"`
	Meeting *meetingDTO `json:"meeting"`
}

type meetingsEnvelope struct {
	Meetings []meetingDTO `json:"meetings"`
}

type meetingRequest struct {
	Recipients     []wireID `json:"recipients"`
	Purpose        string   `json:"purpose"`
	ScheduleStart  string   `json:"schedule_start"`
	ScheduleEnd    string   `json:"schedule_end"`
	GoogleMeetLink string   `json:"google_meet_link"`
	Notes          string   `json:"notes,omitempty"`
}

// ----------------------------- Dashboard ---------------------------------

type recentVisitorDTO struct {
	ID       wireID `json:"id"`
	FullName string `json:"full_name"`
	Status   string `json:"status"`
	Ago      string `json:"ago"`
}

type dashboardDTO struct {
	TotalVisitors      int                `json:"total_visitors"`
	TodayVisitors      int                `json:"today_visitors"`
	CheckedIn          int                `json:"checked_in"`
	Pending            int                `json:"pending"`
	StatusDistribution map[string]int     `json:"status_distribution"`
	HourlyExpected     map[string]int     `json:"hourly_expected"`
	DailyTrend         map[string]int     `json:"daily_trend"`
	AvgVisitDuration   float64            `json:"avg_visit_duration"`
	PreApprovedCount   int                `json:"pre_approved_count"`
	NoPhotoCount       int                `json:"no_photo_count"`
	RecentCheckedOut   []recentVisitorDTO `json:"recent_checked_out"`
}

func (d dashboardDTO) stats() application.DashboardStats {
	stats := application.DashboardStats{
		TotalVisitors:      d.TotalVisitors,
		TodayVisitors:      d.TodayVisitors,
		CheckedIn:          d.CheckedIn,
		Pending:            d.Pending,
		StatusDistribution: make(map[application.VisitorStatus]int, len(d.StatusDistribution)),
		HourlyExpected:     d.HourlyExpected,
		DailyTrend:         d.DailyTrend,
		AvgVisitDuration:   d.AvgVisitDuration,
		PreApprovedCount:   d.PreApprovedCount,
		NoPhotoCount:       d.NoPhotoCount,
	}
	for status, count := range d.StatusDistribution {
		stats.StatusDistribution[application.VisitorStatus(status)] = count
	}
	for _, r := range d.RecentCheckedOut {
		stats.RecentCheckedOut = append(stats.RecentCheckedOut, application.RecentVisitor{
			ID:       string(r.ID),
			FullName: r.FullName,
			Status:   application.VisitorStatus(r.Status),
			Ago:      r.Ago,
		})
	}
	return stats
}

// ----------------------------- Chat --------------------------------------

type chatMessageDTO struct {
	ID        wireID `json:"id"`
	Content   string `json:"content"`
	Role      string `json:"role"`
	Timestamp string `json:"timestamp"`
	Path      string `json:"path"`
}

// message converts the record. Chat timestamps are written in UTC.
func (m chatMessageDTO) message() application.ChatMessage {
	return application.ChatMessage{
		ID:        string(m.ID),
		Role:      application.ChatRole(m.Role),
		Content:   m.Content,
		Path:      m.Path,
		Timestamp: requiredTime(m.Timestamp, time.UTC),
	}
}

type chatMessagesEnvelope struct {
	Messages []chatMessageDTO `json:"messages"`
}

type chatMessageRequest struct {
	Content string `json:"content"`
	Role    string `json:"role,omitempty"`
	Path    string `json:"path"`
}
