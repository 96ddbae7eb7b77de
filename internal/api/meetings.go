package api

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/example/visitor-desk/internal/application"
)

var _ application.MeetingAPI = (*Client)(nil)

// RequestMeeting sends a meeting request to its recipients.
func (c *Client) RequestMeeting(ctx context.Context, meeting application.NewMeeting) (application.Meeting, error) {
	recipients := make([]wireID, 0, len(meeting.RecipientIDs))
	for _, id := range meeting.RecipientIDs {
		recipients = append(recipients, wireID(id))
	}
	var out meetingEnvelope
	status, err := c.do(ctx, call{
		op:     "request_meeting",
		method: http.MethodPost,
		path:   "/meetings/request",
		body: meetingRequest{
			Recipients:     recipients,
			Purpose:        meeting.Purpose,
			ScheduleStart:  formatTime(meeting.Start, c.location),
			ScheduleEnd:    formatTime(meeting.End, c.location),
			GoogleMeetLink: meeting.CallLink,
			Notes:          meeting.Notes,
		},
	}, &out)
	if err != nil {
		return application.Meeting{}, err
	}
	if out.Meeting == nil {
		return application.Meeting{}, missingBody(status, out.Message, "Meeting request returned no meeting")
	}
	return out.Meeting.meeting(c.location), nil
}

// IncomingMeetings lists meetings awaiting the caller's response.
func (c *Client) IncomingMeetings(ctx context.Context) ([]application.Meeting, error) {
	return c.meetings(ctx, "incoming_meetings", "/meetings/incoming")
}

// ReceivedMeetings lists every meeting the caller was invited to.
func (c *Client) ReceivedMeetings(ctx context.Context) ([]application.Meeting, error) {
	return c.meetings(ctx, "received_meetings", "/meetings/received")
}

// OutgoingMeetings lists meetings the caller requested.
func (c *Client) OutgoingMeetings(ctx context.Context) ([]application.Meeting, error) {
	return c.meetings(ctx, "outgoing_meetings", "/meetings/outgoing")
}

// ApproveMeeting approves the caller's membership.
func (c *Client) ApproveMeeting(ctx context.Context, id string) error {
	_, err := c.do(ctx, call{op: "approve_meeting", method: http.MethodPut, path: meetingPath(id, "approve")}, nil)
	return err
}

// RejectMeeting rejects the caller's membership with an optional reason.
func (c *Client) RejectMeeting(ctx context.Context, id, reason string) error {
	_, err := c.do(ctx, call{
		op:     "reject_meeting",
		method: http.MethodPut,
		path:   meetingPath(id, "reject"),
		body:   reasonRequest{Reason: reason},
	}, nil)
	return err
}

// StartCall marks the meeting's call as started. Only the requester may.
func (c *Client) StartCall(ctx context.Context, id string) (application.Meeting, error) {
	var out meetingEnvelope
	if _, err := c.do(ctx, call{op: "start_call", method: http.MethodPut, path: meetingPath(id, "start-call")}, &out); err != nil {
		return application.Meeting{}, err
	}
	if out.Meeting == nil {
		return application.Meeting{ID: id}, nil
	}
	return out.Meeting.meeting(c.location), nil
}

func (c *Client) meetings(ctx context.Context, op, path string) ([]application.Meeting, error) {
	var out meetingsEnvelope
	if _, err := c.do(ctx, call{op: op, method: http.MethodGet, path: path}, &out); err != nil {
		return nil, err
	}
	meetings := make([]application.Meeting, 0, len(out.Meetings))
	for _, m := range out.Meetings {
		meetings = append(meetings, m.meeting(c.location))
	}
	return meetings, nil
}

func meetingPath(id, action string) string {
	return "/meetings/" + url.PathEscape(strings.TrimSpace(id)) + "/" + action
}
