package application

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/example/visitor-desk/internal/scheduler"
)

// MeetingAPI exposes the backend meeting endpoints.
type MeetingAPI interface {
	RequestMeeting(ctx context.Context, meeting NewMeeting) (Meeting, error)
	IncomingMeetings(ctx context.Context) ([]Meeting, error)
	ReceivedMeetings(ctx context.Context) ([]Meeting, error)
	OutgoingMeetings(ctx context.Context) ([]Meeting, error)
	ApproveMeeting(ctx context.Context, id string) error
	RejectMeeting(ctx context.Context, id, reason string) error
	StartCall(ctx context.Context, id string) (Meeting, error)
}

// CallJoinPolicy decides who may join a meeting's video call.
type CallJoinPolicy string

const (
	// CallJoinApprovedOnly admits the requester and recipients who approved.
	CallJoinApprovedOnly CallJoinPolicy = "approved"
	// CallJoinOpen admits anyone who can see the meeting.
	CallJoinOpen CallJoinPolicy = "open"
)

// MeetingService drives meeting requests and per-recipient responses.
type MeetingService struct {
	api      MeetingAPI
	session  SessionGate
	policy   CallJoinPolicy
	location *time.Location
	logger   *slog.Logger

	incoming *ListView[Meeting]
}

// NewMeetingService constructs a MeetingService with the provided dependencies.
func NewMeetingService(api MeetingAPI, session SessionGate, policy CallJoinPolicy, location *time.Location) *MeetingService {
	return NewMeetingServiceWithLogger(api, session, policy, location, nil)
}

// NewMeetingServiceWithLogger constructs a MeetingService with a specified logger.
func NewMeetingServiceWithLogger(api MeetingAPI, session SessionGate, policy CallJoinPolicy, location *time.Location, logger *slog.Logger) *MeetingService {
	if policy == "" {
		policy = CallJoinApprovedOnly
	}
	if location == nil {
		location = time.Local
	}
	return &MeetingService{
		api:      api,
		session:  session,
		policy:   policy,
		location: location,
		logger:   defaultLogger(logger),
		incoming: NewListView(func(m Meeting) string { return m.ID }),
	}
}

func (s *MeetingService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "MeetingService", operation, attrs...)
}

func (s *MeetingService) ready(ctx context.Context) (Principal, error) {
	if s == nil {
		return Principal{}, fmt.Errorf("MeetingService is nil")
	}
	if s.api == nil {
		return Principal{}, fmt.Errorf("meeting api not configured")
	}
	return requirePrincipal(ctx, s.session)
}

// ParseRecipientIDs splits a comma separated list into distinct, trimmed, non-empty ids.
func ParseRecipientIDs(raw string) []string {
	parts := strings.Split(raw, ",")
	seen := make(map[string]struct{}, len(parts))
	ids := make([]string, 0, len(parts))
	for _, part := range parts {
		id := strings.TrimSpace(part)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

func buildNewMeeting(params RequestMeetingParams) (NewMeeting, error) {
	vErr := &ValidationError{}

	recipients := ParseRecipientIDs(params.Recipients)
	if len(recipients) == 0 {
		vErr.add("recipients", "Please enter at least one recipient ID")
	}
	switch {
	case params.Start.IsZero() || params.End.IsZero():
		vErr.add("schedule", "Please enter both start and end times")
	case !params.End.After(params.Start):
		vErr.add("schedule", "End time must be after start time")
	}
	purpose := strings.TrimSpace(params.Purpose)
	if purpose == "" {
		vErr.add("purpose", "Please enter a meeting purpose")
	}
	link := strings.TrimSpace(params.CallLink)
	if link == "" {
		vErr.add("call_link", "Please enter a meeting link")
	}
	if vErr.HasErrors() {
		return NewMeeting{}, vErr
	}

	return NewMeeting{
		RecipientIDs: recipients,
		Purpose:      purpose,
		Start:        params.Start,
		End:          params.End,
		CallLink:     link,
		Notes:        strings.TrimSpace(params.Notes),
	}, nil
}

// Request validates a meeting request form and submits it.
func (s *MeetingService) Request(ctx context.Context, params RequestMeetingParams) (meeting Meeting, err error) {
	if _, err = s.ready(ctx); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "Request")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "meeting request failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "meeting requested", "meeting_id", meeting.ID, "recipients", len(meeting.Recipients))
	}()

	var payload NewMeeting
	if payload, err = buildNewMeeting(params); err != nil {
		return
	}
	meeting, err = s.api.RequestMeeting(ctx, payload)
	return
}

// LoadIncoming refreshes the incoming requests view.
func (s *MeetingService) LoadIncoming(ctx context.Context) ([]Meeting, error) {
	if _, err := s.ready(ctx); err != nil {
		return nil, err
	}
	meetings, err := s.api.IncomingMeetings(ctx)
	if err != nil {
		s.loggerWith(ctx, "LoadIncoming").ErrorContext(ctx, "failed to fetch incoming meetings", "error", err, "error_kind", ErrorKind(err))
		return nil, err
	}
	s.incoming.Replace(meetings)
	return s.incoming.Items(), nil
}

// Incoming returns the current incoming requests view.
func (s *MeetingService) Incoming() []Meeting {
	return s.incoming.Items()
}

// ActionInFlight reports whether a response to the meeting is outstanding.
func (s *MeetingService) ActionInFlight(id string) bool {
	return s.incoming.InFlight(id)
}

// Approve accepts the meeting for the authenticated recipient only.
func (s *MeetingService) Approve(ctx context.Context, meetingID string) error {
	return s.respond(ctx, "Approve", meetingID, func(ctx context.Context) error {
		return s.api.ApproveMeeting(ctx, meetingID)
	})
}

// Reject declines the meeting for the authenticated recipient with an optional reason.
func (s *MeetingService) Reject(ctx context.Context, meetingID, reason string) error {
	reason = strings.TrimSpace(reason)
	return s.respond(ctx, "Reject", meetingID, func(ctx context.Context) error {
		return s.api.RejectMeeting(ctx, meetingID, reason)
	})
}

func (s *MeetingService) respond(ctx context.Context, operation, meetingID string, call func(context.Context) error) (err error) {
	var principal Principal
	if principal, err = s.ready(ctx); err != nil {
		return
	}
	meetingID = strings.TrimSpace(meetingID)

	logger := s.loggerWith(ctx, operation, "meeting_id", meetingID, "recipient_id", principal.Profile.ID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "meeting response failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "meeting response recorded")
	}()

	if !s.incoming.Loaded() {
		if _, err = s.LoadIncoming(ctx); err != nil {
			return
		}
	}
	if meeting, ok := s.incoming.Get(meetingID); ok {
		if status, member := RecipientStatus(meeting, principal.Profile.ID); member && status != MembershipPending {
			err = fmt.Errorf("%w: already %s", ErrStaleAction, status)
			return
		}
	}

	err = runListAction(ctx, s.incoming, meetingID, call)
	return
}

// RecipientStatus returns the membership status of recipientID in meeting.
func RecipientStatus(meeting Meeting, recipientID string) (MembershipStatus, bool) {
	for _, r := range meeting.Recipients {
		if r.RecipientID == recipientID {
			return r.Status, true
		}
	}
	return "", false
}

// Summary renders the aggregate recipient statuses shown to the requester.
func Summary(meeting Meeting) string {
	parts := make([]string, 0, len(meeting.Recipients))
	for _, r := range meeting.Recipients {
		parts = append(parts, r.RecipientID+": "+string(r.Status))
	}
	return strings.Join(parts, ", ")
}

// Status fetches received and outgoing meetings in parallel and groups both by local date.
func (s *MeetingService) Status(ctx context.Context) (view MeetingStatusView, err error) {
	if _, err = s.ready(ctx); err != nil {
		return
	}

	var received, outgoing []Meeting
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var gErr error
		received, gErr = s.api.ReceivedMeetings(gctx)
		return gErr
	})
	g.Go(func() error {
		var gErr error
		outgoing, gErr = s.api.OutgoingMeetings(gctx)
		return gErr
	})
	if err = g.Wait(); err != nil {
		s.loggerWith(ctx, "Status").ErrorContext(ctx, "failed to fetch meeting data", "error", err, "error_kind", ErrorKind(err))
		return
	}

	view.Received = GroupByDate(received, s.location)
	view.Outgoing = GroupByDate(outgoing, s.location)
	return
}

// GroupByDate groups meetings by the calendar date of ScheduleStart in loc.
// Groups are ordered by date and meetings within a group by start time.
func GroupByDate(meetings []Meeting, loc *time.Location) []MeetingGroup {
	if loc == nil {
		loc = time.Local
	}
	index := make(map[string]int)
	groups := make([]MeetingGroup, 0)
	for _, meeting := range meetings {
		local := meeting.ScheduleStart.In(loc)
		day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
		key := day.Format(time.DateOnly)
		idx, ok := index[key]
		if !ok {
			idx = len(groups)
			index[key] = idx
			groups = append(groups, MeetingGroup{Date: day})
		}
		groups[idx].Meetings = append(groups[idx].Meetings, meeting)
	}

	sort.Slice(groups, func(i, j int) bool { return groups[i].Date.Before(groups[j].Date) })
	for i := range groups {
		sort.SliceStable(groups[i].Meetings, func(a, b int) bool {
			return groups[i].Meetings[a].ScheduleStart.Before(groups[i].Meetings[b].ScheduleStart)
		})
	}
	return groups
}

// JoinCall returns the call session for meeting when the join policy admits the caller.
// The requester also tells the backend that the call has started.
func (s *MeetingService) JoinCall(ctx context.Context, meeting Meeting) (call CallSession, err error) {
	var principal Principal
	if principal, err = s.ready(ctx); err != nil {
		return
	}

	userID := principal.Profile.ID
	logger := s.loggerWith(ctx, "JoinCall", "meeting_id", meeting.ID, "user_id", userID)
	defer func() {
		if err != nil {
			logger.WarnContext(ctx, "call join refused", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "joining call", "room_id", call.RoomID, "started", call.Started)
	}()

	requester := meeting.RequestorID != "" && meeting.RequestorID == userID
	if !requester && s.policy != CallJoinOpen {
		if status, member := RecipientStatus(meeting, userID); !member || status != MembershipApproved {
			err = ErrCallNotPermitted
			return
		}
	}

	call = CallSession{
		MeetingID: meeting.ID,
		RoomID:    "room-" + meeting.ID,
		Link:      meeting.CallLink,
	}
	if requester {
		var started Meeting
		if started, err = s.api.StartCall(ctx, meeting.ID); err != nil {
			return
		}
		if started.CallLink != "" {
			call.Link = started.CallLink
		}
		call.Started = true
	}
	return
}

// Find looks up a meeting the current user sent or received.
func (s *MeetingService) Find(ctx context.Context, meetingID string) (Meeting, error) {
	view, err := s.Status(ctx)
	if err != nil {
		return Meeting{}, err
	}
	for _, groups := range [][]MeetingGroup{view.Outgoing, view.Received} {
		for _, group := range groups {
			for _, meeting := range group.Meetings {
				if meeting.ID == meetingID {
					return meeting, nil
				}
			}
		}
	}
	return Meeting{}, ErrNotFound
}

// Conflicts reports participants of a meeting request who already have an
// overlapping meeting the current user sent or received. Recipients who
// rejected a meeting are not counted as booked for it.
func (s *MeetingService) Conflicts(ctx context.Context, params RequestMeetingParams) ([]MeetingConflict, error) {
	principal, err := s.ready(ctx)
	if err != nil {
		return nil, err
	}
	payload, err := buildNewMeeting(params)
	if err != nil {
		return nil, err
	}
	view, err := s.Status(ctx)
	if err != nil {
		return nil, err
	}

	purposes := make(map[string]string)
	var slots []scheduler.Slot
	for _, groups := range [][]MeetingGroup{view.Outgoing, view.Received} {
		for _, group := range groups {
			for _, meeting := range group.Meetings {
				if _, seen := purposes[meeting.ID]; seen {
					continue
				}
				purposes[meeting.ID] = meeting.Purpose
				slots = append(slots, meetingSlot(meeting))
			}
		}
	}

	candidate := scheduler.Slot{
		Participants: append([]string{principal.Profile.ID}, payload.RecipientIDs...),
		Start:        payload.Start,
		End:          payload.End,
	}
	found := scheduler.DetectConflicts(slots, candidate)
	conflicts := make([]MeetingConflict, 0, len(found))
	for _, c := range found {
		conflicts = append(conflicts, MeetingConflict{
			MeetingID:   c.WithSlotID,
			Purpose:     purposes[c.WithSlotID],
			Participant: c.Participant,
			Start:       c.Start,
			End:         c.End,
		})
	}
	if len(conflicts) > 0 {
		s.loggerWith(ctx, "Conflicts").InfoContext(ctx, "meeting request overlaps existing meetings", "conflicts", len(conflicts))
	}
	return conflicts, nil
}

func meetingSlot(meeting Meeting) scheduler.Slot {
	participants := []string{meeting.RequestorID}
	for _, r := range meeting.Recipients {
		if r.Status != MembershipRejected {
			participants = append(participants, r.RecipientID)
		}
	}
	return scheduler.Slot{
		ID:           meeting.ID,
		Participants: participants,
		Start:        meeting.ScheduleStart,
		End:          meeting.ScheduleEnd,
	}
}
