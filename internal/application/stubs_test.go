package application

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"
)

type sessionStub struct {
	mu        sync.Mutex
	principal Principal
	active    bool
	loginErr  error
	logouts   int
}

func newSessionStub(userID string, role Role) *sessionStub {
	return &sessionStub{
		principal: Principal{Token: "token-" + userID, Profile: Profile{ID: userID, Name: "user " + userID, Role: role}},
		active:    true,
	}
}

func (s *sessionStub) Current(context.Context) (Principal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.principal, s.active
}

func (s *sessionStub) Login(_ context.Context, token string, profile Profile) (Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loginErr != nil {
		return Principal{}, s.loginErr
	}
	s.principal = Principal{Token: token, Profile: profile}
	s.active = true
	return s.principal, nil
}

func (s *sessionStub) Logout(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.principal = Principal{}
	s.active = false
	s.logouts++
	return nil
}

type visitorAPIStub struct {
	mu sync.Mutex

	visitors map[string]Visitor
	nextID   int

	created    []NewVisitor
	listCalls  []ListVisitorsParams
	approveIDs []string
	rejectIDs  []string
	rejectWhy  []string
	checkIns   []string
	checkOuts  []string

	createErr   error
	listErr     error
	approveErr  error
	rejectErr   error
	checkInErr  error
	checkOutErr error

	// blockApprove, when set, is closed by the test to let ApproveVisitor return.
	blockApprove chan struct{}
	approveEnter chan struct{}

	blockList chan struct{}
	listEnter chan struct{}
}

func newVisitorAPIStub(visitors ...Visitor) *visitorAPIStub {
	stub := &visitorAPIStub{visitors: make(map[string]Visitor), nextID: 100}
	for _, v := range visitors {
		stub.visitors[v.ID] = v
	}
	return stub
}

func (s *visitorAPIStub) CreateVisitor(_ context.Context, visitor NewVisitor) (Visitor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, visitor)
	if s.createErr != nil {
		return Visitor{}, s.createErr
	}
	s.nextID++
	created := Visitor{
		ID:          itoa(s.nextID),
		FullName:    visitor.FullName,
		Email:       visitor.Email,
		Phone:       visitor.Phone,
		HostID:      visitor.HostID,
		PreApproved: visitor.PreApproved,
		Status:      VisitorPending,
	}
	if visitor.PreApproved {
		start, end := visitor.ApprovalWindowStart, visitor.ApprovalWindowEnd
		created.Status = VisitorApproved
		created.ApprovalWindowStart = &start
		created.ApprovalWindowEnd = &end
		created.BadgeID = "PRE-" + created.ID
	}
	s.visitors[created.ID] = created
	return created, nil
}

func (s *visitorAPIStub) ListVisitors(ctx context.Context, params ListVisitorsParams) ([]Visitor, error) {
	if s.listEnter != nil {
		s.listEnter <- struct{}{}
	}
	if s.blockList != nil {
		select {
		case <-s.blockList:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls = append(s.listCalls, params)
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]Visitor, 0, len(s.visitors))
	for _, id := range sortedKeys(s.visitors) {
		v := s.visitors[id]
		if params.Status != "" && v.Status != params.Status {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *visitorAPIStub) GetVisitor(_ context.Context, id string) (Visitor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.visitors[id]
	if !ok {
		return Visitor{}, ErrNotFound
	}
	return v, nil
}

func (s *visitorAPIStub) ApproveVisitor(ctx context.Context, id string) (Visitor, error) {
	if s.approveEnter != nil {
		s.approveEnter <- struct{}{}
	}
	if s.blockApprove != nil {
		select {
		case <-s.blockApprove:
		case <-ctx.Done():
			return Visitor{}, ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.approveIDs = append(s.approveIDs, id)
	if s.approveErr != nil {
		return Visitor{}, s.approveErr
	}
	v, ok := s.visitors[id]
	if !ok {
		return Visitor{}, ErrNotFound
	}
	if v.Status != VisitorPending {
		return Visitor{}, &BusinessError{Status: 400, Message: "Visitor already processed"}
	}
	v.Status = VisitorApproved
	s.visitors[id] = v
	return v, nil
}

func (s *visitorAPIStub) RejectVisitor(_ context.Context, id, reason string) (Visitor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectIDs = append(s.rejectIDs, id)
	s.rejectWhy = append(s.rejectWhy, reason)
	if s.rejectErr != nil {
		return Visitor{}, s.rejectErr
	}
	v := s.visitors[id]
	v.Status = VisitorRejected
	s.visitors[id] = v
	return v, nil
}

func (s *visitorAPIStub) CheckInVisitor(_ context.Context, id string) (Visitor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkIns = append(s.checkIns, id)
	if s.checkInErr != nil {
		return Visitor{}, s.checkInErr
	}
	v, ok := s.visitors[id]
	if !ok {
		return Visitor{}, ErrNotFound
	}
	switch v.Status {
	case VisitorApproved:
		now := time.Date(2025, 1, 1, 9, 30, 0, 0, time.UTC)
		v.Status = VisitorCheckedIn
		v.CheckInTime = &now
		s.visitors[id] = v
		return v, nil
	case VisitorCheckedIn:
		return Visitor{}, &BusinessError{Status: 201, Message: "Visitor Is Already Checked-In"}
	default:
		return Visitor{}, &BusinessError{Status: 400, Message: "Visitor Must Be Approved First"}
	}
}

func (s *visitorAPIStub) CheckOutVisitor(_ context.Context, id string) (Visitor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkOuts = append(s.checkOuts, id)
	if s.checkOutErr != nil {
		return Visitor{}, s.checkOutErr
	}
	v := s.visitors[id]
	now := time.Date(2025, 1, 1, 11, 0, 0, 0, time.UTC)
	v.Status = VisitorCheckedOut
	v.CheckOutTime = &now
	s.visitors[id] = v
	return v, nil
}

func (s *visitorAPIStub) setStatus(id string, status VisitorStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.visitors[id]
	v.Status = status
	s.visitors[id] = v
}

type notifierStub struct {
	mu   sync.Mutex
	sent []Notification
	err  error
}

func (n *notifierStub) Notify(_ context.Context, notification Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification)
	return n.err
}

func (n *notifierStub) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type meetingAPIStub struct {
	mu sync.Mutex

	meetings map[string]Meeting
	nextID   int
	// userID is the authenticated recipient the stub answers for.
	userID string

	requested []NewMeeting
	approved  []string
	rejected  map[string]string
	started   []string

	requestErr  error
	incomingErr error
	receivedErr error
	outgoingErr error
	respondErr  error
	startErr    error
}

func newMeetingAPIStub(userID string, meetings ...Meeting) *meetingAPIStub {
	stub := &meetingAPIStub{meetings: make(map[string]Meeting), userID: userID, rejected: make(map[string]string), nextID: 10}
	for _, m := range meetings {
		stub.meetings[m.ID] = m
	}
	return stub
}

func (s *meetingAPIStub) RequestMeeting(_ context.Context, meeting NewMeeting) (Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requested = append(s.requested, meeting)
	if s.requestErr != nil {
		return Meeting{}, s.requestErr
	}
	s.nextID++
	created := Meeting{
		ID:            itoa(s.nextID),
		RequestorID:   s.userID,
		Purpose:       meeting.Purpose,
		ScheduleStart: meeting.Start,
		ScheduleEnd:   meeting.End,
		CallLink:      meeting.CallLink,
		Notes:         meeting.Notes,
	}
	for _, id := range meeting.RecipientIDs {
		created.Recipients = append(created.Recipients, Recipient{MeetingID: created.ID, RecipientID: id, Status: MembershipPending})
	}
	s.meetings[created.ID] = created
	return created, nil
}

func (s *meetingAPIStub) filter(keep func(Meeting) bool) []Meeting {
	out := make([]Meeting, 0)
	for _, id := range sortedMeetingKeys(s.meetings) {
		if m := s.meetings[id]; keep(m) {
			out = append(out, m)
		}
	}
	return out
}

func (s *meetingAPIStub) IncomingMeetings(context.Context) ([]Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.incomingErr != nil {
		return nil, s.incomingErr
	}
	return s.filter(func(m Meeting) bool {
		status, ok := RecipientStatus(m, s.userID)
		return ok && status == MembershipPending
	}), nil
}

func (s *meetingAPIStub) ReceivedMeetings(context.Context) ([]Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.receivedErr != nil {
		return nil, s.receivedErr
	}
	return s.filter(func(m Meeting) bool {
		_, ok := RecipientStatus(m, s.userID)
		return ok
	}), nil
}

func (s *meetingAPIStub) OutgoingMeetings(context.Context) ([]Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outgoingErr != nil {
		return nil, s.outgoingErr
	}
	return s.filter(func(m Meeting) bool { return m.RequestorID == s.userID }), nil
}

func (s *meetingAPIStub) setMembership(meetingID string, status MembershipStatus, reason string) error {
	m, ok := s.meetings[meetingID]
	if !ok {
		return &BusinessError{Status: 404, Message: "Meeting request not found for this user"}
	}
	for i := range m.Recipients {
		if m.Recipients[i].RecipientID != s.userID {
			continue
		}
		if m.Recipients[i].Status != MembershipPending {
			return &BusinessError{Status: 400, Message: "Meeting request has already been responded to"}
		}
		m.Recipients[i].Status = status
		m.Recipients[i].ResponseReason = reason
		s.meetings[meetingID] = m
		return nil
	}
	return &BusinessError{Status: 404, Message: "Meeting request not found for this user"}
}

func (s *meetingAPIStub) ApproveMeeting(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.approved = append(s.approved, id)
	if s.respondErr != nil {
		return s.respondErr
	}
	return s.setMembership(id, MembershipApproved, "")
}

func (s *meetingAPIStub) RejectMeeting(_ context.Context, id, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejected[id] = reason
	if s.respondErr != nil {
		return s.respondErr
	}
	return s.setMembership(id, MembershipRejected, reason)
}

func (s *meetingAPIStub) StartCall(_ context.Context, id string) (Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = append(s.started, id)
	if s.startErr != nil {
		return Meeting{}, s.startErr
	}
	return s.meetings[id], nil
}

// as returns a view of the same meetings answering for another user.
func (s *meetingAPIStub) as(userID string) *meetingAPIStub {
	return &meetingAPIStub{meetings: s.meetings, userID: userID, rejected: make(map[string]string)}
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

func sortedKeys(m map[string]Visitor) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedMeetingKeys(m map[string]Meeting) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
