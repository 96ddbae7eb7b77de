package application

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

func sampleMeeting(id, requestor string, start time.Time, recipients ...string) Meeting {
	m := Meeting{
		ID:            id,
		RequestorID:   requestor,
		Purpose:       "Quarterly review",
		ScheduleStart: start,
		ScheduleEnd:   start.Add(time.Hour),
		CallLink:      "https://meet.example.com/abc-defg-hij",
	}
	for _, r := range recipients {
		m.Recipients = append(m.Recipients, Recipient{MeetingID: id, RecipientID: r, Status: MembershipPending})
	}
	return m
}

func TestParseRecipientIDs(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw  string
		want []string
	}{
		{"10, 11", []string{"10", "11"}},
		{" 10 ,,11,10 ", []string{"10", "11"}},
		{" , ", []string{}},
		{"", []string{}},
	}
	for _, tc := range cases {
		if got := ParseRecipientIDs(tc.raw); !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("ParseRecipientIDs(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}

func TestMeetingService_Request(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, time.March, 3, 10, 0, 0, 0, time.UTC)
	valid := RequestMeetingParams{
		Recipients: "10, 11",
		Purpose:    "Quarterly review",
		Start:      start,
		End:        start.Add(time.Hour),
		CallLink:   "https://meet.example.com/abc-defg-hij",
		Notes:      " bring slides ",
	}

	t.Run("submits a validated request", func(t *testing.T) {
		t.Parallel()

		api := newMeetingAPIStub("1")
		svc := NewMeetingService(api, newSessionStub("1", RoleEmployee), CallJoinApprovedOnly, time.UTC)

		meeting, err := svc.Request(context.Background(), valid)
		if err != nil {
			t.Fatalf("Request returned error: %v", err)
		}
		if len(meeting.Recipients) != 2 {
			t.Fatalf("expected two recipients, got %+v", meeting.Recipients)
		}
		if got := api.requested[0]; !reflect.DeepEqual(got.RecipientIDs, []string{"10", "11"}) || got.Notes != "bring slides" {
			t.Fatalf("unexpected payload %+v", got)
		}
	})

	t.Run("reports distinct validation messages", func(t *testing.T) {
		t.Parallel()

		cases := []struct {
			name    string
			mutate  func(*RequestMeetingParams)
			field   string
			message string
		}{
			{"no recipients", func(p *RequestMeetingParams) { p.Recipients = " , " }, "recipients", "Please enter at least one recipient ID"},
			{"missing end", func(p *RequestMeetingParams) { p.End = time.Time{} }, "schedule", "Please enter both start and end times"},
			{"inverted window", func(p *RequestMeetingParams) { p.End = p.Start.Add(-time.Minute) }, "schedule", "End time must be after start time"},
			{"missing purpose", func(p *RequestMeetingParams) { p.Purpose = "" }, "purpose", "Please enter a meeting purpose"},
			{"missing link", func(p *RequestMeetingParams) { p.CallLink = " " }, "call_link", "Please enter a meeting link"},
		}
		for _, tc := range cases {
			tc := tc
			t.Run(tc.name, func(t *testing.T) {
				t.Parallel()

				api := newMeetingAPIStub("1")
				svc := NewMeetingService(api, newSessionStub("1", RoleEmployee), "", nil)
				params := valid
				tc.mutate(&params)

				_, err := svc.Request(context.Background(), params)
				var vErr *ValidationError
				if !errors.As(err, &vErr) {
					t.Fatalf("expected validation error, got %v", err)
				}
				if vErr.FieldErrors[tc.field] != tc.message {
					t.Fatalf("expected %q on %s, got %+v", tc.message, tc.field, vErr.FieldErrors)
				}
				if len(api.requested) != 0 {
					t.Fatal("expected no network call")
				}
			})
		}
	})
}

func TestMeetingService_RespondPerRecipient(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, time.March, 3, 10, 0, 0, 0, time.UTC)
	shared := newMeetingAPIStub("10", sampleMeeting("5", "1", start, "10", "11"))
	apiFor11 := shared.as("11")

	svc10 := NewMeetingService(shared, newSessionStub("10", RoleEmployee), CallJoinApprovedOnly, time.UTC)
	svc11 := NewMeetingService(apiFor11, newSessionStub("11", RoleEmployee), CallJoinApprovedOnly, time.UTC)
	ctx := context.Background()

	if _, err := svc10.LoadIncoming(ctx); err != nil {
		t.Fatalf("LoadIncoming returned error: %v", err)
	}
	if err := svc10.Approve(ctx, "5"); err != nil {
		t.Fatalf("Approve returned error: %v", err)
	}
	if len(svc10.Incoming()) != 0 {
		t.Fatalf("meeting must leave recipient 10's incoming view, got %+v", svc10.Incoming())
	}
	if svc10.ActionInFlight("5") {
		t.Fatal("in-flight flag must clear")
	}

	incoming, err := svc11.LoadIncoming(ctx)
	if err != nil {
		t.Fatalf("LoadIncoming returned error: %v", err)
	}
	if len(incoming) != 1 {
		t.Fatalf("recipient 11 must still see the meeting, got %+v", incoming)
	}
	status, _ := RecipientStatus(incoming[0], "11")
	if status != MembershipPending {
		t.Fatalf("recipient 11 must stay pending, got %q", status)
	}
	status10, _ := RecipientStatus(incoming[0], "10")
	if status10 != MembershipApproved {
		t.Fatalf("recipient 10 must be approved, got %q", status10)
	}
	if summary := Summary(incoming[0]); summary != "10: approved, 11: pending" {
		t.Fatalf("unexpected summary %q", summary)
	}

	if err := svc10.Approve(ctx, "5"); !errors.Is(err, ErrStaleAction) {
		t.Fatalf("expected ErrStaleAction on repeat, got %v", err)
	}

	if err := svc11.Reject(ctx, "5", " conflict "); err != nil {
		t.Fatalf("Reject returned error: %v", err)
	}
	if apiFor11.rejected["5"] != "conflict" {
		t.Fatalf("expected trimmed reason, got %q", apiFor11.rejected["5"])
	}
}

func TestMeetingService_RespondFailureRestores(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, time.March, 3, 10, 0, 0, 0, time.UTC)
	api := newMeetingAPIStub("10", sampleMeeting("5", "1", start, "10"), sampleMeeting("6", "1", start.Add(time.Hour), "10"))
	api.respondErr = &BusinessError{Status: 400, Message: "Meeting request has already been responded to"}
	svc := NewMeetingService(api, newSessionStub("10", RoleEmployee), CallJoinApprovedOnly, time.UTC)

	err := svc.Approve(context.Background(), "5")
	if UserMessage(err) != "Meeting request has already been responded to" {
		t.Fatalf("expected backend message, got %v", err)
	}
	incoming := svc.Incoming()
	if len(incoming) != 2 || incoming[0].ID != "5" {
		t.Fatalf("expected meeting restored, got %+v", incoming)
	}
}

func TestGroupByDate(t *testing.T) {
	t.Parallel()

	tokyo := time.FixedZone("JST", 9*60*60)
	meetings := []Meeting{
		{ID: "late", ScheduleStart: time.Date(2025, time.March, 4, 1, 0, 0, 0, time.UTC)},
		{ID: "crosses-midnight", ScheduleStart: time.Date(2025, time.March, 3, 20, 0, 0, 0, time.UTC)},
		{ID: "first", ScheduleStart: time.Date(2025, time.March, 3, 0, 30, 0, 0, time.UTC)},
		{ID: "second", ScheduleStart: time.Date(2025, time.March, 3, 2, 0, 0, 0, time.UTC)},
	}

	groups := GroupByDate(meetings, tokyo)
	if len(groups) != 2 {
		t.Fatalf("expected two groups, got %d", len(groups))
	}
	if groups[0].Key() != "2025-03-03" || groups[1].Key() != "2025-03-04" {
		t.Fatalf("unexpected group keys %q, %q", groups[0].Key(), groups[1].Key())
	}
	ids := func(g MeetingGroup) []string {
		out := make([]string, 0, len(g.Meetings))
		for _, m := range g.Meetings {
			out = append(out, m.ID)
		}
		return out
	}
	if got := ids(groups[0]); !reflect.DeepEqual(got, []string{"first", "second"}) {
		t.Fatalf("unexpected first group %v", got)
	}
	if got := ids(groups[1]); !reflect.DeepEqual(got, []string{"crosses-midnight", "late"}) {
		t.Fatalf("unexpected second group %v", got)
	}

	if len(GroupByDate(nil, tokyo)) != 0 {
		t.Fatal("expected no groups for no meetings")
	}
}

func TestMeetingService_Status(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, time.March, 3, 10, 0, 0, 0, time.UTC)

	t.Run("groups received and outgoing", func(t *testing.T) {
		t.Parallel()

		api := newMeetingAPIStub("10",
			sampleMeeting("1", "10", start, "11"),
			sampleMeeting("2", "12", start.Add(24*time.Hour), "10"),
		)
		svc := NewMeetingService(api, newSessionStub("10", RoleEmployee), CallJoinApprovedOnly, time.UTC)

		view, err := svc.Status(context.Background())
		if err != nil {
			t.Fatalf("Status returned error: %v", err)
		}
		if len(view.Outgoing) != 1 || view.Outgoing[0].Meetings[0].ID != "1" {
			t.Fatalf("unexpected outgoing %+v", view.Outgoing)
		}
		if len(view.Received) != 1 || view.Received[0].Meetings[0].ID != "2" {
			t.Fatalf("unexpected received %+v", view.Received)
		}

		found, err := svc.Find(context.Background(), "2")
		if err != nil || found.ID != "2" {
			t.Fatalf("Find returned %+v, %v", found, err)
		}
		if _, err := svc.Find(context.Background(), "99"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("propagates a failed fetch", func(t *testing.T) {
		t.Parallel()

		api := newMeetingAPIStub("10")
		api.outgoingErr = &TransportError{Op: "outgoing meetings", Err: errors.New("refused")}
		svc := NewMeetingService(api, newSessionStub("10", RoleEmployee), CallJoinApprovedOnly, time.UTC)

		var tErr *TransportError
		if _, err := svc.Status(context.Background()); !errors.As(err, &tErr) {
			t.Fatalf("expected transport error, got %v", err)
		}
	})
}

func TestMeetingService_Conflicts(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, time.March, 3, 10, 0, 0, 0, time.UTC)
	declined := sampleMeeting("2", "12", start.Add(30*time.Minute), "10", "13")
	declined.Purpose = "Vendor sync"
	declined.Recipients[0].Status = MembershipRejected

	api := newMeetingAPIStub("10",
		sampleMeeting("1", "10", start, "11"),
		declined,
		sampleMeeting("3", "10", start.Add(2*time.Hour), "11"),
	)
	svc := NewMeetingService(api, newSessionStub("10", RoleEmployee), CallJoinApprovedOnly, time.UTC)

	conflicts, err := svc.Conflicts(context.Background(), RequestMeetingParams{
		Recipients: "11, 13",
		Purpose:    "Planning",
		Start:      start.Add(30 * time.Minute),
		End:        start.Add(90 * time.Minute),
		CallLink:   "https://meet.example.com/new",
	})
	if err != nil {
		t.Fatalf("Conflicts returned error: %v", err)
	}

	want := []MeetingConflict{
		{MeetingID: "1", Purpose: "Quarterly review", Participant: "10", Start: start, End: start.Add(time.Hour)},
		{MeetingID: "1", Purpose: "Quarterly review", Participant: "11", Start: start, End: start.Add(time.Hour)},
		{MeetingID: "2", Purpose: "Vendor sync", Participant: "13", Start: start.Add(30 * time.Minute), End: start.Add(90 * time.Minute)},
	}
	if len(conflicts) != len(want) {
		t.Fatalf("expected %d conflicts, got %+v", len(want), conflicts)
	}
	for i := range want {
		got := conflicts[i]
		if got.MeetingID != want[i].MeetingID || got.Participant != want[i].Participant || got.Purpose != want[i].Purpose {
			t.Fatalf("conflict %d: expected %+v, got %+v", i, want[i], got)
		}
		if !got.Start.Equal(want[i].Start) || !got.End.Equal(want[i].End) {
			t.Fatalf("conflict %d: unexpected range %v-%v", i, got.Start, got.End)
		}
	}

	t.Run("invalid request is rejected before fetching", func(t *testing.T) {
		t.Parallel()

		api := newMeetingAPIStub("10")
		api.outgoingErr = errors.New("must not be called")
		svc := NewMeetingService(api, newSessionStub("10", RoleEmployee), CallJoinApprovedOnly, time.UTC)

		var vErr *ValidationError
		if _, err := svc.Conflicts(context.Background(), RequestMeetingParams{Purpose: "Planning"}); !errors.As(err, &vErr) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})
}

func TestMeetingService_JoinCall(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, time.March, 3, 10, 0, 0, 0, time.UTC)
	meeting := sampleMeeting("5", "1", start, "10", "11")
	meeting.Recipients[0].Status = MembershipApproved

	cases := []struct {
		name    string
		user    string
		policy  CallJoinPolicy
		wantErr error
		started bool
	}{
		{"requester starts the call", "1", CallJoinApprovedOnly, nil, true},
		{"approved recipient joins", "10", CallJoinApprovedOnly, nil, false},
		{"pending recipient is refused", "11", CallJoinApprovedOnly, ErrCallNotPermitted, false},
		{"outsider is refused", "99", CallJoinApprovedOnly, ErrCallNotPermitted, false},
		{"open policy admits pending recipient", "11", CallJoinOpen, nil, false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			api := newMeetingAPIStub(tc.user, meeting)
			svc := NewMeetingService(api, newSessionStub(tc.user, RoleEmployee), tc.policy, time.UTC)

			call, err := svc.JoinCall(context.Background(), meeting)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				if len(api.started) != 0 {
					t.Fatal("refused join must not start the call")
				}
				return
			}
			if err != nil {
				t.Fatalf("JoinCall returned error: %v", err)
			}
			if call.RoomID != "room-5" || call.Link != meeting.CallLink {
				t.Fatalf("unexpected call session %+v", call)
			}
			if call.Started != tc.started || (len(api.started) == 1) != tc.started {
				t.Fatalf("expected started=%v, got call %+v and %d start calls", tc.started, call, len(api.started))
			}
		})
	}
}
