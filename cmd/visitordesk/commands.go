package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/visitor-desk/internal/application"
)

// inputLayout is how schedule and approval window flags are written.
const inputLayout = "2006-01-02 15:04"

func newRootCommand(d *desk) *cobra.Command {
	root := &cobra.Command{
		Use:           "visitordesk",
		Short:         "Visitor management and meeting scheduling desk",
		Long:          `visitordesk registers and checks in visitors, handles meeting requests and runs the check-in kiosk against the visitor management backend.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newLoginCommand(d),
		newLogoutCommand(d),
		newWhoamiCommand(d),
		newRegisterUserCommand(d),
		newUsersCommand(d),
		newVisitorsCommand(d),
		newMeetingsCommand(d),
		newDashboardCommand(d),
		newChatCommand(d),
		newKioskCommand(d),
	)
	return root
}

func parseLocal(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(inputLayout, raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q, expected YYYY-MM-DD HH:MM", raw)
	}
	return t, nil
}

// ----------------------------- Account -----------------------------------

func newLoginCommand(d *desk) *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			principal, err := d.auth.Login(cmd.Context(), username, password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render(fmt.Sprintf("Logged in as %s (%s).", principal.Profile.Name, principal.Profile.Role)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "account username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password")
	return cmd
}

func newLogoutCommand(d *desk) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := d.auth.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}

func newWhoamiCommand(d *desk) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			principal, err := d.auth.Whoami(cmd.Context())
			if err != nil {
				return err
			}
			p := principal.Profile
			fmt.Fprintln(cmd.OutOrStdout(), panelStyle.Render(keyValues([][2]string{
				{"ID", p.ID},
				{"Username", p.Name},
				{"Email", p.Email},
				{"Department", p.Department},
				{"Role", string(p.Role)},
			})))
			return nil
		},
	}
}

func newRegisterUserCommand(d *desk) *cobra.Command {
	var params application.RegisterUserParams
	var role string
	cmd := &cobra.Command{
		Use:   "register-user",
		Short: "Create a desk account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			params.Role = application.Role(role)
			if err := d.auth.Register(cmd.Context(), params); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("Registration successful. You can now log in."))
			return nil
		},
	}
	cmd.Flags().StringVar(&params.Username, "username", "", "account username")
	cmd.Flags().StringVar(&params.Email, "email", "", "account email")
	cmd.Flags().StringVar(&params.Password, "password", "", "account password")
	cmd.Flags().StringVar(&params.Department, "department", "", "department")
	cmd.Flags().StringVar(&role, "role", string(application.RoleEmployee), "role: employee, security or admin")
	return cmd
}

func newUsersCommand(d *desk) *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List accounts that can host visitors or receive meetings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			users, err := d.auth.Users(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("%-6s %-20s %-28s %-16s %s", "ID", "USERNAME", "EMAIL", "DEPARTMENT", "ROLE")))
			for _, u := range users {
				fmt.Fprintf(out, "%-6s %-20s %-28s %-16s %s\n", u.ID, u.Name, u.Email, u.Department, u.Role)
			}
			return nil
		},
	}
}

// ----------------------------- Visitors ----------------------------------

func newVisitorsCommand(d *desk) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "visitors",
		Short: "Register, review and check in visitors",
	}
	cmd.AddCommand(
		newVisitorsListCommand(d),
		newVisitorsPendingCommand(d),
		newVisitorsShowCommand(d),
		newVisitorsRegisterCommand(d),
		newVisitorsApproveCommand(d),
		newVisitorsRejectCommand(d),
		newVisitorsCheckInCommand(d),
		newVisitorsCheckOutCommand(d),
		newVisitorsTokenCommand(d),
	)
	return cmd
}

func addListFlags(cmd *cobra.Command, params *application.ListVisitorsParams, status *string) {
	if status != nil {
		cmd.Flags().StringVar(status, "status", "", "filter by status")
	}
	cmd.Flags().StringVar(&params.Search, "search", "", "search term")
	cmd.Flags().StringVar(&params.Sort, "sort", "", "sort order")
	cmd.Flags().IntVar(&params.Page, "page", 0, "page number")
	cmd.Flags().IntVar(&params.Limit, "limit", 0, "page size")
}

func newVisitorsListCommand(d *desk) *cobra.Command {
	var params application.ListVisitorsParams
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List visitors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			params.Status = application.VisitorStatus(status)
			visitors, err := d.visitors.List(cmd.Context(), params)
			if err != nil {
				return err
			}
			writeVisitors(cmd.OutOrStdout(), visitors)
			return nil
		},
	}
	addListFlags(cmd, &params, &status)
	return cmd
}

func newVisitorsPendingCommand(d *desk) *cobra.Command {
	var params application.ListVisitorsParams
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List visitors waiting for approval",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			visitors, err := d.visitors.LoadPending(cmd.Context(), params)
			if err != nil {
				return err
			}
			writeVisitors(cmd.OutOrStdout(), visitors)
			return nil
		},
	}
	addListFlags(cmd, &params, nil)
	return cmd
}

func newVisitorsShowCommand(d *desk) *cobra.Command {
	return &cobra.Command{
		Use:   "show <visitor-id>",
		Short: "Show one visitor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			visitor, err := d.visitors.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			writeVisitor(cmd.OutOrStdout(), visitor, d.cfg.Location)
			return nil
		},
	}
}

func newVisitorsRegisterCommand(d *desk) *cobra.Command {
	var params application.RegisterVisitorParams
	var photoPath, windowStart, windowEnd string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a visitor, optionally pre-approved for a time window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if params.ApprovalWindowStart, err = parseLocal(windowStart, d.cfg.Location); err != nil {
				return err
			}
			if params.ApprovalWindowEnd, err = parseLocal(windowEnd, d.cfg.Location); err != nil {
				return err
			}
			if photoPath != "" {
				if params.Photo, err = os.ReadFile(photoPath); err != nil {
					return fmt.Errorf("read photo: %w", err)
				}
				params.PhotoContentType = http.DetectContentType(params.Photo)
			}

			result, err := d.visitors.Register(cmd.Context(), params)
			if err != nil {
				return err
			}
			writeResult(cmd.OutOrStdout(), "registered", result)
			return nil
		},
	}
	cmd.Flags().StringVar(&params.FullName, "name", "", "visitor full name")
	cmd.Flags().StringVar(&params.Email, "email", "", "visitor email")
	cmd.Flags().StringVar(&params.Phone, "phone", "", "visitor phone")
	cmd.Flags().StringVar(&params.Company, "company", "", "visitor company")
	cmd.Flags().StringVar(&params.Purpose, "purpose", "", "purpose of the visit")
	cmd.Flags().StringVar(&params.HostID, "host", "", "host user id")
	cmd.Flags().BoolVar(&params.PreApproved, "pre-approved", false, "register as pre-approved")
	cmd.Flags().StringVar(&windowStart, "window-start", "", "approval window start (YYYY-MM-DD HH:MM)")
	cmd.Flags().StringVar(&windowEnd, "window-end", "", "approval window end (YYYY-MM-DD HH:MM)")
	cmd.Flags().StringVar(&photoPath, "photo", "", "path to a JPEG or PNG photo")
	return cmd
}

func newVisitorsApproveCommand(d *desk) *cobra.Command {
	return &cobra.Command{
		Use:   "approve <visitor-id>",
		Short: "Approve a pending visitor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := d.visitors.Approve(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			writeResult(cmd.OutOrStdout(), "approved", result)
			return nil
		},
	}
}

func newVisitorsRejectCommand(d *desk) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "reject <visitor-id>",
		Short: "Reject a pending visitor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := d.visitors.Reject(cmd.Context(), args[0], reason)
			if err != nil {
				return err
			}
			writeResult(cmd.OutOrStdout(), "rejected", result)
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "reason sent to the visitor")
	return cmd
}

func newVisitorsCheckInCommand(d *desk) *cobra.Command {
	return &cobra.Command{
		Use:   "check-in <code>",
		Short: "Check in a visitor from a scanned code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			visitor, err := d.visitors.CheckInWithToken(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render(fmt.Sprintf("%s checked in at %s.", visitor.FullName, formatWhen(visitor.CheckInTime, d.cfg.Location))))
			return nil
		},
	}
}

func newVisitorsCheckOutCommand(d *desk) *cobra.Command {
	return &cobra.Command{
		Use:   "check-out <visitor-id>",
		Short: "Check out a visitor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			visitor, err := d.visitors.CheckOut(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render(fmt.Sprintf("%s checked out at %s.", visitor.FullName, formatWhen(visitor.CheckOutTime, d.cfg.Location))))
			return nil
		},
	}
}

func newVisitorsTokenCommand(d *desk) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "token <visitor-id>",
		Short: "Print the check-in URL of an approved visitor and optionally save its QR code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			visitor, err := d.visitors.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			token, err := d.visitors.CheckInToken(visitor)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token.URL)
			if output == "" {
				return nil
			}
			if len(token.PNG) == 0 {
				return fmt.Errorf("no QR image was rendered for visitor %s", visitor.ID)
			}
			if err := os.WriteFile(output, token.PNG, 0o644); err != nil {
				return fmt.Errorf("write QR image: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), labelStyle.Render("QR code saved to "+output))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the QR code PNG to this file")
	return cmd
}

// ----------------------------- Meetings ----------------------------------

func newMeetingsCommand(d *desk) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "meetings",
		Short: "Request, answer and join meetings",
	}
	cmd.AddCommand(
		newMeetingsRequestCommand(d),
		newMeetingsIncomingCommand(d),
		newMeetingsStatusCommand(d),
		newMeetingsApproveCommand(d),
		newMeetingsRejectCommand(d),
		newMeetingsJoinCommand(d),
	)
	return cmd
}

func newMeetingsRequestCommand(d *desk) *cobra.Command {
	var params application.RequestMeetingParams
	var start, end string
	cmd := &cobra.Command{
		Use:   "request",
		Short: "Send a meeting request",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var err error
			if params.Start, err = parseLocal(start, d.cfg.Location); err != nil {
				return err
			}
			if params.End, err = parseLocal(end, d.cfg.Location); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			conflicts, err := d.meetings.Conflicts(ctx, params)
			switch {
			case err == nil:
				writeConflicts(out, conflicts, d.cfg.Location)
			case application.ErrorKind(err) == "validation", application.ErrorKind(err) == "not_authenticated":
				return err
			default:
				// The overlap check is advisory; the request still goes out.
				d.logger.WarnContext(ctx, "meeting overlap check failed", "error", err)
			}

			meeting, err := d.meetings.Request(ctx, params)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, okStyle.Render(fmt.Sprintf("Meeting request #%s sent to %d recipient(s).", meeting.ID, len(meeting.Recipients))))
			return nil
		},
	}
	cmd.Flags().StringVar(&params.Recipients, "to", "", "comma separated recipient user ids")
	cmd.Flags().StringVar(&params.Purpose, "purpose", "", "meeting purpose")
	cmd.Flags().StringVar(&start, "start", "", "start time (YYYY-MM-DD HH:MM)")
	cmd.Flags().StringVar(&end, "end", "", "end time (YYYY-MM-DD HH:MM)")
	cmd.Flags().StringVar(&params.CallLink, "link", "", "video call link")
	cmd.Flags().StringVar(&params.Notes, "notes", "", "notes for the recipients")
	return cmd
}

func newMeetingsIncomingCommand(d *desk) *cobra.Command {
	return &cobra.Command{
		Use:   "incoming",
		Short: "List meeting requests waiting for your answer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			meetings, err := d.meetings.LoadIncoming(cmd.Context())
			if err != nil {
				return err
			}
			writeMeetings(cmd.OutOrStdout(), meetings, d.cfg.Location)
			return nil
		},
	}
}

func newMeetingsStatusCommand(d *desk) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show received and outgoing meetings by date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			view, err := d.meetings.Status(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			writeMeetingGroups(out, "Received", view.Received, d.cfg.Location)
			writeMeetingGroups(out, "Outgoing", view.Outgoing, d.cfg.Location)
			return nil
		},
	}
}

func newMeetingsApproveCommand(d *desk) *cobra.Command {
	return &cobra.Command{
		Use:   "approve <meeting-id>",
		Short: "Accept a meeting request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := d.meetings.Approve(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("Meeting #"+args[0]+" approved."))
			return nil
		},
	}
}

func newMeetingsRejectCommand(d *desk) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "reject <meeting-id>",
		Short: "Decline a meeting request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := d.meetings.Reject(cmd.Context(), args[0], reason); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Meeting #"+args[0]+" rejected.")
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "reason shown to the requester")
	return cmd
}

func newMeetingsJoinCommand(d *desk) *cobra.Command {
	return &cobra.Command{
		Use:   "join <meeting-id>",
		Short: "Join a meeting's video call",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			meeting, err := d.meetings.Find(ctx, args[0])
			if err != nil {
				return err
			}
			call, err := d.meetings.JoinCall(ctx, meeting)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if call.Started {
				fmt.Fprintln(out, okStyle.Render("Call started."))
			}
			fmt.Fprintln(out, labelStyle.Render("Room:")+" "+call.RoomID)
			fmt.Fprintln(out, labelStyle.Render("Link:")+" "+call.Link)
			return nil
		},
	}
}

// ----------------------------- Dashboard and chat ------------------------

func newDashboardCommand(d *desk) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show visitor statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			view, err := d.dashboard.Load(cmd.Context())
			if err != nil {
				return err
			}
			writeDashboard(cmd.OutOrStdout(), view)
			return nil
		},
	}
}

func newChatCommand(d *desk) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "chat <message>",
		Short: "Ask the desk assistant a question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			history := d.chat.History(ctx, path)
			result, err := d.chat.Send(ctx, path, strings.Join(args, " "), history)
			out := cmd.OutOrStdout()
			if result.Reply.Content != "" {
				fmt.Fprintln(out, result.Reply.Content)
			}
			for _, failure := range result.Failures {
				fmt.Fprintln(cmd.ErrOrStderr(), warnStyle.Render(failure.Error()))
			}
			if err != nil && len(result.Failures) == 0 {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "path", "/", "page the question is about")
	return cmd
}
