package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/example/visitor-desk/internal/application"
)

const displayLayout = "Jan 02, 2006 15:04"

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)
)

func statusStyle(status string) lipgloss.Style {
	switch status {
	case string(application.VisitorApproved), string(application.VisitorCheckedIn):
		return okStyle
	case string(application.VisitorPending):
		return warnStyle
	case string(application.VisitorRejected):
		return errorStyle
	default:
		return lipgloss.NewStyle()
	}
}

func formatWhen(t *time.Time, loc *time.Location) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.In(loc).Format(displayLayout)
}

func writeVisitors(w io.Writer, visitors []application.Visitor) {
	if len(visitors) == 0 {
		fmt.Fprintln(w, labelStyle.Render("No visitors found."))
		return
	}
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%-6s %-24s %-28s %-12s %s", "ID", "NAME", "EMAIL", "STATUS", "BADGE")))
	for _, v := range visitors {
		status := statusStyle(string(v.Status)).Render(fmt.Sprintf("%-12s", v.Status))
		fmt.Fprintf(w, "%-6s %-24s %-28s %s %s\n", v.ID, v.FullName, v.Email, status, v.BadgeID)
	}
}

func writeVisitor(w io.Writer, v application.Visitor, loc *time.Location) {
	rows := [][2]string{
		{"ID", v.ID},
		{"Name", v.FullName},
		{"Email", v.Email},
		{"Phone", v.Phone},
		{"Company", v.Company},
		{"Purpose", v.Purpose},
		{"Host", v.HostID},
		{"Badge", v.BadgeID},
		{"Status", statusStyle(string(v.Status)).Render(string(v.Status))},
		{"Pre-approved", fmt.Sprintf("%t", v.PreApproved)},
		{"Window start", formatWhen(v.ApprovalWindowStart, loc)},
		{"Window end", formatWhen(v.ApprovalWindowEnd, loc)},
		{"Checked in", formatWhen(v.CheckInTime, loc)},
		{"Checked out", formatWhen(v.CheckOutTime, loc)},
	}
	fmt.Fprintln(w, panelStyle.Render(keyValues(rows)))
}

func keyValues(rows [][2]string) string {
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		value := row[1]
		if value == "" {
			value = "-"
		}
		lines = append(lines, labelStyle.Render(fmt.Sprintf("%-13s", row[0]))+" "+value)
	}
	return strings.Join(lines, "\n")
}

func writeResult(w io.Writer, verb string, result application.VisitorResult) {
	fmt.Fprintln(w, okStyle.Render(fmt.Sprintf("Visitor %s %s.", result.Visitor.ID, verb)))
	if result.Token != nil {
		fmt.Fprintln(w, labelStyle.Render("Check-in URL:")+" "+result.Token.URL)
	}
	if result.Warning != nil {
		fmt.Fprintln(w, warnStyle.Render(result.Warning.Message()))
	}
}

func writeMeetings(w io.Writer, meetings []application.Meeting, loc *time.Location) {
	if len(meetings) == 0 {
		fmt.Fprintln(w, labelStyle.Render("No meeting requests."))
		return
	}
	for _, m := range meetings {
		start := m.ScheduleStart.In(loc)
		end := m.ScheduleEnd.In(loc)
		fmt.Fprintf(w, "%s %s  %s-%s  from %s\n", titleStyle.Render("#"+m.ID), m.Purpose,
			start.Format(displayLayout), end.Format("15:04"), m.RequestorID)
		if summary := application.Summary(m); summary != "" {
			fmt.Fprintln(w, "  "+labelStyle.Render("recipients:")+" "+summary)
		}
	}
}

func writeMeetingGroups(w io.Writer, heading string, groups []application.MeetingGroup, loc *time.Location) {
	fmt.Fprintln(w, titleStyle.Render(heading))
	if len(groups) == 0 {
		fmt.Fprintln(w, labelStyle.Render("  none"))
		return
	}
	for _, group := range groups {
		fmt.Fprintln(w, labelStyle.Render(group.Key()))
		for _, m := range group.Meetings {
			fmt.Fprintf(w, "  #%s %s %s-%s\n", m.ID, m.Purpose,
				m.ScheduleStart.In(loc).Format("15:04"), m.ScheduleEnd.In(loc).Format("15:04"))
		}
	}
}

func writeConflicts(w io.Writer, conflicts []application.MeetingConflict, loc *time.Location) {
	for _, c := range conflicts {
		fmt.Fprintln(w, warnStyle.Render(fmt.Sprintf("Warning: user %s is already booked for #%s %q (%s-%s).",
			c.Participant, c.MeetingID, c.Purpose, c.Start.In(loc).Format(displayLayout), c.End.In(loc).Format("15:04"))))
	}
}

func writeDashboard(w io.Writer, view application.DashboardView) {
	stats := view.Stats
	cards := []string{
		card("Total visitors", stats.TotalVisitors),
		card("Today", stats.TodayVisitors),
		card("Checked in", stats.CheckedIn),
		card("Pending", stats.Pending),
	}
	fmt.Fprintln(w, lipgloss.JoinHorizontal(lipgloss.Top, cards...))
	fmt.Fprintln(w, labelStyle.Render("Average visit:")+fmt.Sprintf(" %.1f min", stats.AvgVisitDuration)+
		"   "+labelStyle.Render("Pre-approved:")+fmt.Sprintf(" %d", stats.PreApprovedCount)+
		"   "+labelStyle.Render("Without photo:")+fmt.Sprintf(" %d", stats.NoPhotoCount))

	if len(view.Distribution) > 0 {
		fmt.Fprintln(w, titleStyle.Render("Status distribution"))
		for _, share := range view.Distribution {
			fmt.Fprintf(w, "  %s %d (%.1f%%)\n", statusStyle(string(share.Status)).Render(fmt.Sprintf("%-12s", share.Status)), share.Count, share.Percent)
		}
	}
	writeSeries(w, "Expected today by hour", view.Hourly)
	writeSeries(w, "Daily trend", view.Daily)

	if len(stats.RecentCheckedOut) > 0 {
		fmt.Fprintln(w, titleStyle.Render("Recently checked out"))
		for _, r := range stats.RecentCheckedOut {
			fmt.Fprintf(w, "  %s %s\n", r.FullName, labelStyle.Render(r.Ago))
		}
	}
}

func card(label string, value int) string {
	return panelStyle.Width(18).Render(labelStyle.Render(label) + "\n" + titleStyle.Render(fmt.Sprintf("%d", value)))
}

func writeSeries(w io.Writer, heading string, points []application.SeriesPoint) {
	if len(points) == 0 {
		return
	}
	fmt.Fprintln(w, titleStyle.Render(heading))
	for _, p := range points {
		fmt.Fprintf(w, "  %-10s %s %d\n", p.Label, okStyle.Render(strings.Repeat("#", min(p.Count, 40))), p.Count)
	}
}
