package application

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
)

// DashboardAPI exposes the backend statistics endpoint.
type DashboardAPI interface {
	DashboardStats(ctx context.Context) (DashboardStats, error)
}

// DashboardService projects server computed statistics for display.
type DashboardService struct {
	api     DashboardAPI
	session SessionGate
	logger  *slog.Logger
}

// NewDashboardService constructs a DashboardService.
func NewDashboardService(api DashboardAPI, session SessionGate, logger *slog.Logger) *DashboardService {
	return &DashboardService{api: api, session: session, logger: defaultLogger(logger)}
}

// Load fetches the statistics and orders them into chart-ready series.
func (s *DashboardService) Load(ctx context.Context) (DashboardView, error) {
	if s == nil || s.api == nil {
		return DashboardView{}, fmt.Errorf("dashboard api not configured")
	}
	if _, err := requirePrincipal(ctx, s.session); err != nil {
		return DashboardView{}, err
	}

	stats, err := s.api.DashboardStats(ctx)
	if err != nil {
		serviceLogger(ctx, s.logger, "DashboardService", "Load").ErrorContext(ctx, "failed to load dashboard stats", "error", err, "error_kind", ErrorKind(err))
		return DashboardView{}, err
	}
	return ProjectDashboard(stats), nil
}

// ProjectDashboard orders the stats maps; it does not change any value.
func ProjectDashboard(stats DashboardStats) DashboardView {
	view := DashboardView{Stats: stats}

	view.Hourly = make([]SeriesPoint, 0, 24)
	for hour := 0; hour < 24; hour++ {
		label := fmt.Sprintf("%02d:00", hour)
		view.Hourly = append(view.Hourly, SeriesPoint{Label: label, Count: stats.HourlyExpected[label]})
	}

	days := make([]string, 0, len(stats.DailyTrend))
	for day := range stats.DailyTrend {
		days = append(days, day)
	}
	// YYYY-MM-DD sorts chronologically as text.
	sort.Strings(days)
	view.Daily = make([]SeriesPoint, 0, len(days))
	for _, day := range days {
		view.Daily = append(view.Daily, SeriesPoint{Label: day, Count: stats.DailyTrend[day]})
	}

	total := 0
	for _, status := range VisitorStatuses {
		total += stats.StatusDistribution[status]
	}
	view.Distribution = make([]StatusShare, 0, len(VisitorStatuses))
	for _, status := range VisitorStatuses {
		count := stats.StatusDistribution[status]
		share := StatusShare{Status: status, Count: count}
		if total > 0 {
			share.Percent = math.Round(float64(count)*1000/float64(total)) / 10
		}
		view.Distribution = append(view.Distribution, share)
	}

	return view
}
