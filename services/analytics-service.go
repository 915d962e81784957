package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"sprintsync/microservices/dashboard-service/clients"
	"sprintsync/microservices/dashboard-service/logging"
	"sprintsync/microservices/dashboard-service/models"
)

// SingleUserSeriesKey is the series label used when no per-user breakdown is
// available.
const SingleUserSeriesKey = "Time Tracked"

// Chart is the response shape of the time-tracking endpoint: the bucketed
// series plus the summary numbers shown above it.
type Chart struct {
	Series        models.ChartSeries `json:"series"`
	TotalHours    float64            `json:"totalHours"`
	AveragePerDay float64            `json:"averagePerDay"`
	ActiveUsers   int                `json:"activeUsers"`
	PerUser       bool               `json:"perUser"`
}

// AnalyticsService turns raw time logs into a fixed-length, zero-filled,
// oldest-first chart series.
type AnalyticsService struct {
	client clients.TaskAPI

	// now is swappable so tests can pin the window's end day.
	now func() time.Time
}

func NewAnalyticsService(client clients.TaskAPI) *AnalyticsService {
	return &AnalyticsService{client: client, now: time.Now}
}

// BuildChart fetches the time logs for the window and aggregates them. The
// per-user mode is decided by the shape of the returned logs; if the user
// list then turns out to be unavailable (non-admin callers get 403), the
// chart degrades to single-user mode instead of failing.
func (s *AnalyticsService) BuildChart(ctx context.Context, days int) (*Chart, error) {
	if days <= 0 {
		return nil, fmt.Errorf("invalid chart window: %d days", days)
	}

	logs, err := s.client.GetTimeLogs(ctx, days)
	if err != nil {
		return nil, fmt.Errorf("failed to load time logs: %w", err)
	}

	perUser := len(logs) > 0 && logs[0].PerUser()

	var users []models.User
	if perUser {
		users, err = s.client.GetUsers(ctx)
		if err != nil {
			if errors.Is(err, clients.ErrForbidden) || errors.Is(err, clients.ErrUnauthorized) {
				logging.Logger.Infof("Event ID: ANALYTICS_USERS_FORBIDDEN, Description: Caller may not list users, degrading chart to single-user mode")
			} else {
				logging.Logger.Warnf("Event ID: ANALYTICS_USERS_UNAVAILABLE, Description: User list fetch failed, degrading chart to single-user mode: %v", err)
			}
			perUser = false
			users = nil
		}
	}

	series := Aggregate(logs, users, days, s.now())
	total := TotalHours(series)

	return &Chart{
		Series:        series,
		TotalHours:    total,
		AveragePerDay: AveragePerDay(series),
		ActiveUsers:   len(users),
		PerUser:       perUser,
	}, nil
}

// Aggregate buckets the logs into one entry per calendar day for the
// `days`-long window ending on `now`, oldest first. Days without data are
// zero-filled for every identity; the series length is always exactly `days`.
// When `users` is empty the aggregate total is emitted under
// SingleUserSeriesKey instead of per-username values.
func Aggregate(logs []models.TimeLog, users []models.User, days int, now time.Time) models.ChartSeries {
	byDate := indexByDate(logs)

	series := make(models.ChartSeries, 0, days)
	for i := days - 1; i >= 0; i-- {
		day := now.AddDate(0, 0, -i)
		key := day.Format("2006-01-02")
		entry, ok := byDate[key]

		point := models.ChartPoint{
			Date:   day.Format("Jan 2"),
			Values: make(map[string]float64, len(users)+1),
		}

		if len(users) > 0 {
			minutesByUser := map[string]int{}
			if ok {
				for _, userLog := range entry.Users {
					minutesByUser[userLog.UserID] += userLog.Minutes
				}
			}
			for _, user := range users {
				point.Values[user.Username] = minutesToHours(minutesByUser[user.ID])
			}
		} else {
			minutes := 0
			if ok {
				minutes = entry.TotalMinutes
			}
			point.Values[SingleUserSeriesKey] = minutesToHours(minutes)
		}

		series = append(series, point)
	}
	return series
}

// indexByDate keys the logs by normalized calendar date. Entries whose date
// cannot be parsed are skipped with a warning rather than aborting the whole
// aggregation.
func indexByDate(logs []models.TimeLog) map[string]models.TimeLog {
	byDate := make(map[string]models.TimeLog, len(logs))
	for _, entry := range logs {
		key, err := normalizeDate(entry.Date)
		if err != nil {
			logging.Logger.Warnf("Event ID: ANALYTICS_BAD_DATE, Description: Skipping time log with unparseable date %q: %v", entry.Date, err)
			continue
		}
		if existing, ok := byDate[key]; ok {
			existing.TotalMinutes += entry.TotalMinutes
			existing.Users = append(existing.Users, entry.Users...)
			byDate[key] = existing
			continue
		}
		byDate[key] = entry
	}
	return byDate
}

// normalizeDate reduces a date string to its calendar day. Comparison is by
// date string only, never time-of-day or timezone.
func normalizeDate(raw string) (string, error) {
	day := raw
	if idx := strings.IndexByte(raw, 'T'); idx != -1 {
		day = raw[:idx]
	}
	parsed, err := time.Parse("2006-01-02", day)
	if err != nil {
		return "", err
	}
	return parsed.Format("2006-01-02"), nil
}

// TotalHours sums every identity's value across the whole series.
func TotalHours(series models.ChartSeries) float64 {
	total := 0.0
	for _, point := range series {
		for _, hours := range point.Values {
			total += hours
		}
	}
	return round1(total)
}

// AveragePerDay is the series total divided by its length, 0 for an empty
// series.
func AveragePerDay(series models.ChartSeries) float64 {
	if len(series) == 0 {
		return 0
	}
	return round1(TotalHours(series) / float64(len(series)))
}

func minutesToHours(minutes int) float64 {
	return round1(float64(minutes) / 60)
}

func round1(value float64) float64 {
	return math.Round(value*10) / 10
}
