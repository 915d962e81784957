package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"sprintsync/microservices/dashboard-service/clients"
	"sprintsync/microservices/dashboard-service/models"
	"sprintsync/microservices/dashboard-service/services"
)

func day(year int, month time.Month, dayOfMonth int) time.Time {
	return time.Date(year, month, dayOfMonth, 12, 0, 0, 0, time.UTC)
}

func TestAggregateSeriesLengthIsAlwaysWindowLength(t *testing.T) {
	t.Parallel()

	for _, window := range []int{7, 14, 30} {
		series := services.Aggregate(nil, nil, window, day(2024, time.March, 15))
		if len(series) != window {
			t.Fatalf("expected %d entries for empty input, got %d", window, len(series))
		}
		for _, point := range series {
			if point.Values[services.SingleUserSeriesKey] != 0 {
				t.Fatalf("expected zero-filled entry, got %v", point.Values)
			}
		}
	}
}

func TestAggregateSingleUserScenario(t *testing.T) {
	t.Parallel()

	logs := []models.TimeLog{{Date: "2024-01-01", TotalMinutes: 90}}
	series := services.Aggregate(logs, nil, 1, day(2024, time.January, 1))

	if len(series) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(series))
	}
	if series[0].Date != "Jan 1" {
		t.Fatalf("expected date label 'Jan 1', got %q", series[0].Date)
	}
	if got := series[0].Values[services.SingleUserSeriesKey]; got != 1.5 {
		t.Fatalf("expected 1.5 tracked hours, got %v", got)
	}
}

func TestAggregatePerUserZeroFillsMissingDays(t *testing.T) {
	t.Parallel()

	users := []models.User{
		{ID: "u1", Username: "alice"},
		{ID: "u2", Username: "bob"},
	}
	logs := []models.TimeLog{
		{
			Date: "2024-03-14",
			Users: []models.UserTimeLog{
				{UserID: "u1", Username: "alice", Minutes: 120},
			},
		},
	}

	series := services.Aggregate(logs, users, 3, day(2024, time.March, 15))
	if len(series) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(series))
	}

	// Oldest first: Mar 13, Mar 14, Mar 15.
	if series[0].Date != "Mar 13" || series[2].Date != "Mar 15" {
		t.Fatalf("expected oldest-first ordering, got %q .. %q", series[0].Date, series[2].Date)
	}
	for _, user := range users {
		if _, ok := series[0].Values[user.Username]; !ok {
			t.Fatalf("expected zero entry for %s on empty day", user.Username)
		}
	}
	if got := series[1].Values["alice"]; got != 2.0 {
		t.Fatalf("expected 2 hours for alice on Mar 14, got %v", got)
	}
	if got := series[1].Values["bob"]; got != 0 {
		t.Fatalf("expected 0 hours for bob on Mar 14, got %v", got)
	}
}

func TestAggregateRoundsToOneDecimal(t *testing.T) {
	t.Parallel()

	logs := []models.TimeLog{{Date: "2024-03-15", TotalMinutes: 100}}
	series := services.Aggregate(logs, nil, 1, day(2024, time.March, 15))

	// 100 minutes is 1.666... hours, rounded to 1.7.
	if got := series[0].Values[services.SingleUserSeriesKey]; got != 1.7 {
		t.Fatalf("expected 1.7 hours, got %v", got)
	}
}

func TestAggregateSkipsUnparseableDates(t *testing.T) {
	t.Parallel()

	logs := []models.TimeLog{
		{Date: "not-a-date", TotalMinutes: 600},
		{Date: "2024-03-15T08:30:00Z", TotalMinutes: 60},
	}
	series := services.Aggregate(logs, nil, 1, day(2024, time.March, 15))

	if got := series[0].Values[services.SingleUserSeriesKey]; got != 1.0 {
		t.Fatalf("expected only the valid entry to count, got %v", got)
	}
}

func TestTotalHoursAndAveragePerDay(t *testing.T) {
	t.Parallel()

	series := models.ChartSeries{
		{Date: "Jan 1", Values: map[string]float64{"alice": 1.5, "bob": 2.0}},
		{Date: "Jan 2", Values: map[string]float64{"alice": 0.5, "bob": 0}},
	}

	if got := services.TotalHours(series); got != 4.0 {
		t.Fatalf("expected total of 4 hours, got %v", got)
	}
	if got := services.AveragePerDay(series); got != 2.0 {
		t.Fatalf("expected average of 2 hours per day, got %v", got)
	}
}

func TestAveragePerDayEmptySeries(t *testing.T) {
	t.Parallel()

	if got := services.AveragePerDay(nil); got != 0 {
		t.Fatalf("expected 0 for empty series, got %v", got)
	}
}

func TestBuildChartPerUserMode(t *testing.T) {
	t.Parallel()

	today := time.Now().Format("2006-01-02")
	api := newFakeTaskAPI()
	api.users = []models.User{{ID: "u1", Username: "alice"}}
	api.logs = []models.TimeLog{
		{
			Date:  today,
			Users: []models.UserTimeLog{{UserID: "u1", Username: "alice", Minutes: 30}},
		},
	}

	chart, err := services.NewAnalyticsService(api).BuildChart(context.Background(), 7)
	if err != nil {
		t.Fatalf("BuildChart returned error: %v", err)
	}

	if !chart.PerUser {
		t.Fatalf("expected per-user chart")
	}
	if chart.ActiveUsers != 1 {
		t.Fatalf("expected 1 active user, got %d", chart.ActiveUsers)
	}
	if len(chart.Series) != 7 {
		t.Fatalf("expected 7 entries, got %d", len(chart.Series))
	}
	if got := chart.Series[6].Values["alice"]; got != 0.5 {
		t.Fatalf("expected 0.5 hours for alice today, got %v", got)
	}
	if chart.TotalHours != 0.5 {
		t.Fatalf("expected 0.5 total hours, got %v", chart.TotalHours)
	}
}

func TestBuildChartDegradesToSingleUserWhenUsersForbidden(t *testing.T) {
	t.Parallel()

	today := time.Now().Format("2006-01-02")
	api := newFakeTaskAPI()
	api.getUsersErr = clients.ErrForbidden
	api.logs = []models.TimeLog{
		{
			Date:         today,
			TotalMinutes: 120,
			Users:        []models.UserTimeLog{{UserID: "u1", Username: "alice", Minutes: 120}},
		},
	}

	chart, err := services.NewAnalyticsService(api).BuildChart(context.Background(), 7)
	if err != nil {
		t.Fatalf("expected degraded chart, got error: %v", err)
	}

	if chart.PerUser {
		t.Fatalf("expected chart degraded to single-user mode")
	}
	if chart.ActiveUsers != 0 {
		t.Fatalf("expected empty identity set, got %d users", chart.ActiveUsers)
	}
	if got := chart.Series[6].Values[services.SingleUserSeriesKey]; got != 2.0 {
		t.Fatalf("expected aggregate hours under %q, got %v", services.SingleUserSeriesKey, got)
	}
}

func TestBuildChartSurfacesTimeLogFetchError(t *testing.T) {
	t.Parallel()

	api := newFakeTaskAPI()
	api.getTimeLogsErr = errServiceDown

	if _, err := services.NewAnalyticsService(api).BuildChart(context.Background(), 7); !errors.Is(err, errServiceDown) {
		t.Fatalf("expected fetch error to surface, got %v", err)
	}
}

func TestBuildChartRejectsNonPositiveWindow(t *testing.T) {
	t.Parallel()

	if _, err := services.NewAnalyticsService(newFakeTaskAPI()).BuildChart(context.Background(), 0); err == nil {
		t.Fatalf("expected error for zero-day window")
	}
}
