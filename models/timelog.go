package models

import "encoding/json"

// UserTimeLog is one user's share of a day's tracked time. The users service
// only returns the per-user breakdown to administrators.
type UserTimeLog struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Minutes  int    `json:"minutes"`
	LogCount int    `json:"log_count"`
}

// TimeLog is one calendar day of tracked time as returned by the task service.
// Users is empty for non-admin callers, in which case only TotalMinutes is
// meaningful.
type TimeLog struct {
	Date          string        `json:"date"`
	TotalMinutes  int           `json:"total_minutes"`
	TotalLogCount string        `json:"total_log_count"`
	Users         []UserTimeLog `json:"users,omitempty"`
}

// PerUser reports whether this entry carries a per-user breakdown. The shape
// decision is made here, at the boundary, so the aggregator never has to probe
// response fields downstream.
func (l TimeLog) PerUser() bool {
	return len(l.Users) > 0
}

// ChartPoint is one bucket of the chart series: a display date label plus one
// hour value per tracked identity (usernames in per-user mode, a single fixed
// series key otherwise).
type ChartPoint struct {
	Date   string
	Values map[string]float64
}

// MarshalJSON flattens the point into the shape the chart component consumes:
// {"date": "Jan 1", "alice": 1.5, "bob": 0}.
func (p ChartPoint) MarshalJSON() ([]byte, error) {
	flat := make(map[string]interface{}, len(p.Values)+1)
	flat["date"] = p.Date
	for key, hours := range p.Values {
		flat[key] = hours
	}
	return json.Marshal(flat)
}

type ChartSeries []ChartPoint

// AISuggestion is the response shape of the AI endpoints.
type AISuggestion struct {
	Type       string  `json:"type"`
	Content    string  `json:"content"`
	Confidence float64 `json:"confidence"`
}
