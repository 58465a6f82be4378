package calllog

import "time"

// Stats is derived from the full record collection at read time; it is never stored.
type Stats struct {
	TotalCalls     int `json:"total_calls"`
	ConnectedCalls int `json:"connected_calls"`

	// AverageDurationSeconds averages duration over connected calls only.
	AverageDurationSeconds int `json:"average_duration_seconds"`

	// ConnectionRate is a percentage: 100 * connected / total, 0 for an empty log.
	ConnectionRate float64 `json:"connection_rate"`

	CallsToday     int `json:"calls_today"`
	CallsThisWeek  int `json:"calls_this_week"`
	CallsThisMonth int `json:"calls_this_month"`
}

// ComputeStats aggregates records relative to now.
//
// Calendar boundaries use now's location:
// - today: the current calendar day
// - this week: since the most recent Sunday 00:00 (Sunday-start weeks)
// - this month: since the 1st of the current month
func ComputeStats(records []CallRecord, now time.Time) Stats {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	weekStart := dayStart.AddDate(0, 0, -int(now.Weekday()))
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	var out Stats
	var connectedDuration int
	for _, r := range records {
		out.TotalCalls++
		if r.Outcome == OutcomeConnected {
			out.ConnectedCalls++
			connectedDuration += r.DurationSeconds
		}

		start := r.StartTime.In(now.Location())
		if !start.Before(dayStart) {
			out.CallsToday++
		}
		if !start.Before(weekStart) {
			out.CallsThisWeek++
		}
		if !start.Before(monthStart) {
			out.CallsThisMonth++
		}
	}

	if out.ConnectedCalls > 0 {
		out.AverageDurationSeconds = connectedDuration / out.ConnectedCalls
	}
	if out.TotalCalls > 0 {
		out.ConnectionRate = 100 * float64(out.ConnectedCalls) / float64(out.TotalCalls)
	}
	return out
}
