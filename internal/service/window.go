package service

import "time"

// WeeklyWindow resolves the default newsletter window: the closed-open
// interval [previous Monday, this Monday) relative to now. A Tuesday
// 2024-01-09 therefore yields 2024-01-01 through 2024-01-08.
func WeeklyWindow(now time.Time) (start, end time.Time) {
	daysSinceMonday := (int(now.Weekday()) + 6) % 7

	monday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).
		AddDate(0, 0, -daysSinceMonday)

	return monday.AddDate(0, 0, -7), monday
}
