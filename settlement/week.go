package settlement

import "time"

// =============================================================================
// WEEK BOUNDARIES - Settlements run Monday through Sunday
// =============================================================================

// WeekBounds returns the Monday and Sunday bounding the ISO week that
// contains ref. Times are truncated to UTC midnight; the calculator works
// at day granularity.
func WeekBounds(ref time.Time) (monday, sunday time.Time) {
	day := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, time.UTC)

	// time.Weekday puts Sunday at 0; shift so Monday is 0.
	offset := (int(day.Weekday()) + 6) % 7
	monday = day.AddDate(0, 0, -offset)
	sunday = monday.AddDate(0, 0, 6)
	return monday, sunday
}

// SpansMonthEnd reports whether the week [monday, sunday] contains the
// last calendar day of the month in which the week starts. Rent and milk
// are monthly bills; they are deducted exactly once per month, on this
// week.
func SpansMonthEnd(monday, sunday time.Time) bool {
	lastDay := endOfMonth(monday.Year(), monday.Month())
	return !lastDay.Before(dateOnly(monday)) && !lastDay.After(dateOnly(sunday))
}

func endOfMonth(year int, month time.Month) time.Time {
	// First day of the next month, minus one day.
	return time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
