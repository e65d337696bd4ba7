package schedule

import (
	"fmt"
	"time"
)

// DateLayout is the ISO calendar date form used for all grid and attendance keys.
const DateLayout = "2006-01-02"

// WeekStart returns the Monday anchoring the week containing t. A Sunday
// belongs to the week that started six days earlier.
func WeekStart(t time.Time) time.Time {
	wd := int(t.Weekday())
	if wd == 0 {
		return t.AddDate(0, 0, -6)
	}
	return t.AddDate(0, 0, -(wd - 1))
}

// WeekStartISO computes the week-start date for any date within the week.
func WeekStartISO(date string) (string, error) {
	t, err := ParseDate(date)
	if err != nil {
		return "", err
	}
	return WeekStart(t).Format(DateLayout), nil
}

// DayDates expands a week start into its seven calendar dates, Monday first.
func DayDates(weekStart string) ([7]string, error) {
	var out [7]string
	t, err := ParseDate(weekStart)
	if err != nil {
		return out, err
	}
	for i := range out {
		out[i] = t.AddDate(0, 0, i).Format(DateLayout)
	}
	return out, nil
}

// ParseDate parses an ISO calendar date.
func ParseDate(date string) (time.Time, error) {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	return t, nil
}

// IsWeekStart reports whether the date is a Monday.
func IsWeekStart(date string) bool {
	t, err := time.Parse(DateLayout, date)
	return err == nil && t.Weekday() == time.Monday
}
