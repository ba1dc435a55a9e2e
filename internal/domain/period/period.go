package period

import (
	"errors"
	"time"
)

// Period types supported by budgets.
const (
	Daily   = "daily"
	Weekly  = "weekly"
	Monthly = "monthly"
)

// ErrInvalidPeriodType is returned for period types other than daily, weekly, monthly.
var ErrInvalidPeriodType = errors.New("invalid period type")

// IsValid checks if the provided period type is supported.
func IsValid(periodType string) bool {
	switch periodType {
	case Daily, Weekly, Monthly:
		return true
	}
	return false
}

// Parent returns the containing period type (daily -> weekly -> monthly).
// Returns an empty string for monthly, which has no parent.
func Parent(periodType string) string {
	switch periodType {
	case Daily:
		return Weekly
	case Weekly:
		return Monthly
	}
	return ""
}

// Window returns the start and end instants of the period containing ref.
// Weekly windows follow ISO semantics (Monday through Sunday). The end is
// the last nanosecond of the window. Dates are treated as local calendar
// days; DST and timezone shifts are not modeled.
func Window(periodType string, ref time.Time) (time.Time, time.Time, error) {
	dayStart := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, ref.Location())

	switch periodType {
	case Daily:
		return dayStart, dayStart.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
	case Weekly:
		// Monday is day 0 in ISO weeks; Go's Weekday starts at Sunday.
		offset := (int(dayStart.Weekday()) + 6) % 7
		start := dayStart.AddDate(0, 0, -offset)
		return start, start.AddDate(0, 0, 7).Add(-time.Nanosecond), nil
	case Monthly:
		start := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, ref.Location())
		return start, start.AddDate(0, 1, 0).Add(-time.Nanosecond), nil
	}

	return time.Time{}, time.Time{}, ErrInvalidPeriodType
}

// ISOWeekNumber returns the ISO 8601 year and week number for t.
func ISOWeekNumber(t time.Time) (year, week int) {
	return t.ISOWeek()
}

// DateOfISOWeek returns the Monday of the given ISO week.
// January 4th is always inside week 1, which anchors the calculation.
func DateOfISOWeek(year, week int) time.Time {
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.Local)
	offset := (int(jan4.Weekday()) + 6) % 7
	week1Monday := jan4.AddDate(0, 0, -offset)
	return week1Monday.AddDate(0, 0, (week-1)*7)
}

// Contains reports whether t falls inside the inclusive [start, end] window.
func Contains(start, end, t time.Time) bool {
	return !t.Before(start) && !t.After(end)
}

// Elapsed reports whether the window ending at end has fully passed as of now.
func Elapsed(end, now time.Time) bool {
	return now.After(end)
}
