package recurrence

import (
	"fmt"
	"time"
)

// Pattern identifies a recurrence cadence
type Pattern string

const (
	PatternDaily     Pattern = "daily"
	PatternWeekly    Pattern = "weekly"
	PatternBiweekly  Pattern = "biweekly"
	PatternMonthly   Pattern = "monthly"
	PatternQuarterly Pattern = "quarterly"
	PatternYearly    Pattern = "yearly"
	// PatternCustom is reserved for weekday-set rules and is not implemented yet.
	// NextDueDate rejects it so a custom task can never silently stop advancing.
	PatternCustom Pattern = "custom"
)

// Options is the recurrence specification attached to a task.
// This is the wire shape exchanged with the API, so field names are stable.
type Options struct {
	Pattern  Pattern    `json:"pattern" validate:"required,recurrence_pattern"`
	Interval int        `json:"interval,omitempty" validate:"omitempty,min=1"`
	Weekdays []int      `json:"weekdays,omitempty" validate:"omitempty,dive,min=0,max=6"`
	MonthDay *int       `json:"month_day,omitempty" validate:"omitempty,min=1,max=31"`
	EndDate  *time.Time `json:"end_date,omitempty"`
	Timezone string     `json:"timezone,omitempty" validate:"omitempty,iana_timezone"`
}

// UnsupportedPatternError is returned when a recurrence pattern is unknown
// or not implemented. It is never recovered locally: silently substituting
// another pattern would corrupt scheduling.
type UnsupportedPatternError struct {
	Pattern Pattern
}

func (e *UnsupportedPatternError) Error() string {
	return fmt.Sprintf("unsupported recurrence pattern: %q", e.Pattern)
}

// NextDueDate computes the next occurrence after max(base, now), in UTC.
//
// The schedule advances from base. If that lands at or before now (the task
// was completed while overdue), the schedule re-anchors on now instead, so
// the returned date is never itself already overdue. Re-anchoring happens
// only in that case: a base one day in the past still yields its natural
// next occurrence when that occurrence lies in the future.
//
// Calendar arithmetic happens on the civil (wall-clock) representation in
// the spec's timezone, so weekly recurrences keep their local weekday and
// hour across DST transitions. Monthly and yearly additions clamp the
// day-of-month to the last valid day of the target month (Jan 31 + 1 month
// = Feb 29 in a leap year).
func NextDueDate(base time.Time, opts Options, now time.Time) (time.Time, error) {
	interval := opts.Interval
	if interval < 1 {
		interval = 1
	}
	loc := loadLocation(opts.Timezone)

	next, err := advance(base, opts.Pattern, interval, loc)
	if err != nil {
		return time.Time{}, err
	}
	if next.After(now) {
		return next, nil
	}
	return advance(now, opts.Pattern, interval, loc)
}

// advance applies one step of the pattern to start's civil time in loc.
func advance(start time.Time, pattern Pattern, interval int, loc *time.Location) (time.Time, error) {
	local := start.In(loc)
	year, month, day := local.Date()
	hour, min, sec := local.Clock()
	nsec := local.Nanosecond()

	switch pattern {
	case PatternDaily:
		day += interval
	case PatternWeekly:
		day += 7 * interval
	case PatternBiweekly:
		// Always exactly two weeks; interval does not apply.
		day += 14
	case PatternMonthly:
		year, month, day = addMonthsClamped(year, month, day, interval)
	case PatternQuarterly:
		year, month, day = addMonthsClamped(year, month, day, 3)
	case PatternYearly:
		year, month, day = addMonthsClamped(year, month, day, 12*interval)
	default:
		return time.Time{}, &UnsupportedPatternError{Pattern: pattern}
	}

	return time.Date(year, month, day, hour, min, sec, nsec, loc).UTC(), nil
}

// IsOverdue reports whether due is strictly before now.
// Callers must handle the nil-due-date case themselves; a task without a
// deadline is never overdue.
func IsOverdue(due, now time.Time) bool {
	return due.Before(now)
}

// addMonthsClamped adds months to a civil date, clamping the day-of-month
// to the last valid day of the target month. time.AddDate is not used here
// because it normalizes overflow (Jan 31 + 1 month = Mar 2/3) instead of
// clamping, which is the wrong semantics for "the 31st of every month".
func addMonthsClamped(year int, month time.Month, day, months int) (int, time.Month, int) {
	total := year*12 + int(month) - 1 + months
	targetYear := total / 12
	targetMonth := time.Month(total%12 + 1)
	if last := daysInMonth(targetYear, targetMonth); day > last {
		day = last
	}
	return targetYear, targetMonth, day
}

// daysInMonth returns the number of days in the given month.
func daysInMonth(year int, month time.Month) int {
	// Day zero of the following month normalizes to the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// loadLocation resolves an IANA zone name, falling back to UTC for empty or
// unknown names. The API validates zone names on ingress, so the fallback
// only applies to legacy rows.
func loadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
