// Package cycle owns the 28-day follow-up arithmetic shared by patient
// registration, checkup completion, and the missed-visit sweep.
package cycle

import (
	"errors"
	"time"
)

// FollowUpOffsetDays is the fixed spacing of the dialysis check-up chain.
// It is a clinical protocol constant, never configuration.
const FollowUpOffsetDays = 28

var ErrInvalidDate = errors.New("invalid base date")

// NextVisit returns base + 28 days, normalized to a calendar day.
func NextVisit(base time.Time) (time.Time, error) {
	if base.IsZero() {
		return time.Time{}, ErrInvalidDate
	}
	return Day(base).AddDate(0, 0, FollowUpOffsetDays), nil
}

// Day strips the time-of-day component, keeping only the calendar date in UTC.
// Appointment dates are day-granular throughout the system.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DayIn returns the calendar day of t as observed in loc, normalized the same
// way Day is. This is how "today" must be computed for clinic-local decisions:
// Day alone would take the UTC date, which near midnight differs from the
// clinic's wall calendar.
func DayIn(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
