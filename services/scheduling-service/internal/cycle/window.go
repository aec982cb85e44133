package cycle

import "time"

// ReminderStatus is the patient-facing urgency bucket for an upcoming visit.
type ReminderStatus string

const (
	ReminderToday    ReminderStatus = "today"
	ReminderTomorrow ReminderStatus = "tomorrow"
	ReminderInWeek   ReminderStatus = "in_1_week"
	ReminderNone     ReminderStatus = "none"
)

// DaysUntil returns the signed whole-day distance from now to date.
// Negative means the date is in the past.
func DaysUntil(now, date time.Time) int {
	return int(Day(date).Sub(Day(now)).Hours() / 24)
}

// ReminderFor buckets a visit by its day distance from now.
func ReminderFor(now, date time.Time) ReminderStatus {
	d := DaysUntil(now, date)
	switch {
	case d == 0:
		return ReminderToday
	case d == 1:
		return ReminderTomorrow
	case d > 0 && d <= 7:
		return ReminderInWeek
	default:
		return ReminderNone
	}
}

// IsPast reports whether the visit date has already gone by.
func IsPast(now, date time.Time) bool {
	return DaysUntil(now, date) < 0
}

// InConfirmWindow reports whether a patient may self-confirm: only from
// windowDays ahead of the visit through the visit day itself. Early
// confirmations go stale as capacity shifts; late ones are meaningless.
func InConfirmWindow(now, date time.Time, windowDays int) bool {
	d := DaysUntil(now, date)
	return d >= 0 && d <= windowDays
}
