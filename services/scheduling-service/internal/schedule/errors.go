package schedule

import "errors"

var (
	ErrOutOfWindow         = errors.New("appointment is outside the confirmation window")
	ErrAlreadyConfirmed    = errors.New("appointment already confirmed")
	ErrAlreadyClosed       = errors.New("appointment already completed or missed")
	ErrNotInProgress       = errors.New("appointment checkup is not open")
	ErrReasonRequired      = errors.New("reschedule reason is required")
	ErrReasonTooLong       = errors.New("reschedule reason exceeds maximum length")
	ErrNoPendingReschedule = errors.New("no reschedule request pending")
	ErrReschedulePending   = errors.New("a reschedule request is already pending")
	ErrTargetDateRequired  = errors.New("target date is required to approve a reschedule")
	ErrScheduleExists      = errors.New("patient already has an open appointment")
)
