package model

import (
	"fmt"
	"strings"
	"time"
)

// ConfirmationStatus tracks the patient-facing state of a visit.
type ConfirmationStatus string

const (
	ConfirmationPending           ConfirmationStatus = "pending"
	ConfirmationConfirmed         ConfirmationStatus = "confirmed"
	ConfirmationPendingReschedule ConfirmationStatus = "pending_reschedule"
)

// ParseConfirmationStatus normalizes case at the boundary; upstream systems
// have historically sent mixed-case variants.
func ParseConfirmationStatus(s string) (ConfirmationStatus, error) {
	switch ConfirmationStatus(strings.ToLower(strings.TrimSpace(s))) {
	case ConfirmationPending:
		return ConfirmationPending, nil
	case ConfirmationConfirmed:
		return ConfirmationConfirmed, nil
	case ConfirmationPendingReschedule:
		return ConfirmationPendingReschedule, nil
	}
	return "", fmt.Errorf("unknown confirmation status %q", s)
}

// CheckupStatus tracks the clinical state of a visit. Transitions are
// forward-only: pending -> in_progress -> completed, or pending -> missed.
// A closed record never reopens; a new record is created instead.
type CheckupStatus string

const (
	CheckupPending    CheckupStatus = "pending"
	CheckupInProgress CheckupStatus = "in_progress"
	CheckupCompleted  CheckupStatus = "completed"
	CheckupMissed     CheckupStatus = "missed"
)

func ParseCheckupStatus(s string) (CheckupStatus, error) {
	switch CheckupStatus(strings.ToLower(strings.TrimSpace(s))) {
	case CheckupPending:
		return CheckupPending, nil
	case CheckupInProgress:
		return CheckupInProgress, nil
	case CheckupCompleted:
		return CheckupCompleted, nil
	case CheckupMissed:
		return CheckupMissed, nil
	}
	return "", fmt.Errorf("unknown checkup status %q", s)
}

// Closed reports whether the visit reached a terminal state.
func (s CheckupStatus) Closed() bool {
	return s == CheckupCompleted || s == CheckupMissed
}

// CanTransitionTo enforces the forward-only state machine.
func (s CheckupStatus) CanTransitionTo(next CheckupStatus) bool {
	switch s {
	case CheckupPending:
		return next == CheckupInProgress || next == CheckupCompleted || next == CheckupMissed
	case CheckupInProgress:
		return next == CheckupCompleted
	default:
		return false
	}
}

// Appointment is one visit in a patient's 28-day dialysis check-up chain.
type Appointment struct {
	ID                      string
	PatientID               string
	ProviderID              string
	AppointmentDate         time.Time
	NextAppointmentDate     time.Time
	ConfirmationStatus      ConfirmationStatus
	CheckupStatus           CheckupStatus
	Remarks                 string
	CheckupRemarks          string
	RescheduleReason        string
	RescheduleRequestedDate *time.Time
	RescheduleProcessedAt   *time.Time
	RescheduleProcessedBy   string
	MissedCount             int
	ConfirmedAt             *time.Time
	SuccessorID             string
	CreatedAt               time.Time
	UpdatedAt               time.Time
}
