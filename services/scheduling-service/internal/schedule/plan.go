// Package schedule holds the pure decision logic of the appointment
// lifecycle. Functions here take records and instants and return the writes
// to perform; storage and transactions stay in the callers, so every rule in
// this package is unit-testable without a database.
package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/renalworks/pdcare/services/scheduling-service/internal/cycle"
	"github.com/renalworks/pdcare/services/scheduling-service/internal/model"
)

const maxReasonLength = 500

// PlanInitial builds the first record of a patient's chain. The patient is
// standing in the clinic at registration time, so the record is created
// already confirmed for the registration-day visit.
func PlanInitial(patientID, providerID string, date, now time.Time) (model.Appointment, error) {
	next, err := cycle.NextVisit(date)
	if err != nil {
		return model.Appointment{}, err
	}
	confirmedAt := now
	return model.Appointment{
		ID:                  uuid.NewString(),
		PatientID:           patientID,
		ProviderID:          providerID,
		AppointmentDate:     cycle.Day(date),
		NextAppointmentDate: next,
		ConfirmationStatus:  model.ConfirmationConfirmed,
		CheckupStatus:       model.CheckupPending,
		Remarks:             "Initial dialysis check-up at registration",
		ConfirmedAt:         &confirmedAt,
	}, nil
}

// PlanFollowUp builds the successor record once the capacity allocator has
// settled on assignedDate. The new record's own next date is always exactly
// one cycle out from the assigned date.
func PlanFollowUp(prev model.Appointment, assignedDate time.Time) (model.Appointment, error) {
	next, err := cycle.NextVisit(assignedDate)
	if err != nil {
		return model.Appointment{}, err
	}
	return model.Appointment{
		ID:                  uuid.NewString(),
		PatientID:           prev.PatientID,
		ProviderID:          prev.ProviderID,
		AppointmentDate:     cycle.Day(assignedDate),
		NextAppointmentDate: next,
		ConfirmationStatus:  model.ConfirmationPending,
		CheckupStatus:       model.CheckupPending,
		MissedCount:         prev.MissedCount,
	}, nil
}

// PlanConfirm validates a patient self-confirmation and returns the
// confirmation timestamp to record.
func PlanConfirm(appt model.Appointment, now time.Time, windowDays int) (time.Time, error) {
	if appt.ConfirmationStatus == model.ConfirmationConfirmed {
		return time.Time{}, ErrAlreadyConfirmed
	}
	if !cycle.InConfirmWindow(now, appt.AppointmentDate, windowDays) {
		return time.Time{}, ErrOutOfWindow
	}
	return now, nil
}

// PlanStartCheckup validates opening the clinical visit.
func PlanStartCheckup(appt model.Appointment) error {
	if appt.CheckupStatus.Closed() {
		return ErrAlreadyClosed
	}
	if !appt.CheckupStatus.CanTransitionTo(model.CheckupInProgress) {
		return ErrNotInProgress
	}
	return nil
}

// PlanComplete validates closing the visit as completed. The follow-up
// candidate date is the visit's own precomputed next date; the allocator may
// still push it forward.
func PlanComplete(appt model.Appointment) (candidate time.Time, err error) {
	if appt.CheckupStatus.Closed() {
		return time.Time{}, ErrAlreadyClosed
	}
	return appt.NextAppointmentDate, nil
}

// PlanRescheduleRequest validates a patient-submitted reschedule request.
// Patients supply a reason only; the replacement date is staff's call.
func PlanRescheduleRequest(appt model.Appointment, reason string) (string, error) {
	if appt.ConfirmationStatus == model.ConfirmationPendingReschedule {
		return "", ErrReschedulePending
	}
	if appt.CheckupStatus.Closed() {
		return "", ErrAlreadyClosed
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return "", ErrReasonRequired
	}
	if len(reason) > maxReasonLength {
		return "", ErrReasonTooLong
	}
	return reason, nil
}

// RescheduleResolution is the set of writes a staff decision produces.
type RescheduleResolution struct {
	Approved            bool
	AppointmentDate     time.Time
	NextAppointmentDate time.Time
	ConfirmationStatus  model.ConfirmationStatus
	ProcessedAt         time.Time
	ProcessedBy         string
}

// PlanRescheduleResolution validates and shapes a staff approve/reject
// decision. On approval the target date is mandatory and is used verbatim;
// the caller must separately verify capacity on that exact date. On
// rejection the record reverts to pending so the patient can still confirm
// the original slot.
func PlanRescheduleResolution(appt model.Appointment, approve bool, target time.Time, staffID string, now time.Time) (RescheduleResolution, error) {
	if appt.ConfirmationStatus != model.ConfirmationPendingReschedule {
		return RescheduleResolution{}, ErrNoPendingReschedule
	}
	res := RescheduleResolution{
		Approved:    approve,
		ProcessedAt: now,
		ProcessedBy: staffID,
	}
	if !approve {
		res.AppointmentDate = appt.AppointmentDate
		res.NextAppointmentDate = appt.NextAppointmentDate
		res.ConfirmationStatus = model.ConfirmationPending
		return res, nil
	}
	if target.IsZero() {
		if appt.RescheduleRequestedDate == nil {
			return RescheduleResolution{}, ErrTargetDateRequired
		}
		target = *appt.RescheduleRequestedDate
	}
	next, err := cycle.NextVisit(target)
	if err != nil {
		return RescheduleResolution{}, err
	}
	res.AppointmentDate = cycle.Day(target)
	res.NextAppointmentDate = next
	res.ConfirmationStatus = model.ConfirmationConfirmed
	return res, nil
}

// MissedOutcome describes how the sweep closes out one overdue record and
// what replaces it.
type MissedOutcome struct {
	Remarks   string
	Candidate time.Time
	Successor model.Appointment
}

// PlanMissed closes an overdue record and drafts its replacement. The
// restart point is today, not the missed date: the patient must come back a
// full cycle from now. The replacement is clinic-initiated and therefore
// created already confirmed once the allocator assigns its final date (see
// FinalizeMissedSuccessor).
func PlanMissed(appt model.Appointment, today time.Time) (MissedOutcome, error) {
	if appt.CheckupStatus.Closed() || appt.CheckupRemarks != "" {
		// Already swept; the empty-remarks predicate is the de-dup guard.
		return MissedOutcome{}, ErrAlreadyClosed
	}
	candidate, err := cycle.NextVisit(today)
	if err != nil {
		return MissedOutcome{}, err
	}
	return MissedOutcome{Candidate: candidate}, nil
}

// FinalizeMissedSuccessor completes the outcome once capacity has assigned
// the real date.
func FinalizeMissedSuccessor(appt model.Appointment, assignedDate, now time.Time) (MissedOutcome, error) {
	succ, err := PlanFollowUp(appt, assignedDate)
	if err != nil {
		return MissedOutcome{}, err
	}
	succ.MissedCount = appt.MissedCount + 1
	succ.ConfirmationStatus = model.ConfirmationConfirmed
	confirmed := now
	succ.ConfirmedAt = &confirmed
	succ.Remarks = fmt.Sprintf("Rescheduled after missed visit on %s", appt.AppointmentDate.Format("2006-01-02"))
	return MissedOutcome{
		Remarks: fmt.Sprintf("Missed appointment on %s; rescheduled to %s",
			appt.AppointmentDate.Format("2006-01-02"), cycle.Day(assignedDate).Format("2006-01-02")),
		Candidate: assignedDate,
		Successor: succ,
	}, nil
}
