package schedule

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/renalworks/pdcare/services/scheduling-service/internal/model"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestPlanInitial(t *testing.T) {
	now := time.Date(2025, 1, 1, 10, 30, 0, 0, time.UTC)
	got, err := PlanInitial("p1", "dr1", day(2025, 1, 1), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ConfirmationStatus != model.ConfirmationConfirmed {
		t.Fatal("registration-day visit must be confirmed")
	}
	if !got.AppointmentDate.Equal(day(2025, 1, 1)) {
		t.Fatalf("wrong appointment date %s", got.AppointmentDate)
	}
	if !got.NextAppointmentDate.Equal(day(2025, 1, 29)) {
		t.Fatalf("expected next date 2025-01-29, got %s", got.NextAppointmentDate)
	}
	if got.ConfirmedAt == nil || !got.ConfirmedAt.Equal(now) {
		t.Fatal("confirmed_at must be the registration instant")
	}
	if got.ID == "" {
		t.Fatal("missing id")
	}
}

func TestPlanFollowUp_ChainsFromAssignedDate(t *testing.T) {
	prev := model.Appointment{PatientID: "p1", ProviderID: "dr1", MissedCount: 2}
	// Capacity pushed the visit two days past the 28-day point.
	got, err := PlanFollowUp(prev, day(2025, 1, 31))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.NextAppointmentDate.Equal(day(2025, 2, 28)) {
		t.Fatalf("next date must chain from the assigned date, got %s", got.NextAppointmentDate)
	}
	if got.ConfirmationStatus != model.ConfirmationPending {
		t.Fatal("follow-up starts pending")
	}
	if got.MissedCount != 2 {
		t.Fatalf("missed count must carry over, got %d", got.MissedCount)
	}
}

func TestPlanConfirm(t *testing.T) {
	appt := model.Appointment{
		AppointmentDate:    day(2025, 3, 10),
		ConfirmationStatus: model.ConfirmationPending,
	}

	if _, err := PlanConfirm(appt, day(2025, 3, 7), 2); !errors.Is(err, ErrOutOfWindow) {
		t.Fatalf("three days ahead: expected ErrOutOfWindow, got %v", err)
	}
	at, err := PlanConfirm(appt, day(2025, 3, 8), 2)
	if err != nil {
		t.Fatalf("two days ahead: unexpected error %v", err)
	}
	if !at.Equal(day(2025, 3, 8)) {
		t.Fatalf("wrong confirmation timestamp %s", at)
	}
	if _, err := PlanConfirm(appt, day(2025, 3, 11), 2); !errors.Is(err, ErrOutOfWindow) {
		t.Fatalf("day after: expected ErrOutOfWindow, got %v", err)
	}

	appt.ConfirmationStatus = model.ConfirmationConfirmed
	if _, err := PlanConfirm(appt, day(2025, 3, 9), 2); !errors.Is(err, ErrAlreadyConfirmed) {
		t.Fatalf("expected ErrAlreadyConfirmed, got %v", err)
	}
}

func TestPlanStartCheckup(t *testing.T) {
	if err := PlanStartCheckup(model.Appointment{CheckupStatus: model.CheckupPending}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := PlanStartCheckup(model.Appointment{CheckupStatus: model.CheckupCompleted}); !errors.Is(err, ErrAlreadyClosed) {
		t.Fatalf("expected ErrAlreadyClosed, got %v", err)
	}
	if err := PlanStartCheckup(model.Appointment{CheckupStatus: model.CheckupInProgress}); !errors.Is(err, ErrNotInProgress) {
		t.Fatalf("expected ErrNotInProgress, got %v", err)
	}
}

func TestPlanComplete(t *testing.T) {
	appt := model.Appointment{
		CheckupStatus:       model.CheckupInProgress,
		NextAppointmentDate: day(2025, 1, 29),
	}
	candidate, err := PlanComplete(appt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !candidate.Equal(day(2025, 1, 29)) {
		t.Fatalf("candidate must be the precomputed next date, got %s", candidate)
	}

	appt.CheckupStatus = model.CheckupMissed
	if _, err := PlanComplete(appt); !errors.Is(err, ErrAlreadyClosed) {
		t.Fatalf("expected ErrAlreadyClosed, got %v", err)
	}
}

func TestPlanRescheduleRequest(t *testing.T) {
	appt := model.Appointment{
		ConfirmationStatus: model.ConfirmationPending,
		CheckupStatus:      model.CheckupPending,
	}

	if _, err := PlanRescheduleRequest(appt, "   "); !errors.Is(err, ErrReasonRequired) {
		t.Fatalf("expected ErrReasonRequired, got %v", err)
	}
	if _, err := PlanRescheduleRequest(appt, strings.Repeat("x", 501)); !errors.Is(err, ErrReasonTooLong) {
		t.Fatalf("expected ErrReasonTooLong, got %v", err)
	}
	reason, err := PlanRescheduleRequest(appt, "  travelling that week  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reason != "travelling that week" {
		t.Fatalf("reason not trimmed: %q", reason)
	}

	appt.ConfirmationStatus = model.ConfirmationPendingReschedule
	if _, err := PlanRescheduleRequest(appt, "again"); !errors.Is(err, ErrReschedulePending) {
		t.Fatalf("expected ErrReschedulePending, got %v", err)
	}

	appt.ConfirmationStatus = model.ConfirmationPending
	appt.CheckupStatus = model.CheckupMissed
	if _, err := PlanRescheduleRequest(appt, "too late"); !errors.Is(err, ErrAlreadyClosed) {
		t.Fatalf("expected ErrAlreadyClosed, got %v", err)
	}
}

func TestPlanRescheduleResolution_Approve(t *testing.T) {
	appt := model.Appointment{
		ConfirmationStatus:  model.ConfirmationPendingReschedule,
		AppointmentDate:     day(2025, 3, 10),
		NextAppointmentDate: day(2025, 4, 7),
	}
	now := time.Date(2025, 3, 5, 9, 0, 0, 0, time.UTC)

	res, err := PlanRescheduleResolution(appt, true, day(2025, 3, 14), "staff-1", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.AppointmentDate.Equal(day(2025, 3, 14)) {
		t.Fatalf("wrong new date %s", res.AppointmentDate)
	}
	if !res.NextAppointmentDate.Equal(day(2025, 4, 11)) {
		t.Fatalf("next date must chain from the new date, got %s", res.NextAppointmentDate)
	}
	if res.ConfirmationStatus != model.ConfirmationConfirmed {
		t.Fatal("approved reschedule must land confirmed")
	}
	if res.ProcessedBy != "staff-1" || !res.ProcessedAt.Equal(now) {
		t.Fatal("audit fields not set")
	}
}

func TestPlanRescheduleResolution_ApproveNeedsDate(t *testing.T) {
	appt := model.Appointment{ConfirmationStatus: model.ConfirmationPendingReschedule}
	if _, err := PlanRescheduleResolution(appt, true, time.Time{}, "staff-1", day(2025, 3, 5)); !errors.Is(err, ErrTargetDateRequired) {
		t.Fatalf("expected ErrTargetDateRequired, got %v", err)
	}
}

func TestPlanRescheduleResolution_RejectRevertsToPending(t *testing.T) {
	appt := model.Appointment{
		ConfirmationStatus:  model.ConfirmationPendingReschedule,
		AppointmentDate:     day(2025, 3, 10),
		NextAppointmentDate: day(2025, 4, 7),
	}
	res, err := PlanRescheduleResolution(appt, false, time.Time{}, "staff-1", day(2025, 3, 5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ConfirmationStatus != model.ConfirmationPending {
		t.Fatal("rejection must revert to pending")
	}
	if !res.AppointmentDate.Equal(day(2025, 3, 10)) || !res.NextAppointmentDate.Equal(day(2025, 4, 7)) {
		t.Fatal("rejection must keep the original dates")
	}
}

func TestPlanRescheduleResolution_NoPendingRequest(t *testing.T) {
	appt := model.Appointment{ConfirmationStatus: model.ConfirmationPending}
	if _, err := PlanRescheduleResolution(appt, true, day(2025, 3, 14), "staff-1", day(2025, 3, 5)); !errors.Is(err, ErrNoPendingReschedule) {
		t.Fatalf("expected ErrNoPendingReschedule, got %v", err)
	}
}

func TestPlanMissed(t *testing.T) {
	appt := model.Appointment{
		AppointmentDate: day(2025, 3, 1),
		CheckupStatus:   model.CheckupPending,
	}
	// Swept on March 5th: the restart point is today + 28, not missed + 28.
	out, err := PlanMissed(appt, day(2025, 3, 5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Candidate.Equal(day(2025, 4, 2)) {
		t.Fatalf("expected candidate 2025-04-02, got %s", out.Candidate)
	}
}

func TestPlanMissed_AlreadySwept(t *testing.T) {
	appt := model.Appointment{
		AppointmentDate: day(2025, 3, 1),
		CheckupStatus:   model.CheckupPending,
		CheckupRemarks:  "Missed appointment on 2025-03-01; rescheduled to 2025-04-02",
	}
	if _, err := PlanMissed(appt, day(2025, 3, 5)); !errors.Is(err, ErrAlreadyClosed) {
		t.Fatalf("expected ErrAlreadyClosed, got %v", err)
	}

	appt.CheckupRemarks = ""
	appt.CheckupStatus = model.CheckupCompleted
	if _, err := PlanMissed(appt, day(2025, 3, 5)); !errors.Is(err, ErrAlreadyClosed) {
		t.Fatalf("expected ErrAlreadyClosed for closed record, got %v", err)
	}
}

func TestFinalizeMissedSuccessor(t *testing.T) {
	appt := model.Appointment{
		PatientID:       "p1",
		ProviderID:      "dr1",
		AppointmentDate: day(2025, 3, 1),
		MissedCount:     1,
	}
	now := time.Date(2025, 3, 5, 22, 15, 0, 0, time.UTC)

	out, err := FinalizeMissedSuccessor(appt, day(2025, 4, 2), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Successor.MissedCount != 2 {
		t.Fatalf("expected missed count 2, got %d", out.Successor.MissedCount)
	}
	if out.Successor.ConfirmationStatus != model.ConfirmationConfirmed {
		t.Fatal("clinic-initiated replacement must be confirmed")
	}
	if out.Successor.ConfirmedAt == nil || !out.Successor.ConfirmedAt.Equal(now) {
		t.Fatal("confirmed_at must be the sweep instant")
	}
	if !out.Successor.NextAppointmentDate.Equal(day(2025, 4, 30)) {
		t.Fatalf("successor next date wrong: %s", out.Successor.NextAppointmentDate)
	}
	if !strings.Contains(out.Remarks, "2025-03-01") || !strings.Contains(out.Remarks, "2025-04-02") {
		t.Fatalf("remarks must name both dates: %q", out.Remarks)
	}
}
