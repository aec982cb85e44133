package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/renalworks/pdcare/libs/auth"
	"github.com/renalworks/pdcare/libs/clock"
	"github.com/renalworks/pdcare/libs/httpx"
	"github.com/renalworks/pdcare/services/scheduling-service/internal/capacity"
	"github.com/renalworks/pdcare/services/scheduling-service/internal/cycle"
	"github.com/renalworks/pdcare/services/scheduling-service/internal/model"
	"github.com/renalworks/pdcare/services/scheduling-service/internal/outbox"
	"github.com/renalworks/pdcare/services/scheduling-service/internal/schedule"
	"github.com/renalworks/pdcare/services/scheduling-service/internal/storage"
)

const dateLayout = "2006-01-02"

type AppointmentHandler struct {
	repo       *storage.AppointmentRepository
	outboxRepo *outbox.Repository
	alloc      capacity.Allocator
	clk        clock.Clock
	logger     *slog.Logger
	windowDays int
}

func NewAppointmentHandler(repo *storage.AppointmentRepository, outboxRepo *outbox.Repository, alloc capacity.Allocator, clk clock.Clock, logger *slog.Logger, windowDays int) *AppointmentHandler {
	return &AppointmentHandler{
		repo:       repo,
		outboxRepo: outboxRepo,
		alloc:      alloc,
		clk:        clk,
		logger:     logger,
		windowDays: windowDays,
	}
}

type appointmentItem struct {
	ID                  string `json:"id"`
	PatientID           string `json:"patient_id"`
	ProviderID          string `json:"provider_id"`
	AppointmentDate     string `json:"appointment_date"`
	NextAppointmentDate string `json:"next_appointment_date"`
	ConfirmationStatus  string `json:"confirmation_status"`
	CheckupStatus       string `json:"checkup_status"`
	Remarks             string `json:"remarks,omitempty"`
	CheckupRemarks      string `json:"checkup_remarks,omitempty"`
	RescheduleReason    string `json:"reschedule_reason,omitempty"`
	MissedCount         int    `json:"missed_count"`
	ConfirmedAt         string `json:"confirmed_at,omitempty"`
	ReminderStatus      string `json:"reminder_status"`
	IsPast              bool   `json:"is_past"`
}

func (h *AppointmentHandler) item(a model.Appointment) appointmentItem {
	now := h.clk.Now()
	it := appointmentItem{
		ID:                  a.ID,
		PatientID:           a.PatientID,
		ProviderID:          a.ProviderID,
		AppointmentDate:     a.AppointmentDate.Format(dateLayout),
		NextAppointmentDate: a.NextAppointmentDate.Format(dateLayout),
		ConfirmationStatus:  string(a.ConfirmationStatus),
		CheckupStatus:       string(a.CheckupStatus),
		Remarks:             a.Remarks,
		CheckupRemarks:      a.CheckupRemarks,
		RescheduleReason:    a.RescheduleReason,
		MissedCount:         a.MissedCount,
		ReminderStatus:      string(cycle.ReminderFor(now, a.AppointmentDate)),
		IsPast:              cycle.IsPast(now, a.AppointmentDate),
	}
	if a.ConfirmedAt != nil {
		it.ConfirmedAt = a.ConfirmedAt.UTC().Format(time.RFC3339)
	}
	return it
}

type createScheduleRequest struct {
	PatientID       string `json:"patient_id"`
	ProviderID      string `json:"provider_id"`
	AppointmentDate string `json:"appointment_date"`
}

// CreateSchedule registers the first two records of a patient's chain: the
// registration-day visit plus its 28-day follow-up.
func (h *AppointmentHandler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.PatientID = strings.TrimSpace(req.PatientID)
	req.ProviderID = strings.TrimSpace(req.ProviderID)
	if req.PatientID == "" || req.ProviderID == "" {
		http.Error(w, "patient_id and provider_id required", http.StatusBadRequest)
		return
	}
	date, err := time.Parse(dateLayout, strings.TrimSpace(req.AppointmentDate))
	if err != nil {
		http.Error(w, "invalid appointment_date", http.StatusBadRequest)
		return
	}

	initial, followUp, err := h.CreateInitialSchedule(r.Context(), req.PatientID, req.ProviderID, date)
	if err != nil {
		h.writeDomainError(w, err, "failed to create schedule")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"initial":   h.item(initial),
		"follow_up": h.item(followUp),
	})
}

// CreateInitialSchedule is also invoked by the patient-registered event
// consumer, so the whole unit lives behind one method: both records, the
// capacity decisions, and the outbox write commit or roll back together.
func (h *AppointmentHandler) CreateInitialSchedule(ctx context.Context, patientID, providerID string, date time.Time) (model.Appointment, model.Appointment, error) {
	now := h.clk.Now()
	initial, err := schedule.PlanInitial(patientID, providerID, date, now)
	if err != nil {
		return model.Appointment{}, model.Appointment{}, err
	}

	tx, err := h.repo.Begin(ctx)
	if err != nil {
		return model.Appointment{}, model.Appointment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	open, err := h.repo.HasOpenAfter(ctx, tx, patientID, cycle.Day(now))
	if err != nil {
		return model.Appointment{}, model.Appointment{}, err
	}
	if open {
		return model.Appointment{}, model.Appointment{}, schedule.ErrScheduleExists
	}

	locker := h.repo.DayLocker(tx)

	// The registration-day visit is confirmed on the chosen date; it must fit
	// that exact day rather than drift.
	if err := h.alloc.Check(ctx, locker, initial.AppointmentDate); err != nil {
		return model.Appointment{}, model.Appointment{}, err
	}
	if err := h.repo.Create(ctx, tx, &initial); err != nil {
		return model.Appointment{}, model.Appointment{}, err
	}

	assigned, err := h.alloc.Allocate(ctx, locker, initial.NextAppointmentDate)
	if err != nil {
		return model.Appointment{}, model.Appointment{}, err
	}
	followUp, err := schedule.PlanFollowUp(initial, assigned)
	if err != nil {
		return model.Appointment{}, model.Appointment{}, err
	}
	if err := h.repo.Create(ctx, tx, &followUp); err != nil {
		return model.Appointment{}, model.Appointment{}, err
	}

	if err := h.insertScheduledEvent(ctx, tx, followUp, "registration"); err != nil {
		return model.Appointment{}, model.Appointment{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, model.Appointment{}, err
	}
	return initial, followUp, nil
}

type appointmentIDRequest struct {
	AppointmentID string `json:"appointment_id"`
}

// StartCheckup opens the clinical visit (pending -> in_progress).
func (h *AppointmentHandler) StartCheckup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := decodeAppointmentID(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := h.repo.GetForUpdate(ctx, tx, id)
	if err != nil {
		h.writeDomainError(w, err, "failed to load appointment")
		return
	}
	if err := schedule.PlanStartCheckup(appt); err != nil {
		h.writeDomainError(w, err, "cannot start checkup")
		return
	}
	if err := h.repo.SetCheckupStatus(ctx, tx, id, model.CheckupInProgress); err != nil {
		h.writeDomainError(w, err, "failed to update appointment")
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	appt.CheckupStatus = model.CheckupInProgress
	writeJSON(w, http.StatusOK, h.item(appt))
}

// CompleteCheckup closes the visit and books exactly one successor a cycle
// out. Repeating the call returns the already-created successor.
func (h *AppointmentHandler) CompleteCheckup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := decodeAppointmentID(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := h.repo.GetForUpdate(ctx, tx, id)
	if err != nil {
		h.writeDomainError(w, err, "failed to load appointment")
		return
	}

	if appt.CheckupStatus == model.CheckupCompleted && appt.SuccessorID != "" {
		successor, err := h.repo.Get(ctx, appt.SuccessorID)
		if err != nil {
			h.writeDomainError(w, err, "failed to load successor")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"successor": h.item(successor)})
		return
	}

	candidate, err := schedule.PlanComplete(appt)
	if err != nil {
		h.writeDomainError(w, err, "cannot complete checkup")
		return
	}

	assigned, err := h.alloc.Allocate(ctx, h.repo.DayLocker(tx), candidate)
	if err != nil {
		h.writeDomainError(w, err, "failed to allocate follow-up")
		return
	}
	successor, err := schedule.PlanFollowUp(appt, assigned)
	if err != nil {
		h.writeDomainError(w, err, "failed to plan follow-up")
		return
	}
	if err := h.repo.Create(ctx, tx, &successor); err != nil {
		h.writeDomainError(w, err, "failed to create follow-up")
		return
	}
	if err := h.repo.CompleteAndLink(ctx, tx, appt.ID, successor.ID); err != nil {
		h.writeDomainError(w, err, "failed to close appointment")
		return
	}
	if err := h.insertScheduledEvent(ctx, tx, successor, "checkup_completed"); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"successor": h.item(successor)})
}

// Confirm is patient self-service, valid only inside the confirmation window.
func (h *AppointmentHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := decodeAppointmentID(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := h.repo.GetForUpdate(ctx, tx, id)
	if err != nil {
		h.writeDomainError(w, err, "failed to load appointment")
		return
	}
	if !callerMayAct(r, appt) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	confirmedAt, err := schedule.PlanConfirm(appt, h.clk.Now(), h.windowDays)
	if err != nil {
		h.writeDomainError(w, err, "cannot confirm appointment")
		return
	}
	if err := h.repo.Confirm(ctx, tx, id, confirmedAt); err != nil {
		h.writeDomainError(w, err, "failed to confirm")
		return
	}

	payload, err := json.Marshal(map[string]any{
		"appointment_id":   appt.ID,
		"patient_id":       appt.PatientID,
		"appointment_date": appt.AppointmentDate.Format(dateLayout),
		"confirmed_at":     confirmedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		http.Error(w, "failed to build event payload", http.StatusInternalServerError)
		return
	}
	if err := h.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     "scheduling.appointment.confirmed.v1",
		Payload:       payload,
	}); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	appt.ConfirmationStatus = model.ConfirmationConfirmed
	appt.ConfirmedAt = &confirmedAt
	writeJSON(w, http.StatusOK, h.item(appt))
}

type rescheduleRequest struct {
	AppointmentID string `json:"appointment_id"`
	Reason        string `json:"reason"`
	RequestedDate string `json:"requested_date,omitempty"`
}

// RequestReschedule records a patient's intent to move a visit. The patient
// may suggest a date, but staff decide the final one at adjudication time.
func (h *AppointmentHandler) RequestReschedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if req.AppointmentID == "" {
		http.Error(w, "appointment_id required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := h.repo.GetForUpdate(ctx, tx, req.AppointmentID)
	if err != nil {
		h.writeDomainError(w, err, "failed to load appointment")
		return
	}
	if !callerMayAct(r, appt) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	reason, err := schedule.PlanRescheduleRequest(appt, req.Reason)
	if err != nil {
		h.writeDomainError(w, err, "cannot request reschedule")
		return
	}
	var requestedDate *time.Time
	if req.RequestedDate != "" {
		parsed, err := time.Parse(dateLayout, req.RequestedDate)
		if err != nil {
			http.Error(w, "requested_date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		d := cycle.Day(parsed)
		requestedDate = &d
	}
	if err := h.repo.SetRescheduleRequest(ctx, tx, appt.ID, reason, requestedDate); err != nil {
		h.writeDomainError(w, err, "failed to record request")
		return
	}

	eventPayload := map[string]any{
		"appointment_id":   appt.ID,
		"patient_id":       appt.PatientID,
		"appointment_date": appt.AppointmentDate.Format(dateLayout),
		"reason":           reason,
	}
	if requestedDate != nil {
		eventPayload["requested_date"] = requestedDate.Format(dateLayout)
	}
	payload, err := json.Marshal(eventPayload)
	if err != nil {
		http.Error(w, "failed to build event payload", http.StatusInternalServerError)
		return
	}
	if err := h.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     "scheduling.reschedule.requested.v1",
		Payload:       payload,
	}); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	appt.ConfirmationStatus = model.ConfirmationPendingReschedule
	appt.RescheduleReason = reason
	writeJSON(w, http.StatusOK, h.item(appt))
}

type decideRescheduleRequest struct {
	AppointmentID string `json:"appointment_id"`
	Approve       bool   `json:"approve"`
	NewDate       string `json:"new_date"`
	Note          string `json:"note"`
}

// DecideReschedule is the staff side of the workflow. A deliberately chosen
// target date that is already full is an error, never silently moved.
func (h *AppointmentHandler) DecideReschedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req decideRescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if req.AppointmentID == "" {
		http.Error(w, "appointment_id required", http.StatusBadRequest)
		return
	}
	var target time.Time
	if raw := strings.TrimSpace(req.NewDate); raw != "" {
		var err error
		target, err = time.Parse(dateLayout, raw)
		if err != nil {
			http.Error(w, "invalid new_date", http.StatusBadRequest)
			return
		}
	}

	staffID := ""
	if claims := httpx.ClaimsFromContext(r.Context()); claims != nil {
		staffID = claims.Sub
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := h.repo.GetForUpdate(ctx, tx, req.AppointmentID)
	if err != nil {
		h.writeDomainError(w, err, "failed to load appointment")
		return
	}

	res, err := schedule.PlanRescheduleResolution(appt, req.Approve, target, staffID, h.clk.Now())
	if err != nil {
		h.writeDomainError(w, err, "cannot resolve reschedule")
		return
	}

	if res.Approved {
		if err := h.alloc.Check(ctx, h.repo.DayLocker(tx), res.AppointmentDate); err != nil {
			h.writeDomainError(w, err, "capacity check failed")
			return
		}
	}
	if err := h.repo.ResolveReschedule(ctx, tx, appt.ID, res.AppointmentDate, res.NextAppointmentDate, res.ConfirmationStatus, res.ProcessedAt, res.ProcessedBy); err != nil {
		h.writeDomainError(w, err, "failed to resolve reschedule")
		return
	}

	payload, err := json.Marshal(map[string]any{
		"appointment_id":   appt.ID,
		"patient_id":       appt.PatientID,
		"approved":         res.Approved,
		"appointment_date": res.AppointmentDate.Format(dateLayout),
		"note":             strings.TrimSpace(req.Note),
	})
	if err != nil {
		http.Error(w, "failed to build event payload", http.StatusInternalServerError)
		return
	}
	if err := h.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     "scheduling.reschedule.resolved.v1",
		Payload:       payload,
	}); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	appt.ConfirmationStatus = res.ConfirmationStatus
	appt.AppointmentDate = res.AppointmentDate
	appt.NextAppointmentDate = res.NextAppointmentDate
	appt.RescheduleReason = ""
	writeJSON(w, http.StatusOK, h.item(appt))
}

// List serves the read-only filters: by date, by status, upcoming, by patient.
func (h *AppointmentHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	limit := 100
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	var (
		appts []model.Appointment
		err   error
	)
	switch {
	case strings.TrimSpace(q.Get("date")) != "":
		var day time.Time
		day, err = time.Parse(dateLayout, strings.TrimSpace(q.Get("date")))
		if err != nil {
			http.Error(w, "invalid date", http.StatusBadRequest)
			return
		}
		appts, err = h.repo.ListByDate(r.Context(), day, limit)
	case strings.TrimSpace(q.Get("confirmation_status")) != "":
		var status model.ConfirmationStatus
		status, err = model.ParseConfirmationStatus(q.Get("confirmation_status"))
		if err != nil {
			http.Error(w, "invalid confirmation_status", http.StatusBadRequest)
			return
		}
		appts, err = h.repo.ListByConfirmationStatus(r.Context(), status, limit)
	case strings.TrimSpace(q.Get("checkup_status")) != "":
		var status model.CheckupStatus
		status, err = model.ParseCheckupStatus(q.Get("checkup_status"))
		if err != nil {
			http.Error(w, "invalid checkup_status", http.StatusBadRequest)
			return
		}
		appts, err = h.repo.ListByCheckupStatus(r.Context(), status, limit)
	case strings.TrimSpace(q.Get("patient_id")) != "":
		appts, err = h.repo.ListByPatient(r.Context(), strings.TrimSpace(q.Get("patient_id")), limit)
	default:
		appts, err = h.repo.ListUpcoming(r.Context(), cycle.Day(h.clk.Now()), limit)
	}
	if err != nil {
		http.Error(w, "failed to list appointments", http.StatusInternalServerError)
		return
	}

	items := make([]appointmentItem, 0, len(appts))
	for _, a := range appts {
		items = append(items, h.item(a))
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *AppointmentHandler) insertScheduledEvent(ctx context.Context, tx pgx.Tx, appt model.Appointment, origin string) error {
	payload, err := json.Marshal(map[string]any{
		"appointment_id":        appt.ID,
		"patient_id":            appt.PatientID,
		"provider_id":           appt.ProviderID,
		"appointment_date":      appt.AppointmentDate.Format(dateLayout),
		"next_appointment_date": appt.NextAppointmentDate.Format(dateLayout),
		"origin":                origin,
	})
	if err != nil {
		return err
	}
	return h.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     "scheduling.appointment.scheduled.v1",
		Payload:       payload,
	})
}

// writeDomainError maps domain failures to specific statuses and keeps
// anything unexpected generic; details go to the log, not the caller.
func (h *AppointmentHandler) writeDomainError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case storage.IsNotFound(err):
		http.Error(w, "appointment not found", http.StatusNotFound)
	case errors.Is(err, schedule.ErrScheduleExists):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, schedule.ErrAlreadyConfirmed),
		errors.Is(err, schedule.ErrAlreadyClosed),
		errors.Is(err, schedule.ErrReschedulePending),
		errors.Is(err, schedule.ErrNoPendingReschedule),
		errors.Is(err, schedule.ErrNotInProgress):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, schedule.ErrOutOfWindow):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, schedule.ErrReasonRequired),
		errors.Is(err, schedule.ErrReasonTooLong),
		errors.Is(err, schedule.ErrTargetDateRequired),
		errors.Is(err, cycle.ErrInvalidDate):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, capacity.ErrExceeded):
		http.Error(w, "selected date is at daily capacity", http.StatusConflict)
	case storage.IsConflict(err):
		http.Error(w, "conflicting update, retry the operation", http.StatusConflict)
	default:
		h.logger.Error(fallback, "err", err)
		http.Error(w, fallback, http.StatusInternalServerError)
	}
}

// callerMayAct allows staff and admin outright; patients only on their own
// records.
func callerMayAct(r *http.Request, appt model.Appointment) bool {
	claims := httpx.ClaimsFromContext(r.Context())
	if claims == nil {
		// Auth middleware disabled (dev mode); rely on the gateway.
		return true
	}
	if claims.Role == auth.RoleStaff || claims.Role == auth.RoleAdmin {
		return true
	}
	return claims.PatientID != "" && claims.PatientID == appt.PatientID
}

func decodeAppointmentID(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req appointmentIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return "", false
	}
	id := strings.TrimSpace(req.AppointmentID)
	if id == "" {
		http.Error(w, "appointment_id required", http.StatusBadRequest)
		return "", false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
