package storage

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/renalworks/pdcare/libs/db"
	"github.com/renalworks/pdcare/services/scheduling-service/internal/capacity"
	"github.com/renalworks/pdcare/services/scheduling-service/internal/model"
)

const appointmentColumns = `
	id::text, patient_id::text, provider_id::text,
	appointment_date, next_appointment_date,
	confirmation_status, checkup_status,
	COALESCE(remarks, ''), COALESCE(checkup_remarks, ''),
	COALESCE(reschedule_reason, ''), reschedule_requested_date,
	reschedule_processed_at, COALESCE(reschedule_processed_by::text, ''),
	missed_count, confirmed_at, COALESCE(successor_id::text, ''),
	created_at, updated_at`

type AppointmentRepository struct {
	pool *db.Pool
}

func NewAppointmentRepository(pool *db.Pool) *AppointmentRepository {
	return &AppointmentRepository{pool: pool}
}

func (r *AppointmentRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

func (r *AppointmentRepository) Create(ctx context.Context, tx pgx.Tx, a *model.Appointment) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO appointments
			(id, patient_id, provider_id, appointment_date, next_appointment_date,
			 confirmation_status, checkup_status, remarks, missed_count, confirmed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, a.ID, a.PatientID, a.ProviderID, a.AppointmentDate, a.NextAppointmentDate,
		string(a.ConfirmationStatus), string(a.CheckupStatus), a.Remarks, a.MissedCount, a.ConfirmedAt)
	return err
}

func (r *AppointmentRepository) Get(ctx context.Context, id string) (model.Appointment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id)
	return scanAppointment(row)
}

func (r *AppointmentRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (model.Appointment, error) {
	row := tx.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1 FOR UPDATE`, id)
	return scanAppointment(row)
}

// HasOpenAfter reports whether the patient already has an unclosed record
// dated after the given day. Keeps the chain linear.
func (r *AppointmentRepository) HasOpenAfter(ctx context.Context, tx pgx.Tx, patientID string, day time.Time) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE patient_id = $1
				AND appointment_date > $2
				AND checkup_status IN ('pending', 'in_progress')
		)
	`, patientID, day).Scan(&exists)
	return exists, err
}

func (r *AppointmentRepository) SetCheckupStatus(ctx context.Context, tx pgx.Tx, id string, status model.CheckupStatus) error {
	ct, err := tx.Exec(ctx, `
		UPDATE appointments
		SET checkup_status = $2, updated_at = now()
		WHERE id = $1
	`, id, string(status))
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// CompleteAndLink closes a record as completed and pins its successor. The
// unique constraint on successor_id makes a second successor impossible.
func (r *AppointmentRepository) CompleteAndLink(ctx context.Context, tx pgx.Tx, id, successorID string) error {
	_, err := tx.Exec(ctx, `
		UPDATE appointments
		SET checkup_status = 'completed', successor_id = $2, updated_at = now()
		WHERE id = $1
	`, id, successorID)
	return err
}

// MarkMissed closes an overdue record. The remarks text doubles as the
// sweep's already-processed marker.
func (r *AppointmentRepository) MarkMissed(ctx context.Context, tx pgx.Tx, id, remarks, successorID string) error {
	_, err := tx.Exec(ctx, `
		UPDATE appointments
		SET checkup_status = 'missed', checkup_remarks = $2, successor_id = $3, updated_at = now()
		WHERE id = $1
	`, id, remarks, successorID)
	return err
}

func (r *AppointmentRepository) Confirm(ctx context.Context, tx pgx.Tx, id string, at time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE appointments
		SET confirmation_status = 'confirmed', confirmed_at = $2, updated_at = now()
		WHERE id = $1
	`, id, at)
	return err
}

func (r *AppointmentRepository) SetRescheduleRequest(ctx context.Context, tx pgx.Tx, id, reason string, requestedDate *time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE appointments
		SET confirmation_status = 'pending_reschedule',
			reschedule_reason = $2,
			reschedule_requested_date = $3,
			updated_at = now()
		WHERE id = $1
	`, id, reason, requestedDate)
	return err
}

func (r *AppointmentRepository) ResolveReschedule(ctx context.Context, tx pgx.Tx, id string, date, next time.Time, status model.ConfirmationStatus, processedAt time.Time, processedBy string) error {
	_, err := tx.Exec(ctx, `
		UPDATE appointments
		SET appointment_date = $2,
			next_appointment_date = $3,
			confirmation_status = $4,
			reschedule_reason = '',
			reschedule_requested_date = NULL,
			reschedule_processed_at = $5,
			reschedule_processed_by = $6,
			updated_at = now()
		WHERE id = $1
	`, id, date, next, string(status), processedAt, nullIfEmpty(processedBy))
	return err
}

// ListOverdueIDs returns records that were due strictly before the given day
// and were never attended nor swept. Read outside any transaction; the sweep
// re-checks each record under a row lock before acting.
func (r *AppointmentRepository) ListOverdueIDs(ctx context.Context, before time.Time, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text
		FROM appointments
		WHERE appointment_date < $1
			AND checkup_status = 'pending'
			AND COALESCE(checkup_remarks, '') = ''
		ORDER BY appointment_date
		LIMIT $2
	`, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *AppointmentRepository) ListByDate(ctx context.Context, day time.Time, limit int) ([]model.Appointment, error) {
	return r.list(ctx, `appointment_date = $1`, []any{day}, limit)
}

func (r *AppointmentRepository) ListByConfirmationStatus(ctx context.Context, status model.ConfirmationStatus, limit int) ([]model.Appointment, error) {
	return r.list(ctx, `confirmation_status = $1`, []any{string(status)}, limit)
}

func (r *AppointmentRepository) ListByCheckupStatus(ctx context.Context, status model.CheckupStatus, limit int) ([]model.Appointment, error) {
	return r.list(ctx, `checkup_status = $1`, []any{string(status)}, limit)
}

func (r *AppointmentRepository) ListUpcoming(ctx context.Context, from time.Time, limit int) ([]model.Appointment, error) {
	return r.list(ctx, `appointment_date >= $1 AND checkup_status IN ('pending', 'in_progress')`, []any{from}, limit)
}

func (r *AppointmentRepository) ListByPatient(ctx context.Context, patientID string, limit int) ([]model.Appointment, error) {
	return r.list(ctx, `patient_id = $1`, []any{patientID}, limit)
}

func (r *AppointmentRepository) list(ctx context.Context, where string, args []any, limit int) ([]model.Appointment, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	args = append(args, limit)
	rows, err := r.pool.Query(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE `+where+
			` ORDER BY appointment_date, created_at LIMIT $`+strconv.Itoa(len(args)), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// DayLocker serializes capacity decisions per calendar date within one
// transaction: the schedule_days row acts as a mutex, while the confirmed
// count is always derived from appointment rows.
type DayLocker struct {
	tx pgx.Tx
}

func (r *AppointmentRepository) DayLocker(tx pgx.Tx) DayLocker {
	return DayLocker{tx: tx}
}

func (l DayLocker) LockDay(ctx context.Context, day time.Time) error {
	if _, err := l.tx.Exec(ctx, `
		INSERT INTO schedule_days (day) VALUES ($1)
		ON CONFLICT (day) DO NOTHING
	`, day); err != nil {
		return err
	}
	var locked time.Time
	return l.tx.QueryRow(ctx, `
		SELECT day FROM schedule_days WHERE day = $1 FOR UPDATE
	`, day).Scan(&locked)
}

func (l DayLocker) CountConfirmed(ctx context.Context, day time.Time) (int, error) {
	var n int
	err := l.tx.QueryRow(ctx, `
		SELECT count(*) FROM appointments
		WHERE appointment_date = $1 AND confirmation_status = 'confirmed'
	`, day).Scan(&n)
	return n, err
}

var _ capacity.DayQuerier = DayLocker{}

// SweepMarker gives the nightly reconciler run-once-per-day semantics across
// instances.
type SweepMarker struct {
	pool *db.Pool
}

func (r *AppointmentRepository) SweepMarker() SweepMarker {
	return SweepMarker{pool: r.pool}
}

// Claim returns false if another instance already claimed this run date. A
// claim whose run never finished becomes reclaimable after a grace period, so
// a crash or transient sweep failure does not burn the whole day.
func (m SweepMarker) Claim(ctx context.Context, runDate time.Time) (bool, error) {
	ct, err := m.pool.Exec(ctx, `
		INSERT INTO sweep_runs (run_date, started_at) VALUES ($1, now())
		ON CONFLICT (run_date) DO UPDATE
		SET started_at = now()
		WHERE sweep_runs.finished_at IS NULL
		  AND sweep_runs.started_at < now() - interval '30 minutes'
	`, runDate)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

func (m SweepMarker) Finish(ctx context.Context, runDate time.Time, processed int) error {
	_, err := m.pool.Exec(ctx, `
		UPDATE sweep_runs
		SET processed = $2, finished_at = now()
		WHERE run_date = $1
	`, runDate, processed)
	return err
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && (pgErr.Code == "23505" || pgErr.Code == "40001")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAppointment(row rowScanner) (model.Appointment, error) {
	var a model.Appointment
	var confirmation, checkup string
	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.ProviderID,
		&a.AppointmentDate,
		&a.NextAppointmentDate,
		&confirmation,
		&checkup,
		&a.Remarks,
		&a.CheckupRemarks,
		&a.RescheduleReason,
		&a.RescheduleRequestedDate,
		&a.RescheduleProcessedAt,
		&a.RescheduleProcessedBy,
		&a.MissedCount,
		&a.ConfirmedAt,
		&a.SuccessorID,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	if a.ConfirmationStatus, err = model.ParseConfirmationStatus(confirmation); err != nil {
		return model.Appointment{}, err
	}
	if a.CheckupStatus, err = model.ParseCheckupStatus(checkup); err != nil {
		return model.Appointment{}, err
	}
	return a, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
