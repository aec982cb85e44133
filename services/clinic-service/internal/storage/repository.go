package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/renalworks/pdcare/libs/db"
)

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

type Patient struct {
	ID               string
	FullName         string
	Phone            string
	Email            string
	DateOfBirth      time.Time
	RegistrationDate time.Time
	ProviderID       string
	Archived         bool
	CreatedAt        time.Time
}

// CreatePatient runs inside the caller's transaction so the registration
// event lands in the outbox atomically with the row.
func (r *Repository) CreatePatient(ctx context.Context, tx pgx.Tx, p *Patient) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO patients (id, full_name, phone, email, date_of_birth, registration_date, provider_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, p.ID, p.FullName, p.Phone, p.Email, p.DateOfBirth, p.RegistrationDate, p.ProviderID)
	return err
}

func (r *Repository) GetPatient(ctx context.Context, id string) (Patient, error) {
	var p Patient
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, full_name, phone, email, date_of_birth, registration_date, provider_id::text, archived, created_at
		FROM patients
		WHERE id = $1
	`, id).Scan(&p.ID, &p.FullName, &p.Phone, &p.Email, &p.DateOfBirth, &p.RegistrationDate, &p.ProviderID, &p.Archived, &p.CreatedAt)
	return p, err
}

func (r *Repository) ListPatients(ctx context.Context, includeArchived bool, limit int) ([]Patient, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, full_name, phone, email, date_of_birth, registration_date, provider_id::text, archived, created_at
		FROM patients
		WHERE archived = false OR $1
		ORDER BY created_at DESC
		LIMIT $2
	`, includeArchived, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Patient
	for rows.Next() {
		var p Patient
		if err := rows.Scan(&p.ID, &p.FullName, &p.Phone, &p.Email, &p.DateOfBirth, &p.RegistrationDate, &p.ProviderID, &p.Archived, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// ArchivePatient is a soft delete; the appointment history must survive.
func (r *Repository) ArchivePatient(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE patients SET archived = true, updated_at = now() WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

type Provider struct {
	ID           string
	FullName     string
	Email        string
	Role         string
	PasswordHash string
	Archived     bool
	CreatedAt    time.Time
}

func (r *Repository) CreateProvider(ctx context.Context, p *Provider) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO providers (id, full_name, email, role, password_hash)
		VALUES ($1, $2, $3, $4, $5)
	`, p.ID, p.FullName, p.Email, p.Role, p.PasswordHash)
	return err
}

func (r *Repository) ListProviders(ctx context.Context, limit int) ([]Provider, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, full_name, email, role, archived, created_at
		FROM providers
		WHERE archived = false
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Provider
	for rows.Next() {
		var p Provider
		if err := rows.Scan(&p.ID, &p.FullName, &p.Email, &p.Role, &p.Archived, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

type Prescription struct {
	ID              string
	PatientID       string
	ProviderID      string
	Solution        string
	ExchangesPerDay int
	FillVolumeML    int
	Notes           string
	Active          bool
	PrescribedAt    time.Time
}

// CreatePrescription deactivates the previous active regimen in the same
// transaction so a patient never has two active prescriptions.
func (r *Repository) CreatePrescription(ctx context.Context, p *Prescription) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		UPDATE prescriptions SET active = false WHERE patient_id = $1 AND active = true
	`, p.PatientID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO prescriptions (id, patient_id, provider_id, solution, exchanges_per_day, fill_volume_ml, notes, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, true)
	`, p.ID, p.PatientID, p.ProviderID, p.Solution, p.ExchangesPerDay, p.FillVolumeML, p.Notes); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repository) ListPrescriptions(ctx context.Context, patientID string, limit int) ([]Prescription, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, patient_id::text, provider_id::text, solution, exchanges_per_day, fill_volume_ml, notes, active, prescribed_at
		FROM prescriptions
		WHERE patient_id = $1
		ORDER BY prescribed_at DESC
		LIMIT $2
	`, patientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Prescription
	for rows.Next() {
		var p Prescription
		if err := rows.Scan(&p.ID, &p.PatientID, &p.ProviderID, &p.Solution, &p.ExchangesPerDay, &p.FillVolumeML, &p.Notes, &p.Active, &p.PrescribedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

type Treatment struct {
	ID                 string
	PatientID          string
	TreatmentDate      time.Time
	ExchangeCount      int
	FillVolumeML       int
	DrainVolumeML      int
	DwellMinutes       int
	EffluentAppearance string
	Notes              string
	RecordedBy         string
	CreatedAt          time.Time
}

func (r *Repository) CreateTreatment(ctx context.Context, t *Treatment) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO treatments (id, patient_id, treatment_date, exchange_count, fill_volume_ml, drain_volume_ml, dwell_minutes, effluent_appearance, notes, recorded_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, t.ID, t.PatientID, t.TreatmentDate, t.ExchangeCount, t.FillVolumeML, t.DrainVolumeML, t.DwellMinutes, t.EffluentAppearance, t.Notes, t.RecordedBy)
	return err
}

func (r *Repository) ListTreatments(ctx context.Context, patientID string, limit int) ([]Treatment, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, patient_id::text, treatment_date, exchange_count, fill_volume_ml, drain_volume_ml, dwell_minutes, effluent_appearance, notes, recorded_by::text, created_at
		FROM treatments
		WHERE patient_id = $1
		ORDER BY treatment_date DESC
		LIMIT $2
	`, patientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Treatment
	for rows.Next() {
		var t Treatment
		if err := rows.Scan(&t.ID, &t.PatientID, &t.TreatmentDate, &t.ExchangeCount, &t.FillVolumeML, &t.DrainVolumeML, &t.DwellMinutes, &t.EffluentAppearance, &t.Notes, &t.RecordedBy, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func IsDuplicate(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
