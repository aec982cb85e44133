package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/renalworks/pdcare/libs/db"
)

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

// Notification is one dispatch attempt in the log.
type Notification struct {
	AppointmentID string
	PatientID     string
	EventType     string
	Channel       string
	Recipient     string
	Subject       string
	Body          string
	Status        string
	FailureReason string
}

func (r *Repository) Insert(ctx context.Context, n Notification) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notifications (appointment_id, patient_id, event_type, channel, recipient, subject, body, status, failure_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, n.AppointmentID, n.PatientID, n.EventType, n.Channel, n.Recipient, n.Subject, n.Body, n.Status, n.FailureReason)
	return err
}

// Contact is the local copy of a patient's reachable addresses, maintained
// from registration events so sends never call back into clinic-service.
type Contact struct {
	PatientID string
	FullName  string
	Phone     string
	Email     string
}

func (r *Repository) UpsertContact(ctx context.Context, c Contact) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO patient_contacts (patient_id, full_name, phone, email)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (patient_id) DO UPDATE
		SET full_name = EXCLUDED.full_name,
			phone = EXCLUDED.phone,
			email = EXCLUDED.email,
			updated_at = now()
	`, c.PatientID, c.FullName, c.Phone, c.Email)
	return err
}

func (r *Repository) GetContact(ctx context.Context, patientID string) (Contact, error) {
	var c Contact
	err := r.pool.QueryRow(ctx, `
		SELECT patient_id::text, full_name, phone, email
		FROM patient_contacts
		WHERE patient_id = $1
	`, patientID).Scan(&c.PatientID, &c.FullName, &c.Phone, &c.Email)
	return c, err
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
