package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/renalworks/pdcare/libs/auth"
	"github.com/renalworks/pdcare/libs/clock"
	"github.com/renalworks/pdcare/services/clinic-service/internal/outbox"
	"github.com/renalworks/pdcare/services/clinic-service/internal/storage"
)

const dateLayout = "2006-01-02"

type ClinicHandler struct {
	repo   *storage.Repository
	outbox *outbox.Repository
	clk    clock.Clock
	logger *slog.Logger
}

func NewClinicHandler(repo *storage.Repository, outboxRepo *outbox.Repository, clk clock.Clock, logger *slog.Logger) *ClinicHandler {
	return &ClinicHandler{repo: repo, outbox: outboxRepo, clk: clk, logger: logger}
}

type registerPatientRequest struct {
	FullName         string `json:"full_name"`
	Phone            string `json:"phone"`
	Email            string `json:"email"`
	DateOfBirth      string `json:"date_of_birth"`
	RegistrationDate string `json:"registration_date"`
	ProviderID       string `json:"provider_id"`
}

// registrationDate falls back to the injected clock's current day when the
// request omits an explicit date.
func registrationDate(clk clock.Clock, raw string) (time.Time, error) {
	if raw = strings.TrimSpace(raw); raw != "" {
		return time.Parse(dateLayout, raw)
	}
	return clk.Now().UTC().Truncate(24 * time.Hour), nil
}

// RegisterPatient creates the patient and emits the registration event in
// one transaction; scheduling picks the event up and books the first visits.
func (h *ClinicHandler) RegisterPatient(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req registerPatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.FullName = strings.TrimSpace(req.FullName)
	req.ProviderID = strings.TrimSpace(req.ProviderID)
	if req.FullName == "" || req.ProviderID == "" {
		http.Error(w, "full_name and provider_id required", http.StatusBadRequest)
		return
	}
	dob, err := time.Parse(dateLayout, strings.TrimSpace(req.DateOfBirth))
	if err != nil {
		http.Error(w, "invalid date_of_birth", http.StatusBadRequest)
		return
	}
	regDate, err := registrationDate(h.clk, req.RegistrationDate)
	if err != nil {
		http.Error(w, "invalid registration_date", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	patient := storage.Patient{
		FullName:         req.FullName,
		Phone:            strings.TrimSpace(req.Phone),
		Email:            strings.TrimSpace(req.Email),
		DateOfBirth:      dob,
		RegistrationDate: regDate,
		ProviderID:       req.ProviderID,
	}
	if err := h.repo.CreatePatient(ctx, tx, &patient); err != nil {
		if storage.IsDuplicate(err) {
			http.Error(w, "patient already registered", http.StatusConflict)
			return
		}
		h.logger.Error("failed to create patient", "err", err)
		http.Error(w, "failed to register patient", http.StatusInternalServerError)
		return
	}

	payload, err := json.Marshal(map[string]any{
		"patient_id":        patient.ID,
		"provider_id":       patient.ProviderID,
		"registration_date": patient.RegistrationDate.Format(dateLayout),
		"full_name":         patient.FullName,
		"phone":             patient.Phone,
		"email":             patient.Email,
	})
	if err != nil {
		http.Error(w, "failed to build event payload", http.StatusInternalServerError)
		return
	}
	if err := h.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "patient",
		AggregateID:   patient.ID,
		EventType:     "clinic.patient.registered.v1",
		Payload:       payload,
	}); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, patientItem(patient))
}

func (h *ClinicHandler) Patients(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if id := strings.TrimSpace(r.URL.Query().Get("id")); id != "" {
			p, err := h.repo.GetPatient(r.Context(), id)
			if err != nil {
				if storage.IsNotFound(err) {
					http.Error(w, "patient not found", http.StatusNotFound)
					return
				}
				http.Error(w, "failed to load patient", http.StatusInternalServerError)
				return
			}
			writeJSON(w, http.StatusOK, patientItem(p))
			return
		}
		include := r.URL.Query().Get("include_archived") == "true"
		patients, err := h.repo.ListPatients(r.Context(), include, 200)
		if err != nil {
			http.Error(w, "failed to list patients", http.StatusInternalServerError)
			return
		}
		items := make([]map[string]any, 0, len(patients))
		for _, p := range patients {
			items = append(items, patientItem(p))
		}
		writeJSON(w, http.StatusOK, items)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *ClinicHandler) ArchivePatient(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		PatientID string `json:"patient_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.PatientID) == "" {
		http.Error(w, "patient_id required", http.StatusBadRequest)
		return
	}
	if err := h.repo.ArchivePatient(r.Context(), strings.TrimSpace(req.PatientID)); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "patient not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to archive patient", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createProviderRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Password string `json:"password"`
}

func (h *ClinicHandler) Providers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		providers, err := h.repo.ListProviders(r.Context(), 200)
		if err != nil {
			http.Error(w, "failed to list providers", http.StatusInternalServerError)
			return
		}
		items := make([]map[string]any, 0, len(providers))
		for _, p := range providers {
			items = append(items, map[string]any{
				"id":        p.ID,
				"full_name": p.FullName,
				"email":     p.Email,
				"role":      p.Role,
			})
		}
		writeJSON(w, http.StatusOK, items)
	case http.MethodPost:
		var req createProviderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		req.FullName = strings.TrimSpace(req.FullName)
		req.Email = strings.TrimSpace(strings.ToLower(req.Email))
		req.Password = strings.TrimSpace(req.Password)
		if req.FullName == "" || req.Email == "" || len(req.Password) < 8 {
			http.Error(w, "full_name, email and a password of at least 8 characters required", http.StatusBadRequest)
			return
		}
		role := strings.TrimSpace(req.Role)
		if role != auth.RoleStaff && role != auth.RoleAdmin {
			role = auth.RoleStaff
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			http.Error(w, "failed to hash password", http.StatusInternalServerError)
			return
		}
		provider := storage.Provider{
			FullName:     req.FullName,
			Email:        req.Email,
			Role:         role,
			PasswordHash: string(hash),
		}
		if err := h.repo.CreateProvider(r.Context(), &provider); err != nil {
			if storage.IsDuplicate(err) {
				http.Error(w, "email already in use", http.StatusConflict)
				return
			}
			h.logger.Error("failed to create provider", "err", err)
			http.Error(w, "failed to create provider", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"id":        provider.ID,
			"full_name": provider.FullName,
			"email":     provider.Email,
			"role":      provider.Role,
		})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type createPrescriptionRequest struct {
	PatientID       string `json:"patient_id"`
	ProviderID      string `json:"provider_id"`
	Solution        string `json:"solution"`
	ExchangesPerDay int    `json:"exchanges_per_day"`
	FillVolumeML    int    `json:"fill_volume_ml"`
	Notes           string `json:"notes"`
}

func (h *ClinicHandler) Prescriptions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		patientID := strings.TrimSpace(r.URL.Query().Get("patient_id"))
		if patientID == "" {
			http.Error(w, "patient_id required", http.StatusBadRequest)
			return
		}
		prescriptions, err := h.repo.ListPrescriptions(r.Context(), patientID, 50)
		if err != nil {
			http.Error(w, "failed to list prescriptions", http.StatusInternalServerError)
			return
		}
		items := make([]map[string]any, 0, len(prescriptions))
		for _, p := range prescriptions {
			items = append(items, map[string]any{
				"id":                p.ID,
				"patient_id":        p.PatientID,
				"provider_id":       p.ProviderID,
				"solution":          p.Solution,
				"exchanges_per_day": p.ExchangesPerDay,
				"fill_volume_ml":    p.FillVolumeML,
				"notes":             p.Notes,
				"active":            p.Active,
				"prescribed_at":     p.PrescribedAt.UTC().Format(time.RFC3339),
			})
		}
		writeJSON(w, http.StatusOK, items)
	case http.MethodPost:
		var req createPrescriptionRequest
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
		if req.ExchangesPerDay <= 0 || req.FillVolumeML <= 0 {
			http.Error(w, "exchanges_per_day and fill_volume_ml must be positive", http.StatusBadRequest)
			return
		}
		prescription := storage.Prescription{
			PatientID:       req.PatientID,
			ProviderID:      req.ProviderID,
			Solution:        strings.TrimSpace(req.Solution),
			ExchangesPerDay: req.ExchangesPerDay,
			FillVolumeML:    req.FillVolumeML,
			Notes:           strings.TrimSpace(req.Notes),
		}
		if err := h.repo.CreatePrescription(r.Context(), &prescription); err != nil {
			h.logger.Error("failed to create prescription", "err", err)
			http.Error(w, "failed to create prescription", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"id": prescription.ID})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type createTreatmentRequest struct {
	PatientID          string `json:"patient_id"`
	TreatmentDate      string `json:"treatment_date"`
	ExchangeCount      int    `json:"exchange_count"`
	FillVolumeML       int    `json:"fill_volume_ml"`
	DrainVolumeML      int    `json:"drain_volume_ml"`
	DwellMinutes       int    `json:"dwell_minutes"`
	EffluentAppearance string `json:"effluent_appearance"`
	Notes              string `json:"notes"`
	RecordedBy         string `json:"recorded_by"`
}

// Treatments records home PD session logs; ultrafiltration is derived from
// the volumes rather than stored.
func (h *ClinicHandler) Treatments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		patientID := strings.TrimSpace(r.URL.Query().Get("patient_id"))
		if patientID == "" {
			http.Error(w, "patient_id required", http.StatusBadRequest)
			return
		}
		treatments, err := h.repo.ListTreatments(r.Context(), patientID, 50)
		if err != nil {
			http.Error(w, "failed to list treatments", http.StatusInternalServerError)
			return
		}
		items := make([]map[string]any, 0, len(treatments))
		for _, t := range treatments {
			items = append(items, map[string]any{
				"id":                  t.ID,
				"patient_id":          t.PatientID,
				"treatment_date":      t.TreatmentDate.Format(dateLayout),
				"exchange_count":      t.ExchangeCount,
				"fill_volume_ml":      t.FillVolumeML,
				"drain_volume_ml":     t.DrainVolumeML,
				"ultrafiltration_ml":  t.DrainVolumeML - t.FillVolumeML,
				"dwell_minutes":       t.DwellMinutes,
				"effluent_appearance": t.EffluentAppearance,
				"notes":               t.Notes,
				"recorded_by":         t.RecordedBy,
			})
		}
		writeJSON(w, http.StatusOK, items)
	case http.MethodPost:
		var req createTreatmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		req.PatientID = strings.TrimSpace(req.PatientID)
		if req.PatientID == "" {
			http.Error(w, "patient_id required", http.StatusBadRequest)
			return
		}
		date, err := time.Parse(dateLayout, strings.TrimSpace(req.TreatmentDate))
		if err != nil {
			http.Error(w, "invalid treatment_date", http.StatusBadRequest)
			return
		}
		if req.ExchangeCount <= 0 || req.FillVolumeML <= 0 || req.DrainVolumeML < 0 {
			http.Error(w, "invalid session volumes", http.StatusBadRequest)
			return
		}
		treatment := storage.Treatment{
			PatientID:          req.PatientID,
			TreatmentDate:      date,
			ExchangeCount:      req.ExchangeCount,
			FillVolumeML:       req.FillVolumeML,
			DrainVolumeML:      req.DrainVolumeML,
			DwellMinutes:       req.DwellMinutes,
			EffluentAppearance: strings.TrimSpace(req.EffluentAppearance),
			Notes:              strings.TrimSpace(req.Notes),
			RecordedBy:         strings.TrimSpace(req.RecordedBy),
		}
		if err := h.repo.CreateTreatment(r.Context(), &treatment); err != nil {
			h.logger.Error("failed to create treatment", "err", err)
			http.Error(w, "failed to record treatment", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"id": treatment.ID})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func patientItem(p storage.Patient) map[string]any {
	return map[string]any{
		"id":                p.ID,
		"full_name":         p.FullName,
		"phone":             p.Phone,
		"email":             p.Email,
		"date_of_birth":     p.DateOfBirth.Format(dateLayout),
		"registration_date": p.RegistrationDate.Format(dateLayout),
		"provider_id":       p.ProviderID,
		"archived":          p.Archived,
	}
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
