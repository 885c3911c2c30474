package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/david-solomon-henshaw/MedAppV1/internal/model"
	"github.com/david-solomon-henshaw/MedAppV1/internal/repository"
)

const patientColumns = accountColumns + `,
	date_of_birth, gender, phone_number, total_prescriptions, appointment_ids`

func (r *patientRepository) Create(ctx context.Context, patient *model.Patient) error {
	patient.Touch(time.Now())
	patient.Role = model.RolePatient
	if patient.AppointmentIDs == nil {
		patient.AppointmentIDs = []string{}
	}

	query := `
		INSERT INTO patients (
			id, first_name, last_name, email, password_hash, role,
			date_of_birth, gender, phone_number, total_prescriptions, appointment_ids,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.db.ExecContext(ctx, query,
		patient.ID,
		patient.FirstName,
		patient.LastName,
		patient.Email,
		patient.PasswordHash,
		patient.Role,
		patient.DateOfBirth,
		patient.Gender,
		patient.PhoneNumber,
		patient.TotalPrescriptions,
		patient.AppointmentIDs,
		patient.CreatedAt,
		patient.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return repository.ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("failed to create patient: %w", err)
	}
	return nil
}

func (r *patientRepository) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE id = $1`

	var patient model.Patient
	if err := r.db.GetContext(ctx, &patient, query, id); err != nil {
		return nil, notFound(err, "get patient")
	}
	return &patient, nil
}

func (r *patientRepository) List(ctx context.Context) ([]*model.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients ORDER BY created_at`

	var patients []*model.Patient
	if err := r.db.SelectContext(ctx, &patients, query); err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	return patients, nil
}

func (r *patientRepository) AppendAppointment(ctx context.Context, patientID, appointmentID uuid.UUID) error {
	query := `
		UPDATE patients
		SET appointment_ids = array_append(appointment_ids, $1), updated_at = $2
		WHERE id = $3
	`
	res, err := r.db.ExecContext(ctx, query, appointmentID.String(), time.Now(), patientID)
	if err != nil {
		return fmt.Errorf("failed to append appointment: %w", err)
	}
	return expectOne(res)
}
