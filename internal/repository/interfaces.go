package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/david-solomon-henshaw/MedAppV1/internal/model"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrDuplicateEmail = errors.New("email already exists")
	// ErrConflict is returned when a conditional write lost a race: the
	// stored state no longer matches what the caller read.
	ErrConflict = errors.New("record changed concurrently")
)

type (
	// AccountRepository is the authentication view of one role store.
	AccountRepository interface {
		Role() model.Role
		GetByEmail(ctx context.Context, email string) (*model.Account, error)
		GetAccount(ctx context.Context, id uuid.UUID) (*model.Account, error)
		SetOTP(ctx context.Context, id uuid.UUID, code string, expiresAt time.Time) error
		// ConsumeOTP clears the slot only if it still holds code.
		ConsumeOTP(ctx context.Context, id uuid.UUID, code string) error
		ClearOTP(ctx context.Context, id uuid.UUID) error
		ClearExpiredOTPs(ctx context.Context, before time.Time) (int64, error)
		Count(ctx context.Context) (int, error)
	}

	AdminRepository interface {
		AccountRepository
		Create(ctx context.Context, admin *model.Account) error
	}

	PatientRepository interface {
		AccountRepository
		Create(ctx context.Context, patient *model.Patient) error
		Get(ctx context.Context, id uuid.UUID) (*model.Patient, error)
		List(ctx context.Context) ([]*model.Patient, error)
		AppendAppointment(ctx context.Context, patientID, appointmentID uuid.UUID) error
	}

	CaregiverRepository interface {
		AccountRepository
		Create(ctx context.Context, caregiver *model.Caregiver) error
		Get(ctx context.Context, id uuid.UUID) (*model.Caregiver, error)
		List(ctx context.Context) ([]*model.Caregiver, error)
		// Update writes the profile columns. Email, password and OTP state
		// are left alone.
		Update(ctx context.Context, caregiver *model.Caregiver) error
		// Delete removes the caregiver and detaches it from finished
		// appointments. It returns ErrConflict while a non-terminal
		// appointment references the caregiver.
		Delete(ctx context.Context, id uuid.UUID) error
	}

	AppointmentRepository interface {
		Create(ctx context.Context, apt *model.Appointment) error
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		List(ctx context.Context, filter model.AppointmentFilter) ([]*model.Appointment, error)
		// Update writes apt only if the stored status still equals prior.
		Update(ctx context.Context, apt *model.Appointment, prior model.AppointmentStatus) error
		// UpdateWithPrescription is Update plus a +1 on the patient's
		// prescription counter, applied atomically.
		UpdateWithPrescription(ctx context.Context, apt *model.Appointment, prior model.AppointmentStatus) error
	}

	AnalyticsRepository interface {
		CountPatients(ctx context.Context) (int, error)
		CountCaregivers(ctx context.Context) (int, error)
		CountAvailableCaregivers(ctx context.Context) (int, error)
		CountAppointments(ctx context.Context, statuses ...model.AppointmentStatus) (int, error)
		CountAppointmentsBetween(ctx context.Context, from, to time.Time) (int, error)
		CountPatientsCreatedSince(ctx context.Context, since time.Time) (int, error)
		AppointmentsByStatus(ctx context.Context) ([]model.CountByKey, error)
		AppointmentsByDepartment(ctx context.Context) ([]model.CountByKey, error)
		CaregiversByDepartment(ctx context.Context) ([]model.CountByKey, error)
		PatientsByGender(ctx context.Context) ([]model.CountByKey, error)
		PatientBirthDates(ctx context.Context) ([]time.Time, error)
		UniquePatientsByDepartment(ctx context.Context) ([]model.CountByKey, error)
		CaregiverWorkload(ctx context.Context, statuses ...model.AppointmentStatus) ([]model.CaregiverWorkload, error)
	}

	AuditRepository interface {
		Create(ctx context.Context, entry *model.ActionLog) error
	}
)
