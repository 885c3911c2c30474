package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/david-solomon-henshaw/MedAppV1/internal/model"
	"github.com/david-solomon-henshaw/MedAppV1/internal/repository"
)

type adminRepository struct {
	accountTable
}

type patientRepository struct {
	accountTable
}

type caregiverRepository struct {
	accountTable
}

type appointmentRepository struct {
	BaseRepository
}

type analyticsRepository struct {
	db *sqlx.DB
}

type auditRepository struct {
	db *sqlx.DB
}

func NewAdminRepository(db *sqlx.DB) repository.AdminRepository {
	return &adminRepository{accountTable{db: db, table: "admins", role: model.RoleAdmin}}
}

func NewPatientRepository(db *sqlx.DB) repository.PatientRepository {
	return &patientRepository{accountTable{db: db, table: "patients", role: model.RolePatient}}
}

func NewCaregiverRepository(db *sqlx.DB) repository.CaregiverRepository {
	return &caregiverRepository{accountTable{db: db, table: "caregivers", role: model.RoleCaregiver}}
}

func NewAppointmentRepository(db *sqlx.DB) repository.AppointmentRepository {
	return &appointmentRepository{NewBaseRepository(db)}
}

func NewAnalyticsRepository(db *sqlx.DB) repository.AnalyticsRepository {
	return &analyticsRepository{db: db}
}

func NewAuditRepository(db *sqlx.DB) repository.AuditRepository {
	return &auditRepository{db: db}
}
