// Package memory is an in-process implementation of the repository
// interfaces. It backs the "memory" storage driver and the service tests.
// Every read returns a copy so callers never alias stored records.
package memory

import (
	"sync"

	"github.com/google/uuid"

	"github.com/david-solomon-henshaw/MedAppV1/internal/model"
	"github.com/david-solomon-henshaw/MedAppV1/internal/repository"
)

type Store struct {
	mu           sync.RWMutex
	admins       map[uuid.UUID]*model.Account
	patients     map[uuid.UUID]*model.Patient
	caregivers   map[uuid.UUID]*model.Caregiver
	appointments map[uuid.UUID]*model.Appointment
	actionLogs   []*model.ActionLog
}

func NewStore() *Store {
	return &Store{
		admins:       make(map[uuid.UUID]*model.Account),
		patients:     make(map[uuid.UUID]*model.Patient),
		caregivers:   make(map[uuid.UUID]*model.Caregiver),
		appointments: make(map[uuid.UUID]*model.Appointment),
	}
}

func (s *Store) Admins() repository.AdminRepository {
	return &adminRepository{accountTable{s: s, role: model.RoleAdmin, lookup: s.adminAccount, each: s.eachAdmin}}
}

func (s *Store) Patients() repository.PatientRepository {
	return &patientRepository{accountTable{s: s, role: model.RolePatient, lookup: s.patientAccount, each: s.eachPatient}}
}

func (s *Store) Caregivers() repository.CaregiverRepository {
	return &caregiverRepository{accountTable{s: s, role: model.RoleCaregiver, lookup: s.caregiverAccount, each: s.eachCaregiver}}
}

func (s *Store) Appointments() repository.AppointmentRepository {
	return &appointmentRepository{s: s}
}

func (s *Store) Analytics() repository.AnalyticsRepository {
	return &analyticsRepository{s: s}
}

func (s *Store) Audit() repository.AuditRepository {
	return &auditRepository{s: s}
}

// ActionLogs returns a snapshot of recorded action log entries.
func (s *Store) ActionLogs() []model.ActionLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.ActionLog, 0, len(s.actionLogs))
	for _, e := range s.actionLogs {
		out = append(out, *e)
	}
	return out
}

func (s *Store) adminAccount(id uuid.UUID) *model.Account {
	return s.admins[id]
}

func (s *Store) patientAccount(id uuid.UUID) *model.Account {
	if p, ok := s.patients[id]; ok {
		return &p.Account
	}
	return nil
}

func (s *Store) caregiverAccount(id uuid.UUID) *model.Account {
	if c, ok := s.caregivers[id]; ok {
		return &c.Account
	}
	return nil
}

func (s *Store) eachAdmin(fn func(*model.Account)) {
	for _, a := range s.admins {
		fn(a)
	}
}

func (s *Store) eachPatient(fn func(*model.Account)) {
	for _, p := range s.patients {
		fn(&p.Account)
	}
}

func (s *Store) eachCaregiver(fn func(*model.Account)) {
	for _, c := range s.caregivers {
		fn(&c.Account)
	}
}

func copyAccount(a *model.Account) model.Account {
	out := *a
	if a.OTPCode != nil {
		code := *a.OTPCode
		out.OTPCode = &code
	}
	if a.OTPExpiresAt != nil {
		exp := *a.OTPExpiresAt
		out.OTPExpiresAt = &exp
	}
	return out
}

func copyPatient(p *model.Patient) *model.Patient {
	out := *p
	out.Account = copyAccount(&p.Account)
	out.AppointmentIDs = append([]string(nil), p.AppointmentIDs...)
	return &out
}

func copyCaregiver(c *model.Caregiver) *model.Caregiver {
	out := *c
	out.Account = copyAccount(&c.Account)
	return &out
}

func copyAppointment(a *model.Appointment) *model.Appointment {
	out := *a
	out.CaregiverID = copyPtr(a.CaregiverID)
	out.AppointmentDate = copyPtr(a.AppointmentDate)
	out.StartTime = copyPtr(a.StartTime)
	out.EndTime = copyPtr(a.EndTime)
	out.ApprovedAt = copyPtr(a.ApprovedAt)
	return &out
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
