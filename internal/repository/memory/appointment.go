package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/david-solomon-henshaw/MedAppV1/internal/model"
	"github.com/david-solomon-henshaw/MedAppV1/internal/repository"
)

type appointmentRepository struct {
	s *Store
}

func (r *appointmentRepository) Create(_ context.Context, apt *model.Appointment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.patients[apt.PatientID]; !ok {
		return repository.ErrNotFound
	}
	apt.Touch(time.Now())
	r.s.appointments[apt.ID] = copyAppointment(apt)
	return nil
}

func (r *appointmentRepository) Get(_ context.Context, id uuid.UUID) (*model.Appointment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	a, ok := r.s.appointments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyAppointment(a), nil
}

func (r *appointmentRepository) List(_ context.Context, f model.AppointmentFilter) ([]*model.Appointment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*model.Appointment
	for _, a := range r.s.appointments {
		if matches(a, f) {
			out = append(out, copyAppointment(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func matches(a *model.Appointment, f model.AppointmentFilter) bool {
	if f.PatientID != nil && a.PatientID != *f.PatientID {
		return false
	}
	if f.CaregiverID != nil && (a.CaregiverID == nil || *a.CaregiverID != *f.CaregiverID) {
		return false
	}
	if f.Department != "" && a.Department != f.Department {
		return false
	}
	if len(f.Status) > 0 && !hasStatus(a.Status, f.Status) {
		return false
	}
	scheduled := scheduledDate(a)
	if f.DateFrom != nil && scheduled.Before(*f.DateFrom) {
		return false
	}
	if f.DateTo != nil && !scheduled.Before(*f.DateTo) {
		return false
	}
	return true
}

func hasStatus(s model.AppointmentStatus, set []model.AppointmentStatus) bool {
	for _, x := range set {
		if s == x {
			return true
		}
	}
	return false
}

// scheduledDate is the confirmed date when set, else the requested one.
func scheduledDate(a *model.Appointment) time.Time {
	if a.AppointmentDate != nil {
		return *a.AppointmentDate
	}
	return a.RequestedDate
}

func (r *appointmentRepository) Update(_ context.Context, apt *model.Appointment, prior model.AppointmentStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	return r.swap(apt, prior)
}

func (r *appointmentRepository) UpdateWithPrescription(_ context.Context, apt *model.Appointment, prior model.AppointmentStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	patient, ok := r.s.patients[apt.PatientID]
	if !ok {
		return repository.ErrNotFound
	}
	if err := r.swap(apt, prior); err != nil {
		return err
	}
	patient.TotalPrescriptions++
	patient.UpdatedAt = apt.UpdatedAt
	return nil
}

// swap must be called with the write lock held.
func (r *appointmentRepository) swap(apt *model.Appointment, prior model.AppointmentStatus) error {
	stored, ok := r.s.appointments[apt.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if stored.Status != prior {
		return repository.ErrConflict
	}

	apt.PatientID = stored.PatientID
	apt.CreatedAt = stored.CreatedAt
	apt.UpdatedAt = time.Now()
	r.s.appointments[apt.ID] = copyAppointment(apt)
	return nil
}
