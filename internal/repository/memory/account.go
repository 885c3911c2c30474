package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/david-solomon-henshaw/MedAppV1/internal/model"
	"github.com/david-solomon-henshaw/MedAppV1/internal/repository"
	"github.com/david-solomon-henshaw/MedAppV1/pkg/security"
)

// accountTable implements the authentication view over one role map. The
// lookup and each funcs must be called with s.mu held.
type accountTable struct {
	s      *Store
	role   model.Role
	lookup func(uuid.UUID) *model.Account
	each   func(func(*model.Account))
}

func (t accountTable) Role() model.Role {
	return t.role
}

func (t accountTable) findByEmail(email string) *model.Account {
	var found *model.Account
	t.each(func(a *model.Account) {
		if found == nil && strings.EqualFold(a.Email, email) {
			found = a
		}
	})
	return found
}

func (t accountTable) GetByEmail(_ context.Context, email string) (*model.Account, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	a := t.findByEmail(email)
	if a == nil {
		return nil, repository.ErrNotFound
	}
	out := copyAccount(a)
	return &out, nil
}

func (t accountTable) GetAccount(_ context.Context, id uuid.UUID) (*model.Account, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	a := t.lookup(id)
	if a == nil {
		return nil, repository.ErrNotFound
	}
	out := copyAccount(a)
	return &out, nil
}

func (t accountTable) SetOTP(_ context.Context, id uuid.UUID, code string, expiresAt time.Time) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	a := t.lookup(id)
	if a == nil {
		return repository.ErrNotFound
	}
	a.SetOTP(code, expiresAt)
	a.UpdatedAt = time.Now()
	return nil
}

func (t accountTable) ConsumeOTP(_ context.Context, id uuid.UUID, code string) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	a := t.lookup(id)
	if a == nil {
		return repository.ErrNotFound
	}
	stored, _, ok := a.PendingOTP()
	if !ok || !security.EqualCodes(stored, code) {
		return repository.ErrConflict
	}
	a.ClearOTP()
	a.UpdatedAt = time.Now()
	return nil
}

func (t accountTable) ClearOTP(_ context.Context, id uuid.UUID) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	a := t.lookup(id)
	if a == nil {
		return repository.ErrNotFound
	}
	a.ClearOTP()
	a.UpdatedAt = time.Now()
	return nil
}

func (t accountTable) ClearExpiredOTPs(_ context.Context, before time.Time) (int64, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	var n int64
	t.each(func(a *model.Account) {
		if _, exp, ok := a.PendingOTP(); ok && exp.Before(before) {
			a.ClearOTP()
			n++
		}
	})
	return n, nil
}

func (t accountTable) Count(_ context.Context) (int, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	n := 0
	t.each(func(*model.Account) { n++ })
	return n, nil
}

type adminRepository struct {
	accountTable
}

func (r *adminRepository) Create(_ context.Context, admin *model.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.findByEmail(admin.Email) != nil {
		return repository.ErrDuplicateEmail
	}
	admin.Touch(time.Now())
	admin.Role = model.RoleAdmin
	stored := copyAccount(admin)
	r.s.admins[admin.ID] = &stored
	return nil
}

type patientRepository struct {
	accountTable
}

func (r *patientRepository) Create(_ context.Context, patient *model.Patient) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.findByEmail(patient.Email) != nil {
		return repository.ErrDuplicateEmail
	}
	patient.Touch(time.Now())
	patient.Role = model.RolePatient
	r.s.patients[patient.ID] = copyPatient(patient)
	return nil
}

func (r *patientRepository) Get(_ context.Context, id uuid.UUID) (*model.Patient, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.patients[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyPatient(p), nil
}

func (r *patientRepository) List(_ context.Context) ([]*model.Patient, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*model.Patient, 0, len(r.s.patients))
	for _, p := range r.s.patients {
		out = append(out, copyPatient(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *patientRepository) AppendAppointment(_ context.Context, patientID, appointmentID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.patients[patientID]
	if !ok {
		return repository.ErrNotFound
	}
	p.AppointmentIDs = append(p.AppointmentIDs, appointmentID.String())
	p.UpdatedAt = time.Now()
	return nil
}

type caregiverRepository struct {
	accountTable
}

func (r *caregiverRepository) Create(_ context.Context, caregiver *model.Caregiver) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.findByEmail(caregiver.Email) != nil {
		return repository.ErrDuplicateEmail
	}
	caregiver.Touch(time.Now())
	caregiver.Role = model.RoleCaregiver
	r.s.caregivers[caregiver.ID] = copyCaregiver(caregiver)
	return nil
}

func (r *caregiverRepository) Get(_ context.Context, id uuid.UUID) (*model.Caregiver, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	c, ok := r.s.caregivers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyCaregiver(c), nil
}

func (r *caregiverRepository) List(_ context.Context) ([]*model.Caregiver, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*model.Caregiver, 0, len(r.s.caregivers))
	for _, c := range r.s.caregivers {
		out = append(out, copyCaregiver(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *caregiverRepository) Update(_ context.Context, caregiver *model.Caregiver) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.caregivers[caregiver.ID]
	if !ok {
		return repository.ErrNotFound
	}
	caregiver.UpdatedAt = time.Now()
	c.FirstName = caregiver.FirstName
	c.LastName = caregiver.LastName
	c.PhoneNumber = caregiver.PhoneNumber
	c.Department = caregiver.Department
	c.Available = caregiver.Available
	c.UpdatedAt = caregiver.UpdatedAt
	return nil
}

func (r *caregiverRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.caregivers[id]; !ok {
		return repository.ErrNotFound
	}

	var finished []*model.Appointment
	for _, a := range r.s.appointments {
		if a.CaregiverID == nil || *a.CaregiverID != id {
			continue
		}
		if !a.Status.IsTerminal() {
			return repository.ErrConflict
		}
		finished = append(finished, a)
	}

	now := time.Now()
	for _, a := range finished {
		a.CaregiverID = nil
		a.UpdatedAt = now
	}
	delete(r.s.caregivers, id)
	return nil
}
