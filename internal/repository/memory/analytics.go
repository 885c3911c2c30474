package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/david-solomon-henshaw/MedAppV1/internal/model"
)

type analyticsRepository struct {
	s *Store
}

func (r *analyticsRepository) CountPatients(_ context.Context) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return len(r.s.patients), nil
}

func (r *analyticsRepository) CountCaregivers(_ context.Context) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return len(r.s.caregivers), nil
}

func (r *analyticsRepository) CountAvailableCaregivers(_ context.Context) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	n := 0
	for _, c := range r.s.caregivers {
		if c.Available {
			n++
		}
	}
	return n, nil
}

func (r *analyticsRepository) CountAppointments(_ context.Context, statuses ...model.AppointmentStatus) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	n := 0
	for _, a := range r.s.appointments {
		if len(statuses) == 0 || hasStatus(a.Status, statuses) {
			n++
		}
	}
	return n, nil
}

func (r *analyticsRepository) CountAppointmentsBetween(_ context.Context, from, to time.Time) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	n := 0
	for _, a := range r.s.appointments {
		d := scheduledDate(a)
		if !d.Before(from) && d.Before(to) {
			n++
		}
	}
	return n, nil
}

func (r *analyticsRepository) CountPatientsCreatedSince(_ context.Context, since time.Time) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	n := 0
	for _, p := range r.s.patients {
		if !p.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *analyticsRepository) AppointmentsByStatus(_ context.Context) ([]model.CountByKey, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	counts := make(map[string]int)
	for _, a := range r.s.appointments {
		counts[string(a.Status)]++
	}
	return sortedCounts(counts), nil
}

func (r *analyticsRepository) AppointmentsByDepartment(_ context.Context) ([]model.CountByKey, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	counts := make(map[string]int)
	for _, a := range r.s.appointments {
		counts[a.Department]++
	}
	return sortedCounts(counts), nil
}

func (r *analyticsRepository) CaregiversByDepartment(_ context.Context) ([]model.CountByKey, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	counts := make(map[string]int)
	for _, c := range r.s.caregivers {
		counts[c.Department]++
	}
	return sortedCounts(counts), nil
}

func (r *analyticsRepository) PatientsByGender(_ context.Context) ([]model.CountByKey, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	counts := make(map[string]int)
	for _, p := range r.s.patients {
		counts[string(p.Gender)]++
	}
	return sortedCounts(counts), nil
}

func (r *analyticsRepository) PatientBirthDates(_ context.Context) ([]time.Time, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]time.Time, 0, len(r.s.patients))
	for _, p := range r.s.patients {
		out = append(out, p.DateOfBirth)
	}
	return out, nil
}

func (r *analyticsRepository) UniquePatientsByDepartment(_ context.Context) ([]model.CountByKey, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	seen := make(map[string]map[uuid.UUID]struct{})
	for _, a := range r.s.appointments {
		if seen[a.Department] == nil {
			seen[a.Department] = make(map[uuid.UUID]struct{})
		}
		seen[a.Department][a.PatientID] = struct{}{}
	}
	counts := make(map[string]int, len(seen))
	for dept, patients := range seen {
		counts[dept] = len(patients)
	}
	return sortedCounts(counts), nil
}

func (r *analyticsRepository) CaregiverWorkload(_ context.Context, statuses ...model.AppointmentStatus) ([]model.CaregiverWorkload, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	counts := make(map[uuid.UUID]int)
	for _, a := range r.s.appointments {
		if a.CaregiverID == nil {
			continue
		}
		if len(statuses) > 0 && !hasStatus(a.Status, statuses) {
			continue
		}
		counts[*a.CaregiverID]++
	}

	out := make([]model.CaregiverWorkload, 0, len(counts))
	for id, n := range counts {
		c, ok := r.s.caregivers[id]
		if !ok {
			continue
		}
		out = append(out, model.CaregiverWorkload{
			CaregiverID: id,
			FirstName:   c.FirstName,
			LastName:    c.LastName,
			Department:  c.Department,
			Count:       n,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].CaregiverID.String() < out[j].CaregiverID.String()
	})
	return out, nil
}

func sortedCounts(counts map[string]int) []model.CountByKey {
	out := make([]model.CountByKey, 0, len(counts))
	for k, n := range counts {
		out = append(out, model.CountByKey{Key: k, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
