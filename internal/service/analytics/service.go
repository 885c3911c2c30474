package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/david-solomon-henshaw/MedAppV1/internal/model"
	"github.com/david-solomon-henshaw/MedAppV1/internal/repository"
	apperrors "github.com/david-solomon-henshaw/MedAppV1/pkg/errors"
)

const (
	keyDashboard    = "dashboard"
	keyAppointments = "appointments"
	keyCaregivers   = "caregivers"
	keyPatients     = "patients"

	newPatientWindow = 30 * 24 * time.Hour
	upcomingDays     = 7
)

// activeStatuses are the statuses that count toward caregiver workload.
var activeStatuses = []model.AppointmentStatus{
	model.AppointmentStatusApproved,
	model.AppointmentStatusInProgress,
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service computes read-only rollups. Results are cached for ttl; a
// non-positive ttl disables caching.
type Service struct {
	repo  repository.AnalyticsRepository
	cache *gocache.Cache
	now   func() time.Time
}

func NewService(repo repository.AnalyticsRepository, ttl time.Duration, opts ...Option) *Service {
	s := &Service{repo: repo, now: time.Now}
	if ttl > 0 {
		s.cache = gocache.New(ttl, 2*ttl)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func cached[T any](s *Service, key string, load func() (T, error)) (T, error) {
	if s.cache != nil {
		if v, ok := s.cache.Get(key); ok {
			return v.(T), nil
		}
	}
	v, err := load()
	if err != nil {
		var zero T
		return zero, apperrors.Internal(err)
	}
	if s.cache != nil {
		s.cache.SetDefault(key, v)
	}
	return v, nil
}

// Invalidate drops every cached rollup.
func (s *Service) Invalidate() {
	if s.cache != nil {
		s.cache.Flush()
	}
}

func (s *Service) Dashboard(ctx context.Context) (*model.DashboardStats, error) {
	return cached(s, keyDashboard, func() (*model.DashboardStats, error) {
		var (
			out model.DashboardStats
			err error
		)
		if out.TotalPatients, err = s.repo.CountPatients(ctx); err != nil {
			return nil, err
		}
		if out.TotalCaregivers, err = s.repo.CountCaregivers(ctx); err != nil {
			return nil, err
		}
		if out.TotalAppointments, err = s.repo.CountAppointments(ctx); err != nil {
			return nil, err
		}
		if out.PendingAppointments, err = s.repo.CountAppointments(ctx, model.AppointmentStatusPending); err != nil {
			return nil, err
		}
		if out.ActiveAppointments, err = s.repo.CountAppointments(ctx, activeStatuses...); err != nil {
			return nil, err
		}
		if out.DepartmentStats, err = s.repo.AppointmentsByDepartment(ctx); err != nil {
			return nil, err
		}
		return &out, nil
	})
}

func (s *Service) Appointments(ctx context.Context) (*model.AppointmentAnalytics, error) {
	return cached(s, keyAppointments, func() (*model.AppointmentAnalytics, error) {
		var (
			out model.AppointmentAnalytics
			err error
		)
		if out.ByStatus, err = s.repo.AppointmentsByStatus(ctx); err != nil {
			return nil, err
		}
		if out.ByDepartment, err = s.repo.AppointmentsByDepartment(ctx); err != nil {
			return nil, err
		}

		today := startOfDay(s.now())
		tomorrow := today.AddDate(0, 0, 1)
		if out.TodayAppointments, err = s.repo.CountAppointmentsBetween(ctx, today, tomorrow); err != nil {
			return nil, err
		}
		if out.UpcomingAppointments, err = s.repo.CountAppointmentsBetween(ctx, tomorrow, tomorrow.AddDate(0, 0, upcomingDays)); err != nil {
			return nil, err
		}
		return &out, nil
	})
}

func (s *Service) Caregivers(ctx context.Context) (*model.CaregiverAnalytics, error) {
	return cached(s, keyCaregivers, func() (*model.CaregiverAnalytics, error) {
		var (
			out model.CaregiverAnalytics
			err error
		)
		if out.AvailableCaregivers, err = s.repo.CountAvailableCaregivers(ctx); err != nil {
			return nil, err
		}
		if out.DepartmentDistribution, err = s.repo.CaregiversByDepartment(ctx); err != nil {
			return nil, err
		}
		if out.Workload, err = s.repo.CaregiverWorkload(ctx, activeStatuses...); err != nil {
			return nil, err
		}
		return &out, nil
	})
}

func (s *Service) Patients(ctx context.Context) (*model.PatientAnalytics, error) {
	return cached(s, keyPatients, func() (*model.PatientAnalytics, error) {
		var (
			out model.PatientAnalytics
			err error
		)
		if out.GenderDistribution, err = s.repo.PatientsByGender(ctx); err != nil {
			return nil, err
		}

		dobs, err := s.repo.PatientBirthDates(ctx)
		if err != nil {
			return nil, err
		}
		now := s.now()
		out.AgeDistribution = AgeDistribution(dobs, now)

		if out.NewPatients, err = s.repo.CountPatientsCreatedSince(ctx, now.Add(-newPatientWindow)); err != nil {
			return nil, err
		}
		if out.PatientsByDept, err = s.repo.UniquePatientsByDepartment(ctx); err != nil {
			return nil, err
		}
		return &out, nil
	})
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// AgeAt returns completed years between dob and now. The birthday itself
// counts as completed.
func AgeAt(dob, now time.Time) int {
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	if age < 0 {
		return 0
	}
	return age
}

// AgeDistribution buckets ages into decades labelled "20-29", youngest
// first.
func AgeDistribution(dobs []time.Time, now time.Time) []model.CountByKey {
	counts := make(map[int]int)
	for _, dob := range dobs {
		counts[AgeAt(dob, now)/10*10]++
	}

	decades := make([]int, 0, len(counts))
	for d := range counts {
		decades = append(decades, d)
	}
	sort.Ints(decades)

	out := make([]model.CountByKey, 0, len(decades))
	for _, d := range decades {
		out = append(out, model.CountByKey{Key: fmt.Sprintf("%d-%d", d, d+9), Count: counts[d]})
	}
	return out
}
