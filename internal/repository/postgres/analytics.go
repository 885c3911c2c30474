package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/david-solomon-henshaw/MedAppV1/internal/model"
)

func (r *analyticsRepository) count(ctx context.Context, query string, args ...interface{}) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, query, args...); err != nil {
		return 0, fmt.Errorf("failed to run count: %w", err)
	}
	return n, nil
}

func (r *analyticsRepository) groupBy(ctx context.Context, query string) ([]model.CountByKey, error) {
	rows := []model.CountByKey{}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to run group by: %w", err)
	}
	return rows, nil
}

func (r *analyticsRepository) CountPatients(ctx context.Context) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM patients`)
}

func (r *analyticsRepository) CountCaregivers(ctx context.Context) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM caregivers`)
}

func (r *analyticsRepository) CountAvailableCaregivers(ctx context.Context) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM caregivers WHERE available`)
}

func (r *analyticsRepository) CountAppointments(ctx context.Context, statuses ...model.AppointmentStatus) (int, error) {
	if len(statuses) == 0 {
		return r.count(ctx, `SELECT COUNT(*) FROM appointments`)
	}
	return r.count(ctx, `SELECT COUNT(*) FROM appointments WHERE status = ANY($1)`, pq.Array(statusStrings(statuses)))
}

func (r *analyticsRepository) CountAppointmentsBetween(ctx context.Context, from, to time.Time) (int, error) {
	return r.count(ctx, `
		SELECT COUNT(*) FROM appointments
		WHERE COALESCE(appointment_date, requested_date) >= $1
		AND COALESCE(appointment_date, requested_date) < $2
	`, from, to)
}

func (r *analyticsRepository) CountPatientsCreatedSince(ctx context.Context, since time.Time) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM patients WHERE created_at >= $1`, since)
}

func (r *analyticsRepository) AppointmentsByStatus(ctx context.Context) ([]model.CountByKey, error) {
	return r.groupBy(ctx, `
		SELECT status AS key, COUNT(*) AS count
		FROM appointments GROUP BY status ORDER BY status
	`)
}

func (r *analyticsRepository) AppointmentsByDepartment(ctx context.Context) ([]model.CountByKey, error) {
	return r.groupBy(ctx, `
		SELECT department AS key, COUNT(*) AS count
		FROM appointments GROUP BY department ORDER BY department
	`)
}

func (r *analyticsRepository) CaregiversByDepartment(ctx context.Context) ([]model.CountByKey, error) {
	return r.groupBy(ctx, `
		SELECT department AS key, COUNT(*) AS count
		FROM caregivers GROUP BY department ORDER BY department
	`)
}

func (r *analyticsRepository) PatientsByGender(ctx context.Context) ([]model.CountByKey, error) {
	return r.groupBy(ctx, `
		SELECT gender AS key, COUNT(*) AS count
		FROM patients GROUP BY gender ORDER BY gender
	`)
}

func (r *analyticsRepository) PatientBirthDates(ctx context.Context) ([]time.Time, error) {
	var dates []time.Time
	if err := r.db.SelectContext(ctx, &dates, `SELECT date_of_birth FROM patients`); err != nil {
		return nil, fmt.Errorf("failed to load birth dates: %w", err)
	}
	return dates, nil
}

func (r *analyticsRepository) UniquePatientsByDepartment(ctx context.Context) ([]model.CountByKey, error) {
	return r.groupBy(ctx, `
		SELECT department AS key, COUNT(DISTINCT patient_id) AS count
		FROM appointments GROUP BY department ORDER BY department
	`)
}

func (r *analyticsRepository) CaregiverWorkload(ctx context.Context, statuses ...model.AppointmentStatus) ([]model.CaregiverWorkload, error) {
	query := `
		SELECT a.caregiver_id, c.first_name, c.last_name, c.department, COUNT(*) AS count
		FROM appointments a
		JOIN caregivers c ON c.id = a.caregiver_id
	`
	var args []interface{}
	if len(statuses) > 0 {
		query += ` WHERE a.status = ANY($1)`
		args = append(args, pq.Array(statusStrings(statuses)))
	}
	query += `
		GROUP BY a.caregiver_id, c.first_name, c.last_name, c.department
		ORDER BY count DESC, a.caregiver_id
	`

	workload := []model.CaregiverWorkload{}
	if err := r.db.SelectContext(ctx, &workload, query, args...); err != nil {
		return nil, fmt.Errorf("failed to load caregiver workload: %w", err)
	}
	return workload, nil
}
