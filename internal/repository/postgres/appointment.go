package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/david-solomon-henshaw/MedAppV1/internal/model"
	"github.com/david-solomon-henshaw/MedAppV1/internal/repository"
)

const appointmentColumns = `id, patient_id, caregiver_id, status, department,
	requested_date, requested_time, appointment_date, start_time, end_time,
	approved_at, created_at, updated_at`

func (r *appointmentRepository) Create(ctx context.Context, apt *model.Appointment) error {
	apt.Touch(time.Now())

	query := `
		INSERT INTO appointments (` + appointmentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.db.ExecContext(ctx, query,
		apt.ID,
		apt.PatientID,
		apt.CaregiverID,
		apt.Status,
		apt.Department,
		apt.RequestedDate,
		apt.RequestedTime,
		apt.AppointmentDate,
		apt.StartTime,
		apt.EndTime,
		apt.ApprovedAt,
		apt.CreatedAt,
		apt.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`

	var apt model.Appointment
	if err := r.db.GetContext(ctx, &apt, query, id); err != nil {
		return nil, notFound(err, "get appointment")
	}
	return &apt, nil
}

func (r *appointmentRepository) List(ctx context.Context, f model.AppointmentFilter) ([]*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE 1=1`
	var args []interface{}

	if f.PatientID != nil {
		args = append(args, *f.PatientID)
		query += fmt.Sprintf(" AND patient_id = $%d", len(args))
	}
	if f.CaregiverID != nil {
		args = append(args, *f.CaregiverID)
		query += fmt.Sprintf(" AND caregiver_id = $%d", len(args))
	}
	if f.Department != "" {
		args = append(args, f.Department)
		query += fmt.Sprintf(" AND department = $%d", len(args))
	}
	if len(f.Status) > 0 {
		args = append(args, pq.Array(statusStrings(f.Status)))
		query += fmt.Sprintf(" AND status = ANY($%d)", len(args))
	}
	if f.DateFrom != nil {
		args = append(args, *f.DateFrom)
		query += fmt.Sprintf(" AND COALESCE(appointment_date, requested_date) >= $%d", len(args))
	}
	if f.DateTo != nil {
		args = append(args, *f.DateTo)
		query += fmt.Sprintf(" AND COALESCE(appointment_date, requested_date) < $%d", len(args))
	}

	query += " ORDER BY created_at ASC"

	var appointments []*model.Appointment
	if err := r.db.SelectContext(ctx, &appointments, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) Update(ctx context.Context, apt *model.Appointment, prior model.AppointmentStatus) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		return swapAppointment(ctx, tx, apt, prior)
	})
}

func (r *appointmentRepository) UpdateWithPrescription(ctx context.Context, apt *model.Appointment, prior model.AppointmentStatus) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := swapAppointment(ctx, tx, apt, prior); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE patients
			SET total_prescriptions = total_prescriptions + 1, updated_at = $1
			WHERE id = $2
		`, apt.UpdatedAt, apt.PatientID)
		if err != nil {
			return fmt.Errorf("failed to increment prescriptions: %w", err)
		}
		return expectOne(res)
	})
}

// swapAppointment writes the mutable columns only while the stored status
// still equals prior.
func swapAppointment(ctx context.Context, tx *sqlx.Tx, apt *model.Appointment, prior model.AppointmentStatus) error {
	apt.UpdatedAt = time.Now()

	res, err := tx.ExecContext(ctx, `
		UPDATE appointments
		SET caregiver_id = $1, status = $2, appointment_date = $3, start_time = $4,
			end_time = $5, approved_at = $6, updated_at = $7
		WHERE id = $8 AND status = $9
	`,
		apt.CaregiverID,
		apt.Status,
		apt.AppointmentDate,
		apt.StartTime,
		apt.EndTime,
		apt.ApprovedAt,
		apt.UpdatedAt,
		apt.ID,
		prior,
	)
	if err != nil {
		return fmt.Errorf("failed to update appointment: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 1 {
		return nil
	}

	var exists bool
	if err := tx.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM appointments WHERE id = $1)`, apt.ID); err != nil {
		return fmt.Errorf("failed to check appointment: %w", err)
	}
	if !exists {
		return repository.ErrNotFound
	}
	return repository.ErrConflict
}

func statusStrings(statuses []model.AppointmentStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
