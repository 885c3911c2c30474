package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/david-solomon-henshaw/MedAppV1/internal/model"
	"github.com/david-solomon-henshaw/MedAppV1/internal/repository"
)

const caregiverColumns = accountColumns + `, phone_number, department, available`

func (r *caregiverRepository) Create(ctx context.Context, caregiver *model.Caregiver) error {
	caregiver.Touch(time.Now())
	caregiver.Role = model.RoleCaregiver

	query := `
		INSERT INTO caregivers (
			id, first_name, last_name, email, password_hash, role,
			phone_number, department, available, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.ExecContext(ctx, query,
		caregiver.ID,
		caregiver.FirstName,
		caregiver.LastName,
		caregiver.Email,
		caregiver.PasswordHash,
		caregiver.Role,
		caregiver.PhoneNumber,
		caregiver.Department,
		caregiver.Available,
		caregiver.CreatedAt,
		caregiver.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return repository.ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("failed to create caregiver: %w", err)
	}
	return nil
}

func (r *caregiverRepository) Get(ctx context.Context, id uuid.UUID) (*model.Caregiver, error) {
	query := `SELECT ` + caregiverColumns + ` FROM caregivers WHERE id = $1`

	var caregiver model.Caregiver
	if err := r.db.GetContext(ctx, &caregiver, query, id); err != nil {
		return nil, notFound(err, "get caregiver")
	}
	return &caregiver, nil
}

func (r *caregiverRepository) List(ctx context.Context) ([]*model.Caregiver, error) {
	query := `SELECT ` + caregiverColumns + ` FROM caregivers ORDER BY created_at`

	var caregivers []*model.Caregiver
	if err := r.db.SelectContext(ctx, &caregivers, query); err != nil {
		return nil, fmt.Errorf("failed to list caregivers: %w", err)
	}
	return caregivers, nil
}

func (r *caregiverRepository) Update(ctx context.Context, caregiver *model.Caregiver) error {
	caregiver.UpdatedAt = time.Now()

	res, err := r.db.ExecContext(ctx, `
		UPDATE caregivers
		SET first_name = $1, last_name = $2, phone_number = $3, department = $4,
			available = $5, updated_at = $6
		WHERE id = $7
	`,
		caregiver.FirstName,
		caregiver.LastName,
		caregiver.PhoneNumber,
		caregiver.Department,
		caregiver.Available,
		caregiver.UpdatedAt,
		caregiver.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update caregiver: %w", err)
	}
	return expectOne(res)
}

// Delete locks the caregiver row first so a concurrent assignment, whose
// foreign key check needs a share lock on it, waits for the outcome.
func (r *caregiverRepository) Delete(ctx context.Context, id uuid.UUID) error {
	base := NewBaseRepository(r.db)
	return base.WithTx(ctx, func(tx *sqlx.Tx) error {
		var locked uuid.UUID
		if err := tx.GetContext(ctx, &locked, `SELECT id FROM caregivers WHERE id = $1 FOR UPDATE`, id); err != nil {
			return notFound(err, "lock caregiver")
		}

		var active bool
		if err := tx.GetContext(ctx, &active, `
			SELECT EXISTS (
				SELECT 1 FROM appointments
				WHERE caregiver_id = $1 AND status NOT IN ($2, $3)
			)
		`, id, model.AppointmentStatusCompleted, model.AppointmentStatusCancelled); err != nil {
			return fmt.Errorf("failed to check caregiver appointments: %w", err)
		}
		if active {
			return repository.ErrConflict
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE appointments SET caregiver_id = NULL, updated_at = $1 WHERE caregiver_id = $2
		`, time.Now(), id); err != nil {
			return fmt.Errorf("failed to detach caregiver appointments: %w", err)
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM caregivers WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("failed to delete caregiver: %w", err)
		}
		return expectOne(res)
	})
}
