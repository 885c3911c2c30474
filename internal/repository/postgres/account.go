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

const accountColumns = `id, first_name, last_name, email, password_hash, role,
	otp_code, otp_expires_at, created_at, updated_at`

// accountTable implements the authentication view shared by the three role
// tables. table is always one of the fixed names set in the constructors.
type accountTable struct {
	db    *sqlx.DB
	table string
	role  model.Role
}

func (t accountTable) Role() model.Role {
	return t.role
}

func (t accountTable) GetByEmail(ctx context.Context, email string) (*model.Account, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE lower(email) = lower($1)`, accountColumns, t.table)

	var acc model.Account
	if err := t.db.GetContext(ctx, &acc, query, email); err != nil {
		return nil, notFound(err, "get account by email")
	}
	return &acc, nil
}

func (t accountTable) GetAccount(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, accountColumns, t.table)

	var acc model.Account
	if err := t.db.GetContext(ctx, &acc, query, id); err != nil {
		return nil, notFound(err, "get account")
	}
	return &acc, nil
}

func (t accountTable) SetOTP(ctx context.Context, id uuid.UUID, code string, expiresAt time.Time) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET otp_code = $1, otp_expires_at = $2, updated_at = $3
		WHERE id = $4
	`, t.table)

	res, err := t.db.ExecContext(ctx, query, code, expiresAt, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to set otp: %w", err)
	}
	return expectOne(res)
}

func (t accountTable) ConsumeOTP(ctx context.Context, id uuid.UUID, code string) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET otp_code = NULL, otp_expires_at = NULL, updated_at = $1
		WHERE id = $2 AND otp_code = $3
	`, t.table)

	res, err := t.db.ExecContext(ctx, query, time.Now(), id, code)
	if err != nil {
		return fmt.Errorf("failed to consume otp: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repository.ErrConflict
	}
	return nil
}

func (t accountTable) ClearOTP(ctx context.Context, id uuid.UUID) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET otp_code = NULL, otp_expires_at = NULL, updated_at = $1
		WHERE id = $2
	`, t.table)

	res, err := t.db.ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to clear otp: %w", err)
	}
	return expectOne(res)
}

func (t accountTable) ClearExpiredOTPs(ctx context.Context, before time.Time) (int64, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET otp_code = NULL, otp_expires_at = NULL, updated_at = $1
		WHERE otp_expires_at IS NOT NULL AND otp_expires_at < $2
	`, t.table)

	res, err := t.db.ExecContext(ctx, query, time.Now(), before)
	if err != nil {
		return 0, fmt.Errorf("failed to clear expired otps: %w", err)
	}
	return res.RowsAffected()
}

func (t accountTable) Count(ctx context.Context) (int, error) {
	var n int
	if err := t.db.GetContext(ctx, &n, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, t.table)); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", t.table, err)
	}
	return n, nil
}

func (r *adminRepository) Create(ctx context.Context, admin *model.Account) error {
	admin.Touch(time.Now())
	admin.Role = model.RoleAdmin

	query := `
		INSERT INTO admins (
			id, first_name, last_name, email, password_hash, role,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		admin.ID,
		admin.FirstName,
		admin.LastName,
		admin.Email,
		admin.PasswordHash,
		admin.Role,
		admin.CreatedAt,
		admin.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return repository.ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}
	return nil
}
