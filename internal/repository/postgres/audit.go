package postgres

import (
	"context"
	"fmt"

	"github.com/david-solomon-henshaw/MedAppV1/internal/model"
)

func (r *auditRepository) Create(ctx context.Context, entry *model.ActionLog) error {
	query := `
		INSERT INTO action_logs (
			id, user_id, user_role, action, description, entity, entity_id,
			status, error_details, metadata, ip_address, created_at
		) VALUES (
			:id, :user_id, :user_role, :action, :description, :entity, :entity_id,
			:status, :error_details, :metadata, :ip_address, :created_at
		)
	`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("failed to create action log: %w", err)
	}
	return nil
}
