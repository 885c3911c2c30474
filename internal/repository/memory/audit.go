package memory

import (
	"context"

	"github.com/david-solomon-henshaw/MedAppV1/internal/model"
)

type auditRepository struct {
	s *Store
}

func (r *auditRepository) Create(_ context.Context, entry *model.ActionLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored := *entry
	r.s.actionLogs = append(r.s.actionLogs, &stored)
	return nil
}
