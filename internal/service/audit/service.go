package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/david-solomon-henshaw/MedAppV1/internal/model"
	"github.com/david-solomon-henshaw/MedAppV1/internal/repository"
	"github.com/david-solomon-henshaw/MedAppV1/pkg/logger"
)

type clientIPKey struct{}

// WithClientIP stores the caller address so entries recorded further down
// the request can carry it.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

func ClientIP(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}

// Entry describes one action. A non-nil Err marks the entry failed.
type Entry struct {
	UserID      *uuid.UUID
	UserRole    model.Role
	Action      string
	Description string
	Entity      string
	EntityID    *uuid.UUID
	Err         error
	Metadata    interface{}
}

type Service struct {
	repo repository.AuditRepository
	log  *logger.Logger
	now  func() time.Time
}

func NewService(repo repository.AuditRepository, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{repo: repo, log: log, now: time.Now}
}

// Record writes the entry. Failures are logged and never reach the caller.
func (s *Service) Record(ctx context.Context, e Entry) {
	if s == nil || s.repo == nil {
		return
	}

	entry := &model.ActionLog{
		ID:          uuid.New(),
		UserID:      e.UserID,
		UserRole:    e.UserRole,
		Action:      e.Action,
		Description: e.Description,
		Entity:      e.Entity,
		EntityID:    e.EntityID,
		Status:      model.ActionStatusSuccess,
		IPAddress:   ClientIP(ctx),
		CreatedAt:   s.now(),
	}
	if e.Err != nil {
		entry.Status = model.ActionStatusFailed
		entry.ErrorDetails = e.Err.Error()
	}
	if e.Metadata != nil {
		raw, err := json.Marshal(e.Metadata)
		if err != nil {
			s.log.Error(err, "failed to encode action log metadata", "action", e.Action)
		} else {
			entry.Metadata = raw
		}
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		s.log.Error(err, "failed to record action", "action", e.Action, "entity", e.Entity)
	}
}
