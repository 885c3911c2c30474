package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/david-solomon-henshaw/MedAppV1/internal/model"
	"github.com/david-solomon-henshaw/MedAppV1/internal/repository/memory"
	"github.com/david-solomon-henshaw/MedAppV1/pkg/logger"
)

type failingRepo struct{}

func (failingRepo) Create(context.Context, *model.ActionLog) error {
	return errors.New("db down")
}

func TestRecord(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store.Audit(), logger.Nop())

	userID := uuid.New()
	ctx := WithClientIP(context.Background(), "10.0.0.1")

	svc.Record(ctx, Entry{
		UserID:   &userID,
		UserRole: model.RoleAdmin,
		Action:   model.ActionLogin,
		Entity:   model.EntityAdmin,
		Metadata: map[string]string{"email": "a@example.com"},
	})
	svc.Record(ctx, Entry{
		Action: model.ActionLogin,
		Entity: model.EntityError,
		Err:    errors.New("User not found"),
	})

	logs := store.ActionLogs()
	require.Len(t, logs, 2)

	assert.Equal(t, model.ActionStatusSuccess, logs[0].Status)
	assert.Equal(t, &userID, logs[0].UserID)
	assert.Equal(t, "10.0.0.1", logs[0].IPAddress)
	assert.JSONEq(t, `{"email":"a@example.com"}`, string(logs[0].Metadata))

	assert.Equal(t, model.ActionStatusFailed, logs[1].Status)
	assert.Equal(t, "User not found", logs[1].ErrorDetails)
	assert.Nil(t, logs[1].UserID)
}

func TestRecordSwallowsStoreErrors(t *testing.T) {
	svc := NewService(failingRepo{}, logger.Nop())
	assert.NotPanics(t, func() {
		svc.Record(context.Background(), Entry{Action: model.ActionLogin})
	})

	var nilSvc *Service
	assert.NotPanics(t, func() {
		nilSvc.Record(context.Background(), Entry{Action: model.ActionLogin})
	})
}
