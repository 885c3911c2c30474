package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/david-solomon-henshaw/MedAppV1/internal/model"
	"github.com/david-solomon-henshaw/MedAppV1/internal/repository"
	"github.com/david-solomon-henshaw/MedAppV1/internal/repository/memory"
	"github.com/david-solomon-henshaw/MedAppV1/pkg/metrics"
)

type failingSweep struct {
	repository.AccountRepository
}

func (failingSweep) ClearExpiredOTPs(context.Context, time.Time) (int64, error) {
	return 0, errors.New("connection refused")
}

func TestSweepClearsOnlyExpiredSlots(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	expired := &model.Account{Email: "old@example.com"}
	require.NoError(t, store.Admins().Create(ctx, expired))
	require.NoError(t, store.Admins().SetOTP(ctx, expired.ID, "111111", now.Add(-time.Minute)))

	live := &model.Patient{Account: model.Account{Email: "live@example.com"}}
	require.NoError(t, store.Patients().Create(ctx, live))
	require.NoError(t, store.Patients().SetOTP(ctx, live.ID, "222222", now.Add(time.Minute)))

	m := metrics.NewMetrics("test", prometheus.NewRegistry())
	w := NewOTPSweeper(
		[]repository.AccountRepository{store.Admins(), store.Patients(), store.Caregivers()},
		time.Minute, 0, m, nil,
	)
	w.now = func() time.Time { return now }

	n, err := w.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OTPSweeperCleared))

	a, err := store.Admins().GetAccount(ctx, expired.ID)
	require.NoError(t, err)
	_, _, pending := a.PendingOTP()
	assert.False(t, pending)

	p, err := store.Patients().GetAccount(ctx, live.ID)
	require.NoError(t, err)
	code, _, pending := p.PendingOTP()
	assert.True(t, pending)
	assert.Equal(t, "222222", code)
}

func TestSweepKeepsSlotsWithinGrace(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	recent := &model.Account{Email: "recent@example.com"}
	require.NoError(t, store.Admins().Create(ctx, recent))
	require.NoError(t, store.Admins().SetOTP(ctx, recent.ID, "555555", now.Add(-10*time.Minute)))

	stale := &model.Account{Email: "stale@example.com"}
	require.NoError(t, store.Admins().Create(ctx, stale))
	require.NoError(t, store.Admins().SetOTP(ctx, stale.ID, "666666", now.Add(-2*time.Hour)))

	w := NewOTPSweeper([]repository.AccountRepository{store.Admins()}, time.Minute, time.Hour, nil, nil)
	w.now = func() time.Time { return now }

	n, err := w.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := store.Admins().GetAccount(ctx, recent.ID)
	require.NoError(t, err)
	code, expiresAt, pending := got.PendingOTP()
	assert.True(t, pending, "recently expired codes stay so verification can report them as expired")
	assert.Equal(t, "555555", code)
	assert.True(t, expiresAt.Before(now))

	got, err = store.Admins().GetAccount(ctx, stale.ID)
	require.NoError(t, err)
	_, _, pending = got.PendingOTP()
	assert.False(t, pending)
}

func TestSweepContinuesPastFailingStore(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	now := time.Now()

	c := &model.Caregiver{Account: model.Account{Email: "cg@example.com"}}
	require.NoError(t, store.Caregivers().Create(ctx, c))
	require.NoError(t, store.Caregivers().SetOTP(ctx, c.ID, "333333", now.Add(-time.Second)))

	w := NewOTPSweeper(
		[]repository.AccountRepository{failingSweep{store.Admins()}, store.Caregivers()},
		time.Minute, 0, nil, nil,
	)

	n, err := w.Sweep(ctx)
	assert.Equal(t, int64(1), n)
	assert.ErrorContains(t, err, "failed to sweep admin OTPs")
}

func TestStartStopsWithContext(t *testing.T) {
	store := memory.NewStore()
	w := NewOTPSweeper([]repository.AccountRepository{store.Admins()}, time.Hour, 0, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestStartSweepsImmediately(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	a := &model.Account{Email: "admin@example.com", Role: model.RoleAdmin}
	require.NoError(t, store.Admins().Create(ctx, a))
	require.NoError(t, store.Admins().SetOTP(ctx, a.ID, "444444", time.Now().Add(-time.Minute)))

	w := NewOTPSweeper([]repository.AccountRepository{store.Admins()}, time.Hour, 0, nil, nil)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go w.Start(runCtx)

	assert.Eventually(t, func() bool {
		got, err := store.Admins().GetAccount(ctx, a.ID)
		if err != nil {
			return false
		}
		_, _, pending := got.PendingOTP()
		return !pending
	}, 2*time.Second, 10*time.Millisecond)
}

type chanBroker struct {
	ch chan []byte
}

func (b *chanBroker) Publish(context.Context, string, interface{}) error { return nil }

func (b *chanBroker) Subscribe(context.Context, string) (<-chan []byte, error) {
	return b.ch, nil
}

func (b *chanBroker) Close() error { return nil }

func TestEventConsumerCountsEvents(t *testing.T) {
	broker := &chanBroker{ch: make(chan []byte, 3)}
	m := metrics.NewMetrics("test", prometheus.NewRegistry())
	c := NewEventConsumer(broker, "appointment-events", m, nil)

	for _, to := range []model.AppointmentStatus{model.AppointmentStatusApproved, model.AppointmentStatusApproved} {
		payload, err := json.Marshal(model.AppointmentEvent{
			AppointmentID: uuid.New(),
			From:          model.AppointmentStatusPending,
			To:            to,
		})
		require.NoError(t, err)
		broker.ch <- payload
	}
	broker.ch <- []byte("not json")
	close(broker.ch)

	require.NoError(t, c.Run(context.Background()))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.EventsConsumed.WithLabelValues("approved")))
}
