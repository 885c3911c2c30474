package appointment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/david-solomon-henshaw/MedAppV1/internal/model"
	"github.com/david-solomon-henshaw/MedAppV1/internal/repository/memory"
	"github.com/david-solomon-henshaw/MedAppV1/internal/service/analytics"
	"github.com/david-solomon-henshaw/MedAppV1/internal/service/audit"
	"github.com/david-solomon-henshaw/MedAppV1/internal/service/notification"
	"github.com/david-solomon-henshaw/MedAppV1/internal/service/notification/notificationtest"
	apperrors "github.com/david-solomon-henshaw/MedAppV1/pkg/errors"
	"github.com/david-solomon-henshaw/MedAppV1/pkg/logger"
	"github.com/david-solomon-henshaw/MedAppV1/pkg/metrics"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recordingBroker struct {
	mu     sync.Mutex
	err    error
	topics []string
	events []model.AppointmentEvent
}

func (b *recordingBroker) Publish(_ context.Context, topic string, msg interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.topics = append(b.topics, topic)
	b.events = append(b.events, msg.(model.AppointmentEvent))
	return nil
}

func (b *recordingBroker) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, errors.New("not supported")
}

func (b *recordingBroker) Close() error { return nil }

func (b *recordingBroker) Events() []model.AppointmentEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]model.AppointmentEvent(nil), b.events...)
}

type fixture struct {
	store     *memory.Store
	svc       *Service
	notifier  *notificationtest.Recorder
	broker    *recordingBroker
	clock     *fakeClock
	metrics   *metrics.Metrics
	patient   *model.Patient
	caregiver *model.Caregiver
	admin     Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{
		store:    memory.NewStore(),
		notifier: &notificationtest.Recorder{},
		broker:   &recordingBroker{},
		clock:    &fakeClock{t: time.Date(2024, 6, 3, 8, 0, 0, 0, time.UTC)},
		metrics:  metrics.NewMetrics("test", prometheus.NewRegistry()),
		admin:    Actor{ID: uuid.New(), Role: model.RoleAdmin},
	}

	f.patient = &model.Patient{
		Account:     model.Account{FirstName: "Pat", LastName: "Jones", Email: "pat@example.com", PasswordHash: "x"},
		DateOfBirth: time.Date(1985, 1, 1, 0, 0, 0, 0, time.UTC),
		Gender:      model.GenderMale,
		PhoneNumber: "5550001111",
	}
	require.NoError(t, f.store.Patients().Create(ctx, f.patient))

	f.caregiver = &model.Caregiver{
		Account:     model.Account{FirstName: "Cara", LastName: "Smith", Email: "cara@example.com", PasswordHash: "x"},
		PhoneNumber: "5550002222",
		Department:  "cardiology",
		Available:   true,
	}
	require.NoError(t, f.store.Caregivers().Create(ctx, f.caregiver))

	f.svc = f.newService(f.notifier)
	return f
}

func (f *fixture) newService(notifier notification.Notifier) *Service {
	return NewService(
		f.store.Appointments(),
		f.store.Patients(),
		f.store.Caregivers(),
		notifier,
		audit.NewService(f.store.Audit(), logger.Nop()),
		f.metrics,
		logger.Nop(),
		WithClock(f.clock.Now),
		WithPublisher(f.broker, "test-events"),
	)
}

func (f *fixture) request(t *testing.T) *model.Appointment {
	t.Helper()
	apt, err := f.svc.RequestAppointment(context.Background(), f.patient.ID, model.RequestAppointmentRequest{
		RequestedDate: time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC),
		RequestedTime: "10:00",
		Department:    "cardiology",
	})
	require.NoError(t, err)
	return apt
}

func statusPtr(s model.AppointmentStatus) *model.AppointmentStatus {
	return &s
}

func (f *fixture) approve(t *testing.T, id uuid.UUID) *model.Appointment {
	t.Helper()
	apt, err := f.svc.AdminUpdate(context.Background(), id, f.admin, model.AppointmentUpdate{
		Status:      statusPtr(model.AppointmentStatusApproved),
		CaregiverID: &f.caregiver.ID,
	})
	require.NoError(t, err)
	return apt
}

func (f *fixture) prescriptions(t *testing.T) int {
	t.Helper()
	p, err := f.store.Patients().Get(context.Background(), f.patient.ID)
	require.NoError(t, err)
	return p.TotalPrescriptions
}

func TestRequestAppointment(t *testing.T) {
	f := newFixture(t)
	apt := f.request(t)

	assert.Equal(t, model.AppointmentStatusPending, apt.Status)
	assert.Nil(t, apt.CaregiverID)
	assert.Equal(t, "10:00", apt.RequestedTime)

	p, err := f.store.Patients().Get(context.Background(), f.patient.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{apt.ID.String()}, []string(p.AppointmentIDs))

	_, err = f.svc.RequestAppointment(context.Background(), uuid.New(), model.RequestAppointmentRequest{Department: "x"})
	assert.ErrorIs(t, err, ErrPatientNotFound)
}

func TestApproveWithCaregiverNotifiesBoth(t *testing.T) {
	f := newFixture(t)
	apt := f.request(t)

	date := time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC)
	updated, err := f.svc.AdminUpdate(context.Background(), apt.ID, f.admin, model.AppointmentUpdate{
		Status:          statusPtr(model.AppointmentStatusApproved),
		CaregiverID:     &f.caregiver.ID,
		AppointmentDate: &date,
	})
	require.NoError(t, err)

	assert.Equal(t, model.AppointmentStatusApproved, updated.Status)
	require.NotNil(t, updated.CaregiverID)
	assert.Equal(t, f.caregiver.ID, *updated.CaregiverID)
	require.NotNil(t, updated.ApprovedAt)
	assert.Equal(t, f.clock.Now(), *updated.ApprovedAt)

	msgs := f.notifier.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, notification.KindAppointmentApproved, msgs[0].Kind)
	assert.Equal(t, "pat@example.com", msgs[0].To)
	assert.Equal(t, "Cara Smith", msgs[0].Data.Counterpart)
	assert.Equal(t, notification.KindCaregiverAssignment, msgs[1].Kind)
	assert.Equal(t, "cara@example.com", msgs[1].To)
	assert.Equal(t, "Pat Jones", msgs[1].Data.Counterpart)

	events := f.broker.Events()
	require.Len(t, events, 1)
	assert.Equal(t, model.AppointmentStatusPending, events[0].From)
	assert.Equal(t, model.AppointmentStatusApproved, events[0].To)
	assert.Equal(t, []string{"test-events"}, f.broker.topics)

	stored, err := f.store.Appointments().Get(context.Background(), apt.ID)
	require.NoError(t, err)
	assert.Equal(t, updated.Status, stored.Status)
	assert.Equal(t, date, *stored.AppointmentDate)
}

func TestApprovedAtIsStampedOnce(t *testing.T) {
	f := newFixture(t)
	apt := f.request(t)

	first := f.approve(t, apt.ID)
	stampedAt := *first.ApprovedAt

	f.clock.Advance(time.Hour)
	suspended, err := f.svc.AdminUpdate(context.Background(), apt.ID, f.admin, model.AppointmentUpdate{
		Status: statusPtr(model.AppointmentStatusSuspended),
	})
	require.NoError(t, err)
	assert.Equal(t, stampedAt, *suspended.ApprovedAt)

	f.clock.Advance(time.Hour)
	again := f.approve(t, apt.ID)
	assert.Equal(t, stampedAt, *again.ApprovedAt)

	assert.Equal(t, []notification.Kind{
		notification.KindAppointmentApproved, notification.KindCaregiverAssignment,
		notification.KindAppointmentSuspended, notification.KindAppointmentSuspended,
		notification.KindAppointmentApproved, notification.KindCaregiverAssignment,
	}, f.notifier.Kinds())
}

func TestCompletionIncrementsPrescriptionsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	apt := f.request(t)
	f.approve(t, apt.ID)

	f.clock.Advance(time.Minute)
	started, err := f.svc.CaregiverUpdate(ctx, apt.ID, f.caregiver.ID, model.AppointmentStatusInProgress, nil)
	require.NoError(t, err)
	require.NotNil(t, started.StartTime)
	assert.Equal(t, f.clock.Now(), *started.StartTime)

	end := f.clock.Now().Add(30 * time.Minute)
	completed, err := f.svc.CaregiverUpdate(ctx, apt.ID, f.caregiver.ID, model.AppointmentStatusCompleted, &end)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCompleted, completed.Status)
	assert.Equal(t, end, *completed.EndTime)
	assert.Equal(t, 1, f.prescriptions(t))

	// Re-applying completed is a no-op.
	_, err = f.svc.CaregiverUpdate(ctx, apt.ID, f.caregiver.ID, model.AppointmentStatusCompleted, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, f.prescriptions(t))

	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.PrescriptionIncrements))
}

func TestConcurrentCompletionIncrementsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	apt := f.request(t)
	f.approve(t, apt.ID)
	_, err := f.svc.CaregiverUpdate(ctx, apt.ID, f.caregiver.ID, model.AppointmentStatusInProgress, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.CaregiverUpdate(ctx, apt.ID, f.caregiver.ID, model.AppointmentStatusCompleted, nil)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, f.prescriptions(t))
}

func TestCompletionAcrossInstancesIsGuardedByStore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	apt := f.request(t)
	f.approve(t, apt.ID)
	_, err := f.svc.CaregiverUpdate(ctx, apt.ID, f.caregiver.ID, model.AppointmentStatusInProgress, nil)
	require.NoError(t, err)

	// Separate services do not share a keyed lock, only the store.
	services := []*Service{f.newService(f.notifier), f.newService(f.notifier), f.newService(f.notifier)}

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		svc := services[i%len(services)]
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CaregiverUpdate(ctx, apt.ID, f.caregiver.ID, model.AppointmentStatusCompleted, nil)
			if err != nil {
				assert.ErrorIs(t, err, ErrConcurrentUpdate)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, f.prescriptions(t))
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	apt := f.request(t)
	f.approve(t, apt.ID)
	f.notifier.Reset()

	cancelled, err := f.svc.Cancel(ctx, apt.ID, f.admin, nil)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCancelled, cancelled.Status)

	msgs := f.notifier.Messages()
	require.Len(t, msgs, 1, "only the patient is told about a cancellation")
	assert.Equal(t, notification.KindAppointmentCancelled, msgs[0].Kind)
	assert.Equal(t, "pat@example.com", msgs[0].To)

	before, err := f.store.Appointments().Get(ctx, apt.ID)
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	_, err = f.svc.Cancel(ctx, apt.ID, f.admin, nil)
	assert.ErrorIs(t, err, ErrAlreadyCancelled)
	assert.Equal(t, 400, apperrors.As(err).StatusCode())

	after, err := f.store.Appointments().Get(ctx, apt.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Len(t, f.notifier.Messages(), 1)
}

func TestCancelWithAlternateStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	apt := f.request(t)

	suspended, err := f.svc.Cancel(ctx, apt.ID, f.admin, statusPtr(model.AppointmentStatusSuspended))
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusSuspended, suspended.Status)
	assert.Equal(t, []notification.Kind{notification.KindAppointmentSuspended}, f.notifier.Kinds())

	_, err = f.svc.Cancel(ctx, apt.ID, f.admin, statusPtr(model.AppointmentStatusCompleted))
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.svc.Cancel(ctx, apt.ID, f.admin, statusPtr("archived"))
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestInvalidTransitionLeavesRecordUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	apt := f.request(t)

	for _, target := range []model.AppointmentStatus{model.AppointmentStatusInProgress, model.AppointmentStatusCompleted} {
		date := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
		_, err := f.svc.AdminUpdate(ctx, apt.ID, f.admin, model.AppointmentUpdate{
			Status:          statusPtr(target),
			CaregiverID:     &f.caregiver.ID,
			AppointmentDate: &date,
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.Contains(t, apperrors.As(err).Message, "from pending to "+string(target))
	}

	stored, err := f.store.Appointments().Get(ctx, apt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusPending, stored.Status)
	assert.Nil(t, stored.CaregiverID)
	assert.Nil(t, stored.AppointmentDate)
	assert.Equal(t, 0, f.prescriptions(t))
	assert.Empty(t, f.notifier.Messages())
}

func TestAdminUpdateErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	apt := f.request(t)

	_, err := f.svc.AdminUpdate(ctx, apt.ID, f.admin, model.AppointmentUpdate{
		Status: statusPtr(model.AppointmentStatusApproved),
	})
	assert.ErrorIs(t, err, ErrCaregiverRequired)

	missing := uuid.New()
	_, err = f.svc.AdminUpdate(ctx, apt.ID, f.admin, model.AppointmentUpdate{
		Status:      statusPtr(model.AppointmentStatusApproved),
		CaregiverID: &missing,
	})
	assert.ErrorIs(t, err, ErrCaregiverNotFound)
	assert.Equal(t, "Caregiver not found", apperrors.As(err).Message)

	_, err = f.svc.AdminUpdate(ctx, uuid.New(), f.admin, model.AppointmentUpdate{})
	assert.ErrorIs(t, err, ErrAppointmentNotFound)

	_, err = f.svc.AdminUpdate(ctx, apt.ID, f.admin, model.AppointmentUpdate{Status: statusPtr("done")})
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestSameStatusHasNoSideEffects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	apt := f.request(t)
	f.approve(t, apt.ID)
	f.notifier.Reset()
	eventsBefore := len(f.broker.Events())

	date := time.Date(2024, 6, 20, 0, 0, 0, 0, time.UTC)
	updated, err := f.svc.AdminUpdate(ctx, apt.ID, f.admin, model.AppointmentUpdate{
		Status:          statusPtr(model.AppointmentStatusApproved),
		AppointmentDate: &date,
	})
	require.NoError(t, err)
	assert.Equal(t, date, *updated.AppointmentDate)
	assert.Empty(t, f.notifier.Messages())
	assert.Len(t, f.broker.Events(), eventsBefore)
}

func TestCaregiverPathRestrictions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	apt := f.request(t)

	_, err := f.svc.CaregiverUpdate(ctx, apt.ID, f.caregiver.ID, model.AppointmentStatusInProgress, nil)
	assert.ErrorIs(t, err, ErrNotAssigned, "unassigned appointments are off limits")

	f.approve(t, apt.ID)

	_, err = f.svc.CaregiverUpdate(ctx, apt.ID, uuid.New(), model.AppointmentStatusInProgress, nil)
	assert.ErrorIs(t, err, ErrNotAssigned)
	assert.Equal(t, 403, apperrors.As(err).StatusCode())

	_, err = f.svc.CaregiverUpdate(ctx, apt.ID, f.caregiver.ID, model.AppointmentStatusCancelled, nil)
	assert.ErrorIs(t, err, ErrCaregiverStatus)

	_, err = f.svc.CaregiverUpdate(ctx, apt.ID, f.caregiver.ID, model.AppointmentStatusCompleted, nil)
	assert.ErrorIs(t, err, ErrInvalidTransition, "approved cannot jump to completed")

	list, err := f.svc.ListForCaregiver(ctx, f.caregiver.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, apt.ID, list[0].ID)

	other, err := f.svc.ListForCaregiver(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, other)
}

type failingSender struct{}

func (failingSender) Send(context.Context, string, string, string) error {
	return errors.New("smtp down")
}

func TestSideEffectFailuresDoNotFailTransition(t *testing.T) {
	f := newFixture(t)
	f.broker.err = errors.New("broker down")
	f.svc = f.newService(notification.NewService(
		failingSender{},
		notification.Config{RetryAttempts: 1},
		metrics.NewMetrics("mail", prometheus.NewRegistry()),
		logger.Nop(),
	))

	apt := f.request(t)
	updated := f.approve(t, apt.ID)
	assert.Equal(t, model.AppointmentStatusApproved, updated.Status)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.EventsPublished.WithLabelValues("failed")))
}

func TestTransitionsAreAudited(t *testing.T) {
	f := newFixture(t)
	apt := f.request(t)
	f.approve(t, apt.ID)

	_, err := f.svc.Cancel(context.Background(), apt.ID, f.admin, nil)
	require.NoError(t, err)

	var actions []string
	for _, l := range f.store.ActionLogs() {
		actions = append(actions, l.Action)
	}
	assert.Equal(t, []string{
		model.ActionPatientBookAppointment,
		model.ActionAppointmentApprove,
		model.ActionAppointmentCancel,
	}, actions)
}

func TestTerminalAppointmentsRejectAdminUpdates(t *testing.T) {
	ctx := context.Background()

	finish := map[model.AppointmentStatus]func(t *testing.T, f *fixture, id uuid.UUID){
		model.AppointmentStatusCompleted: func(t *testing.T, f *fixture, id uuid.UUID) {
			_, err := f.svc.CaregiverUpdate(ctx, id, f.caregiver.ID, model.AppointmentStatusInProgress, nil)
			require.NoError(t, err)
			_, err = f.svc.CaregiverUpdate(ctx, id, f.caregiver.ID, model.AppointmentStatusCompleted, nil)
			require.NoError(t, err)
		},
		model.AppointmentStatusCancelled: func(t *testing.T, f *fixture, id uuid.UUID) {
			_, err := f.svc.Cancel(ctx, id, f.admin, nil)
			require.NoError(t, err)
		},
	}

	for status, done := range finish {
		t.Run(string(status), func(t *testing.T) {
			f := newFixture(t)
			apt := f.request(t)
			f.approve(t, apt.ID)
			done(t, f, apt.ID)

			other := &model.Caregiver{
				Account:     model.Account{FirstName: "Carl", LastName: "Other", Email: "carl@example.com", PasswordHash: "x"},
				PhoneNumber: "5550003333",
				Department:  "cardiology",
			}
			require.NoError(t, f.store.Caregivers().Create(ctx, other))

			before, err := f.store.Appointments().Get(ctx, apt.ID)
			require.NoError(t, err)
			f.notifier.Reset()

			date := time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)
			_, err = f.svc.AdminUpdate(ctx, apt.ID, f.admin, model.AppointmentUpdate{
				CaregiverID:     &other.ID,
				AppointmentDate: &date,
			})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidTransition)
			assert.Equal(t, 400, apperrors.As(err).StatusCode())
			assert.Equal(t, "Cannot modify a "+string(status)+" appointment", apperrors.As(err).Message)

			_, err = f.svc.AdminUpdate(ctx, apt.ID, f.admin, model.AppointmentUpdate{Status: statusPtr(status)})
			assert.ErrorIs(t, err, ErrInvalidTransition)

			after, err := f.store.Appointments().Get(ctx, apt.ID)
			require.NoError(t, err)
			assert.Equal(t, before, after)
			require.NotNil(t, after.CaregiverID)
			assert.Equal(t, f.caregiver.ID, *after.CaregiverID)
			assert.Empty(t, f.notifier.Messages())
		})
	}
}

type countingInvalidator struct {
	mu sync.Mutex
	n  int
}

func (c *countingInvalidator) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
}

func (c *countingInvalidator) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func TestStoredChangesInvalidateCaches(t *testing.T) {
	f := newFixture(t)
	caches := &countingInvalidator{}
	f.svc = NewService(
		f.store.Appointments(), f.store.Patients(), f.store.Caregivers(),
		f.notifier, audit.NewService(f.store.Audit(), logger.Nop()), f.metrics, logger.Nop(),
		WithClock(f.clock.Now),
		WithCacheInvalidator(caches),
	)

	apt := f.request(t)
	f.approve(t, apt.ID)
	assert.Equal(t, 1, caches.Count())

	_, err := f.svc.AdminUpdate(context.Background(), apt.ID, f.admin, model.AppointmentUpdate{
		Status: statusPtr(model.AppointmentStatusInProgress),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, caches.Count())

	_, err = f.svc.AdminUpdate(context.Background(), apt.ID, f.admin, model.AppointmentUpdate{
		Status: statusPtr(model.AppointmentStatusPending),
	})
	require.Error(t, err)
	assert.Equal(t, 2, caches.Count(), "rejected updates store nothing")
}

// blockingNotifier holds the first Notify call until release is closed.
type blockingNotifier struct {
	notificationtest.Recorder
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (b *blockingNotifier) Notify(ctx context.Context, msg notification.Message) {
	first := false
	b.once.Do(func() { first = true })
	if first {
		close(b.entered)
		<-b.release
	}
	b.Recorder.Notify(ctx, msg)
}

func TestNotificationsDoNotHoldTheAppointmentLock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	apt := f.request(t)

	slow := &blockingNotifier{entered: make(chan struct{}), release: make(chan struct{})}
	f.svc = f.newService(slow)

	approved := make(chan error, 1)
	go func() {
		_, err := f.svc.AdminUpdate(ctx, apt.ID, f.admin, model.AppointmentUpdate{
			Status:      statusPtr(model.AppointmentStatusApproved),
			CaregiverID: &f.caregiver.ID,
		})
		approved <- err
	}()

	select {
	case <-slow.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("approval never reached the notifier")
	}

	started := make(chan error, 1)
	go func() {
		_, err := f.svc.CaregiverUpdate(ctx, apt.ID, f.caregiver.ID, model.AppointmentStatusInProgress, nil)
		started <- err
	}()

	select {
	case err := <-started:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("update blocked behind a pending notification")
	}

	close(slow.release)
	require.NoError(t, <-approved)

	stored, err := f.store.Appointments().Get(ctx, apt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusInProgress, stored.Status)
}

func TestDashboardReflectsTransitionsImmediately(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	stats := analytics.NewService(f.store.Analytics(), time.Hour)
	f.svc = NewService(
		f.store.Appointments(), f.store.Patients(), f.store.Caregivers(),
		f.notifier, audit.NewService(f.store.Audit(), logger.Nop()), f.metrics, logger.Nop(),
		WithClock(f.clock.Now),
		WithCacheInvalidator(stats),
	)

	apt := f.request(t)
	dash, err := stats.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, dash.PendingAppointments)
	assert.Equal(t, 0, dash.ActiveAppointments)

	f.approve(t, apt.ID)

	dash, err = stats.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, dash.PendingAppointments)
	assert.Equal(t, 1, dash.ActiveAppointments)
}
